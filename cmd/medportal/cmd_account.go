package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"medportal/internal/account"
	"medportal/internal/api"
	"medportal/internal/auth"
	"medportal/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	loginUser     string
	loginPassword string
	loginRole     string
	loginPersonID string

	regKind      string
	regFirstName string
	regLastName  string
	regEmail     string
	regPhone     string
	regSpecialty string
)

// loginCmd authenticates and stores the session
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	Long: `Signs in against the portal backend and stores the session for every
medportal process on this machine profile.

The password is read from stdin when --password is omitted.

Example:
  medportal login --user jdoe --role doctor --person-id 12`,
	RunE: runLogin,
}

// logoutCmd clears the session
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	RunE:  runLogout,
}

// registerCmd creates a patient or doctor account
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a patient or doctor account",
	Long: `Creates the person profile, then the login for it.

Example:
  medportal register --kind patient --first Ada --last Lovelace --user ada`,
	RunE: runRegister,
}

// whoamiCmd shows the reconciled identity
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session identity",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "Username (required)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (default: read from stdin)")
	loginCmd.Flags().StringVarP(&loginRole, "role", "r", "", "Role: patient, doctor, staff or admin")
	loginCmd.Flags().StringVar(&loginPersonID, "person-id", "", "Person id for the chosen role")
	_ = loginCmd.MarkFlagRequired("user")

	registerCmd.Flags().StringVar(&regKind, "kind", "patient", "Account kind: patient or doctor")
	registerCmd.Flags().StringVar(&regFirstName, "first", "", "First name (required)")
	registerCmd.Flags().StringVar(&regLastName, "last", "", "Last name (required)")
	registerCmd.Flags().StringVar(&regEmail, "email", "", "Email")
	registerCmd.Flags().StringVar(&regPhone, "phone", "", "Phone")
	registerCmd.Flags().StringVar(&regSpecialty, "specialty", "", "Specialty (doctors)")
	registerCmd.Flags().StringVarP(&loginUser, "user", "u", "", "Username (required)")
	registerCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (default: read from stdin)")
}

func readPassword(cmd *cobra.Command) (string, error) {
	if loginPassword != "" {
		return loginPassword, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	var role auth.Role
	if loginRole != "" {
		r, ok := auth.ParseRole(loginRole)
		if !ok {
			return fmt.Errorf("unknown role %q", loginRole)
		}
		role = r
	}
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	accounts, err := rt.Accounts()
	if err != nil {
		return err
	}

	res, err := accounts.Login(cmd.Context(), account.LoginInput{
		Username: loginUser,
		Password: password,
		Role:     role,
		PersonID: loginPersonID,
	})
	if err != nil {
		var fe *account.FormError
		if errors.As(err, &fe) {
			logger.Debug("login failed", zap.Error(fe.Err))
			return errors.New(fe.Message)
		}
		return err
	}

	logger.Info("logged in", zap.String("role", string(res.Role)), zap.String("portal", string(res.Portal)))
	fmt.Printf("Signed in as %s (%s)\n", loginUser, res.Identity)
	fmt.Printf("Portal: %s\n", res.Portal)
	if pm, err := rt.Prefs(); err == nil {
		if err := pm.RecordLogin(loginUser); err != nil {
			logger.Warn("save preferences", zap.Error(err))
		}
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	accounts, err := rt.Accounts()
	if err != nil {
		return err
	}
	if err := accounts.Logout(); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	accounts, err := rt.Accounts()
	if err != nil {
		return err
	}

	id, err := accounts.Register(cmd.Context(), account.RegisterInput{
		Kind: api.PersonKind(strings.ToLower(regKind)),
		Person: api.Person{
			FirstName: regFirstName,
			LastName:  regLastName,
			Email:     regEmail,
			Phone:     regPhone,
			Specialty: regSpecialty,
		},
		Username: loginUser,
		Password: password,
	})
	if err != nil {
		var fe *account.FormError
		if errors.As(err, &fe) {
			return errors.New(fe.Message)
		}
		return err
	}
	fmt.Printf("Registered %s %q with id %s.\n", regKind, loginUser, id)
	fmt.Printf("Sign in with: medportal login --user %s --role %s --person-id %s\n", loginUser, regKind, id)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	rec, err := rt.Reconciler()
	if err != nil {
		return err
	}
	res, err := rec.Reconcile()
	if err != nil {
		return err
	}
	snap := session.Read(rt.store)

	if !res.Authenticated() {
		fmt.Println("Not signed in.")
		if res.ForcedLogout {
			fmt.Println("(the stored session was inconsistent and has been cleared)")
		}
		return nil
	}
	fmt.Printf("User:     %s\n", snap.Username)
	fmt.Printf("Role:     %s\n", res.Role.Title())
	fmt.Printf("Identity: %s\n", res.Identity)
	if res.Conflict {
		fmt.Printf("Warning:  several role identifiers are stored; using %s\n", res.Identity)
	}
	return nil
}
