// Package account implements the login, registration and logout flows that
// create and destroy the persisted session.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"medportal/internal/api"
	"medportal/internal/auth"
	"medportal/internal/logging"
	"medportal/internal/portal"
	"medportal/internal/session"

	"go.uber.org/zap"
)

// FormError is the inline message shown on the login or register form.
type FormError struct {
	Message string
	Err     error
}

func (e *FormError) Error() string { return e.Message }
func (e *FormError) Unwrap() error { return e.Err }

func formError(action string, err error) *FormError {
	msg := action + " failed. Please try again."
	var se *api.StatusError
	switch {
	case errors.Is(err, api.ErrNetwork):
		msg = "Unable to reach the server. Please check your connection and try again."
	case errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden):
		msg = "Invalid username or password."
	case errors.As(err, &se) && se.StatusCode == http.StatusConflict:
		msg = "That username is already taken."
	case errors.Is(err, auth.ErrRoleResolution), errors.Is(err, auth.ErrIdentityInconsistency):
		msg = "Your account role could not be determined. Please contact support."
	}
	return &FormError{Message: msg, Err: err}
}

// Service runs the account flows against the backend and the session store.
type Service struct {
	client           *api.Client
	store            session.Store
	reconciler       *auth.Reconciler
	historyNamespace string
}

// NewService wires the flows. historyNamespace is cleared on logout.
func NewService(client *api.Client, store session.Store, reconciler *auth.Reconciler, historyNamespace string) *Service {
	if reconciler == nil {
		reconciler = auth.NewReconciler(store, nil, auth.WithHistoryNamespace(historyNamespace))
	}
	return &Service{client: client, store: store, reconciler: reconciler, historyNamespace: historyNamespace}
}

// LoginInput is the login form.
type LoginInput struct {
	Username string
	Password string
	Role     auth.Role
	PersonID string
}

// LoginResult reports where the fresh session lands.
type LoginResult struct {
	Identity auth.Identity
	Role     auth.Role
	Portal   portal.Route
}

// Login authenticates, stores the session and resolves the role. Any failure
// clears whatever the attempt stored and returns a *FormError.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.PersonID = strings.TrimSpace(in.PersonID)
	if in.Username == "" || in.Password == "" {
		return LoginResult{}, &FormError{Message: "Username and password are required."}
	}

	res, err := s.login(ctx, in)
	if err != nil {
		if clearErr := session.ClearAll(s.store, ""); clearErr != nil {
			logging.Get(logging.CategoryAuth).Error("clear failed login: %v", clearErr)
		}
		logging.Get(logging.CategoryAuth).Warn("login for %q failed: %v", in.Username, err)
		logging.Audit().Record(logging.AuditLoginFailed, zap.String("username", in.Username), zap.Error(err))
		return LoginResult{}, formError("Login", err)
	}

	logging.Auth("%s logged in as %s", in.Username, res.Identity)
	logging.Audit().Record(logging.AuditLogin,
		zap.String("username", in.Username), zap.String("role", string(res.Role)))
	return res, nil
}

func (s *Service) login(ctx context.Context, in LoginInput) (LoginResult, error) {
	cred := api.Credentials{Username: in.Username, Password: in.Password, PersonID: in.PersonID}
	if in.Role != auth.RoleNone {
		cred.Role = in.Role.Token()
	}
	token, err := s.client.Login(ctx, cred)
	if err != nil {
		return LoginResult{}, err
	}

	// Start from a clean slate so nothing from a previous user survives.
	if err := session.ClearAll(s.store, ""); err != nil {
		return LoginResult{}, fmt.Errorf("reset session: %w", err)
	}
	if err := s.store.Set(session.KeyAuthToken, token); err != nil {
		return LoginResult{}, fmt.Errorf("store token: %w", err)
	}
	if err := s.store.Set(session.KeyUsername, in.Username); err != nil {
		return LoginResult{}, fmt.Errorf("store username: %w", err)
	}

	home, err := s.client.Home(ctx, token)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.store.Set(session.KeyHomeData, home); err != nil {
		return LoginResult{}, fmt.Errorf("store identity payload: %w", err)
	}
	if in.Role != auth.RoleNone && in.PersonID != "" {
		if err := s.store.Set(in.Role.IDKey(), in.PersonID); err != nil {
			return LoginResult{}, fmt.Errorf("store identifier: %w", err)
		}
	}

	res, err := s.reconciler.Reconcile()
	if err != nil {
		return LoginResult{}, err
	}
	if res.ForcedLogout {
		return LoginResult{}, auth.ErrIdentityInconsistency
	}
	if res.Role == auth.RoleNone {
		return LoginResult{}, auth.ErrRoleResolution
	}
	if res.Identity.IsNone() {
		// Role-scoped requests need the identifier; a role alone is not a session.
		return LoginResult{}, fmt.Errorf("%w: no identifier for role %s", auth.ErrIdentityInconsistency, res.Role)
	}
	return LoginResult{Identity: res.Identity, Role: res.Role, Portal: portal.PortalFor(res.Role)}, nil
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Kind     api.PersonKind
	Person   api.Person
	Username string
	Password string
}

// Register creates the person profile and its login. It does not log in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	in.Username = strings.TrimSpace(in.Username)
	switch {
	case in.Username == "" || in.Password == "":
		return "", &FormError{Message: "Username and password are required."}
	case strings.TrimSpace(in.Person.FirstName) == "" || strings.TrimSpace(in.Person.LastName) == "":
		return "", &FormError{Message: "First and last name are required."}
	case in.Kind != api.PersonPatient && in.Kind != api.PersonDoctor:
		return "", &FormError{Message: "Only patient and doctor accounts can be registered."}
	}

	id, err := s.client.RegisterPerson(ctx, in.Kind, in.Person)
	if err != nil {
		return "", formError("Registration", err)
	}
	err = s.client.RegisterAuth(ctx, api.Credentials{
		Username: in.Username,
		Password: in.Password,
		Role:     strings.ToUpper(string(in.Kind)),
		PersonID: id,
	})
	if err != nil {
		return "", formError("Registration", err)
	}
	logging.Auth("registered %s %q with id %s", in.Kind, in.Username, id)
	return id, nil
}

// Logout removes every session key and the local history archive.
func (s *Service) Logout() error {
	user := session.Value(s.store, session.KeyUsername)
	if err := session.ClearAll(s.store, s.historyNamespace); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	logging.Auth("%q logged out", user)
	logging.Audit().Record(logging.AuditLogout, zap.String("username", user))
	return nil
}
