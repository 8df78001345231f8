package main

import (
	"fmt"

	"medportal/internal/portal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// routeCmd runs the portal guard for a path
var routeCmd = &cobra.Command{
	Use:   "route <path>",
	Short: "Show where navigating to a path lands",
	Long: `Resolves a client route and runs the portal guard against the stored
session, printing the decision.

Example:
  medportal route /doctor-portal`,
	Args: cobra.ExactArgs(1),
	RunE: runRoute,
}

func runRoute(cmd *cobra.Command, args []string) error {
	guard, err := rt.Guard()
	if err != nil {
		return err
	}
	route := portal.Resolve(args[0])
	d := guard.Check(route)
	logger.Debug("guard decision", zap.String("route", string(route)), zap.Stringer("state", d.State))

	switch d.State {
	case portal.Admitted:
		fmt.Printf("%s: admitted", route)
		if d.Role != "" {
			fmt.Printf(" (%s)", d.Role.Title())
		}
		fmt.Println()
	case portal.Redirecting:
		fmt.Printf("%s: redirect to %s\n", route, d.Target)
		if verbose && d.Reason != nil {
			fmt.Printf("  reason: %v\n", d.Reason)
		}
	}
	return nil
}
