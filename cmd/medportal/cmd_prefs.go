package main

import (
	"fmt"

	"medportal/internal/ux"

	"github.com/spf13/cobra"
)

// prefsCmd manages local interface preferences
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change local preferences",
	Long: `Preferences are stored per machine and survive sign-out.

Subcommands:
  theme              - auto, light or dark
  remember-username  - on or off
  hints              - on or off`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pm, err := rt.Prefs()
		if err != nil {
			return err
		}
		p := pm.Get()
		fmt.Printf("file:              %s\n", pm.Path())
		fmt.Printf("theme:             %s\n", p.Theme)
		fmt.Printf("remember-username: %s\n", onOff(p.RememberUsername))
		if p.LastUsername != "" {
			fmt.Printf("last username:     %s\n", p.LastUsername)
		}
		fmt.Printf("hints:             %s\n", onOff(p.ShowHints))
		fmt.Printf("sessions:          %d (logins %d, messages %d)\n",
			p.Metrics.SessionsCount, p.Metrics.Logins, p.Metrics.MessagesSent)
		return nil
	},
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func parseOnOff(s string) (bool, error) {
	switch s {
	case "on", "true", "yes":
		return true, nil
	case "off", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

// prefsSetter builds a subcommand that applies one setting and saves.
func prefsSetter(use, short string, apply func(pm *ux.PreferencesManager, arg string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := rt.Prefs()
			if err != nil {
				return err
			}
			if err := apply(pm, args[0]); err != nil {
				return err
			}
			return pm.Save()
		},
	}
}

func init() {
	prefsCmd.AddCommand(prefsSetter("theme <auto|light|dark>", "Set the color theme",
		func(pm *ux.PreferencesManager, arg string) error {
			mode, err := ux.ParseThemeMode(arg)
			if err != nil {
				return err
			}
			return pm.SetTheme(mode)
		}))
	prefsCmd.AddCommand(prefsSetter("remember-username <on|off>", "Prefill the sign-in form",
		func(pm *ux.PreferencesManager, arg string) error {
			on, err := parseOnOff(arg)
			if err != nil {
				return err
			}
			return pm.SetRememberUsername(on)
		}))
	prefsCmd.AddCommand(prefsSetter("hints <on|off>", "Show the key hints footer",
		func(pm *ux.PreferencesManager, arg string) error {
			on, err := parseOnOff(arg)
			if err != nil {
				return err
			}
			return pm.SetShowHints(on)
		}))
}
