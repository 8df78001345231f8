// Package ui is the interactive terminal interface of medportal: a small
// router over the portal routes with login, registration, home and portal
// (chat) views.
package ui

import (
	"os"
	"strconv"
	"strings"

	"medportal/internal/auth"
	"medportal/internal/ux"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	// Light mode
	LightBackground = lipgloss.Color("#f5f8fa")
	LightForeground = lipgloss.Color("#14323d")
	LightPrimary    = lipgloss.Color("#0b6e7f") // clinic teal
	LightAccent     = lipgloss.Color("#2bb3a3")
	LightMuted      = lipgloss.Color("#8a9ba3")
	LightBorder     = lipgloss.Color("#d3dde2")
	LightCard       = lipgloss.Color("#ffffff")

	// Dark mode
	DarkBackground = lipgloss.Color("#0f1c22")
	DarkForeground = lipgloss.Color("#e8eef0")
	DarkPrimary    = lipgloss.Color("#2bb3a3")
	DarkAccent     = lipgloss.Color("#0b6e7f")
	DarkMuted      = lipgloss.Color("#5d7078")
	DarkBorder     = lipgloss.Color("#26404a")
	DarkCard       = lipgloss.Color("#15272f")

	// Semantic colors, same in both modes
	Destructive = lipgloss.Color("#d64545")
	Success     = lipgloss.Color("#2e9e5b")
	Warning     = lipgloss.Color("#e0a800")
	Info        = lipgloss.Color("#2f80ed")
)

// roleColors tint the role badge.
var roleColors = map[auth.Role]lipgloss.Color{
	auth.RolePatient: lipgloss.Color("#2f80ed"),
	auth.RoleDoctor:  lipgloss.Color("#2e9e5b"),
	auth.RoleStaff:   lipgloss.Color("#9b51e0"),
	auth.RoleAdmin:   lipgloss.Color("#d64545"),
}

// Theme holds the current color scheme
type Theme struct {
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Background: LightBackground,
		Foreground: LightForeground,
		Primary:    LightPrimary,
		Accent:     LightAccent,
		Muted:      LightMuted,
		Border:     LightBorder,
		Card:       LightCard,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Background: DarkBackground,
		Foreground: DarkForeground,
		Primary:    DarkPrimary,
		Accent:     DarkAccent,
		Muted:      DarkMuted,
		Border:     DarkBorder,
		Card:       DarkCard,
		IsDark:     true,
	}
}

// DetectTheme picks dark mode from COLORFGBG or MEDPORTAL_DARK_MODE=1.
func DetectTheme() Theme {
	if os.Getenv("MEDPORTAL_DARK_MODE") == "1" {
		return DarkTheme()
	}
	// Format is "foreground;background"; ANSI 0-6 and 8 are dark backgrounds.
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	if len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Layout
	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style
	Card    lipgloss.Style

	// Text
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style

	// Forms
	Label        lipgloss.Style
	FocusedLabel lipgloss.Style
	Prompt       lipgloss.Style
	Button       lipgloss.Style
	ActiveButton lipgloss.Style

	// Conversation
	UserMessage lipgloss.Style
	BotMessage  lipgloss.Style
	Timestamp   lipgloss.Style
	Divider     lipgloss.Style
	Spinner     lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),
		Content: lipgloss.NewStyle().
			Padding(1, 2),
		Card: lipgloss.NewStyle().
			Background(theme.Card).
			Padding(1, 3).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),
		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),
		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),
		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Label: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Width(12),
		FocusedLabel: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true).
			Width(12),
		Prompt: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),
		Button: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2).
			Border(lipgloss.NormalBorder()).
			BorderForeground(theme.Border),
		ActiveButton: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(theme.Primary).
			Padding(0, 2).
			Bold(true),

		UserMessage: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),
		BotMessage: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			PaddingLeft(2).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(theme.Accent),
		Timestamp: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),
		Divider: lipgloss.NewStyle().
			Foreground(theme.Muted),
		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),
		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),
		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),
		Info: lipgloss.NewStyle().
			Foreground(Info),
	}
}

// ThemeFor maps a saved preference to a theme; auto detects the terminal.
func ThemeFor(mode ux.ThemeMode) Theme {
	switch mode {
	case ux.ThemeLight:
		return LightTheme()
	case ux.ThemeDark:
		return DarkTheme()
	}
	return DetectTheme()
}

// DefaultStyles returns styles for the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// RoleBadge renders role as a colored tag.
func (s Styles) RoleBadge(role auth.Role) string {
	bg, ok := roleColors[role]
	if !ok {
		bg = s.Theme.Muted
	}
	return lipgloss.NewStyle().
		Background(bg).
		Foreground(lipgloss.Color("#ffffff")).
		Padding(0, 1).
		Bold(true).
		Render(strings.ToUpper(role.Title()))
}

// RenderDivider renders a labelled horizontal rule of the given width.
func (s Styles) RenderDivider(label string, width int) string {
	label = " " + label + " "
	side := (width - lipgloss.Width(label)) / 2
	if side < 2 {
		side = 2
	}
	return s.Divider.Render(strings.Repeat("─", side) + label + strings.Repeat("─", side))
}
