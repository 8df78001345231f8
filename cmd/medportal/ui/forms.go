package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medportal/internal/account"
	"medportal/internal/api"
	"medportal/internal/auth"
	"medportal/internal/portal"
	"medportal/internal/session"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type logoutRequestMsg struct{}

// homeView is the landing page.
type homeView struct {
	styles Styles
}

func (h homeView) update(msg tea.Msg, store session.Store) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	switch key.String() {
	case "l":
		return Navigate(string(portal.Login))
	case "r":
		return Navigate(string(portal.Register))
	case "p":
		role, _ := auth.ParseRole(session.Value(store, session.KeyRole))
		return Navigate(string(portal.PortalFor(role)))
	case "o":
		return func() tea.Msg { return logoutRequestMsg{} }
	case "q":
		return tea.Quit
	}
	return nil
}

func (h homeView) view(store session.Store) string {
	var sb strings.Builder
	sb.WriteString(h.styles.Title.Render("Welcome to the clinic portal"))
	sb.WriteString("\n")
	sb.WriteString(h.styles.Body.Render("Patients, doctors, staff and administrators each have their own portal\nwith an assistant that knows who you are."))
	sb.WriteString("\n\n")

	snap := session.Read(store)
	if snap.Token == "" {
		sb.WriteString(h.styles.Muted.Render("You are not signed in."))
	} else {
		status := "Signed in"
		if snap.Username != "" {
			status += " as " + h.styles.Bold.Render(snap.Username)
		}
		if role, ok := auth.ParseRole(snap.Role); ok {
			status += " " + h.styles.RoleBadge(role)
		}
		sb.WriteString(h.styles.Body.Render(status))
	}
	return h.styles.Content.Render(sb.String())
}

// loginRoles are the choices of the role selector; RoleNone lets the server
// decide.
var loginRoles = append([]auth.Role{auth.RoleNone}, auth.AllRoles...)

const (
	loginFocusUser = iota
	loginFocusPassword
	loginFocusRole
	loginFocusPersonID
	loginFocusSubmit
	loginFocusCount
)

type loginForm struct {
	styles   Styles
	username textinput.Model
	password textinput.Model
	personID textinput.Model
	roleIdx  int
	focus    int
	err      string
	busy     bool
}

func newInput(styles Styles, placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "› "
	ti.PromptStyle = styles.Prompt
	ti.CharLimit = limit
	ti.Width = 32
	return ti
}

func newLoginForm(styles Styles) loginForm {
	f := loginForm{
		styles:   styles,
		username: newInput(styles, "username", 64),
		password: newInput(styles, "password", 128),
		personID: newInput(styles, "optional", 20),
	}
	f.password.EchoMode = textinput.EchoPassword
	f.password.EchoCharacter = '•'
	return f.setFocus(loginFocusUser)
}

func (f loginForm) setFocus(i int) loginForm {
	f.focus = (i + loginFocusCount) % loginFocusCount
	f.username.Blur()
	f.password.Blur()
	f.personID.Blur()
	switch f.focus {
	case loginFocusUser:
		f.username.Focus()
	case loginFocusPassword:
		f.password.Focus()
	case loginFocusPersonID:
		f.personID.Focus()
	}
	return f
}

func (f loginForm) reset() loginForm {
	f.err, f.busy = "", false
	f.password.Reset()
	if f.username.Value() != "" {
		return f.setFocus(loginFocusPassword)
	}
	return f.setFocus(loginFocusUser)
}

func (f loginForm) prefill(username string) loginForm {
	f.username.SetValue(username)
	return f.setFocus(loginFocusPassword)
}

func (f loginForm) failed(err error) loginForm {
	f.busy = false
	f.err = formMessage(err)
	f.password.Reset()
	return f.setFocus(loginFocusPassword)
}

func formMessage(err error) string {
	var fe *account.FormError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}

func (f loginForm) input() account.LoginInput {
	return account.LoginInput{
		Username: f.username.Value(),
		Password: f.password.Value(),
		Role:     loginRoles[f.roleIdx],
		PersonID: f.personID.Value(),
	}
}

func (f loginForm) update(msg tea.Msg, accounts *account.Service) (loginForm, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			return f.setFocus(f.focus + 1), nil
		case "shift+tab", "up":
			return f.setFocus(f.focus - 1), nil
		case "left", "right":
			if f.focus == loginFocusRole {
				step := 1
				if key.String() == "left" {
					step = len(loginRoles) - 1
				}
				f.roleIdx = (f.roleIdx + step) % len(loginRoles)
				return f, nil
			}
		case "enter":
			if f.busy {
				return f, nil
			}
			f.busy, f.err = true, ""
			in := f.input()
			return f, func() tea.Msg {
				res, err := accounts.Login(context.Background(), in)
				return loginDoneMsg{res: res, err: err}
			}
		}
	}

	var cmd tea.Cmd
	switch f.focus {
	case loginFocusUser:
		f.username, cmd = f.username.Update(msg)
	case loginFocusPassword:
		f.password, cmd = f.password.Update(msg)
	case loginFocusPersonID:
		f.personID, cmd = f.personID.Update(msg)
	}
	return f, cmd
}

func (f loginForm) label(text string, focus int) string {
	if f.focus == focus {
		return f.styles.FocusedLabel.Render(text)
	}
	return f.styles.Label.Render(text)
}

func (f loginForm) view() string {
	role := "Any"
	if r := loginRoles[f.roleIdx]; r != auth.RoleNone {
		role = r.Title()
	}
	rows := []string{
		f.styles.Title.Render("Sign in"),
		f.label("Username", loginFocusUser) + f.username.View(),
		f.label("Password", loginFocusPassword) + f.password.View(),
		f.label("Role", loginFocusRole) + "‹ " + role + " ›",
		f.label("Person id", loginFocusPersonID) + f.personID.View(),
		"",
		button(f.styles, "Sign in", f.focus == loginFocusSubmit, f.busy),
	}
	if f.err != "" {
		rows = append(rows, "", f.styles.Error.Render(f.err))
	}
	return f.styles.Content.Render(f.styles.Card.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}

func button(styles Styles, label string, active, busy bool) string {
	if busy {
		label += "…"
	}
	if active {
		return styles.ActiveButton.Render(label)
	}
	return styles.Button.Render(label)
}

const (
	regFocusKind = iota
	regFocusFirst
	regFocusLast
	regFocusEmail
	regFocusPhone
	regFocusUser
	regFocusPassword
	regFocusSubmit
	regFocusCount
)

var registerKinds = []api.PersonKind{api.PersonPatient, api.PersonDoctor}

type registerForm struct {
	styles  Styles
	kindIdx int
	// inputs is indexed by focus position; the kind selector and the submit
	// button have no input.
	inputs []textinput.Model
	focus  int
	err    string
	busy   bool
}

func newRegisterForm(styles Styles) registerForm {
	inputs := make([]textinput.Model, regFocusCount)
	inputs[regFocusFirst] = newInput(styles, "first name", 64)
	inputs[regFocusLast] = newInput(styles, "last name", 64)
	inputs[regFocusEmail] = newInput(styles, "optional", 128)
	inputs[regFocusPhone] = newInput(styles, "optional", 32)
	inputs[regFocusUser] = newInput(styles, "username", 64)
	inputs[regFocusPassword] = newInput(styles, "password", 128)
	inputs[regFocusPassword].EchoMode = textinput.EchoPassword
	inputs[regFocusPassword].EchoCharacter = '•'
	return registerForm{styles: styles, inputs: inputs}.setFocus(regFocusFirst)
}

func hasInput(focus int) bool { return focus != regFocusKind && focus != regFocusSubmit }

func (f registerForm) setFocus(i int) registerForm {
	f.focus = (i + regFocusCount) % regFocusCount
	inputs := make([]textinput.Model, len(f.inputs))
	copy(inputs, f.inputs)
	for j := range inputs {
		if !hasInput(j) {
			continue
		}
		if j == f.focus {
			inputs[j].Focus()
		} else {
			inputs[j].Blur()
		}
	}
	f.inputs = inputs
	return f
}

func (f registerForm) reset() registerForm {
	f.err, f.busy = "", false
	return f.setFocus(regFocusFirst)
}

func (f registerForm) failed(err error) registerForm {
	f.busy = false
	f.err = formMessage(err)
	return f
}

func (f registerForm) input() account.RegisterInput {
	return account.RegisterInput{
		Kind: registerKinds[f.kindIdx],
		Person: api.Person{
			FirstName: f.inputs[regFocusFirst].Value(),
			LastName:  f.inputs[regFocusLast].Value(),
			Email:     f.inputs[regFocusEmail].Value(),
			Phone:     f.inputs[regFocusPhone].Value(),
		},
		Username: f.inputs[regFocusUser].Value(),
		Password: f.inputs[regFocusPassword].Value(),
	}
}

func (f registerForm) update(msg tea.Msg, accounts *account.Service) (registerForm, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			return f.setFocus(f.focus + 1), nil
		case "shift+tab", "up":
			return f.setFocus(f.focus - 1), nil
		case "left", "right":
			if f.focus == regFocusKind {
				f.kindIdx = (f.kindIdx + 1) % len(registerKinds)
				return f, nil
			}
		case "enter":
			if f.busy {
				return f, nil
			}
			f.busy, f.err = true, ""
			in := f.input()
			return f, func() tea.Msg {
				id, err := accounts.Register(context.Background(), in)
				return registerDoneMsg{id: id, username: strings.TrimSpace(in.Username), err: err}
			}
		}
	}
	if !hasInput(f.focus) {
		return f, nil
	}
	inputs := make([]textinput.Model, len(f.inputs))
	copy(inputs, f.inputs)
	var cmd tea.Cmd
	inputs[f.focus], cmd = inputs[f.focus].Update(msg)
	f.inputs = inputs
	return f, cmd
}

func (f registerForm) view() string {
	label := func(text string, focus int) string {
		if f.focus == focus {
			return f.styles.FocusedLabel.Render(text)
		}
		return f.styles.Label.Render(text)
	}
	kind := registerKinds[f.kindIdx]
	rows := []string{
		f.styles.Title.Render("Create an account"),
		label("Account", regFocusKind) + fmt.Sprintf("‹ %s ›", strings.ToUpper(string(kind[:1]))+string(kind[1:])),
		label("First name", regFocusFirst) + f.inputs[regFocusFirst].View(),
		label("Last name", regFocusLast) + f.inputs[regFocusLast].View(),
		label("Email", regFocusEmail) + f.inputs[regFocusEmail].View(),
		label("Phone", regFocusPhone) + f.inputs[regFocusPhone].View(),
		label("Username", regFocusUser) + f.inputs[regFocusUser].View(),
		label("Password", regFocusPassword) + f.inputs[regFocusPassword].View(),
		"",
		button(f.styles, "Register", f.focus == regFocusSubmit, f.busy),
	}
	if f.err != "" {
		rows = append(rows, "", f.styles.Error.Render(f.err))
	}
	return f.styles.Content.Render(f.styles.Card.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
}
