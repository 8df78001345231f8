package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"medportal/internal/account"
	"medportal/internal/api"
	"medportal/internal/auth"
	"medportal/internal/chat"
	"medportal/internal/logging"
	"medportal/internal/portal"
	"medportal/internal/session"
	"medportal/internal/ux"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Deps are the components the interface drives.
type Deps struct {
	Store         session.Store
	Reconciler    *auth.Reconciler
	Guard         *portal.Guard
	Accounts      *account.Service
	Chat          *chat.Session
	Backend       chat.Backend
	WatchInterval time.Duration
	// Prefs is optional; without it nothing is remembered between runs.
	Prefs *ux.PreferencesManager
}

// Messages
type (
	// NavigateMsg asks the router to go to Path.
	NavigateMsg struct{ Path string }

	watchTickMsg struct{ gen int }

	historyLoadedMsg struct {
		gen int
		err error
	}

	chatReplyMsg struct {
		req   chat.Request
		reply api.ChatReply
		err   error
	}

	loginDoneMsg struct {
		res account.LoginResult
		err error
	}

	registerDoneMsg struct {
		id       string
		username string
		err      error
	}
)

// Navigate returns a command that routes to path.
func Navigate(path string) tea.Cmd {
	return func() tea.Msg { return NavigateMsg{Path: path} }
}

// changeLog collects watcher callbacks fired during a synchronous Check.
type changeLog struct{ pending []auth.Change }

func (c *changeLog) push(ch auth.Change) { c.pending = append(c.pending, ch) }

func (c *changeLog) drain() []auth.Change {
	out := c.pending
	c.pending = nil
	return out
}

// Model is the root bubbletea model.
type Model struct {
	deps   Deps
	styles Styles

	route  portal.Route
	flash  string
	width  int
	height int

	home     homeView
	login    loginForm
	register registerForm
	chat     chatView

	// mountGen identifies the current portal mount. Ticks and loads carrying
	// an older generation belong to an unmounted view and are dropped.
	mountGen   int
	mounted    bool
	loadCtx    context.Context
	cancelLoad context.CancelFunc
	watcher    *auth.Watcher
	changes    *changeLog
}

// New creates the interface starting at path.
func New(deps Deps, styles Styles, path string) Model {
	if deps.WatchInterval <= 0 {
		deps.WatchInterval = auth.DefaultWatchInterval
	}
	m := Model{
		deps:     deps,
		styles:   styles,
		route:    portal.Home,
		width:    80,
		height:   24,
		login:    newLoginForm(styles),
		register: newRegisterForm(styles),
		chat:     newChatView(styles, 80, 24),
		changes:  &changeLog{},
	}
	m.home = homeView{styles: styles}
	if deps.Prefs != nil {
		if name := deps.Prefs.Get().LastUsername; name != "" {
			m.login = m.login.prefill(name)
		}
	}
	if path != "" {
		m, _ = m.navigate(path)
	}
	return m
}

// Route returns the current route.
func (m Model) Route() portal.Route { return m.route }

// Flash returns the current status line message.
func (m Model) Flash() string { return m.flash }

func (m Model) Init() tea.Cmd {
	if m.mounted {
		return m.mountCmds()
	}
	return nil
}

// navigate runs the guard and switches views. Redirect chains are bounded;
// a guard redirect always lands on a public route or the user's own portal.
func (m Model) navigate(path string) (Model, tea.Cmd) {
	target := portal.Resolve(path)
	for hops := 0; hops < 3 && target.Protected(); hops++ {
		d := m.deps.Guard.Check(target)
		if d.State != portal.Redirecting {
			break
		}
		m.flash = redirectNotice(d)
		target = d.Target
	}

	if m.mounted && target != m.route {
		m = m.unmount()
	}
	prev := m.route
	m.route = target
	logging.RoutingDebug("view %s -> %s", prev, target)

	switch target {
	case portal.Login:
		m.login = m.login.reset()
	case portal.Register:
		m.register = m.register.reset()
	}

	if target.Protected() && !m.mounted {
		m = m.mount()
		return m, m.mountCmds()
	}
	return m, nil
}

func redirectNotice(d portal.Decision) string {
	if d.Target == portal.Login {
		return "Please sign in to continue."
	}
	return fmt.Sprintf("Redirected to your %s.", strings.ToLower(portal.Info(d.Target).Title))
}

// mount starts the portal conversation: fresh watcher primed with the current
// session, history load, watcher ticks.
func (m Model) mount() Model {
	m.mountGen++
	m.mounted = true
	m.changes.drain()
	m.watcher = auth.NewWatcher(m.deps.Store, m.deps.Reconciler, m.deps.WatchInterval, m.changes.push)
	m.loadCtx, m.cancelLoad = context.WithCancel(context.Background())
	m.chat = m.chat.focus()
	return m
}

func (m Model) mountCmds() tea.Cmd {
	ctx := m.loadCtx
	gen := m.mountGen
	s := m.deps.Chat
	load := func() tea.Msg {
		return historyLoadedMsg{gen: gen, err: s.Load(ctx)}
	}
	return tea.Batch(load, m.tick(), m.chat.init())
}

func (m Model) tick() tea.Cmd {
	gen := m.mountGen
	return tea.Tick(m.deps.WatchInterval, func(time.Time) tea.Msg { return watchTickMsg{gen: gen} })
}

func (m Model) unmount() Model {
	if m.cancelLoad != nil {
		m.cancelLoad()
		m.cancelLoad = nil
	}
	m.loadCtx = nil
	m.mountGen++
	m.mounted = false
	m.watcher = nil
	m.chat = m.chat.blur()
	return m
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chat = m.chat.resize(msg.Width, msg.Height-4)
		m.chat = m.chat.refresh(m.deps.Chat)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m = m.unmount()
			return m, tea.Quit
		case "esc":
			if m.route != portal.Home {
				m.flash = ""
				return m.navigate(string(portal.Home))
			}
		}

	case NavigateMsg:
		m.flash = ""
		return m.navigate(msg.Path)

	case watchTickMsg:
		if msg.gen != m.mountGen || !m.mounted {
			return m, nil
		}
		return m.onWatchTick()

	case historyLoadedMsg:
		if msg.gen != m.mountGen {
			return m, nil
		}
		if msg.err != nil {
			logging.Get(logging.CategoryTranscript).Warn("history load: %v", msg.err)
		}
		m.chat = m.chat.refresh(m.deps.Chat)
		return m, nil

	case chatReplyMsg:
		if _, ok := m.deps.Chat.Complete(msg.req, msg.reply, msg.err); !ok {
			return m, nil
		}
		if msg.err == nil && m.deps.Prefs != nil {
			_ = m.deps.Prefs.IncrementMetric(ux.MetricMessages)
		}
		m.chat = m.chat.refresh(m.deps.Chat)
		return m, nil

	case logoutRequestMsg:
		return m.logout()

	case loginDoneMsg:
		if msg.err != nil {
			m.login = m.login.failed(msg.err)
			return m, nil
		}
		m.flash = fmt.Sprintf("Signed in as %s.", msg.res.Identity)
		if m.deps.Prefs != nil {
			if err := m.deps.Prefs.RecordLogin(m.login.username.Value()); err != nil {
				logging.Get(logging.CategoryBoot).Warn("save preferences: %v", err)
			}
		}
		return m.navigate(string(msg.res.Portal))

	case registerDoneMsg:
		if msg.err != nil {
			m.register = m.register.failed(msg.err)
			return m, nil
		}
		m, cmd := m.navigate(string(portal.Login))
		m.login = m.login.prefill(msg.username)
		m.flash = fmt.Sprintf("Registered with id %s. Please sign in.", msg.id)
		return m, cmd
	}

	return m.updateView(msg)
}

func (m Model) updateView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.route {
	case portal.Home:
		cmd = m.home.update(msg, m.deps.Store)
	case portal.Login:
		m.login, cmd = m.login.update(msg, m.deps.Accounts)
	case portal.Register:
		m.register, cmd = m.register.update(msg, m.deps.Accounts)
	default:
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+o" {
			return m.logout()
		}
		m.chat, cmd = m.chat.update(msg, m.deps.Chat, m.deps.Backend)
		if m.chat.notice != "" {
			m.flash, m.chat.notice = m.chat.notice, ""
		}
	}
	return m, cmd
}

func (m Model) onWatchTick() (tea.Model, tea.Cmd) {
	if !m.watcher.Check() {
		return m, m.tick()
	}

	for _, c := range m.changes.drain() {
		role := c.Result.Role
		if !c.Authenticated() || c.Result.ForcedLogout {
			role = auth.RoleNone
		}
		m.deps.Chat.Reset(role)
	}
	m.chat = m.chat.refresh(m.deps.Chat)

	// Re-run the guard for the view we are on.
	gen := m.mountGen
	m, cmd := m.navigate(string(m.route))
	if m.mounted && m.mountGen == gen {
		return m, tea.Batch(cmd, m.tick())
	}
	return m, cmd
}

func (m Model) logout() (tea.Model, tea.Cmd) {
	if err := m.deps.Accounts.Logout(); err != nil {
		m.flash = "Sign out failed: " + err.Error()
		return m, nil
	}
	m.deps.Chat.Reset(auth.RoleNone)
	m, cmd := m.navigate(string(portal.Login))
	m.flash = "Signed out."
	return m, cmd
}

func (m Model) View() string {
	var body string
	switch m.route {
	case portal.Home:
		body = m.home.view(m.deps.Store)
	case portal.Login:
		body = m.login.view()
	case portal.Register:
		body = m.register.view()
	default:
		body = m.chat.view(m.deps.Chat)
	}

	var sb strings.Builder
	sb.WriteString(m.header())
	sb.WriteString("\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	if m.flash != "" {
		sb.WriteString(m.styles.Info.Render("  " + m.flash))
		sb.WriteString("\n")
	}
	if m.deps.Prefs == nil || m.deps.Prefs.Get().ShowHints {
		sb.WriteString(m.styles.Footer.Render(m.footer()))
	}
	return sb.String()
}

func (m Model) header() string {
	left := m.styles.Header.Render("medportal · " + portal.Info(m.route).Title)
	snap := session.Read(m.deps.Store)
	if snap.Token == "" || snap.Username == "" {
		return left
	}
	right := snap.Username
	if role, ok := auth.ParseRole(snap.Role); ok {
		right += " " + m.styles.RoleBadge(role)
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) footer() string {
	switch m.route {
	case portal.Home:
		return "l sign in · r register · p my portal · o sign out · q quit"
	case portal.Login, portal.Register:
		return "tab next field · enter submit · esc home · ctrl+c quit"
	}
	return "enter send · pgup/pgdn scroll · ctrl+o sign out · esc home · ctrl+c quit"
}
