// Package chat is the live conversation state machine:
// Idle -> Composing -> Sending -> Idle.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"medportal/internal/api"
	"medportal/internal/auth"
	"medportal/internal/logging"
	"medportal/internal/session"
	"medportal/internal/transcript"

	"github.com/google/uuid"
)

var (
	// ErrSendInFlight is returned when a send starts while another is outstanding.
	ErrSendInFlight = errors.New("a message is already being sent")
	// ErrEmptyMessage is returned for blank composed text.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrReset is returned by Send when the conversation was reset mid-flight.
	ErrReset = errors.New("conversation was reset")
)

// DefaultContextWindow is how many prior messages accompany a query.
const DefaultContextWindow = 10

// State of the session.
type State int

const (
	Idle State = iota
	Composing
	Sending
)

func (s State) String() string {
	switch s {
	case Composing:
		return "composing"
	case Sending:
		return "sending"
	}
	return "idle"
}

// Backend answers chat queries.
type Backend interface {
	ChatQuery(ctx context.Context, token string, req api.ChatRequest) (api.ChatReply, error)
}

// HistoryLoader builds the opening transcript.
type HistoryLoader interface {
	Load(ctx context.Context, token string, role auth.Role) (transcript.Transcript, error)
}

// Options tunes a Session. Zero values pick defaults.
type Options struct {
	ContextWindow int
	Archive       *transcript.Archive
	Now           func() time.Time
	NewID         func() string
}

// Request is an outgoing send produced by Begin and settled by Complete.
type Request struct {
	seq   uint64
	Token string
	Body  api.ChatRequest
}

// Session holds one conversation. All methods are safe for concurrent use;
// the network call itself happens outside the lock.
type Session struct {
	store   session.Store
	backend Backend
	history HistoryLoader
	opts    Options

	mu       sync.Mutex
	state    State
	draft    string
	messages transcript.Transcript
	// seq advances on every Begin and Reset; a Complete carrying an older
	// value is stale and dropped.
	seq uint64
	// gen advances only on Reset; a Load that started under an older value
	// belongs to a previous identity and is dropped.
	gen uint64
	// loads numbers Load calls; only the latest one may apply its result.
	loads uint64
}

// New creates an idle session showing the anonymous greeting.
func New(store session.Store, backend Backend, history HistoryLoader, opts Options) *Session {
	if opts.ContextWindow <= 0 {
		opts.ContextWindow = DefaultContextWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	s := &Session{store: store, backend: backend, history: history, opts: opts}
	s.messages = transcript.GreetingTranscript(auth.RoleNone, opts.Now())
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Typing reports whether the bot typing indicator should show.
func (s *Session) Typing() bool { return s.State() == Sending }

// Draft returns the text being composed.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Transcript returns a copy of the messages.
func (s *Session) Transcript() transcript.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(transcript.Transcript(nil), s.messages...)
}

// Compose replaces the draft.
func (s *Session) Compose(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
	if s.state == Sending {
		return
	}
	if strings.TrimSpace(text) == "" {
		s.state = Idle
	} else {
		s.state = Composing
	}
}

// Begin moves the draft into the transcript and returns the request to send.
// Identity and token are read from the store now, not earlier, so a login
// change between composing and sending is honored.
func (s *Session) Begin() (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Sending {
		return Request{}, ErrSendInFlight
	}
	text := strings.TrimSpace(s.draft)
	if text == "" {
		s.state = Idle
		return Request{}, ErrEmptyMessage
	}

	snap := session.Read(s.store)
	role, roleID := currentRole(snap)

	var turns []api.Turn
	for _, m := range s.messages.Context(s.opts.ContextWindow) {
		turns = append(turns, api.Turn{Sender: string(m.Sender), Text: m.Text})
	}

	s.messages = append(s.messages, transcript.Message{
		ID:        s.opts.NewID(),
		Text:      text,
		Sender:    transcript.SenderUser,
		Timestamp: s.opts.Now(),
	})
	s.draft = ""
	s.state = Sending
	s.seq++

	req := Request{
		seq:   s.seq,
		Token: snap.Token,
		Body: api.ChatRequest{
			Query:   text,
			History: turns,
			Role:    string(role),
			RoleID:  roleID,
		},
	}
	logging.ChatDebug("sending as %s (%d context messages)", role, len(turns))
	return req, nil
}

func currentRole(snap session.Snapshot) (auth.Role, string) {
	if id, _ := auth.SelectIdentity(snap); !id.IsNone() {
		return id.Role, id.ID
	}
	role, _ := auth.ParseRole(snap.Role)
	return role, ""
}

// Complete settles req with the backend outcome and returns the bot message
// it appended. A stale request (the session was reset meanwhile) is dropped
// and reported with ok=false.
func (s *Session) Complete(req Request, reply api.ChatReply, err error) (transcript.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Sending || req.seq != s.seq {
		logging.ChatDebug("dropping stale reply for send %d", req.seq)
		return transcript.Message{}, false
	}

	msg := transcript.Message{ID: s.opts.NewID(), Sender: transcript.SenderBot, Timestamp: s.opts.Now()}
	if err != nil || strings.TrimSpace(reply.Response) == "" {
		logging.Get(logging.CategoryChat).Warn("chat send failed: %v", err)
		msg.Text = transcript.Apology
	} else {
		msg.Text = reply.Response
		if ts, ok := transcript.ParseTime(reply.Timestamp); ok {
			msg.Timestamp = ts
		}
	}
	if n := len(s.messages); n > 0 && msg.Timestamp.Before(s.messages[n-1].Timestamp) {
		msg.Timestamp = s.messages[n-1].Timestamp.Add(transcript.BotOffset)
	}
	s.messages = append(s.messages, msg)

	if strings.TrimSpace(s.draft) != "" {
		s.state = Composing
	} else {
		s.state = Idle
	}
	s.archive()
	return msg, true
}

// Send runs Begin, the backend call and Complete in one go. The returned
// message is the bot reply, or the apology when the call failed; in that case
// the call's error is returned alongside.
func (s *Session) Send(ctx context.Context, text string) (transcript.Message, error) {
	s.Compose(text)
	req, err := s.Begin()
	if err != nil {
		return transcript.Message{}, err
	}

	timer := logging.StartTimer(logging.CategoryChat, "chat query")
	reply, sendErr := s.backend.ChatQuery(ctx, req.Token, req.Body)
	timer.Stop()

	msg, ok := s.Complete(req, reply, sendErr)
	if !ok {
		return transcript.Message{}, ErrReset
	}
	return msg, sendErr
}

// Reset drops the conversation and shows the greeting for role. Any send in
// flight is abandoned.
func (s *Session) Reset(role auth.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.gen++
	s.state = Idle
	s.draft = ""
	s.messages = transcript.GreetingTranscript(role, s.opts.Now())
	logging.Chat("conversation reset for %s", role)
}

// Load replaces the transcript with the server history of the current
// identity. A Reset while loading wins over the loaded result.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	gen := s.gen
	s.loads++
	load := s.loads
	// Messages past base are live ones sent while the history loads.
	base := len(s.messages)
	s.mu.Unlock()

	snap := session.Read(s.store)
	role, _ := currentRole(snap)
	if snap.Token == "" {
		role = auth.RoleNone
	}

	t, err := s.history.Load(ctx, snap.Token, role)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		logging.ChatDebug("discarding history loaded before reset")
		return nil
	}
	if load != s.loads {
		logging.ChatDebug("discarding history superseded by a newer load")
		return nil
	}
	live := s.messages[min(base, len(s.messages)):]
	merged := make(transcript.Transcript, 0, len(t)+len(live))
	merged = append(merged, t...)
	merged = append(merged, live...)
	s.messages = merged
	if len(live) > 0 {
		logging.ChatDebug("kept %d live messages after loaded history", len(live))
	}
	return nil
}

// archive must be called with mu held.
func (s *Session) archive() {
	if s.opts.Archive == nil {
		return
	}
	id, _ := auth.SelectIdentity(session.Read(s.store))
	if session.Value(s.store, session.KeyAuthToken) == "" {
		id = auth.NoIdentity
	}
	if err := s.opts.Archive.Save(id, s.messages); err != nil {
		logging.Get(logging.CategoryChat).Warn("archive transcript: %v", err)
	}
}
