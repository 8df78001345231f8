// Package transcript models the displayed conversation and rebuilds it from
// the server-side history.
package transcript

import (
	"time"

	"medportal/internal/auth"
)

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderBot    Sender = "bot"
	SenderSystem Sender = "system"
)

// DividerText labels the marker between history and live messages.
const DividerText = "Previous conversation"

// Apology is the bot reply appended when a send fails.
const Apology = "Sorry, I'm having trouble reaching the assistant right now. Please try again in a moment."

// Message is one transcript entry. IDs are unique within a transcript only.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
}

// IsDivider reports whether m is the history divider.
func (m Message) IsDivider() bool { return m.Sender == SenderSystem }

// Transcript is the ordered message sequence.
type Transcript []Message

// Divider returns the index of the divider, or -1.
func (t Transcript) Divider() int {
	for i, m := range t {
		if m.IsDivider() {
			return i
		}
	}
	return -1
}

// Context returns at most n of the most recent non-system messages, oldest
// first.
func (t Transcript) Context(n int) []Message {
	if n <= 0 {
		return nil
	}
	var out []Message
	for i := len(t) - 1; i >= 0 && len(out) < n; i-- {
		if t[i].Sender != SenderSystem {
			out = append(out, t[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

var greetings = map[auth.Role]string{
	auth.RolePatient: "Hello! I'm your health assistant. Ask me about your appointments, prescriptions or anything about your care.",
	auth.RoleDoctor:  "Welcome back, Doctor. I can help you review patient questions, schedules and clinical notes.",
	auth.RoleStaff:   "Hi! I can help with scheduling, patient intake and front-desk questions.",
	auth.RoleAdmin:   "Hello, administrator. Ask me about users, roles or system activity.",
}

const anonymousGreeting = "Hi there! I'm the clinic assistant. Sign in for personalized help, or ask me a general question."

// Greeting returns the opening bot line for role; RoleNone gets the
// anonymous greeting.
func Greeting(role auth.Role) string {
	if g, ok := greetings[role]; ok {
		return g
	}
	return anonymousGreeting
}

// GreetingTranscript is the single-message transcript used when no history
// is available.
func GreetingTranscript(role auth.Role, now time.Time) Transcript {
	return Transcript{{ID: "greeting", Text: Greeting(role), Sender: SenderBot, Timestamp: now}}
}
