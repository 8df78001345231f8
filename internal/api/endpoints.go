package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Credentials is the body of /login and /register-auth.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	PersonID string `json:"personId,omitempty"`
}

// PersonKind selects the /register-person variant.
type PersonKind string

const (
	PersonPatient PersonKind = "patient"
	PersonDoctor  PersonKind = "doctor"
)

// Person is the profile sent to /register-person.
type Person struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
}

// HistoryRecord is one raw /chat-history entry. Field names vary between
// backend versions, so records stay untyped; numbers decode as json.Number.
type HistoryRecord map[string]any

// Turn is one context message sent with a chat query.
type Turn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ChatRequest is the body of /chat-query.
type ChatRequest struct {
	Query   string `json:"query"`
	History []Turn `json:"history,omitempty"`
	Role    string `json:"role,omitempty"`
	RoleID  string `json:"roleId,omitempty"`
}

// ChatReply is the answer of /chat-query.
type ChatReply struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Login posts credentials and returns the bearer token. The backend answers
// with the bare token, a JSON string, or {"token": "..."}.
func (c *Client) Login(ctx context.Context, cred Credentials) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/login", "", cred)
	if err != nil {
		return "", err
	}
	token := decodeToken(data)
	if token == "" {
		return "", fmt.Errorf("/login: empty token in response")
	}
	return token, nil
}

func decodeToken(data []byte) string {
	raw := strings.TrimSpace(string(data))
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Token       string `json:"token"`
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		if obj.Token != "" {
			return obj.Token
		}
		return obj.AccessToken
	}
	return raw
}

// Home returns the raw identity payload for token.
func (c *Client) Home(ctx context.Context, token string) (string, error) {
	data, err := c.do(ctx, http.MethodGet, "/home", token, nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RegisterPerson creates a patient or doctor profile and returns its id.
func (c *Client) RegisterPerson(ctx context.Context, kind PersonKind, p Person) (string, error) {
	if kind != PersonPatient && kind != PersonDoctor {
		return "", fmt.Errorf("register-person: unsupported kind %q", kind)
	}
	endpoint := "/register-person/" + string(kind)
	data, err := c.do(ctx, http.MethodPost, endpoint, "", p)
	if err != nil {
		return "", err
	}
	id := decodeID(data, string(kind)+"Id")
	if id == "" {
		return "", fmt.Errorf("%s: no id in response", endpoint)
	}
	return id, nil
}

func decodeID(data []byte, roleKey string) string {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return strings.TrimSpace(string(data))
	}
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for _, key := range []string{"id", "personId", roleKey} {
			switch id := t[key].(type) {
			case json.Number:
				return id.String()
			case string:
				if id = strings.TrimSpace(id); id != "" {
					return id
				}
			}
		}
	}
	return ""
}

// RegisterAuth creates the login for a registered person.
func (c *Client) RegisterAuth(ctx context.Context, cred Credentials) error {
	_, err := c.do(ctx, http.MethodPost, "/register-auth", "", cred)
	return err
}

// ChatHistory returns the persisted conversation records of token's user.
// Both a bare array and {"history": [...]} are accepted.
func (c *Client) ChatHistory(ctx context.Context, token string) ([]HistoryRecord, error) {
	data, err := c.do(ctx, http.MethodGet, "/chat-history", token, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("/chat-history: decode: %w", err)
	}
	if obj, ok := v.(map[string]any); ok {
		v = obj["history"]
	}
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("/chat-history: unexpected %T payload", v)
	}

	records := make([]HistoryRecord, 0, len(list))
	for _, item := range list {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, HistoryRecord(rec))
		}
	}
	return records, nil
}

// ChatQuery sends one conversational turn. The token is optional.
func (c *Client) ChatQuery(ctx context.Context, token string, req ChatRequest) (ChatReply, error) {
	data, err := c.do(ctx, http.MethodPost, "/chat-query", token, req)
	if err != nil {
		return ChatReply{}, err
	}

	var wire struct {
		Response  *string         `json:"response"`
		Timestamp json.RawMessage `json:"timestamp"`
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		// Some deployments answer with a bare string or plain text.
		var s string
		if json.Unmarshal(data, &s) == nil {
			return ChatReply{Response: s}, nil
		}
		return ChatReply{Response: strings.TrimSpace(string(data))}, nil
	}
	if wire.Response == nil || strings.TrimSpace(*wire.Response) == "" {
		return ChatReply{}, fmt.Errorf("/chat-query: empty response")
	}

	reply := ChatReply{Response: *wire.Response, Timestamp: rawScalar(wire.Timestamp)}
	if reply.Timestamp == "" {
		reply.Timestamp = rawScalar(wire.CreatedAt)
	}
	return reply, nil
}

// rawScalar renders a JSON string or number as text.
func rawScalar(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}
