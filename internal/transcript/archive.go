package transcript

import (
	"encoding/json"
	"fmt"
	"strings"

	"medportal/internal/auth"
	"medportal/internal/logging"
	"medportal/internal/session"
)

// Archive keeps a local copy of the live transcript per identity in the
// session store. It is informational only; the conversation view always
// rebuilds from the server history.
type Archive struct {
	store     session.Store
	namespace string
}

// NewArchive creates an archive under namespace.
func NewArchive(store session.Store, namespace string) *Archive {
	return &Archive{store: store, namespace: namespace}
}

// Key returns "<namespace>:<role>:<id>" or "<namespace>:anonymous".
func (a *Archive) Key(id auth.Identity) string {
	if id.IsNone() {
		return a.namespace + ":anonymous"
	}
	return a.namespace + ":" + string(id.Role) + ":" + id.ID
}

// Save replaces the archived transcript of id.
func (a *Archive) Save(id auth.Identity, t Transcript) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	if err := a.store.Set(a.Key(id), string(data)); err != nil {
		return fmt.Errorf("archive transcript: %w", err)
	}
	logging.TranscriptDebug("archived %d messages under %s", len(t), a.Key(id))
	return nil
}

// Load returns the archived transcript of id, or nil if there is none.
func (a *Archive) Load(id auth.Identity) (Transcript, error) {
	raw, ok := a.store.Get(a.Key(id))
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var t Transcript
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("decode archived transcript %s: %w", a.Key(id), err)
	}
	return t, nil
}

// Keys lists every archived transcript key.
func (a *Archive) Keys() []string {
	return a.store.Keys(a.namespace + ":")
}
