package transcript

import (
	"encoding/json"
	"testing"
	"time"

	"medportal/internal/api"
	"medportal/internal/auth"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestMerge_SingleExchange(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	got, ok := NewMerger(clock).Merge([]api.HistoryRecord{
		{"request": "hi", "response": "hello", "timestamp": "2024-05-01T10:00:00Z"},
	})
	require.True(t, ok)

	want := Transcript{
		{ID: "h0-user", Text: "hi", Sender: SenderUser, Timestamp: ts},
		{ID: "h0-bot", Text: "hello", Sender: SenderBot, Timestamp: ts.Add(time.Millisecond)},
		{ID: "divider", Text: DividerText, Sender: SenderSystem, Timestamp: ts.Add(time.Millisecond)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_FieldVariantsAndOrdering(t *testing.T) {
	records := []api.HistoryRecord{
		{"messageText": "third", "response": "r3", "createdAt": json.Number("1714557720000")},
		{"message_text": "first", "response": "r1", "timestamp": "2024-05-01 09:00:00Z"},
		{"request": "", "message_text": "second", "timestamp": float64(1714557660)},
		{"response": "orphan reply", "timestamp": "not a time"},
	}
	got, ok := NewMerger(clock).Merge(records)
	require.True(t, ok)

	var texts []string
	for _, m := range got {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"first", "r1", "second", "third", "r3", "orphan reply", DividerText}, texts)

	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp), "message %d out of order", i)
	}
	assert.Equal(t, fixedNow.Add(BotOffset), got[5].Timestamp, "unparseable time falls back to now")
}

func TestMerge_ExactlyOneDividerLast(t *testing.T) {
	for n := 1; n <= 5; n++ {
		var records []api.HistoryRecord
		for i := 0; i < n; i++ {
			records = append(records, api.HistoryRecord{
				"request":   "q",
				"response":  "a",
				"timestamp": json.Number("1714557600"),
			})
		}
		got, ok := NewMerger(clock).Merge(records)
		require.True(t, ok)

		systems := 0
		for _, m := range got {
			if m.Sender == SenderSystem {
				systems++
			}
		}
		assert.Equal(t, 1, systems)
		assert.Equal(t, len(got)-1, got.Divider())
		assert.Len(t, got, 2*n+1)
	}
}

func TestMerge_NothingEmittable(t *testing.T) {
	_, ok := NewMerger(clock).Merge([]api.HistoryRecord{
		{"request": "  ", "timestamp": "2024-05-01T10:00:00Z"},
		{"other": "field"},
	})
	assert.False(t, ok)

	_, ok = NewMerger(clock).Merge(nil)
	assert.False(t, ok)
}

func TestParseTime(t *testing.T) {
	utc := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	local := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	tests := []struct {
		name string
		in   any
		want time.Time
		ok   bool
	}{
		{"rfc3339", "2024-05-01T10:00:00Z", utc, true},
		{"rfc3339 nano", "2024-05-01T10:00:00.000Z", utc, true},
		{"offset", "2024-05-01T12:00:00+02:00", utc, true},
		{"zone-less iso", "2024-05-01T10:00:00", local, true},
		{"space separated", "2024-05-01 10:00:00", local, true},
		{"epoch seconds", json.Number("1714557600"), utc, true},
		{"epoch millis", json.Number("1714557600000"), utc, true},
		{"epoch string", "1714557600", utc, true},
		{"float seconds", float64(1714557600), utc, true},
		{"garbage", "yesterday", time.Time{}, false},
		{"nil", nil, time.Time{}, false},
		{"zero", json.Number("0"), time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			}
		})
	}
}

func TestContext(t *testing.T) {
	var tr Transcript
	tr = append(tr, Message{ID: "divider", Sender: SenderSystem})
	for i := 0; i < 15; i++ {
		tr = append(tr, Message{ID: string(rune('a' + i)), Sender: SenderUser})
	}

	ctx := tr.Context(10)
	require.Len(t, ctx, 10)
	assert.Equal(t, "f", ctx[0].ID)
	assert.Equal(t, "o", ctx[9].ID)
	for _, m := range ctx {
		assert.NotEqual(t, SenderSystem, m.Sender)
	}
	assert.Nil(t, tr.Context(0))
	assert.Len(t, tr[:3].Context(10), 2)
}

func TestGreeting(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range append([]auth.Role{auth.RoleNone}, auth.AllRoles...) {
		g := Greeting(r)
		assert.NotEmpty(t, g)
		assert.False(t, seen[g], "greeting for %s is not distinct", r)
		seen[g] = true
	}

	tr := GreetingTranscript(auth.RoleDoctor, fixedNow)
	require.Len(t, tr, 1)
	assert.Equal(t, SenderBot, tr[0].Sender)
	assert.Equal(t, -1, tr.Divider())
}
