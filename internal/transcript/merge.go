package transcript

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"medportal/internal/api"
	"medportal/internal/logging"
)

// Accepted field names, in lookup order.
var (
	UserTextFields  = []string{"request", "message_text", "messageText"}
	TimestampFields = []string{"timestamp", "createdAt"}
)

// ReplyField holds the bot reply in a history record.
const ReplyField = "response"

// BotOffset places a reply strictly after its request.
const BotOffset = time.Millisecond

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
}

// Merger turns raw history records into a Transcript.
type Merger struct {
	now func() time.Time
}

// NewMerger creates a merger. A nil clock means time.Now.
func NewMerger(now func() time.Time) *Merger {
	if now == nil {
		now = time.Now
	}
	return &Merger{now: now}
}

// Merge emits a user message and a bot message per record, sorts them by
// time and appends the divider. It returns false when no record carried any
// text; the caller then shows a greeting instead.
func (m *Merger) Merge(records []api.HistoryRecord) (Transcript, bool) {
	now := m.now()
	var out Transcript
	for i, rec := range records {
		ts, ok := recordTime(rec)
		if !ok {
			ts = now
		}
		if text := firstText(rec, UserTextFields...); text != "" {
			out = append(out, Message{
				ID:        fmt.Sprintf("h%d-user", i),
				Text:      text,
				Sender:    SenderUser,
				Timestamp: ts,
			})
		}
		if reply := firstText(rec, ReplyField); reply != "" {
			out = append(out, Message{
				ID:        fmt.Sprintf("h%d-bot", i),
				Text:      reply,
				Sender:    SenderBot,
				Timestamp: ts.Add(BotOffset),
			})
		}
	}
	if len(out) == 0 {
		logging.TranscriptDebug("%d history records, none with text", len(records))
		return nil, false
	}

	slices.SortStableFunc(out, func(a, b Message) int { return a.Timestamp.Compare(b.Timestamp) })

	// The divider shares the last timestamp so ordering stays non-decreasing.
	out = append(out, Message{
		ID:        "divider",
		Text:      DividerText,
		Sender:    SenderSystem,
		Timestamp: out[len(out)-1].Timestamp,
	})
	logging.TranscriptDebug("merged %d records into %d messages", len(records), len(out))
	return out, true
}

func firstText(rec api.HistoryRecord, fields ...string) string {
	for _, f := range fields {
		if s, ok := rec[f].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func recordTime(rec api.HistoryRecord) (time.Time, bool) {
	for _, f := range TimestampFields {
		if t, ok := ParseTime(rec[f]); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTime accepts RFC 3339 and zone-less ISO 8601 strings (read as local
// time) and epoch numbers in seconds or milliseconds.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				return ts, true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epoch(f)
		}
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return epoch(f)
		}
	case float64:
		return epoch(t)
	case int64:
		return epoch(float64(t))
	case int:
		return epoch(float64(t))
	}
	return time.Time{}, false
}

// epochMillisThreshold separates seconds from milliseconds: 1e11 seconds is
// in the year 5138.
const epochMillisThreshold = 1e11

func epoch(f float64) (time.Time, bool) {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, false
	}
	if f < epochMillisThreshold {
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)), true
	}
	return time.UnixMilli(int64(f)), true
}
