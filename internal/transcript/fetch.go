package transcript

import (
	"context"
	"errors"
	"fmt"

	"medportal/internal/api"
	"medportal/internal/auth"
	"medportal/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrHistoryUnavailable means the history could not be used. Callers fall
// back to a greeting and never show it to the user.
var ErrHistoryUnavailable = errors.New("history unavailable")

// HistorySource is the server endpoint the fetcher reads from.
type HistorySource interface {
	ChatHistory(ctx context.Context, token string) ([]api.HistoryRecord, error)
}

// Fetcher retrieves persisted history. Concurrent fetches for the same token
// share one request.
type Fetcher struct {
	source HistorySource
	merger *Merger
	group  singleflight.Group
}

// NewFetcher creates a fetcher. A nil merger uses the wall clock.
func NewFetcher(source HistorySource, merger *Merger) *Fetcher {
	if merger == nil {
		merger = NewMerger(nil)
	}
	return &Fetcher{source: source, merger: merger}
}

// Fetch returns the raw records for token. Every failure, including an empty
// result, wraps ErrHistoryUnavailable; cancellation returns ctx.Err().
func (f *Fetcher) Fetch(ctx context.Context, token string) ([]api.HistoryRecord, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, auth.ErrMissingCredential)
	}

	// The shared call must not die with whichever caller started it.
	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(token, func() (any, error) {
		return f.source.ChatHistory(shared, token)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("%w: %w", ErrHistoryUnavailable, r.Err)
		}
		records, _ := r.Val.([]api.HistoryRecord)
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: no records", ErrHistoryUnavailable)
		}
		if r.Shared {
			logging.TranscriptDebug("history fetch shared between callers")
		}
		return records, nil
	}
}

// Load builds the transcript shown when the conversation opens: merged
// history when there is any, otherwise the greeting for role. The only error
// is ctx's; the caller must then discard the result.
func (f *Fetcher) Load(ctx context.Context, token string, role auth.Role) (Transcript, error) {
	timer := logging.StartTimer(logging.CategoryTranscript, "load history")
	defer timer.Stop()

	records, err := f.Fetch(ctx, token)
	if err == nil {
		if t, ok := f.merger.Merge(records); ok {
			logging.Transcript("loaded %d history messages", len(t)-1)
			return t, nil
		}
		err = fmt.Errorf("%w: records carried no text", ErrHistoryUnavailable)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	logging.Transcript("history fallback to greeting: %v", err)
	logging.Audit().Record(logging.AuditHistoryFallback,
		zap.String("role", string(role)), zap.Error(err))
	return GreetingTranscript(role, f.merger.now()), nil
}
