package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"thinkr-chatbot/internal/contextutil"
	"thinkr-chatbot/internal/storage"
)

// History is an ordered, concurrency-safe list of turns.
// When backed by a TurnStore every change is written through under the session id.
type History struct {
	mu        sync.RWMutex
	turns     []Turn
	store     storage.TurnStore
	sessionID string
}

// NewHistory creates an in-memory history.
func NewHistory() *History {
	return &History{}
}

// NewPersistentHistory creates a history backed by store and loads the session's existing turns.
func NewPersistentHistory(ctx context.Context, store storage.TurnStore, sessionID string) (*History, error) {
	h := &History{store: store, sessionID: sessionID}

	records, err := store.List(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", sessionID, err)
	}
	for _, rec := range records {
		turn, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		h.turns = append(h.turns, turn)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "conversation loaded", "session_id", sessionID, "turns", len(h.turns))
	return h, nil
}

// SessionID returns the persistence key, empty for in-memory histories.
func (h *History) SessionID() string {
	return h.sessionID
}

// Append adds a turn to the end of the history.
func (h *History) Append(ctx context.Context, turn Turn) error {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store != nil {
		rec, err := toRecord(h.sessionID, turn)
		if err != nil {
			return err
		}
		if err := h.store.Append(ctx, rec); err != nil {
			return fmt.Errorf("failed to persist turn: %w", err)
		}
	}
	h.turns = append(h.turns, turn)
	return nil
}

// Turns returns a copy of every turn in order.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Recent returns the last n turns in order.
func (h *History) Recent(n int) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 {
		return nil
	}
	start := len(h.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(h.turns)-start)
	copy(out, h.turns[start:])
	return out
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Clear removes every turn.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store != nil {
		if err := h.store.DeleteSession(ctx, h.sessionID); err != nil {
			return fmt.Errorf("failed to clear conversation: %w", err)
		}
	}
	h.turns = nil
	return nil
}

// Replace swaps the whole history for turns, keeping their order.
func (h *History) Replace(ctx context.Context, turns []Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store != nil {
		records := make([]*storage.TurnRecord, 0, len(turns))
		for _, t := range turns {
			rec, err := toRecord(h.sessionID, t)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		if err := h.store.ReplaceSession(ctx, h.sessionID, records); err != nil {
			return fmt.Errorf("failed to replace conversation: %w", err)
		}
	}
	h.turns = append([]Turn(nil), turns...)
	return nil
}

func toRecord(sessionID string, t Turn) (*storage.TurnRecord, error) {
	refs := t.References
	if refs == nil {
		refs = []Reference{}
	}
	raw, err := json.Marshal(refs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode references: %w", err)
	}
	return &storage.TurnRecord{
		SessionID:   sessionID,
		Question:    t.Question,
		Answer:      t.Answer,
		References:  string(raw),
		ContextUsed: t.ContextUsed,
		Model:       t.Model,
		CreatedAt:   t.Timestamp,
	}, nil
}

func fromRecord(rec *storage.TurnRecord) (Turn, error) {
	var refs []Reference
	if rec.References != "" {
		if err := json.Unmarshal([]byte(rec.References), &refs); err != nil {
			return Turn{}, fmt.Errorf("failed to decode references of turn %d: %w", rec.ID, err)
		}
	}
	return Turn{
		Question:    rec.Question,
		Answer:      rec.Answer,
		References:  refs,
		ContextUsed: rec.ContextUsed,
		Model:       rec.Model,
		Timestamp:   rec.CreatedAt,
	}, nil
}
