package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_turn_store.go -package=mocks thinkr-chatbot/internal/storage TurnStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TurnStore persists conversation turns per session.
type TurnStore interface {
	// Append stores turn at the end of its session and sets its Position and ID.
	Append(ctx context.Context, turn *TurnRecord) error
	// List returns the turns of a session in insertion order.
	List(ctx context.Context, sessionID string) ([]*TurnRecord, error)
	// DeleteSession removes every turn of a session.
	DeleteSession(ctx context.Context, sessionID string) error
	// ReplaceSession atomically replaces the turns of a session.
	ReplaceSession(ctx context.Context, sessionID string, turns []*TurnRecord) error
}

// TurnRepo provides methods for conversation turn operations.
// It implements the TurnStore interface.
type TurnRepo struct {
	db *sql.DB
}

// NewTurnRepo creates a new TurnRepo.
func NewTurnRepo(db *sql.DB) *TurnRepo {
	return &TurnRepo{db: db}
}

const turnColumns = "id, session_id, position, question, answer, refs, context_used, model, created_at"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Append stores turn at the end of its session.
func (r *TurnRepo) Append(ctx context.Context, turn *TurnRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var next int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM turns WHERE session_id = ?",
		turn.SessionID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to query next position: %w", err)
	}
	turn.Position = next

	if err := insertTurn(ctx, tx, turn); err != nil {
		return err
	}

	return tx.Commit()
}

// List returns the turns of a session ordered by position.
func (r *TurnRepo) List(ctx context.Context, sessionID string) ([]*TurnRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+turnColumns+" FROM turns WHERE session_id = ? ORDER BY position",
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var turns []*TurnRecord
	for rows.Next() {
		var turn TurnRecord
		var model sql.NullString
		var createdAt string
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Position, &turn.Question, &turn.Answer,
			&turn.References, &turn.ContextUsed, &model, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Model = model.String
		if turn.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		turns = append(turns, &turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return turns, nil
}

// DeleteSession removes every turn of a session.
func (r *TurnRepo) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM turns WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session turns: %w", err)
	}
	return nil
}

// ReplaceSession deletes the session's turns and inserts turns in order, in one transaction.
func (r *TurnRepo) ReplaceSession(ctx context.Context, sessionID string, turns []*TurnRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM turns WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session turns: %w", err)
	}
	for i, turn := range turns {
		turn.SessionID = sessionID
		turn.Position = i
		if err := insertTurn(ctx, tx, turn); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertTurn(ctx context.Context, db execer, turn *TurnRecord) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	if turn.References == "" {
		turn.References = "[]"
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO turns (session_id, position, question, answer, refs, context_used, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.SessionID, turn.Position, turn.Question, turn.Answer, turn.References,
		turn.ContextUsed, turn.Model, formatTime(turn.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		turn.ID = id
	}
	return nil
}
