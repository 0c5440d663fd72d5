package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voice-relay/internal/apperr"

	"github.com/google/uuid"
)

var ErrNotFound = apperr.New(apperr.KindNotFound, "Conversation not found")

// Repository persists conversations. The Engine is the only transcript writer.
type Repository interface {
	Create(ctx context.Context, c Conversation) (Conversation, error)
	Get(ctx context.Context, id string) (Conversation, error)
	// SaveTranscript replaces the stored transcript; last writer wins.
	SaveTranscript(ctx context.Context, id string, history []Turn) error
	List(ctx context.Context, limit int) ([]Conversation, error)
}

// PostgresRepo stores the transcript as a JSONB array.
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) Create(ctx context.Context, c Conversation) (Conversation, error) {
	now := r.clock().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.History == nil {
		c.History = []Turn{}
	}
	history, err := json.Marshal(c.History)
	if err != nil {
		return Conversation{}, fmt.Errorf("encode history: %w", err)
	}

	const q = `
INSERT INTO conversations (id, agent_id, call_sid, history, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	if _, err := r.db.ExecContext(ctx, q, c.ID, c.AgentID, c.CallSid, history, c.CreatedAt, c.UpdatedAt); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		c       Conversation
		history []byte
	)
	if err := row.Scan(&c.ID, &c.AgentID, &c.CallSid, &history, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Conversation{}, err
	}
	c.History = []Turn{}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &c.History); err != nil {
			return Conversation{}, fmt.Errorf("decode history: %w", err)
		}
	}
	return c, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Conversation{}, ErrNotFound
	}
	const q = `
SELECT id, agent_id, call_sid, history, created_at, updated_at
FROM conversations
WHERE id = $1
`
	c, err := scanConversation(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) SaveTranscript(ctx context.Context, id string, history []Turn) error {
	b, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	const q = `UPDATE conversations SET history = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, b, r.clock().UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, agent_id, call_sid, history, created_at, updated_at
FROM conversations
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
