package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"voice-relay/pkg/utils"

	"github.com/google/uuid"
)

// Repository persists call records. The store assigns ids.
type Repository interface {
	Insert(ctx context.Context, c Call) (Call, error)
	Get(ctx context.Context, id string) (Call, error)
	// Transition loads the record under a row lock, applies fn and writes the
	// result back when fn reports a change. It returns the stored record.
	Transition(ctx context.Context, id string, fn func(Call) (Call, bool)) (Call, error)
	// List returns the newest records first.
	List(ctx context.Context, limit int) ([]Call, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]Call, error)
}

// PostgresRepo stores calls in the calls table.
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const callColumns = `id, body, to_number, status, sid, error, voice, provider, agent_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c       Call
		sid     sql.NullString
		errText sql.NullString
		agentID sql.NullString
	)
	if err := row.Scan(
		&c.ID,
		&c.Body,
		&c.To,
		&c.Status,
		&sid,
		&errText,
		&c.Voice,
		&c.Provider,
		&agentID,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return Call{}, err
	}
	c.SID = sid.String
	c.Error = errText.String
	c.AgentID = agentID.String
	return c, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepo) Insert(ctx context.Context, c Call) (Call, error) {
	now := r.clock().UTC()
	c.ID = uuid.NewString()
	c.CreatedAt = now
	c.UpdatedAt = now

	const q = `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.Body,
		c.To,
		c.Status,
		nullable(c.SID),
		nullable(c.Error),
		c.Voice,
		c.Provider,
		nullable(c.AgentID),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Call, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Call{}, ErrNotFound
	}
	const q = `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Call{}, ErrNotFound
	}
	return c, err
}

func (r *PostgresRepo) Transition(ctx context.Context, id string, fn func(Call) (Call, bool)) (Call, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Call{}, ErrNotFound
	}

	var out Call
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		// Lock the row so concurrent status callbacks for one call serialize.
		const sel = `SELECT ` + callColumns + ` FROM calls WHERE id = $1 FOR UPDATE`
		cur, err := scanCall(tx.QueryRowContext(ctx, sel, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		next, changed := fn(cur)
		if !changed {
			out = cur
			return nil
		}
		next.UpdatedAt = r.clock().UTC()

		const upd = `
UPDATE calls
SET status = $2, sid = $3, error = $4, updated_at = $5
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, upd, id, next.Status, nullable(next.SID), nullable(next.Error), next.UpdatedAt); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `SELECT ` + callColumns + ` FROM calls ORDER BY created_at DESC LIMIT $1`
	return r.query(ctx, q, limit)
}

func (r *PostgresRepo) ListBetween(ctx context.Context, from, to time.Time) ([]Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE created_at >= $1 AND created_at < $2
ORDER BY created_at DESC
`
	return r.query(ctx, q, from, to)
}

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]Call, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
