package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medicenter/medicenter/internal/platform/apperr"
	"github.com/medicenter/medicenter/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PGStore persists entities to the accounts table as JSONB documents.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

func (s *PGStore) Save(ctx context.Context, e Entity) error {
	kind, payload, err := encode(e)
	if err != nil {
		return err
	}
	_, err = s.conn(ctx).Exec(ctx, `
		INSERT INTO accounts (id, kind, payload, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET kind = EXCLUDED.kind, payload = EXCLUDED.payload, updated_at = NOW()`,
		e.AccountID(), string(kind), payload)
	if err != nil {
		return fmt.Errorf("save account %s: %w", e.AccountID(), err)
	}
	return nil
}

// SaveAll upserts entities inside one transaction. Save resolves its
// connection through the context, so each call joins the transaction.
func (s *PGStore) SaveAll(ctx context.Context, entities ...Entity) error {
	return db.WithTx(ctx, s.pool, func(ctx context.Context) error {
		for _, e := range entities {
			if err := s.Save(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PGStore) Load(ctx context.Context, id string) (Entity, error) {
	var kind string
	var payload []byte
	err := s.conn(ctx).QueryRow(ctx, `SELECT kind, payload FROM accounts WHERE id = $1`, id).Scan(&kind, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", id, err)
	}
	return decode(Kind(kind), payload)
}

func (s *PGStore) LoadAll(ctx context.Context) ([]Entity, error) {
	rows, err := s.conn(ctx).Query(ctx, `SELECT kind, payload FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var kind string
		var payload []byte
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		e, err := decode(Kind(kind), payload)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	tag, err := s.conn(ctx).Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
