package returns

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

// Store persists return requests.
type Store interface {
	Insert(ctx context.Context, r Request) (Request, error)
	Get(ctx context.Context, userID, id string) (Request, error)
	ActiveForItem(ctx context.Context, itemID string) (Request, error)
	ListForUser(ctx context.Context, userID string) ([]Request, error)
	// CancelPending flips a pending request to cancelled. It reports false when
	// the request exists but is no longer pending.
	CancelPending(ctx context.Context, userID, id string) (Request, bool, error)
}

// PGStore implements Store on the return_requests table.
type PGStore struct {
	DB db.DBTX
}

const requestColumns = `id::text, order_item_id::text, order_id::text, user_id::text, reason, reason_details, status, created_at, updated_at`

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	var reason, status string
	if err := row.Scan(&r.ID, &r.OrderItemID, &r.OrderID, &r.UserID, &reason, &r.ReasonDetails, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return Request{}, err
	}
	r.Reason, r.Status = Reason(reason), Status(status)
	return r, nil
}

func (s PGStore) Insert(ctx context.Context, r Request) (Request, error) {
	out, err := scanRequest(s.DB.QueryRow(ctx, `INSERT INTO return_requests
  (order_item_id, order_id, user_id, reason, reason_details, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+requestColumns,
		r.OrderItemID, r.OrderID, r.UserID, string(r.Reason), r.ReasonDetails, string(StatusPending)))
	if db.IsUniqueViolation(err, "return_requests_one_active") {
		return Request{}, ErrActiveExists
	}
	if err != nil {
		return Request{}, fmt.Errorf("returns: insert: %w", err)
	}
	return out, nil
}

func (s PGStore) Get(ctx context.Context, userID, id string) (Request, error) {
	r, err := scanRequest(s.DB.QueryRow(ctx, `SELECT `+requestColumns+` FROM return_requests WHERE id = $1 AND user_id = $2`, id, userID))
	if db.IsNoRows(err) {
		return Request{}, ErrNotFound
	}
	return r, err
}

func (s PGStore) ActiveForItem(ctx context.Context, itemID string) (Request, error) {
	r, err := scanRequest(s.DB.QueryRow(ctx, `SELECT `+requestColumns+` FROM return_requests
WHERE order_item_id = $1 AND status NOT IN ('cancelled', 'rejected')`, itemID))
	if db.IsNoRows(err) {
		return Request{}, ErrNotFound
	}
	return r, err
}

func (s PGStore) ListForUser(ctx context.Context, userID string) ([]Request, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+requestColumns+` FROM return_requests WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s PGStore) CancelPending(ctx context.Context, userID, id string) (Request, bool, error) {
	r, err := scanRequest(s.DB.QueryRow(ctx, `UPDATE return_requests SET status = 'cancelled', updated_at = now()
WHERE id = $1 AND user_id = $2 AND status = 'pending'
RETURNING `+requestColumns, id, userID))
	if err == nil {
		return r, true, nil
	}
	if !db.IsNoRows(err) {
		return Request{}, false, err
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return Request{}, false, err
	}
	return Request{}, false, nil
}
