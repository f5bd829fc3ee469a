package address

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

// Store is the persistence surface for address books. InTx hands fn a Store
// bound to a single transaction.
type Store interface {
	List(ctx context.Context, userID string) ([]Address, error)
	Get(ctx context.Context, userID, id string) (Address, error)
	Default(ctx context.Context, userID string) (Address, error)
	Latest(ctx context.Context, userID string) (Address, error)
	Insert(ctx context.Context, userID string, in Input, isDefault bool) (Address, error)
	Update(ctx context.Context, userID, id string, in Input) (Address, error)
	Delete(ctx context.Context, userID, id string) (wasDefault bool, err error)
	ClearDefault(ctx context.Context, userID string) error
	MarkDefault(ctx context.Context, userID, id string) error
	InTx(ctx context.Context, fn func(Store) error) error
}

// PGStore implements Store on the addresses table.
type PGStore struct {
	DB    db.DBTX
	Begin db.TxBeginner
}

const columns = `id::text, name, phone, line1, line2, landmark, city, state, pincode, is_default, created_at, updated_at`

func scanAddress(row pgx.Row) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.Name, &a.Phone, &a.Line1, &a.Line2, &a.Landmark,
		&a.City, &a.State, &a.Pincode, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if db.IsNoRows(err) {
		return Address{}, ErrNotFound
	}
	return a, err
}

func (s PGStore) List(ctx context.Context, userID string) ([]Address, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+columns+` FROM addresses
WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s PGStore) Get(ctx context.Context, userID, id string) (Address, error) {
	return scanAddress(s.DB.QueryRow(ctx, `SELECT `+columns+` FROM addresses WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s PGStore) Default(ctx context.Context, userID string) (Address, error) {
	return scanAddress(s.DB.QueryRow(ctx, `SELECT `+columns+` FROM addresses WHERE user_id = $1 AND is_default`, userID))
}

func (s PGStore) Latest(ctx context.Context, userID string) (Address, error) {
	return scanAddress(s.DB.QueryRow(ctx, `SELECT `+columns+` FROM addresses
WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`, userID))
}

func (s PGStore) Insert(ctx context.Context, userID string, in Input, isDefault bool) (Address, error) {
	a, err := scanAddress(s.DB.QueryRow(ctx, `INSERT INTO addresses
  (user_id, name, phone, line1, line2, landmark, city, state, pincode, is_default)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+columns,
		userID, in.Name, in.Phone, in.Line1, in.Line2, in.Landmark, in.City, in.State, in.Pincode, isDefault))
	if db.IsUniqueViolation(err, "addresses_one_default") {
		return Address{}, ErrDefaultTaken
	}
	return a, err
}

func (s PGStore) Update(ctx context.Context, userID, id string, in Input) (Address, error) {
	return scanAddress(s.DB.QueryRow(ctx, `UPDATE addresses
SET name = $3, phone = $4, line1 = $5, line2 = $6, landmark = $7, city = $8, state = $9, pincode = $10,
    updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING `+columns,
		id, userID, in.Name, in.Phone, in.Line1, in.Line2, in.Landmark, in.City, in.State, in.Pincode))
}

func (s PGStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	var wasDefault bool
	err := s.DB.QueryRow(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2 RETURNING is_default`, id, userID).Scan(&wasDefault)
	if db.IsNoRows(err) {
		return false, ErrNotFound
	}
	return wasDefault, err
}

func (s PGStore) ClearDefault(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `UPDATE addresses SET is_default = false, updated_at = now() WHERE user_id = $1 AND is_default`, userID)
	return err
}

func (s PGStore) MarkDefault(ctx context.Context, userID, id string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE addresses SET is_default = true, updated_at = now() WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s PGStore) InTx(ctx context.Context, fn func(Store) error) error {
	return db.InTx(ctx, s.Begin, func(tx pgx.Tx) error {
		return fn(PGStore{DB: tx, Begin: s.Begin})
	})
}
