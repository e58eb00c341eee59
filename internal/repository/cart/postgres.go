package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"gogenie-storefront/internal/domain"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *postgresRepo) Load(ctx context.Context, sessionID string) ([]domain.CartItem, error) {
	const q = `
SELECT c.id::text
FROM carts c
WHERE c.session_id = $1
`
	var cartID string
	err := r.pool.QueryRow(ctx, q, sessionID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []domain.CartItem{}, nil
		}
		return nil, err
	}
	return fetchLines(ctx, r.pool, cartID)
}

func (r *postgresRepo) Mutate(ctx context.Context, sessionID string, fn MutateFunc) ([]domain.CartItem, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO carts (session_id)
VALUES ($1)
ON CONFLICT (session_id) DO NOTHING
`, sessionID); err != nil {
		return nil, err
	}

	var cartID string
	if err := tx.QueryRow(ctx, `
SELECT id::text
FROM carts
WHERE session_id = $1
FOR UPDATE
`, sessionID).Scan(&cartID); err != nil {
		return nil, err
	}

	current, err := fetchLines(ctx, tx, cartID)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
		return nil, err
	}
	for i, item := range next {
		if _, err := tx.Exec(ctx, `
INSERT INTO cart_lines (cart_id, item_id, position, name, unit, image, price, quantity, store_id, store_name, added_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11)
`, cartID, item.ID, i, item.Name, item.Unit, item.Image, item.Price.String(), item.Quantity, item.StoreID, item.StoreName, item.AddedAt); err != nil {
			return nil, fmt.Errorf("insert cart line %s: %w", item.ID, err)
		}
	}

	if err := updateCartTotal(ctx, tx, cartID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	if next == nil {
		next = []domain.CartItem{}
	}
	return next, nil
}

func (r *postgresRepo) Delete(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE session_id = $1`, sessionID)
	return err
}

func fetchLines(ctx context.Context, db querier, cartID string) ([]domain.CartItem, error) {
	const linesQuery = `
SELECT item_id, name, unit, image, price::text, quantity, store_id, store_name, added_at
FROM cart_lines
WHERE cart_id = $1
ORDER BY position ASC
`
	rows, err := db.Query(ctx, linesQuery, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		var price string
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Unit,
			&item.Image,
			&price,
			&item.Quantity,
			&item.StoreID,
			&item.StoreName,
			&item.AddedAt,
		); err != nil {
			return nil, err
		}
		item.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price of %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func updateCartTotal(ctx context.Context, tx pgx.Tx, cartID string) error {
	_, err := tx.Exec(ctx, `
UPDATE carts
SET total_amount = COALESCE((
	SELECT SUM(price * quantity)
	FROM cart_lines
	WHERE cart_id = $1
), 0),
    total_items = COALESCE((
	SELECT SUM(quantity)
	FROM cart_lines
	WHERE cart_id = $1
), 0),
    updated_at = now()
WHERE id = $1
`, cartID)
	return err
}
