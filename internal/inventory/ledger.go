package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dimasprab/go-order-recon/internal/orders"
)

// Ledger owns per-variant stock counts. Reservation is all-or-nothing: each
// variant row is locked FOR UPDATE inside one transaction, so a shortage on
// item k leaves items 1..k-1 untouched (rollback), and two concurrent
// reserves against the same variant serialize on the row lock.
type Ledger struct{ DB *pgxpool.Pool }

// ReserveTx decrements stock for every line item inside the caller's
// transaction. Fails with orders.ErrOutOfStock naming the first item that is
// missing or short; the caller's rollback undoes any prior decrements.
func (l *Ledger) ReserveTx(ctx context.Context, tx pgx.Tx, items []orders.LineItem) error {
	for _, it := range items {
		if it.Qty <= 0 {
			return fmt.Errorf("invalid qty %d for product %s", it.Qty, it.ProductID)
		}

		var stock int
		err := tx.QueryRow(ctx, `
			SELECT stock FROM variants
			WHERE product_id=$1 AND color=$2 AND size=$3
			FOR UPDATE`,
			it.ProductID, it.Color, it.Size,
		).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: product %s (color=%s, size=%s) does not exist",
				orders.ErrOutOfStock, it.ProductID, it.Color, it.Size)
		}
		if err != nil {
			return err
		}
		if stock < it.Qty {
			return fmt.Errorf("%w: product %s (color=%s, size=%s): requested %d, available %d",
				orders.ErrOutOfStock, it.ProductID, it.Color, it.Size, it.Qty, stock)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE variants SET stock = stock - $4
			WHERE product_id=$1 AND color=$2 AND size=$3`,
			it.ProductID, it.Color, it.Size, it.Qty,
		); err != nil {
			return err
		}
	}
	return nil
}

// RestoreTx increments stock back by the exact reserved quantities. The
// once-per-order guard lives in the order status transition (Cancelled is
// only entered once), not here.
func (l *Ledger) RestoreTx(ctx context.Context, tx pgx.Tx, items []orders.LineItem) error {
	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			UPDATE variants SET stock = stock + $4
			WHERE product_id=$1 AND color=$2 AND size=$3`,
			it.ProductID, it.Color, it.Size, it.Qty,
		); err != nil {
			return err
		}
	}
	return nil
}

// Reserve opens its own transaction around ReserveTx.
func (l *Ledger) Reserve(ctx context.Context, items []orders.LineItem) error {
	return l.inTx(ctx, func(tx pgx.Tx) error { return l.ReserveTx(ctx, tx, items) })
}

// Restore opens its own transaction around RestoreTx.
func (l *Ledger) Restore(ctx context.Context, items []orders.LineItem) error {
	return l.inTx(ctx, func(tx pgx.Tx) error { return l.RestoreTx(ctx, tx, items) })
}

func (l *Ledger) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Stock reads the current count for one variant (catalog read path, tests).
func (l *Ledger) Stock(ctx context.Context, key orders.VariantKey) (int, error) {
	var stock int
	err := l.DB.QueryRow(ctx, `
		SELECT stock FROM variants
		WHERE product_id=$1 AND color=$2 AND size=$3`,
		key.ProductID, key.Color, key.Size,
	).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: variant %s/%s/%s", orders.ErrNotFound, key.ProductID, key.Color, key.Size)
	}
	return stock, err
}
