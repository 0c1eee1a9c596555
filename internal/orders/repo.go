package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockLedger is the slice of the inventory ledger the order store composes
// into its transactions (implemented by internal/inventory.Ledger).
type StockLedger interface {
	ReserveTx(ctx context.Context, tx pgx.Tx, items []LineItem) error
	RestoreTx(ctx context.Context, tx pgx.Tx, items []LineItem) error
}

type Repo struct {
	DB     *pgxpool.Pool
	Ledger StockLedger
}

type CheckoutInput struct {
	UserID        string     `json:"user_id"`
	Address       string     `json:"address"`
	Items         []LineItem `json:"items"`
	VoucherCode   string     `json:"voucher_code"`
	DiscountCents int        `json:"discount_cents"`
	ShippingCents int        `json:"shipping_cents"`
}

// CreateOrder runs the whole checkout as one transaction: reserve stock for
// every line item (all-or-nothing), price the items from the catalog, insert
// the order at Pending, clear the user's cart. A shortage on any item aborts
// the entire checkout with ErrOutOfStock naming that item.
func (r *Repo) CreateOrder(ctx context.Context, in CheckoutInput) (*Order, error) {
	if in.UserID == "" || in.Address == "" || len(in.Items) == 0 {
		return nil, fmt.Errorf("user_id, address and items are required")
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.Ledger.ReserveTx(ctx, tx, in.Items); err != nil {
		return nil, err
	}

	// Price from the catalog, not from the client. Rows are already locked
	// by the reservation above.
	total := 0
	for _, it := range in.Items {
		var price int
		err := tx.QueryRow(ctx, `
			SELECT selling_cents FROM variants
			WHERE product_id=$1 AND color=$2 AND size=$3`,
			it.ProductID, it.Color, it.Size,
		).Scan(&price)
		if err != nil {
			return nil, err
		}
		total += price * it.Qty
	}
	total += in.ShippingCents - in.DiscountCents
	if total < 0 {
		total = 0
	}

	o := &Order{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		Address:       in.Address,
		Items:         in.Items,
		TotalCents:    total,
		VoucherCode:   in.VoucherCode,
		DiscountCents: in.DiscountCents,
		ShippingCents: in.ShippingCents,
		Status:        StatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, address, total_cents, voucher_code,
		                   discount_cents, shipping_cents, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.UserID, o.Address, o.TotalCents, o.VoucherCode,
		o.DiscountCents, o.ShippingCents, int(o.Status), o.CreatedAt,
	); err != nil {
		return nil, err
	}
	for _, it := range in.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, color, size, qty)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, it.ProductID, it.Color, it.Size, it.Qty,
		); err != nil {
			return nil, err
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, in.UserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateStatus applies a role-gated status transition. The order row is
// locked FOR UPDATE so the "restore stock on newly Cancelled" side effect
// happens exactly once even under concurrent requests.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, requested Status, tracking string, actor Actor) (*Order, Decision, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, Decision{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := r.getForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, Decision{}, err
	}

	d, err := Decide(o, requested, actor)
	if err != nil {
		return nil, Decision{}, err
	}
	// Only admins may set a tracking number explicitly.
	if !actor.IsAdmin {
		tracking = ""
	}
	if !d.Changed && tracking == "" {
		return o, d, nil
	}

	if tracking != "" {
		o.TrackingNumber = tracking
	} else if d.NeedsTracking {
		o.TrackingNumber = NewTrackingNumber()
	}
	o.Status = d.To

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, tracking_number=$3 WHERE id=$1`,
		o.ID, int(o.Status), o.TrackingNumber,
	); err != nil {
		return nil, Decision{}, err
	}

	if d.RestoreStock {
		if err := r.Ledger.RestoreTx(ctx, tx, o.Items); err != nil {
			return nil, Decision{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, Decision{}, err
	}
	return o, d, nil
}

// ConfirmPending is the idempotent payment-confirmation primitive: the
// status guard and the mutation are one conditional UPDATE, so racing
// webhook deliveries and polls produce exactly one confirmation.
func (r *Repo) ConfirmPending(ctx context.Context, orderID, transactionRef string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, transaction_ref=$3
		WHERE id=$1 AND status=$4`,
		orderID, int(StatusConfirmed), transactionRef, int(StatusPending),
	)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

// FindPendingBySuffix returns the Pending orders whose uppercased id ends
// with the 6-char token extracted from a bank transfer description.
func (r *Repo) FindPendingBySuffix(ctx context.Context, token string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, address, total_cents, voucher_code, discount_cents,
		       shipping_cents, transaction_ref, tracking_number, status, created_at
		FROM orders
		WHERE status=$1 AND UPPER(RIGHT(id, 6)) = $2`,
		int(StatusPending), token,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	row := r.DB.QueryRow(ctx, `
		SELECT id, user_id, address, total_cents, voucher_code, discount_cents,
		       shipping_cents, transaction_ref, tracking_number, status, created_at
		FROM orders WHERE id=$1`, orderID)

	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders returns the user's orders, newest first.
func (r *Repo) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, address, total_cents, voucher_code, discount_cents,
		       shipping_cents, transaction_ref, tracking_number, status, created_at
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	return r.attachItems(ctx, out)
}

// ListAllOrders is the admin projection, newest first.
func (r *Repo) ListAllOrders(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, user_id, address, total_cents, voucher_code, discount_cents,
		       shipping_cents, transaction_ref, tracking_number, status, created_at
		FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	return r.attachItems(ctx, out)
}

func (r *Repo) getForUpdate(ctx context.Context, tx pgx.Tx, orderID string) (*Order, error) {
	row := tx.QueryRow(ctx, `
		SELECT id, user_id, address, total_cents, voucher_code, discount_cents,
		       shipping_cents, transaction_ref, tracking_number, status, created_at
		FROM orders WHERE id=$1 FOR UPDATE`, orderID)

	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT product_id, color, size, qty FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ProductID, &it.Color, &it.Size, &it.Qty); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func (r *Repo) loadItems(ctx context.Context, orderID string) ([]LineItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id, color, size, qty FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ProductID, &it.Color, &it.Size, &it.Qty); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repo) attachItems(ctx context.Context, out []Order) ([]Order, error) {
	for i := range out {
		items, err := r.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	var status int
	if err := row.Scan(&o.ID, &o.UserID, &o.Address, &o.TotalCents, &o.VoucherCode,
		&o.DiscountCents, &o.ShippingCents, &o.TransactionRef, &o.TrackingNumber,
		&status, &o.CreatedAt); err != nil {
		return nil, err
	}
	o.Status = Status(status)
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}
