package orders

import "time"

// VariantKey identifies one stock-tracked unit of a product.
type VariantKey struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type Variant struct {
	VariantKey
	Stock         int       `json:"stock"`
	PurchaseCents int       `json:"purchase_cents"`
	SellingCents  int       `json:"selling_cents"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LineItem is fixed at checkout. Qty is the quantity reserved from the
// variant at creation time and is the sole basis for later restoration;
// it is never recomputed from current catalog data.
type LineItem struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
	Qty       int    `json:"qty"`
}

type Order struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Address        string     `json:"address"`
	Items          []LineItem `json:"items"`
	TotalCents     int        `json:"total_cents"`
	VoucherCode    string     `json:"voucher_code,omitempty"`
	DiscountCents  int        `json:"discount_cents"`
	ShippingCents  int        `json:"shipping_cents"`
	TransactionRef string     `json:"transaction_ref,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Token returns the trailing-6 payment reference a customer embeds in the
// bank transfer description, e.g. "THANHTOAN 65A2BC".
func (o *Order) Token() string { return ShortRef(o.ID) }

type CartItem struct {
	UserID    string
	ProductID string
	Color     string
	Size      string
	Qty       int
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	OrderID   string    `json:"order_id,omitempty"`
	Status    string    `json:"status"` // unread | read
	CreatedAt time.Time `json:"created_at"`
}
