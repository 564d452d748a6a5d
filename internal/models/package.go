package models

import "encoding/json"

// Статусы колонок канбана (порядок = порядок колонок на доске).
const (
	StatusOrdered    = "ordered"
	StatusPreTransit = "pre_transit"
	StatusInTransit  = "in_transit"
	StatusDelivered  = "delivered"
	StatusException  = "exception"
)

// BoardStatuses lists the board columns in display order.
var BoardStatuses = []string{
	StatusOrdered,
	StatusPreTransit,
	StatusInTransit,
	StatusDelivered,
	StatusException,
}

// Package is a shipment as rendered on a board card. Created and mutated
// only by the remote backend; id is the sole identity key.
type Package struct {
	ID           string `json:"id"`
	OrderName    string `json:"order_name"`
	CustomerName string `json:"customer_name"`

	DestCity  *string `json:"dest_city,omitempty"`
	DestState *string `json:"dest_state,omitempty"`

	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	// Бэкенд исторически отдаёт это поле то массивом объектов, то
	// JSON-строкой. Держим сырым, разбирает tracklink.
	TrackingNumbers json.RawMessage `json:"tracking_numbers,omitempty"`
	TrackingURL     string          `json:"tracking_url,omitempty"`

	Status string   `json:"status"`
	Flags  []string `json:"flags,omitempty"`

	TrackingIgnore bool `json:"tracking_ignore,omitempty"`

	// ISO-8601 timestamps as the backend sends them.
	CreatedAt          string `json:"created_at,omitempty"`
	TrackingLastUpdate string `json:"tracking_last_update,omitempty"`

	// Present only in cross-tenant ("all shops") views.
	ShopDomain string `json:"shop_domain,omitempty"`

	// Order reference under its historical names.
	OrderID        string `json:"order_id,omitempty"`
	ShopifyOrderID string `json:"shopify_order_id,omitempty"`
	LegacyOrderID  string `json:"orderId,omitempty"`
}

// ResolveOrderID returns the package's order reference, tolerating the
// field-name drift between backend revisions. Empty means the order is
// unknown and must be resolved via the packages/{id}/order endpoint.
func (p *Package) ResolveOrderID() string {
	if p.OrderID != "" {
		return p.OrderID
	}
	if p.ShopifyOrderID != "" {
		return p.ShopifyOrderID
	}
	return p.LegacyOrderID
}

// TrackingLink is derived on read, never persisted.
type TrackingLink struct {
	URL     string `json:"url"`
	Number  string `json:"number,omitempty"`
	Company string `json:"company,omitempty"`
}
