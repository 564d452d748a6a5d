package models

// OrderRow is the detail-view aggregate row, fetched on demand when a card
// is opened. Not cached beyond the drawer's lifetime.
type OrderRow struct {
	ID               string   `json:"id"`
	ShopDomain       string   `json:"shop_domain"`
	OrderName        string   `json:"order_name"`
	Region           *string  `json:"region"`
	CreatedAt        string   `json:"created_at"`
	FulfillmentStatus *string `json:"fulfillment_status"`

	EasypostTrackerID  *string  `json:"easypost_tracker_id"`
	TrackingNumbers    []string `json:"tracking_numbers"`
	TrackingStatus     *string  `json:"tracking_status"`
	TrackingLastUpdate *string  `json:"tracking_last_update"`
	TrackingDeliveredAt *string `json:"tracking_delivered_at"`
	TrackingProblem    *string  `json:"tracking_problem"`
	TrackingFlagged    bool     `json:"tracking_flagged"`
	TrackingIgnore     bool     `json:"tracking_ignore"`

	Links *OrderLinks `json:"links,omitempty"`
}

type OrderLinks struct {
	ShopifySearch string `json:"shopify_search"`
}

type OrderItem struct {
	SKU       string `json:"sku"`
	Title     string `json:"title"`
	Ordered   int    `json:"ordered"`
	Fulfilled int    `json:"fulfilled"`
}

type OrderDetails struct {
	Order OrderRow    `json:"order"`
	Items []OrderItem `json:"items"`
}

// OrderRef is the result of resolving a package to its order. Shop is set
// only for cross-tenant resolution; empty means "the caller's tenant".
type OrderRef struct {
	OrderID string `json:"orderId,omitempty"`
	Shop    string `json:"shop,omitempty"`
}
