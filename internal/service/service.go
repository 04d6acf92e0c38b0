package service

import (
	"context"
	"time"

	"hq-entitlements/internal/model"
)

// EntitlementService is the only entry point to order entitlements. Reads
// are served from memory; writes go to memory first and then best-effort to
// the durable store.
type EntitlementService interface {
	// CreateOrder validates a completed purchase and issues its download code.
	CreateOrder(ctx context.Context, req *model.OrderRequest) (*model.Order, error)

	// GetOrderByID returns model.ErrOrderNotFound when id is unknown.
	GetOrderByID(ctx context.Context, id string) (*model.Order, error)

	// GetOrderByCode looks code up without regard to case.
	GetOrderByCode(ctx context.Context, code string) (*model.Order, error)

	// MarkUsed revokes the code regardless of what has been downloaded.
	MarkUsed(ctx context.Context, code string) (*model.Order, error)

	// RecordDownload registers the retrieval of one item. For a new download
	// it reports whether this call expired the code; for a replay it reports
	// the current used flag.
	RecordDownload(ctx context.Context, orderID, itemID string) (bool, error)

	// Redeem records itemID against the order holding code for the buyer
	// download page. Codes already used before the call are refused.
	Redeem(ctx context.Context, code, itemID string) (*model.RedeemResponse, error)

	// ListOrders returns every known order, newest first.
	ListOrders(ctx context.Context) ([]model.Order, error)

	// PersistenceStatus reports whether durable writes are currently failing.
	PersistenceStatus() PersistenceStatus
}

// PersistenceStatus surfaces the persistence_degraded signal to operators.
type PersistenceStatus struct {
	Backend       string     `json:"backend"`
	Degraded      bool       `json:"degraded"`
	Failures      int64      `json:"failures"`
	LastError     string     `json:"lastError,omitempty"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
}
