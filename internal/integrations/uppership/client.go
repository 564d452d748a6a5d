package uppership

import (
	"context"
	"fmt"
	"time"

	"github.com/uppership/opsboard/internal/models"
)

// SyncOptions mirror the query switches of the backend's sync/now endpoint.
type SyncOptions struct {
	Force    bool
	Orders   bool
	Tracking bool
}

// Client is the remote Uppership backend. All business logic (ingestion,
// carrier normalization, SmartMatch, LLM answers) lives behind it; we only
// fetch and render.
type Client interface {
	// ListPackages returns packages for a shop+status. Empty shop means the
	// cross-tenant ("all shops") view.
	ListPackages(ctx context.Context, shop, status string, limit int) ([]*models.Package, error)
	GetOrder(ctx context.Context, orderID, shop string) (*models.OrderDetails, error)
	IgnoreOrder(ctx context.Context, orderID, shop string) error
	// ResolvePackageOrder maps a package to its owning order. A missing shop
	// in the response means "the caller's tenant", never an error.
	ResolvePackageOrder(ctx context.Context, packageID, shop string) (models.OrderRef, error)
	Chat(ctx context.Context, shop, question string) (string, error)
	SyncNow(ctx context.Context, shop string, opts SyncOptions) (string, error)
	SyncStatus(ctx context.Context, shop string) (models.SyncStatus, error)
	Insights(ctx context.Context, shop string) (*models.Insights, error)
}

// CooldownError — запрос sync/now отклонён бэкендом: окно ещё не истекло.
type CooldownError struct {
	MsLeft  int64
	Message string
}

func (e *CooldownError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("sync on cooldown, %s left", time.Duration(e.MsLeft)*time.Millisecond)
}
