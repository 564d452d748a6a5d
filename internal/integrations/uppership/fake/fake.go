package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/uppership/opsboard/internal/integrations/uppership"
	"github.com/uppership/opsboard/internal/models"
)

// FakeBackend — детерминированная заглушка публичного API для локальной
// разработки без ключа и для тестов. Содержимое выводится из hash(shop),
// так что ответы стабильны между запусками.
type FakeBackend struct {
	cooldown time.Duration

	mu        sync.Mutex
	lastSync  map[string]time.Time
	ignored   map[string]bool
	shopsList []string
}

func New() *FakeBackend {
	return &FakeBackend{
		cooldown: 15 * time.Minute,
		lastSync: make(map[string]time.Time),
		ignored:  make(map[string]bool),
		shopsList: []string{
			"uppership-demo.myshopify.com",
			"acme-goods.myshopify.com",
		},
	}
}

// WithCooldown shortens the sync window; tests use milliseconds.
func (f *FakeBackend) WithCooldown(d time.Duration) *FakeBackend {
	f.cooldown = d
	return f
}

func seed(parts ...string) uint32 {
	h := fnv.New32a()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte("|"))
		}
		_, _ = h.Write([]byte(p))
	}
	return h.Sum32()
}

func (f *FakeBackend) ListPackages(ctx context.Context, shop, status string, limit int) ([]*models.Package, error) {
	shops := []string{shop}
	if shop == "" {
		shops = f.shopsList
	}

	var out []*models.Package
	for _, s := range shops {
		n := int(seed(s, status)%4) + 3
		for i := 0; i < n; i++ {
			p := f.buildPackage(s, status, i)
			if shop == "" {
				p.ShopDomain = s
			}
			out = append(out, p)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeBackend) buildPackage(shop, status string, i int) *models.Package {
	v := seed(shop, status, fmt.Sprintf("%d", i))
	id := fmt.Sprintf("%s-%s-%d", strings.TrimSuffix(shop, ".myshopify.com"), status, i)

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	created := base.Add(time.Duration(v%2000) * time.Hour)

	p := &models.Package{
		ID:           id,
		OrderName:    fmt.Sprintf("#%d", 1000+int(v%9000)),
		CustomerName: fmt.Sprintf("Customer %d", v%97),
		Status:       status,
		CreatedAt:    created.Format(time.RFC3339),
		OrderID:      "ord-" + id,
	}

	// Примерно каждый пятый — с флагом, каждый седьмой — игнорируется.
	if v%5 == 0 {
		if v%10 == 0 {
			p.Flags = []string{"overdue"}
		} else {
			p.Flags = []string{"stuck"}
		}
		p.TrackingLastUpdate = created.Add(48 * time.Hour).Format(time.RFC3339)
	}
	if v%7 == 0 {
		p.TrackingIgnore = true
	}

	if status != models.StatusOrdered {
		p.Carrier = []string{"USPS", "UPS", "FedEx"}[v%3]
		p.TrackingNumber = fmt.Sprintf("94001%010d", v)
	}
	return p
}

func (f *FakeBackend) GetOrder(ctx context.Context, orderID, shop string) (*models.OrderDetails, error) {
	v := seed(orderID)
	region := []string{"us-east", "us-west", "eu-central"}[v%3]
	return &models.OrderDetails{
		Order: models.OrderRow{
			ID:              orderID,
			ShopDomain:      shop,
			OrderName:       fmt.Sprintf("#%d", 1000+int(v%9000)),
			Region:          &region,
			CreatedAt:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
			TrackingNumbers: []string{fmt.Sprintf("94001%010d", v)},
			TrackingIgnore:  f.isIgnored(orderID),
			Links:           &models.OrderLinks{ShopifySearch: "https://admin.shopify.com/search?q=" + orderID},
		},
		Items: []models.OrderItem{
			{SKU: fmt.Sprintf("SKU-%d", v%50), Title: "Demo item", Ordered: 2, Fulfilled: 1},
		},
	}, nil
}

func (f *FakeBackend) isIgnored(orderID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ignored[orderID]
}

func (f *FakeBackend) IgnoreOrder(ctx context.Context, orderID, shop string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ignored[orderID] = true
	return nil
}

func (f *FakeBackend) ResolvePackageOrder(ctx context.Context, packageID, shop string) (models.OrderRef, error) {
	ref := models.OrderRef{OrderID: "ord-" + packageID}
	// Кросс-тенантный ответ включает shop только когда он известен.
	if shop == "" {
		ref.Shop = f.shopsList[seed(packageID)%uint32(len(f.shopsList))]
	}
	return ref, nil
}

func (f *FakeBackend) Chat(ctx context.Context, shop, question string) (string, error) {
	return "Here is a quick rundown for **" + strings.TrimSuffix(shop, ".myshopify.com") + "**:\n\n" +
		"- Orders are flowing normally\n" +
		"- 2 packages look `stuck`\n\n" +
		"| Metric | Value |\n|---|---|\n| Open tickets | 3 |", nil
}

func (f *FakeBackend) SyncNow(ctx context.Context, shop string, opts uppership.SyncOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if last, ok := f.lastSync[shop]; ok {
		left := f.cooldown - time.Since(last)
		if left > 0 {
			return "", &uppership.CooldownError{
				MsLeft:  left.Milliseconds(),
				Message: "sync cooldown active",
			}
		}
	}
	f.lastSync[shop] = time.Now()
	return "Sync kicked off for " + shop, nil
}

func (f *FakeBackend) SyncStatus(ctx context.Context, shop string) (models.SyncStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	last, ok := f.lastSync[shop]
	if !ok {
		return models.SyncStatus{}, nil
	}
	left := f.cooldown - time.Since(last)
	if left < 0 {
		left = 0
	}
	return models.SyncStatus{
		LastSyncAt: last.UnixMilli(),
		MsLeft:     left.Milliseconds(),
	}, nil
}

func (f *FakeBackend) Insights(ctx context.Context, shop string) (*models.Insights, error) {
	v := seed(shop)
	rate := float64(30 + v%70)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	orders := float64(100 + v%900)
	return &models.Insights{
		Summary: models.InsightsSummary{
			SnapshotDate:    &date,
			FulfillmentRate: models.FlexFloat(rate),
			MonthlyOrders:   &orders,
		},
		Regions: models.RegionMaps{
			RegionLabels: []string{"us-east", "us-west", "eu-central"},
			OrderMap: map[string]float64{
				"us-east":    float64(v % 50),
				"us-west":    float64(v % 30),
				"eu-central": float64(v % 20),
			},
			InventoryMap: map[string]float64{
				"us-east":    float64(v % 40),
				"us-west":    float64(v % 60),
				"eu-central": float64(v % 25),
			},
		},
	}, nil
}
