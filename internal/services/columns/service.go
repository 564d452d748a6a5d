package columns

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/uppership/opsboard/internal/board"
	"github.com/uppership/opsboard/internal/cache"
	"github.com/uppership/opsboard/internal/integrations/uppership"
	"github.com/uppership/opsboard/internal/models"
	"github.com/uppership/opsboard/internal/tracklink"
)

// allShopsScope — ключ кэша/токена для кросс-тенантного вида.
const allShopsScope = "ALL"

// Card is a package prepared for rendering: normalized tracking links and
// at most one attention indicator.
type Card struct {
	*models.Package
	Links     []models.TrackingLink `json:"links"`
	Indicator *board.Indicator      `json:"indicator,omitempty"`
}

// Service computes board columns on top of the remote backend, with a
// short-TTL cache keyed by (scope, status, refresh token). Bumping the
// token changes every key, which forces a re-fetch instead of a cache read.
type Service struct {
	backend uppership.Client
	cache   cache.BytesCache
	ttl     time.Duration
	limit   int

	mu     sync.Mutex
	tokens map[string]int64
}

func New(backend uppership.Client, c cache.BytesCache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Service{
		backend: backend,
		cache:   c,
		ttl:     ttl,
		limit:   100,
		tokens:  make(map[string]int64),
	}
}

// WithLimit задаёт максимум пакетов, запрашиваемых на колонку.
func (s *Service) WithLimit(limit int) *Service {
	if limit > 0 {
		s.limit = limit
	}
	return s
}

func scopeKey(shop string) string {
	if shop == "" {
		return allShopsScope
	}
	return shop
}

// RefreshToken returns the current cache-invalidation counter for a scope.
// The value itself is opaque; only changes matter.
func (s *Service) RefreshToken(shop string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[scopeKey(shop)]
}

// Bump invalidates the scope after a completed sync. The cross-tenant view
// aggregates every shop, so a per-shop bump invalidates it too.
func (s *Service) Bump(shop string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[scopeKey(shop)]++
	if shop != "" {
		s.tokens[allShopsScope]++
	}
	return s.tokens[scopeKey(shop)]
}

// Column computes the ordered card list for one display status.
func (s *Service) Column(ctx context.Context, shop, status string) ([]Card, error) {
	primary, err := s.cachedList(ctx, shop, status)
	if err != nil {
		return nil, err
	}

	var extras []*models.Package
	if status == models.StatusException {
		// Флаги живут и в остальных колонках; собираем кандидатов отовсюду.
		for _, st := range models.BoardStatuses {
			if st == models.StatusException {
				continue
			}
			pkgs, err := s.cachedList(ctx, shop, st)
			if err != nil {
				return nil, err
			}
			extras = append(extras, pkgs...)
		}
	}

	ordered := board.Column(status, primary, extras)
	cards := make([]Card, 0, len(ordered))
	for _, p := range ordered {
		cards = append(cards, Card{
			Package: p,
			Links: tracklink.Extract(p.TrackingNumbers, tracklink.Fallbacks{
				Carrier:        p.Carrier,
				TrackingNumber: p.TrackingNumber,
				TrackingURL:    p.TrackingURL,
			}),
			Indicator: board.FlagIndicator(p.Flags),
		})
	}
	return cards, nil
}

// ColumnResult carries one column of a full-board response. Columns fetch
// independently; one failing column must not blank the rest of the board.
type ColumnResult struct {
	Status string `json:"status"`
	Cards  []Card `json:"cards"`
	Err    string `json:"error,omitempty"`
}

// Board computes all five columns concurrently.
func (s *Service) Board(ctx context.Context, shop string) []ColumnResult {
	out := make([]ColumnResult, len(models.BoardStatuses))
	var wg sync.WaitGroup
	for i, status := range models.BoardStatuses {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cards, err := s.Column(ctx, shop, status)
			res := ColumnResult{Status: status, Cards: cards}
			if err != nil {
				res.Err = err.Error()
				res.Cards = []Card{}
			}
			out[i] = res
		}()
	}
	wg.Wait()
	return out
}

// ResolveOrder maps a package to its owning order. The request context is
// passed through, so an abandoned selection cancels the in-flight call
// (last selection wins). A response without a shop means the caller's
// tenant.
func (s *Service) ResolveOrder(ctx context.Context, shop, packageID string) (models.OrderRef, error) {
	ref, err := s.backend.ResolvePackageOrder(ctx, packageID, shop)
	if err != nil {
		return models.OrderRef{}, err
	}
	if ref.Shop == "" {
		ref.Shop = shop
	}
	return ref, nil
}

func (s *Service) cachedList(ctx context.Context, shop, status string) ([]*models.Package, error) {
	key := fmt.Sprintf("packages:%s:%s:t%d", scopeKey(shop), status, s.RefreshToken(shop))

	// Кэш — лучшее усилие: на ошибках просто идём в бэкенд.
	if s.cache != nil && s.ttl > 0 {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var pkgs []*models.Package
			if json.Unmarshal(b, &pkgs) == nil {
				return pkgs, nil
			}
		}
	}

	pkgs, err := s.backend.ListPackages(ctx, shop, status, s.limit)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.ttl > 0 {
		if b, err := json.Marshal(pkgs); err == nil {
			_ = s.cache.Set(ctx, key, b, s.ttl)
		}
	}
	return pkgs, nil
}
