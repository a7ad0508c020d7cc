package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

// MenuService serves read-only menu snapshots. Reads go through the cache;
// a failed load keeps serving the last good snapshot.
type MenuService struct {
	repo    port.MenuRepository
	cache   port.CacheRepository
	changes port.ChangeFeed
	ttl     time.Duration
	logger  *zap.Logger

	mu   sync.RWMutex
	last *domain.Menu
}

func NewMenuService(repo port.MenuRepository, cache port.CacheRepository, changes port.ChangeFeed, ttl time.Duration, logger *zap.Logger) *MenuService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MenuService{repo: repo, cache: cache, changes: changes, ttl: ttl, logger: logger}
}

// Current returns the cached menu or loads it. On a load failure the last
// good snapshot (or an empty menu) is returned together with the error.
func (s *MenuService) Current(ctx context.Context) (*domain.Menu, error) {
	m, err := s.cache.GetMenu(ctx)
	if err != nil {
		s.logger.Warn("menu cache read failed", zap.Error(err))
	}
	if m != nil {
		s.setLast(m)
		return m, nil
	}
	return s.Refresh(ctx)
}

// Refresh reloads the menu from the store and repopulates the cache.
func (s *MenuService) Refresh(ctx context.Context) (*domain.Menu, error) {
	m, err := s.load(ctx)
	if err != nil {
		s.logger.Error("menu load failed", zap.Error(err))
		return s.Last(), err
	}
	if cerr := s.cache.SetMenu(ctx, m, s.ttl); cerr != nil {
		s.logger.Warn("menu cache write failed", zap.Error(cerr))
	}
	s.setLast(m)
	return m, nil
}

func (s *MenuService) load(ctx context.Context) (*domain.Menu, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	combos, err := s.repo.ListCombos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list combos: %w", err)
	}
	return domain.NewMenu(categories, products, combos), nil
}

// Last returns the last good snapshot, or an empty menu.
func (s *MenuService) Last() *domain.Menu {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return domain.NewMenu(nil, nil, nil)
	}
	return s.last
}

func (s *MenuService) setLast(m *domain.Menu) {
	s.mu.Lock()
	s.last = m
	s.mu.Unlock()
}

// Watch refreshes the menu whenever a menu table changes, until ctx is done.
func (s *MenuService) Watch(ctx context.Context) error {
	if s.changes == nil {
		return nil
	}
	events, err := s.changes.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe menu changes: %w", err)
	}
	for ev := range events {
		switch ev.Table {
		case port.TableProducts, port.TableProductPrices, port.TableCombos:
		default:
			continue
		}
		if err := s.cache.InvalidateMenu(ctx); err != nil {
			s.logger.Warn("menu cache invalidate failed", zap.Error(err))
		}
		if _, err := s.Refresh(ctx); err == nil {
			s.logger.Info("menu refreshed", zap.String("table", ev.Table), zap.String("id", ev.ID))
		}
	}
	return nil
}

// ProductsByCategory lists every product of a category for the admin,
// including unavailable ones.
func (s *MenuService) ProductsByCategory(ctx context.Context, c domain.Category) ([]domain.Product, error) {
	all, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	var out []domain.Product
	for _, p := range all {
		if c == "" || p.Category == c {
			out = append(out, p)
		}
	}
	return out, nil
}

func validProduct(p domain.Product) error {
	if strings.TrimSpace(p.ID) == "" {
		return invalid("id", "required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", "required")
	}
	switch p.Category {
	case domain.CategorySavory, domain.CategorySweet, domain.CategoryCalzones, domain.CategoryDrinks:
	default:
		return invalid("category", "unknown category %q", p.Category)
	}
	if len(p.Prices) == 0 {
		return invalid("prices", "at least one price is required")
	}
	seen := make(map[string]bool, len(p.Prices))
	for _, opt := range p.Prices {
		if strings.TrimSpace(opt.Size) == "" {
			return invalid("prices", "size is required")
		}
		if opt.Price < 0 {
			return invalid("prices", "negative price for %s", opt.Size)
		}
		if seen[opt.Size] {
			return invalid("prices", "duplicate size %s", opt.Size)
		}
		seen[opt.Size] = true
	}
	return nil
}

func (s *MenuService) UpsertProduct(ctx context.Context, p domain.Product) error {
	if err := validProduct(p); err != nil {
		return err
	}
	if err := s.repo.UpsertProduct(ctx, p); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	s.changed(ctx, port.ChangeEvent{Table: port.TableProducts, Op: "upsert", ID: p.ID})
	return nil
}

func (s *MenuService) DeleteProduct(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id", "required")
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.changed(ctx, port.ChangeEvent{Table: port.TableProducts, Op: "delete", ID: id})
	return nil
}

func (s *MenuService) UpsertCombo(ctx context.Context, c domain.Combo) error {
	if strings.TrimSpace(c.ID) == "" {
		return invalid("id", "required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "required")
	}
	if c.Price < 0 {
		return invalid("price", "must not be negative")
	}
	if err := s.repo.UpsertCombo(ctx, c); err != nil {
		return fmt.Errorf("upsert combo: %w", err)
	}
	s.changed(ctx, port.ChangeEvent{Table: port.TableCombos, Op: "upsert", ID: c.ID})
	return nil
}

// changed drops the cached menu and tells other instances about the write.
func (s *MenuService) changed(ctx context.Context, ev port.ChangeEvent) {
	if err := s.cache.InvalidateMenu(ctx); err != nil {
		s.logger.Warn("menu cache invalidate failed", zap.Error(err))
	}
	if s.changes == nil {
		return
	}
	if err := s.changes.Publish(ctx, ev); err != nil {
		s.logger.Warn("change publish failed", zap.String("table", ev.Table), zap.Error(err))
	}
}
