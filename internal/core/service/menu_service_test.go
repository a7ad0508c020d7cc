package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pizzeria/internal/core/domain"
	"github.com/rl1809/pizzeria/internal/port"
)

func calabresa() domain.Product {
	return domain.Product{
		ID: "calabresa", Name: "Calabresa", Category: domain.CategorySavory, Available: true,
		Prices: []domain.PriceOption{{Size: string(domain.SizeM), Price: domain.Reais(40, 0)}},
	}
}

func TestMenuService_ReadThroughCache(t *testing.T) {
	repo := newMockMenuRepo(calabresa())
	cache := newMockCacheRepo()
	svc := NewMenuService(repo, cache, nil, 5*time.Minute, nil)

	m, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, m.Savory, 1)
	assert.Equal(t, 5*time.Minute, cache.menuTTL)

	_, err = svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.loads, "second read is served from cache")
}

func TestMenuService_FallsBackToLastGood(t *testing.T) {
	repo := newMockMenuRepo(calabresa())
	cache := newMockCacheRepo()
	svc := NewMenuService(repo, cache, nil, time.Minute, nil)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	repo.setFailure(true)
	require.NoError(t, cache.InvalidateMenu(context.Background()))
	m, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, errStoreDown)
	require.NotNil(t, m)
	assert.Len(t, m.Savory, 1)
}

func TestMenuService_EmptyMenuWhenNeverLoaded(t *testing.T) {
	repo := newMockMenuRepo()
	repo.setFailure(true)
	svc := NewMenuService(repo, newMockCacheRepo(), nil, time.Minute, nil)

	m, err := svc.Current(context.Background())
	assert.Error(t, err)
	require.NotNil(t, m)
	assert.Empty(t, m.Savory)
}

func TestMenuService_UpsertPublishesAndInvalidates(t *testing.T) {
	repo := newMockMenuRepo()
	cache := newMockCacheRepo()
	changes := newMockChangeFeed()
	svc := NewMenuService(repo, cache, changes, time.Minute, nil)

	require.NoError(t, svc.UpsertProduct(context.Background(), calabresa()))
	require.NoError(t, svc.UpsertCombo(context.Background(), domain.Combo{ID: "c1", Name: "Combo", Price: domain.Reais(50, 0)}))
	require.NoError(t, svc.DeleteProduct(context.Background(), "calabresa"))

	assert.Equal(t, []string{"products:upsert", "combos:upsert", "products:delete"}, changes.tables())
	assert.Equal(t, 3, cache.invalidations)
}

func TestMenuService_RejectsInvalidProducts(t *testing.T) {
	svc := NewMenuService(newMockMenuRepo(), newMockCacheRepo(), nil, time.Minute, nil)

	tests := []struct {
		name string
		edit func(*domain.Product)
	}{
		{"no id", func(p *domain.Product) { p.ID = "" }},
		{"no name", func(p *domain.Product) { p.Name = " " }},
		{"bad category", func(p *domain.Product) { p.Category = "sobremesas" }},
		{"no prices", func(p *domain.Product) { p.Prices = nil }},
		{"negative price", func(p *domain.Product) { p.Prices[0].Price = -1 }},
		{"duplicate size", func(p *domain.Product) { p.Prices = append(p.Prices, p.Prices[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := calabresa()
			tt.edit(&p)
			err := svc.UpsertProduct(context.Background(), p)
			assert.True(t, IsValidation(err), "got %v", err)
		})
	}
}

func TestMenuService_WatchRefreshesOnMenuChanges(t *testing.T) {
	repo := newMockMenuRepo(calabresa())
	cache := newMockCacheRepo()
	changes := newMockChangeFeed()
	svc := NewMenuService(repo, cache, changes, time.Minute, nil)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	p := calabresa()
	p.ID, p.Name = "mussarela", "Mussarela"
	require.NoError(t, repo.UpsertProduct(context.Background(), p))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Watch(ctx)

	changes.events <- port.ChangeEvent{Table: port.TableOrders, Op: "insert"}
	changes.events <- port.ChangeEvent{Table: port.TableProductPrices, Op: "update", ID: "mussarela"}

	assert.Eventually(t, func() bool {
		return len(svc.Last().Savory) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestProductsByCategory_IncludesUnavailable(t *testing.T) {
	hidden := calabresa()
	hidden.ID, hidden.Available = "hidden", false
	drink := domain.Product{ID: "refri", Name: "Refri", Category: domain.CategoryDrinks, Available: true}
	svc := NewMenuService(newMockMenuRepo(calabresa(), hidden, drink), newMockCacheRepo(), nil, time.Minute, nil)

	list, err := svc.ProductsByCategory(context.Background(), domain.CategorySavory)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}
