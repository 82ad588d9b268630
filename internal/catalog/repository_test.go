package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func newTestProduct() *Product {
	return &Product{
		SKU:      "TSHIRT-BLK-M",
		Name:     "Black T-Shirt (M)",
		Price:    129900,
		Currency: "TRY",
		Stock:    10,
		Active:   true,
	}
}

func TestInMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	p := newTestProduct()
	if err := repo.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected generated product ID")
	}

	got, err := repo.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if got.Name != p.Name || got.Price != p.Price {
		t.Errorf("retrieved product does not match: %+v", got)
	}

	// Mutating the returned copy must not affect the store
	got.Price = 1
	again, _ := repo.GetProduct(ctx, p.ID)
	if again.Price != 129900 {
		t.Error("repository returned a shared pointer instead of a copy")
	}
}

func TestInMemoryRepository_GetMissing(t *testing.T) {
	repo := NewInMemoryRepository()

	if _, err := repo.GetProduct(context.Background(), "missing"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

func TestInMemoryRepository_ListFiltersInactive(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	active := newTestProduct()
	if err := repo.CreateProduct(ctx, active); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	inactive := newTestProduct()
	inactive.SKU = "TSHIRT-BLK-L"
	inactive.Active = false
	if err := repo.CreateProduct(ctx, inactive); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	list, err := repo.ListProducts(ctx, "")
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 active product, got %d", len(list))
	}
	if list[0].ID != active.ID {
		t.Errorf("expected active product in list, got %s", list[0].ID)
	}
}

func TestReserveStock(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	p := newTestProduct()
	if err := repo.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	if err := repo.ReserveStock(ctx, p.ID, 4); err != nil {
		t.Fatalf("ReserveStock failed: %v", err)
	}
	got, _ := repo.GetProduct(ctx, p.ID)
	if got.Stock != 6 {
		t.Errorf("expected stock 6 after reservation, got %d", got.Stock)
	}

	if err := repo.ReserveStock(ctx, p.ID, 7); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}

	if err := repo.ReleaseStock(ctx, p.ID, 4); err != nil {
		t.Fatalf("ReleaseStock failed: %v", err)
	}
	got, _ = repo.GetProduct(ctx, p.ID)
	if got.Stock != 10 {
		t.Errorf("expected stock restored to 10, got %d", got.Stock)
	}
}

func TestReserveStock_NeverOversells(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	p := newTestProduct()
	p.Stock = 5
	if err := repo.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	var wg sync.WaitGroup
	successes := make(chan struct{}, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.ReserveStock(ctx, p.ID, 1); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	count := 0
	for range successes {
		count++
	}
	if count != 5 {
		t.Errorf("expected exactly 5 successful reservations, got %d", count)
	}
	got, _ := repo.GetProduct(ctx, p.ID)
	if got.Stock != 0 {
		t.Errorf("expected stock drained to 0, got %d", got.Stock)
	}
}

func TestCategories(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	c := &Category{Name: "Apparel", Slug: "apparel"}
	if err := repo.CreateCategory(ctx, c); err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}

	got, err := repo.GetCategory(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCategory failed: %v", err)
	}
	if got.Slug != "apparel" {
		t.Errorf("expected slug apparel, got %q", got.Slug)
	}

	p := newTestProduct()
	p.CategoryID = c.ID
	if err := repo.CreateProduct(ctx, p); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	other := newTestProduct()
	other.SKU = "MUG-WHT"
	if err := repo.CreateProduct(ctx, other); err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}

	list, err := repo.ListProducts(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != p.ID {
		t.Errorf("expected only the categorized product, got %d items", len(list))
	}
}
