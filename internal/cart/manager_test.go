package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	m       sync.Mutex
	values  map[string][]byte
	getErr  error
	setErr  error
	delErr  error
	sets    int
	deletes int
}

func newMockStore() *mockStore {
	return &mockStore{values: map[string][]byte{}}
}

func (s *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (s *mockStore) Set(ctx context.Context, key string, value []byte) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.sets++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.setErr != nil {
		return s.setErr
	}
	s.values[key] = value
	return nil
}

func (s *mockStore) Delete(ctx context.Context, key string) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.deletes++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.delErr != nil {
		return s.delErr
	}
	delete(s.values, key)
	return nil
}

func (s *mockStore) Close() error { return nil }

func (s *mockStore) storedCart(t *testing.T) []domain.LineItem {
	t.Helper()
	s.m.Lock()
	defer s.m.Unlock()
	raw, ok := s.values[store.CartKey]
	require.True(t, ok, "cart was not persisted")
	var items []domain.LineItem
	require.NoError(t, json.Unmarshal(raw, &items))
	return items
}

func laptop() domain.Product {
	return domain.Product{ID: 1, Name: "Laptop", Price: decimal.RequireFromString("999.99"), ImageURL: "test.jpg", Stock: 10}
}

func TestOpen_EmptyStore(t *testing.T) {
	sut := Open(context.Background(), newMockStore(), nil)

	assert.Empty(t, sut.Items())
	assert.True(t, sut.Total().IsZero())
	assert.Equal(t, 0, sut.TotalItems())
}

func TestAddItem_NewProduct(t *testing.T) {
	s := newMockStore()
	sut := Open(context.Background(), s, nil)

	sut.AddItem(context.Background(), laptop())

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Laptop", items[0].Name)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, 10, items[0].Stock)
	assert.Equal(t, "test.jpg", items[0].ImageURL)

	stored := s.storedCart(t)
	require.Len(t, stored, 1)
	assert.Equal(t, "Laptop", stored[0].Name)
}

func TestAddItem_SameProductIncrements(t *testing.T) {
	sut := Open(context.Background(), newMockStore(), nil)

	for i := 0; i < 3; i++ {
		sut.AddItem(context.Background(), laptop())
	}

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, 3, sut.TotalItems())
}

func TestAddItem_DistinctProducts(t *testing.T) {
	sut := Open(context.Background(), newMockStore(), nil)
	ctx := context.Background()

	adds := []int64{1, 2, 1, 3, 2, 1}
	for _, id := range adds {
		sut.AddItem(ctx, domain.Product{ID: id, Name: fmt.Sprintf("p%d", id), Price: decimal.NewFromInt(1), Stock: 100})
	}

	items := sut.Items()
	require.Len(t, items, 3)
	want := map[int64]int{1: 3, 2: 2, 3: 1}
	for _, it := range items {
		assert.Equal(t, want[it.ID], it.Quantity, "product %d", it.ID)
	}
	// insertion order is kept
	assert.Equal(t, []int64{1, 2, 3}, []int64{items[0].ID, items[1].ID, items[2].ID})
}

func TestAddItem_ClampsToStock(t *testing.T) {
	sut := Open(context.Background(), newMockStore(), nil)
	p := laptop()
	p.Stock = 2

	for i := 0; i < 5; i++ {
		sut.AddItem(context.Background(), p)
	}

	assert.Equal(t, 2, sut.Items()[0].Quantity)
}

func TestAddItem_UnknownStockDoesNotClamp(t *testing.T) {
	sut := Open(context.Background(), newMockStore(), nil)
	p := laptop()
	p.Stock = domain.StockUnknown

	for i := 0; i < 4; i++ {
		sut.AddItem(context.Background(), p)
	}

	assert.Equal(t, 4, sut.Items()[0].Quantity)
}

func TestAddItem_OutOfStockIsRefused(t *testing.T) {
	s := newMockStore()
	sut := Open(context.Background(), s, nil)
	p := laptop()
	p.Stock = 0

	err := sut.AddItem(context.Background(), p)

	require.ErrorIs(t, err, ErrOutOfStock)
	assert.Empty(t, sut.Items())
	assert.Equal(t, 0, s.sets)
}

func TestUpdateQuantity_Success(t *testing.T) {
	s := newMockStore()
	sut := Open(context.Background(), s, nil)
	sut.AddItem(context.Background(), laptop())

	sut.UpdateQuantity(context.Background(), 1, 5)

	assert.Equal(t, 5, sut.Items()[0].Quantity)
	assert.Equal(t, 5, s.storedCart(t)[0].Quantity)
}

func TestUpdateQuantity_ClampsToStock(t *testing.T) {
	sut := Open(context.Background(), newMockStore(), nil)
	p := laptop()
	p.Stock = 5
	sut.AddItem(context.Background(), p)

	sut.UpdateQuantity(context.Background(), 1, 10)

	assert.Equal(t, 5, sut.Items()[0].Quantity)
}

func TestUpdateQuantity_ZeroOrNegativeRemoves(t *testing.T) {
	for _, q := range []int{0, -1, -100} {
		t.Run(fmt.Sprint(q), func(t *testing.T) {
			s := newMockStore()
			sut := Open(context.Background(), s, nil)
			sut.AddItem(context.Background(), laptop())

			sut.UpdateQuantity(context.Background(), 1, q)

			assert.Empty(t, sut.Items())
			assert.Empty(t, s.storedCart(t))
		})
	}
}

func TestUpdateQuantity_UnknownProductIsNoop(t *testing.T) {
	sut := Open(context.Background(), newMockStore(), nil)
	sut.AddItem(context.Background(), laptop())

	sut.UpdateQuantity(context.Background(), 99, 4)

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestRemoveItem(t *testing.T) {
	s := newMockStore()
	sut := Open(context.Background(), s, nil)
	sut.AddItem(context.Background(), laptop())
	sut.AddItem(context.Background(), domain.Product{ID: 2, Name: "Mouse", Price: decimal.NewFromInt(50), Stock: 20})

	sut.RemoveItem(context.Background(), 1)
	sut.RemoveItem(context.Background(), 42)

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(2), items[0].ID)
	assert.Len(t, s.storedCart(t), 1)
}

func TestTotal(t *testing.T) {
	sut := Open(context.Background(), newMockStore(), nil)
	sut.AddItem(context.Background(), domain.Product{ID: 1, Name: "Laptop", Price: decimal.NewFromInt(1000), Stock: 10})
	sut.AddItem(context.Background(), domain.Product{ID: 2, Name: "Mouse", Price: decimal.NewFromInt(50), Stock: 20})

	assert.True(t, decimal.NewFromInt(1050).Equal(sut.Total()), "got %s", sut.Total())

	sut.UpdateQuantity(context.Background(), 2, 3)
	assert.True(t, decimal.NewFromInt(1150).Equal(sut.Total()), "got %s", sut.Total())
	assert.Equal(t, 4, sut.TotalItems())
}

func TestClear_DeletesBlob(t *testing.T) {
	s := newMockStore()
	sut := Open(context.Background(), s, nil)
	sut.AddItem(context.Background(), laptop())

	sut.Clear(context.Background())

	assert.Empty(t, sut.Items())
	assert.True(t, sut.Total().IsZero())
	_, err := s.Get(context.Background(), store.CartKey)
	assert.ErrorIs(t, err, store.ErrNotFound)

	reopened := Open(context.Background(), s, nil)
	assert.Empty(t, reopened.Items())
}

func TestHydrate_LoadsPersistedCart(t *testing.T) {
	s := newMockStore()
	s.values[store.CartKey] = []byte(`[{"id":1,"name":"Laptop","price":999.99,"image_url":"test.jpg","stock":10,"quantity":2}]`)

	sut := Open(context.Background(), s, nil)

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Laptop", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 0, s.sets, "canonical cart should not be rewritten")
}

func TestHydrate_MigratesLegacyAlias(t *testing.T) {
	s := newMockStore()
	s.values[store.CartKey] = []byte(`[
		{"id":1,"product_id":1,"name":"Laptop","price":"999.99","stock":10,"quantity":2},
		{"product_id":2,"name":"Mouse","price":50,"stock":20,"quantity":1}
	]`)

	sut := Open(context.Background(), s, nil)

	items := sut.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, int64(2), items[1].ID)

	// the rewritten blob no longer carries the alias
	raw, err := s.Get(context.Background(), store.CartKey)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "product_id")

	sut.UpdateQuantity(context.Background(), 2, 4)
	assert.Equal(t, 4, sut.Items()[1].Quantity)
}

func TestHydrate_NormalizesInvalidEntries(t *testing.T) {
	s := newMockStore()
	s.values[store.CartKey] = []byte(`[
		{"id":1,"name":"Laptop","price":10,"stock":3,"quantity":2},
		{"id":1,"name":"Laptop","price":10,"stock":3,"quantity":2},
		{"id":2,"name":"Zero","price":10,"stock":3,"quantity":0},
		{"name":"NoID","price":10,"quantity":1},
		{"id":3,"name":"Over","price":10,"stock":1,"quantity":7}
	]`)

	sut := Open(context.Background(), s, nil)

	items := sut.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, int64(3), items[1].ID)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, 1, s.sets)
}

func TestHydrate_StockTracking(t *testing.T) {
	s := newMockStore()
	s.values[store.CartKey] = []byte(`[
		{"id":1,"name":"Legacy","price":10,"quantity":6},
		{"id":2,"name":"SoldOut","price":10,"stock":0,"quantity":2},
		{"id":3,"name":"Tracked","price":10,"stock":4,"quantity":2}
	]`)

	sut := Open(context.Background(), s, nil)

	items := sut.Items()
	require.Len(t, items, 2)
	assert.Equal(t, domain.StockUnknown, items[0].Stock)
	assert.Equal(t, 6, items[0].Quantity)
	assert.Equal(t, int64(3), items[1].ID)

	// unknown stock survives the rewrite and still does not clamp
	reopened := Open(context.Background(), s, nil)
	reopened.UpdateQuantity(context.Background(), 1, 50)
	assert.Equal(t, 50, reopened.Items()[0].Quantity)

	reopened.UpdateQuantity(context.Background(), 3, 50)
	assert.Equal(t, 4, reopened.Items()[1].Quantity)
}

func TestHydrate_MalformedBlobFailsSoft(t *testing.T) {
	s := newMockStore()
	s.values[store.CartKey] = []byte(`[{"id":1,"name":`)

	sut := Open(context.Background(), s, nil)

	assert.Empty(t, sut.Items())
	sut.AddItem(context.Background(), laptop())
	assert.Len(t, s.storedCart(t), 1)
}

func TestHydrate_StoreErrorFailsSoft(t *testing.T) {
	s := newMockStore()
	s.getErr = fmt.Errorf("connection refused")

	sut := Open(context.Background(), s, nil)

	assert.Empty(t, sut.Items())
}

func TestHydrate_ReadErrorHoldsWritesUntilReadable(t *testing.T) {
	s := newMockStore()
	s.values[store.CartKey] = []byte(`[{"id":2,"name":"Mouse","price":50,"stock":20,"quantity":3}]`)
	s.getErr = fmt.Errorf("connection reset")
	ctx := context.Background()

	sut := Open(ctx, s, nil)
	require.Empty(t, sut.Items())

	sut.AddItem(ctx, laptop())
	assert.Equal(t, 0, s.sets, "an unread cart must not be overwritten")
	assert.Len(t, s.storedCart(t), 1)

	s.getErr = nil
	sut.AddItem(ctx, laptop())

	items := sut.Items()
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, int64(1), items[1].ID)
	assert.Equal(t, 2, items[1].Quantity)
	assert.Len(t, s.storedCart(t), 2)
}

func TestMutations_SurviveCanceledContext(t *testing.T) {
	s := newMockStore()
	sut := Open(context.Background(), s, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sut.AddItem(ctx, laptop())
	sut.AddItem(ctx, domain.Product{ID: 2, Name: "Mouse", Price: decimal.NewFromInt(50), Stock: 20})
	sut.UpdateQuantity(ctx, 1, 3)
	sut.RemoveItem(ctx, 2)

	reopened := Open(context.Background(), s, nil)
	items := reopened.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)

	sut.Clear(ctx)
	_, err := s.Get(context.Background(), store.CartKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMutations_StoreErrorsAreSwallowed(t *testing.T) {
	s := newMockStore()
	s.setErr = fmt.Errorf("disk full")
	s.delErr = fmt.Errorf("disk full")
	sut := Open(context.Background(), s, nil)

	sut.AddItem(context.Background(), laptop())
	sut.UpdateQuantity(context.Background(), 1, 3)
	assert.Equal(t, 3, sut.Items()[0].Quantity)
	assert.Equal(t, 2, s.sets)

	sut.Clear(context.Background())
	assert.Empty(t, sut.Items())
	assert.Equal(t, 1, s.deletes)
}

func TestItems_ReturnsCopy(t *testing.T) {
	sut := Open(context.Background(), newMockStore(), nil)
	sut.AddItem(context.Background(), laptop())

	items := sut.Items()
	items[0].Quantity = 99

	assert.Equal(t, 1, sut.Items()[0].Quantity)
}

func TestManager_WithMemoryStore(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	first := Open(ctx, s, nil)
	first.AddItem(ctx, laptop())
	first.AddItem(ctx, laptop())

	second := Open(ctx, s, nil)
	items := second.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestManager_ConcurrentAdds(t *testing.T) {
	sut := Open(context.Background(), newMockStore(), nil)
	p := laptop()
	p.Stock = domain.StockUnknown

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sut.AddItem(context.Background(), p)
		}()
	}
	wg.Wait()

	require.Len(t, sut.Items(), 1)
	assert.Equal(t, 50, sut.TotalItems())
}
