package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrOutOfStock = errors.New("product is out of stock")

// Manager owns the cart's line items and writes them through to the store
// after every mutation. Store failures are logged, never returned.
type Manager struct {
	mu     sync.Mutex
	store  store.Store
	logger *zap.Logger
	items  []domain.LineItem
	// unread is set while the stored cart could not be read; writes are held
	// back until a read succeeds so the stored copy is never clobbered.
	unread bool
}

func NewManager(s store.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  s,
		logger: logger.Named("cart"),
	}
}

// Open creates a Manager and hydrates it from the store.
func Open(ctx context.Context, s store.Store, logger *zap.Logger) *Manager {
	m := NewManager(s, logger)
	m.Hydrate(ctx)
	return m
}

// Hydrate replaces the in-memory items with the persisted cart.
// A missing, unreadable or malformed blob yields an empty cart.
func (m *Manager) Hydrate(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = nil
	m.unread = false

	data, err := m.store.Get(ctx, store.CartKey)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		m.logger.Error("failed to load cart, holding writes until it can be read", zap.Error(err))
		m.unread = true
		return
	}

	items, migrated, err := decodeCart(data)
	if err != nil {
		m.logger.Error("failed to parse stored cart, starting empty", zap.Error(err))
		return
	}
	m.items = items

	if migrated {
		m.logger.Info("normalized stored cart", zap.Int("items", len(items)))
		m.syncLocked(ctx)
	}
}

// AddItem increments the quantity of an existing line item or appends a new one with quantity 1.
// A product with a known stock of 0 is refused with ErrOutOfStock.
func (m *Manager) AddItem(ctx context.Context, p domain.Product) error {
	if p.Stock == 0 {
		return fmt.Errorf("product %d: %w", p.ID, ErrOutOfStock)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexLocked(p.ID); i >= 0 {
		m.items[i].Quantity = m.items[i].Clamp(m.items[i].Quantity + 1)
	} else {
		m.items = append(m.items, domain.NewLineItem(p))
	}
	m.syncLocked(ctx)
	return nil
}

// UpdateQuantity sets the quantity, clamped to stock. A quantity of zero or less removes the item.
// Unknown product ids are ignored.
func (m *Manager) UpdateQuantity(ctx context.Context, productID int64, quantity int) {
	if quantity <= 0 {
		m.RemoveItem(ctx, productID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexLocked(productID); i >= 0 {
		if q := m.items[i].Clamp(quantity); q >= 1 {
			m.items[i].Quantity = q
		} else {
			m.items = append(m.items[:i], m.items[i+1:]...)
		}
	}
	m.syncLocked(ctx)
}

func (m *Manager) RemoveItem(ctx context.Context, productID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.items[:0]
	for _, it := range m.items {
		if it.ID != productID {
			kept = append(kept, it)
		}
	}
	m.items = kept
	m.syncLocked(ctx)
}

// Clear empties the cart and deletes its persisted copy.
func (m *Manager) Clear(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = nil
	if err := m.store.Delete(context.WithoutCancel(ctx), store.CartKey); err != nil {
		m.logger.Error("failed to delete stored cart", zap.Error(err))
		return
	}
	m.unread = false
}

// Items returns a copy of the line items in cart order.
func (m *Manager) Items() []domain.LineItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.LineItem, len(m.items))
	copy(out, m.items)
	return out
}

func (m *Manager) Total() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.Total(m.items)
}

func (m *Manager) TotalItems() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.TotalQuantity(m.items)
}

func (m *Manager) indexLocked(productID int64) int {
	for i, it := range m.items {
		if it.ID == productID {
			return i
		}
	}
	return -1
}

// syncLocked writes the cart through. The write outlives the caller's context:
// once the in-memory mutation happened, the stored copy must follow it.
func (m *Manager) syncLocked(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if m.unread && !m.reloadLocked(ctx) {
		return
	}

	items := m.items
	if items == nil {
		items = []domain.LineItem{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		m.logger.Error("failed to marshal cart", zap.Error(err))
		return
	}
	if err := m.store.Set(ctx, store.CartKey, data); err != nil {
		m.logger.Error("failed to persist cart", zap.Error(err))
	}
}

// reloadLocked retries the read that failed in Hydrate and folds the stored
// items under the in-memory ones. It reports whether writing is now safe.
func (m *Manager) reloadLocked(ctx context.Context) bool {
	data, err := m.store.Get(ctx, store.CartKey)
	if errors.Is(err, store.ErrNotFound) {
		m.unread = false
		return true
	}
	if err != nil {
		m.logger.Warn("stored cart still unreadable, change kept in memory only", zap.Error(err))
		return false
	}
	m.unread = false

	stored, _, err := decodeCart(data)
	if err != nil {
		m.logger.Error("failed to parse stored cart, replacing it", zap.Error(err))
		return true
	}
	m.items = mergeItems(stored, m.items)
	return true
}

// mergeItems appends extra to base, summing quantities of shared ids within stock.
// extra's product fields win since they are the more recent.
func mergeItems(base, extra []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(base)+len(extra))
	out = append(out, base...)
	for _, it := range extra {
		found := false
		for i := range out {
			if out[i].ID == it.ID {
				it.Quantity = it.Clamp(out[i].Quantity + it.Quantity)
				out[i] = it
				found = true
				break
			}
		}
		if !found {
			out = append(out, it)
		}
	}
	return out
}
