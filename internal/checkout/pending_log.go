package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
)

// PendingLog is the append-only list of locally queued orders kept under store.OrdersKey.
type PendingLog struct {
	mu    sync.Mutex
	store store.Store
}

func NewPendingLog(s store.Store) *PendingLog {
	return &PendingLog{store: s}
}

func (l *PendingLog) List(ctx context.Context) ([]domain.PendingOrder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.readLocked(ctx)
}

// Append adds order to the end of the list. An unreadable list is an error rather
// than being overwritten, so earlier queued orders are never lost.
func (l *PendingLog) Append(ctx context.Context, order domain.PendingOrder) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	orders, err := l.readLocked(ctx)
	if err != nil {
		return err
	}
	orders = append(orders, order)

	data, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("marshal pending orders failed: %w", err)
	}
	if err := l.store.Set(ctx, store.OrdersKey, data); err != nil {
		return fmt.Errorf("save pending orders failed: %w", err)
	}
	return nil
}

func (l *PendingLog) readLocked(ctx context.Context) ([]domain.PendingOrder, error) {
	data, err := l.store.Get(ctx, store.OrdersKey)
	if errors.Is(err, store.ErrNotFound) {
		return []domain.PendingOrder{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending orders failed: %w", err)
	}

	var orders []domain.PendingOrder
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, fmt.Errorf("unmarshal pending orders failed: %w", err)
	}
	if orders == nil {
		orders = []domain.PendingOrder{}
	}
	return orders, nil
}
