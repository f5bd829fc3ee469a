package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store for tests and local runs without a database.
type MemStore struct {
	mu     sync.Mutex
	orders map[string]Order
	Now    func() time.Time
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{orders: map[string]Order{}}
}

func (m *MemStore) Create(_ context.Context, n New) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if m.Now != nil {
		now = m.Now()
	}
	o := Order{
		ID: uuid.NewString(), UserID: n.UserID, PaymentMethod: n.PaymentMethod, Status: n.Status,
		PaymentStatus: n.PaymentStatus, Address: n.Address, Bill: n.Bill, CouponCode: n.CouponCode,
		Currency: n.Currency, CreatedAt: now,
	}
	for _, li := range n.Items {
		it := itemFromLine(o.ID, li)
		it.ID = uuid.NewString()
		o.Items = append(o.Items, it)
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *MemStore) AttachGatewayOrder(_ context.Context, orderID, gatewayOrderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.GatewayOrderID = gatewayOrderID
	m.orders[orderID] = o
	return nil
}

func (m *MemStore) List(_ context.Context, userID string, limit, offset int) ([]Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var mine []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			o.Items = nil
			mine = append(mine, o)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })
	total := int64(len(mine))
	if offset >= len(mine) {
		return []Order{}, total, nil
	}
	end := offset + limit
	if end > len(mine) {
		end = len(mine)
	}
	return mine[offset:end], total, nil
}

func (m *MemStore) Get(_ context.Context, userID, id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.UserID != userID {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *MemStore) Item(_ context.Context, userID, itemID string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.UserID != userID {
			continue
		}
		for _, it := range o.Items {
			if it.ID == itemID {
				return it, nil
			}
		}
	}
	return Item{}, ErrNotFound
}

// MarkDelivered sets an item delivered at t. The backend does this in production.
func (m *MemStore) MarkDelivered(itemID string, t time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, o := range m.orders {
		for i, it := range o.Items {
			if it.ID == itemID {
				o.Items[i].Status = ItemDelivered
				o.Items[i].DeliveredAt = &t
				m.orders[id] = o
				return true
			}
		}
	}
	return false
}

// All returns every stored order.
func (m *MemStore) All() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out
}
