package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/google/uuid"
)

// Orders представление Store как хранилища заказов. Отдельный тип нужен,
// потому что GetByID у слотов и заказов совпадают по имени.
type Orders struct{ *Store }

func (s *Store) Orders() Orders { return Orders{s} }

func (o Orders) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	return o.Order(id), nil
}

func (o Orders) SetScheduledAt(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (bool, error) {
	defer o.lockWrite(ctx)()

	o.mu.Lock()
	defer o.mu.Unlock()

	order, ok := o.st.orders[id]
	if !ok {
		return false, nil
	}
	order.ScheduledAt = &scheduledAt
	order.UpdatedAt = time.Now()
	o.st.orders[id] = order
	return true, nil
}

func (o Orders) FindByStatusAndScheduledRange(_ context.Context, status model.OrderStatus, from, to time.Time) ([]*model.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*model.Order
	for _, order := range o.st.orders {
		if order.Status != status || order.ScheduledAt == nil {
			continue
		}
		if order.ScheduledAt.Before(from) || order.ScheduledAt.After(to) {
			continue
		}
		out = append(out, copyOrder(order))
	}
	sortBySchedule(out)
	return out, nil
}

func (o Orders) ListUpcoming(_ context.Context, userID uuid.UUID, status model.OrderStatus, from time.Time, limit int) ([]*model.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []*model.Order
	for _, order := range o.st.orders {
		if order.Status != status || order.ScheduledAt == nil || order.ScheduledAt.Before(from) {
			continue
		}
		isMaster := order.MasterID != nil && *order.MasterID == userID
		if order.ClientID != userID && !isMaster {
			continue
		}
		out = append(out, copyOrder(order))
	}
	sortBySchedule(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortBySchedule(orders []*model.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].ScheduledAt.Before(*orders[j].ScheduledAt) })
}
