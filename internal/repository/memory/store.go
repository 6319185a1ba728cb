// Package memory хранилище в памяти с теми же контрактами, что и репозитории
// PostgreSQL. Используется в тестах сервисов и HTTP API.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/google/uuid"
)

type reminderKey struct {
	orderID     uuid.UUID
	scheduledAt int64
	threshold   int
	role        model.RecipientRole
}

type slotKey struct {
	masterID uuid.UUID
	start    int64
}

type state struct {
	slots     map[uuid.UUID]model.ScheduleSlot
	orders    map[uuid.UUID]model.Order
	users     map[uuid.UUID]model.User
	reminders map[reminderKey]struct{}
}

type txKey struct{}

// Store хранилище в памяти. Транзакции сериализуются, откат восстанавливает
// состояние на момент начала транзакции. Запись вне транзакции ждёт окончания
// открытой транзакции, иначе откат затёр бы её.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   state
}

func NewStore() *Store {
	return &Store{st: state{
		slots:     make(map[uuid.UUID]model.ScheduleSlot),
		orders:    make(map[uuid.UUID]model.Order),
		users:     make(map[uuid.UUID]model.User),
		reminders: make(map[reminderKey]struct{}),
	}}
}

func (s *Store) snapshot() state {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := state{
		slots:     make(map[uuid.UUID]model.ScheduleSlot, len(s.st.slots)),
		orders:    make(map[uuid.UUID]model.Order, len(s.st.orders)),
		users:     make(map[uuid.UUID]model.User, len(s.st.users)),
		reminders: make(map[reminderKey]struct{}, len(s.st.reminders)),
	}
	for k, v := range s.st.slots {
		cp.slots[k] = v
	}
	for k, v := range s.st.orders {
		cp.orders[k] = v
	}
	for k, v := range s.st.users {
		cp.users[k] = v
	}
	for k := range s.st.reminders {
		cp.reminders[k] = struct{}{}
	}
	return cp
}

// WithinTx выполняет fn атомарно относительно других транзакций
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	saved := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

// lockWrite берёт txMu для записи вне транзакции; внутри транзакции txMu
// уже удерживается через WithinTx
func (s *Store) lockWrite(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

func copySlot(slot model.ScheduleSlot) *model.ScheduleSlot {
	if slot.OrderID != nil {
		id := *slot.OrderID
		slot.OrderID = &id
	}
	return &slot
}

func copyOrder(order model.Order) *model.Order {
	if order.MasterID != nil {
		id := *order.MasterID
		order.MasterID = &id
	}
	if order.ScheduledAt != nil {
		t := *order.ScheduledAt
		order.ScheduledAt = &t
	}
	return &order
}

// PutSlot сохраняет слот как есть
func (s *Store) PutSlot(slot model.ScheduleSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.slots[slot.ID] = *copySlot(slot)
}

// PutOrder сохраняет заказ как есть
func (s *Store) PutOrder(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.orders[order.ID] = *copyOrder(order)
}

// PutUser сохраняет пользователя как есть
func (s *Store) PutUser(user model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[user.ID] = user
}

// Slot возвращает копию слота или nil
func (s *Store) Slot(id uuid.UUID) *model.ScheduleSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.st.slots[id]
	if !ok {
		return nil
	}
	return copySlot(slot)
}

// Order возвращает копию заказа или nil
func (s *Store) Order(id uuid.UUID) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.st.orders[id]
	if !ok {
		return nil
	}
	return copyOrder(order)
}

// --- slots ---

func (s *Store) CreateBatch(ctx context.Context, slots []*model.ScheduleSlot) ([]*model.ScheduleSlot, error) {
	defer s.lockWrite(ctx)()

	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[slotKey]struct{}, len(s.st.slots))
	for _, slot := range s.st.slots {
		taken[slotKey{slot.MasterID, slot.StartTime.UnixNano()}] = struct{}{}
	}

	now := time.Now()
	var created []*model.ScheduleSlot
	for _, slot := range slots {
		if !slot.StartTime.Before(slot.EndTime) {
			return nil, errors.New("slot start_time must be before end_time")
		}
		key := slotKey{slot.MasterID, slot.StartTime.UnixNano()}
		if _, ok := taken[key]; ok {
			continue
		}
		taken[key] = struct{}{}

		stored := *copySlot(*slot)
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		stored.CreatedAt = now
		stored.UpdatedAt = now
		s.st.slots[stored.ID] = stored
		created = append(created, copySlot(stored))
	}
	return created, nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*model.ScheduleSlot, error) {
	return s.Slot(id), nil
}

func (s *Store) FindByMasterAndStart(_ context.Context, masterID uuid.UUID, startTime time.Time) (*model.ScheduleSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range s.st.slots {
		if slot.MasterID == masterID && slot.StartTime.Equal(startTime) {
			return copySlot(slot), nil
		}
	}
	return nil, nil
}

func (s *Store) FindCovering(_ context.Context, masterID uuid.UUID, t time.Time) (*model.ScheduleSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, slot := range s.st.slots {
		if slot.MasterID == masterID && !slot.StartTime.After(t) && slot.EndTime.After(t) {
			return copySlot(slot), nil
		}
	}
	return nil, nil
}

func (s *Store) ListByMaster(_ context.Context, masterID uuid.UUID, from, to time.Time, status *model.SlotStatus) ([]*model.ScheduleSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.ScheduleSlot
	for _, slot := range s.st.slots {
		if slot.MasterID != masterID || slot.StartTime.Before(from) || !slot.StartTime.Before(to) {
			continue
		}
		if status != nil && slot.Status != *status {
			continue
		}
		out = append(out, copySlot(slot))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// update меняет слот под блокировкой, если cond выполняется
func (s *Store) update(id uuid.UUID, cond func(model.ScheduleSlot) bool, apply func(*model.ScheduleSlot)) *model.ScheduleSlot {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.st.slots[id]
	if !ok || !cond(slot) {
		return nil
	}
	apply(&slot)
	slot.UpdatedAt = time.Now()
	s.st.slots[id] = slot
	return copySlot(slot)
}

func (s *Store) Book(ctx context.Context, slotID, orderID uuid.UUID) (*model.ScheduleSlot, error) {
	defer s.lockWrite(ctx)()

	s.mu.Lock()
	for _, slot := range s.st.slots {
		if slot.Status == model.SlotStatusBooked && slot.OrderID != nil && *slot.OrderID == orderID {
			s.mu.Unlock()
			return nil, nil
		}
	}
	s.mu.Unlock()

	return s.update(slotID,
		func(slot model.ScheduleSlot) bool { return slot.Status == model.SlotStatusAvailable },
		func(slot *model.ScheduleSlot) {
			slot.Status = model.SlotStatusBooked
			slot.OrderID = &orderID
		},
	), nil
}

func (s *Store) ReleaseByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.ScheduleSlot, error) {
	defer s.lockWrite(ctx)()

	s.mu.Lock()
	defer s.mu.Unlock()

	var released []*model.ScheduleSlot
	for id, slot := range s.st.slots {
		if slot.OrderID == nil || *slot.OrderID != orderID {
			continue
		}
		slot.Status = model.SlotStatusAvailable
		slot.OrderID = nil
		slot.UpdatedAt = time.Now()
		s.st.slots[id] = slot
		released = append(released, copySlot(slot))
	}
	return released, nil
}

func (s *Store) Block(ctx context.Context, slotID, masterID uuid.UUID) (*model.ScheduleSlot, error) {
	defer s.lockWrite(ctx)()

	return s.update(slotID,
		func(slot model.ScheduleSlot) bool {
			return slot.MasterID == masterID && slot.Status != model.SlotStatusBooked
		},
		func(slot *model.ScheduleSlot) { slot.Status = model.SlotStatusBlocked },
	), nil
}

func (s *Store) Unblock(ctx context.Context, slotID, masterID uuid.UUID) (*model.ScheduleSlot, error) {
	defer s.lockWrite(ctx)()

	return s.update(slotID,
		func(slot model.ScheduleSlot) bool {
			return slot.MasterID == masterID && slot.Status != model.SlotStatusBooked
		},
		func(slot *model.ScheduleSlot) {
			slot.Status = model.SlotStatusAvailable
			slot.OrderID = nil
		},
	), nil
}
