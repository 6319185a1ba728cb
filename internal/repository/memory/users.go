package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/google/uuid"
)

// Users представление Store как хранилища пользователей
type Users struct{ *Store }

func (s *Store) Users() Users { return Users{s} }

func (u Users) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.st.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

func (u Users) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, user := range u.st.users {
		if user.TelegramID != nil && *user.TelegramID == telegramID {
			return &user, nil
		}
	}
	return nil, nil
}

func (u Users) ListMasters(_ context.Context) ([]*model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []*model.User
	for _, user := range u.st.users {
		if user.IsMaster {
			user := user
			out = append(out, &user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Reminders представление Store как журнала напоминаний
type Reminders struct{ *Store }

func (s *Store) Reminders() Reminders { return Reminders{s} }

func (r Reminders) Claim(ctx context.Context, orderID uuid.UUID, scheduledAt time.Time, threshold int, role model.RecipientRole) (bool, error) {
	defer r.lockWrite(ctx)()

	r.mu.Lock()
	defer r.mu.Unlock()
	key := reminderKey{orderID, scheduledAt.UnixNano(), threshold, role}
	if _, ok := r.st.reminders[key]; ok {
		return false, nil
	}
	r.st.reminders[key] = struct{}{}
	return true, nil
}

func (r Reminders) Unclaim(ctx context.Context, orderID uuid.UUID, scheduledAt time.Time, threshold int, role model.RecipientRole) error {
	defer r.lockWrite(ctx)()

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.st.reminders, reminderKey{orderID, scheduledAt.UnixNano(), threshold, role})
	return nil
}
