package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/Freeeeeet/master_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReminderRepository журнал отправленных напоминаний
type ReminderRepository struct {
	*base.Repository
}

func NewReminderRepository(pool *pgxpool.Pool) *ReminderRepository {
	return &ReminderRepository{Repository: base.NewRepository(pool)}
}

// Claim отмечает напоминание как отправляемое. false - уже было отмечено ранее.
func (r *ReminderRepository) Claim(ctx context.Context, orderID uuid.UUID, scheduledAt time.Time, threshold int, role model.RecipientRole) (bool, error) {
	affected, err := r.ExecAffected(ctx, `
		INSERT INTO order_reminders (order_id, scheduled_at, threshold_minutes, recipient_role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id, scheduled_at, threshold_minutes, recipient_role) DO NOTHING
	`, orderID, scheduledAt, threshold, role)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return affected == 1, nil
}

// Unclaim снимает отметку, чтобы напоминание ушло на следующем проходе
func (r *ReminderRepository) Unclaim(ctx context.Context, orderID uuid.UUID, scheduledAt time.Time, threshold int, role model.RecipientRole) error {
	_, err := r.ExecAffected(ctx, `
		DELETE FROM order_reminders
		WHERE order_id = $1 AND scheduled_at = $2 AND threshold_minutes = $3 AND recipient_role = $4
	`, orderID, scheduledAt, threshold, role)
	if err != nil {
		return fmt.Errorf("unclaim reminder: %w", err)
	}
	return nil
}
