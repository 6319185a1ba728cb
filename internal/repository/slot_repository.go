package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/Freeeeeet/master_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `id, master_id, start_time, end_time, status, order_id, created_at, updated_at`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

func scanSlot(row pgx.Row) (*model.ScheduleSlot, error) {
	var slot model.ScheduleSlot
	err := row.Scan(
		&slot.ID,
		&slot.MasterID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Status,
		&slot.OrderID,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// scanOne сканирует одну строку, отсутствие строки возвращает как (nil, nil)
func scanOne(row pgx.Row, op string) (*model.ScheduleSlot, error) {
	slot, err := scanSlot(row)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return slot, nil
}

func collectSlots(rows pgx.Rows, op string) ([]*model.ScheduleSlot, error) {
	defer rows.Close()

	var slots []*model.ScheduleSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return slots, nil
}

// CreateBatch вставляет слоты одним батчем. Слоты, уже существующие
// для (master_id, start_time), пропускаются; возвращаются только созданные.
func (r *SlotRepository) CreateBatch(ctx context.Context, slots []*model.ScheduleSlot) ([]*model.ScheduleSlot, error) {
	if len(slots) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO schedule_slots (id, master_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (master_id, start_time) DO NOTHING
		RETURNING ` + slotColumns

	batch := &pgx.Batch{}
	for _, slot := range slots {
		if slot.ID == uuid.Nil {
			slot.ID = uuid.New()
		}
		batch.Queue(query, slot.ID, slot.MasterID, slot.StartTime, slot.EndTime, slot.Status)
	}

	results := r.Conn(ctx).SendBatch(ctx, batch)
	defer results.Close()

	created := make([]*model.ScheduleSlot, 0, len(slots))
	for range slots {
		slot, err := scanSlot(results.QueryRow())
		if err != nil {
			if base.IsNotFound(err) {
				// конфликт по (master_id, start_time): слот уже есть
				continue
			}
			return nil, fmt.Errorf("create slots batch: %w", err)
		}
		created = append(created, slot)
	}

	return created, nil
}

// GetByID получает слот по ID
func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE id = $1`
	return scanOne(r.Conn(ctx).QueryRow(ctx, query, id), "get slot by id")
}

// FindByMasterAndStart ищет слот мастера, начинающийся ровно в startTime
func (r *SlotRepository) FindByMasterAndStart(ctx context.Context, masterID uuid.UUID, startTime time.Time) (*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE master_id = $1 AND start_time = $2
	`
	return scanOne(r.Conn(ctx).QueryRow(ctx, query, masterID, startTime), "find slot by master and start")
}

// FindCovering ищет слот мастера, внутри которого лежит момент t
func (r *SlotRepository) FindCovering(ctx context.Context, masterID uuid.UUID, t time.Time) (*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE master_id = $1 AND start_time <= $2 AND end_time > $2
		ORDER BY start_time DESC
		LIMIT 1
	`
	return scanOne(r.Conn(ctx).QueryRow(ctx, query, masterID, t), "find covering slot")
}

// ListByMaster возвращает слоты мастера с началом в [from, to).
// Если status == nil, возвращаются слоты в любом статусе.
func (r *SlotRepository) ListByMaster(ctx context.Context, masterID uuid.UUID, from, to time.Time, status *model.SlotStatus) ([]*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE master_id = $1
		  AND start_time >= $2
		  AND start_time < $3
		  AND ($4::text IS NULL OR status = $4)
		ORDER BY start_time
	`

	rows, err := r.Conn(ctx).Query(ctx, query, masterID, from, to, status)
	if err != nil {
		return nil, fmt.Errorf("list slots by master: %w", err)
	}
	return collectSlots(rows, "list slots by master")
}

// Book бронирует слот за заказом. Обновление условное: если слот уже
// не свободен, строка не меняется и возвращается nil.
func (r *SlotRepository) Book(ctx context.Context, slotID, orderID uuid.UUID) (*model.ScheduleSlot, error) {
	query := `
		UPDATE schedule_slots
		SET status = 'booked', order_id = $2, updated_at = now()
		WHERE id = $1 AND status = 'available'
		RETURNING ` + slotColumns

	slot, err := scanOne(r.Conn(ctx).QueryRow(ctx, query, slotID, orderID), "book slot")
	if err != nil && base.IsUniqueViolation(err) {
		// за заказом уже забронирован другой слот в параллельной транзакции
		return nil, nil
	}
	return slot, err
}

// ReleaseByOrder освобождает все слоты, забронированные за заказом
func (r *SlotRepository) ReleaseByOrder(ctx context.Context, orderID uuid.UUID) ([]*model.ScheduleSlot, error) {
	query := `
		UPDATE schedule_slots
		SET status = 'available', order_id = NULL, updated_at = now()
		WHERE order_id = $1
		RETURNING ` + slotColumns

	rows, err := r.Conn(ctx).Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("release slots by order: %w", err)
	}
	return collectSlots(rows, "release slots by order")
}

// Block блокирует слот мастера, если он не забронирован
func (r *SlotRepository) Block(ctx context.Context, slotID, masterID uuid.UUID) (*model.ScheduleSlot, error) {
	query := `
		UPDATE schedule_slots
		SET status = 'blocked', updated_at = now()
		WHERE id = $1 AND master_id = $2 AND status <> 'booked'
		RETURNING ` + slotColumns

	return scanOne(r.Conn(ctx).QueryRow(ctx, query, slotID, masterID), "block slot")
}

// Unblock возвращает слот мастера в свободные, если он не забронирован
func (r *SlotRepository) Unblock(ctx context.Context, slotID, masterID uuid.UUID) (*model.ScheduleSlot, error) {
	query := `
		UPDATE schedule_slots
		SET status = 'available', order_id = NULL, updated_at = now()
		WHERE id = $1 AND master_id = $2 AND status <> 'booked'
		RETURNING ` + slotColumns

	return scanOne(r.Conn(ctx).QueryRow(ctx, query, slotID, masterID), "unblock slot")
}
