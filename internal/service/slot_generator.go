package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/metrics"
	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSlotDuration длительность слота по умолчанию
const DefaultSlotDuration = 60 * time.Minute

// GenerateParams параметры генерации слотов. Нулевые SlotDuration и
// WorkingHours заменяются значениями генератора по умолчанию.
type GenerateParams struct {
	MasterID     uuid.UUID
	StartDate    time.Time
	EndDate      time.Time
	SlotDuration time.Duration
	WorkingHours *model.WorkingHours
}

type SlotGenerator struct {
	slots        SlotStore
	users        UserStore
	tx           Transactor
	clock        Clock
	duration     time.Duration
	workingHours model.WorkingHours
	logger       *zap.Logger
}

func NewSlotGenerator(
	slots SlotStore,
	users UserStore,
	tx Transactor,
	clock Clock,
	duration time.Duration,
	workingHours model.WorkingHours,
	logger *zap.Logger,
) *SlotGenerator {
	if duration <= 0 {
		duration = DefaultSlotDuration
	}
	return &SlotGenerator{
		slots:        slots,
		users:        users,
		tx:           tx,
		clock:        clock,
		duration:     duration,
		workingHours: workingHours,
		logger:       logger,
	}
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// GenerateSlots создаёт свободные слоты мастера на каждый день из
// [StartDate, EndDate] в рамках рабочих часов. Уже существующие слоты
// пропускаются, хвост короче длительности слота не создаётся.
// Возвращает только созданные слоты.
func (g *SlotGenerator) GenerateSlots(ctx context.Context, p GenerateParams) ([]*model.ScheduleSlot, error) {
	duration := p.SlotDuration
	if duration == 0 {
		duration = g.duration
	}
	if duration < 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive", ErrInvalidTimeRange)
	}

	hours := g.workingHours
	if p.WorkingHours != nil {
		hours = *p.WorkingHours
	}
	if err := hours.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
	}

	firstDay := dateOf(p.StartDate)
	lastDay := dateOf(p.EndDate.In(p.StartDate.Location()))
	if lastDay.Before(firstDay) {
		return nil, nil
	}

	existing, err := g.slots.ListByMaster(ctx, p.MasterID, firstDay, lastDay.AddDate(0, 0, 1), nil)
	if err != nil {
		return nil, fmt.Errorf("list existing slots: %w", err)
	}

	taken := make(map[int64]struct{}, len(existing))
	for _, slot := range existing {
		taken[slot.StartTime.UnixNano()] = struct{}{}
	}

	var candidates []*model.ScheduleSlot
	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		windowStart := hours.Start.On(day)
		windowEnd := hours.End.On(day)

		for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(duration) {
			if _, ok := taken[start.UnixNano()]; ok {
				continue
			}
			candidates = append(candidates, &model.ScheduleSlot{
				ID:        uuid.New(),
				MasterID:  p.MasterID,
				StartTime: start,
				EndTime:   start.Add(duration),
				Status:    model.SlotStatusAvailable,
			})
		}
	}

	if len(candidates) == 0 {
		g.logger.Debug("No new slots to generate",
			zap.String("master_id", p.MasterID.String()),
			zap.Time("start_date", firstDay),
			zap.Time("end_date", lastDay),
		)
		return nil, nil
	}

	var created []*model.ScheduleSlot
	err = g.tx.WithinTx(ctx, func(ctx context.Context) error {
		created, err = g.slots.CreateBatch(ctx, candidates)
		return err
	})
	if err != nil {
		g.logger.Error("Failed to persist generated slots",
			zap.String("master_id", p.MasterID.String()),
			zap.Int("candidates", len(candidates)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create slots: %w", err)
	}

	metrics.SlotsGenerated.Add(float64(len(created)))

	g.logger.Info("Slots generated",
		zap.String("master_id", p.MasterID.String()),
		zap.Time("start_date", firstDay),
		zap.Time("end_date", lastDay),
		zap.Duration("slot_duration", duration),
		zap.Stringer("hours_start", hours.Start),
		zap.Stringer("hours_end", hours.End),
		zap.Int("created", len(created)),
		zap.Int("skipped_concurrent", len(candidates)-len(created)),
	)

	return created, nil
}

// GenerateForAllMasters генерирует слоты всем мастерам на daysAhead дней
// начиная с сегодняшнего. Вызывается периодически фоновым планировщиком.
func (g *SlotGenerator) GenerateForAllMasters(ctx context.Context, daysAhead int) error {
	masters, err := g.users.ListMasters(ctx)
	if err != nil {
		return fmt.Errorf("list masters: %w", err)
	}

	today := dateOf(g.clock.Now())
	until := today.AddDate(0, 0, daysAhead-1)

	total := 0
	for _, master := range masters {
		created, err := g.GenerateSlots(ctx, GenerateParams{
			MasterID:  master.ID,
			StartDate: today,
			EndDate:   until,
		})
		if err != nil {
			g.logger.Error("Failed to generate slots for master",
				zap.String("master_id", master.ID.String()),
				zap.Error(err),
			)
			continue
		}
		total += len(created)
	}

	g.logger.Info("Generated slots for all masters",
		zap.Int("total_masters", len(masters)),
		zap.Int("total_slots_created", total),
	)

	return nil
}
