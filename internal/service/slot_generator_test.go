package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/Freeeeeet/master_scheduler/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSlots_DefaultHours(t *testing.T) {
	store := memory.NewStore()
	gen := newTestGenerator(store, &fixedClock{now: day})
	masterID := uuid.New()

	created, err := gen.GenerateSlots(context.Background(), GenerateParams{
		MasterID:  masterID,
		StartDate: day,
		EndDate:   day,
	})
	require.NoError(t, err)
	require.Len(t, created, 9)

	all, err := store.ListByMaster(context.Background(), masterID, day, day.AddDate(0, 0, 1), nil)
	require.NoError(t, err)
	require.Len(t, all, 9)

	for i, slot := range all {
		assert.Equal(t, at(9+i, 0), slot.StartTime)
		assert.Equal(t, at(10+i, 0), slot.EndTime)
		assert.Equal(t, model.SlotStatusAvailable, slot.Status)
		assert.Nil(t, slot.OrderID)
	}
}

func TestGenerateSlots_Idempotent(t *testing.T) {
	store := memory.NewStore()
	gen := newTestGenerator(store, &fixedClock{now: day})
	masterID := uuid.New()
	params := GenerateParams{MasterID: masterID, StartDate: day, EndDate: day.AddDate(0, 0, 2)}

	first, err := gen.GenerateSlots(context.Background(), params)
	require.NoError(t, err)
	assert.Len(t, first, 27)

	second, err := gen.GenerateSlots(context.Background(), params)
	require.NoError(t, err)
	assert.Empty(t, second)

	all, err := store.ListByMaster(context.Background(), masterID, day, day.AddDate(0, 0, 3), nil)
	require.NoError(t, err)
	assert.Len(t, all, 27)
}

func TestGenerateSlots_KeepsExistingSlotState(t *testing.T) {
	store := memory.NewStore()
	gen := newTestGenerator(store, &fixedClock{now: day})
	masterID := uuid.New()
	blocked := putSlot(store, masterID, at(12, 0), time.Hour, model.SlotStatusBlocked)

	created, err := gen.GenerateSlots(context.Background(), GenerateParams{MasterID: masterID, StartDate: day, EndDate: day})
	require.NoError(t, err)
	assert.Len(t, created, 8)
	assert.Equal(t, model.SlotStatusBlocked, store.Slot(blocked.ID).Status)
}

func TestGenerateSlots_EndBeforeStart(t *testing.T) {
	store := memory.NewStore()
	gen := newTestGenerator(store, &fixedClock{now: day})

	created, err := gen.GenerateSlots(context.Background(), GenerateParams{
		MasterID:  uuid.New(),
		StartDate: day,
		EndDate:   day.AddDate(0, 0, -1),
	})
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestGenerateSlots_DropsTrailingPartialSlot(t *testing.T) {
	store := memory.NewStore()
	gen := newTestGenerator(store, &fixedClock{now: day})

	created, err := gen.GenerateSlots(context.Background(), GenerateParams{
		MasterID:     uuid.New(),
		StartDate:    day,
		EndDate:      day,
		SlotDuration: 50 * time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, created, 10)

	for _, slot := range created {
		assert.False(t, slot.EndTime.After(at(18, 0)), "slot %s ends after working hours", slot.StartTime)
	}
}

func TestGenerateSlots_CustomHours(t *testing.T) {
	store := memory.NewStore()
	gen := newTestGenerator(store, &fixedClock{now: day})
	hours := model.WorkingHours{Start: 10 * 60, End: 12 * 60}

	created, err := gen.GenerateSlots(context.Background(), GenerateParams{
		MasterID:     uuid.New(),
		StartDate:    day,
		EndDate:      day,
		SlotDuration: 30 * time.Minute,
		WorkingHours: &hours,
	})
	require.NoError(t, err)
	assert.Len(t, created, 4)
}

func TestGenerateSlots_InvalidParams(t *testing.T) {
	store := memory.NewStore()
	gen := newTestGenerator(store, &fixedClock{now: day})
	inverted := model.WorkingHours{Start: 18 * 60, End: 9 * 60}

	_, err := gen.GenerateSlots(context.Background(), GenerateParams{
		MasterID:     uuid.New(),
		StartDate:    day,
		EndDate:      day,
		WorkingHours: &inverted,
	})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)

	_, err = gen.GenerateSlots(context.Background(), GenerateParams{
		MasterID:     uuid.New(),
		StartDate:    day,
		EndDate:      day,
		SlotDuration: -time.Minute,
	})
	assert.ErrorIs(t, err, ErrInvalidTimeRange)
}

func TestGenerateForAllMasters(t *testing.T) {
	store := memory.NewStore()
	gen := newTestGenerator(store, &fixedClock{now: at(7, 30)})

	master := model.User{ID: uuid.New(), FirstName: "Иван", IsMaster: true, CreatedAt: day}
	client := model.User{ID: uuid.New(), FirstName: "Пётр", CreatedAt: day}
	store.PutUser(master)
	store.PutUser(client)

	require.NoError(t, gen.GenerateForAllMasters(context.Background(), 2))

	slots, err := store.ListByMaster(context.Background(), master.ID, day, day.AddDate(0, 0, 7), nil)
	require.NoError(t, err)
	assert.Len(t, slots, 18)

	clientSlots, err := store.ListByMaster(context.Background(), client.ID, day, day.AddDate(0, 0, 7), nil)
	require.NoError(t, err)
	assert.Empty(t, clientSlots)
}
