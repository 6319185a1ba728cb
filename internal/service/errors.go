package service

import "errors"

var (
	// ErrSlotNotFound слот с таким ключом не найден (или принадлежит другому мастеру)
	ErrSlotNotFound = errors.New("slot not found")
	// ErrSlotConflict переход статуса слота запрещён из текущего состояния
	ErrSlotConflict = errors.New("slot conflict")
	// ErrInvalidTimeRange запрошенный интервал не помещается в слот или end <= start
	ErrInvalidTimeRange = errors.New("invalid time range")
	// ErrOrderNotFound заказ не найден
	ErrOrderNotFound = errors.New("order not found")
)
