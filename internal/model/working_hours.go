package model

import (
	"fmt"
	"time"
)

// ClockTime время суток в минутах от полуночи
type ClockTime int

// ParseClockTime разбирает строку вида "09:00"
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On возвращает момент времени c в день date
func (c ClockTime) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(c)/60, int(c)%60, 0, 0, date.Location())
}

type WorkingHours struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

func DefaultWorkingHours() WorkingHours {
	return WorkingHours{Start: 9 * 60, End: 18 * 60}
}

func (w WorkingHours) Validate() error {
	if w.Start < 0 || w.End > 24*60 {
		return fmt.Errorf("working hours out of day bounds")
	}
	if w.End <= w.Start {
		return fmt.Errorf("working hours end %s must be after start %s", w.End, w.Start)
	}
	return nil
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(b []byte) error {
	v, err := ParseClockTime(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
