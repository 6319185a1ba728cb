package config

import (
	"testing"
	"time"

	"github.com/Freeeeeet/master_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/scheduler")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "scheduling.", cfg.KafkaTopicPrefix)
	assert.Equal(t, 5*time.Minute, cfg.NotifierInterval)
	assert.Equal(t, time.Hour, cfg.SlotDuration)
	assert.Equal(t, model.DefaultWorkingHours(), cfg.WorkingHours)
	assert.Zero(t, cfg.AutoGenerateDays)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/scheduler")
	t.Setenv("ENV", "production")
	t.Setenv("NOTIFIER_INTERVAL", "1m")
	t.Setenv("SLOT_DURATION_MINUTES", "30")
	t.Setenv("WORKING_HOURS_START", "10:00")
	t.Setenv("WORKING_HOURS_END", "20:30")
	t.Setenv("AUTO_GENERATE_DAYS", "14")
	t.Setenv("REDIS_DB", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, time.Minute, cfg.NotifierInterval)
	assert.Equal(t, 30*time.Minute, cfg.SlotDuration)
	assert.Equal(t, "10:00", cfg.WorkingHours.Start.String())
	assert.Equal(t, "20:30", cfg.WorkingHours.End.String())
	assert.Equal(t, 14, cfg.AutoGenerateDays)
	assert.Equal(t, 2, cfg.RedisDB)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"missing dsn":       {"DB_DSN": ""},
		"zero duration":     {"SLOT_DURATION_MINUTES": "0"},
		"bad duration":      {"SLOT_DURATION_MINUTES": "hour"},
		"bad interval":      {"NOTIFIER_INTERVAL": "soon"},
		"negative interval": {"NOTIFIER_INTERVAL": "-1m"},
		"inverted hours":    {"WORKING_HOURS_START": "19:00", "WORKING_HOURS_END": "09:00"},
		"bad clock time":    {"WORKING_HOURS_START": "9am"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DB_DSN", "postgres://localhost/scheduler")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
