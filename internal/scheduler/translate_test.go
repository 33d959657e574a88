package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/workflows/internal/scheduler"
)

func TestTranslate_Once(t *testing.T) {
	t.Run("Should pin minute/hour/day/month from the timestamp", func(t *testing.T) {
		entry, err := scheduler.Translate("job_abc", scheduler.TypeOnce, scheduler.Payload{
			Timestamp: "2026-08-15 09:30",
		})
		require.NoError(t, err)
		assert.Equal(t, "30 9 15 8 *", entry.CronSpec)
	})

	t.Run("Should reject a malformed timestamp", func(t *testing.T) {
		_, err := scheduler.Translate("job_abc", scheduler.TypeOnce, scheduler.Payload{Timestamp: "not-a-time"})
		assert.Error(t, err)
	})
}

func TestTranslate_Weekly(t *testing.T) {
	t.Run("Should map recognized day names and drop unrecognized ones", func(t *testing.T) {
		entry, err := scheduler.Translate("job_abc", scheduler.TypeWeeklySpecificDays, scheduler.Payload{
			Values: []string{"MON", "WED", "BOGUS", "FRI"},
		})
		require.NoError(t, err)
		assert.Equal(t, "0 0 * * 1,3,5", entry.CronSpec)
	})

	t.Run("Should fail when every day name is unrecognized", func(t *testing.T) {
		_, err := scheduler.Translate("job_abc", scheduler.TypeWeeklySpecificDays, scheduler.Payload{
			Values: []string{"BOGUS"},
		})
		assert.Error(t, err)
	})
}

func TestTranslate_Monthly(t *testing.T) {
	t.Run("Should run at 00:00 on each listed day-of-month", func(t *testing.T) {
		entry, err := scheduler.Translate("job_abc", scheduler.TypeMonthlySpecificDate, scheduler.Payload{
			Values: []string{"1", "15"},
		})
		require.NoError(t, err)
		assert.Equal(t, "0 0 1,15 * *", entry.CronSpec)
	})
}

func TestTranslate_Periodic(t *testing.T) {
	t.Run("Should translate 15 MINUTES to a 15-minute interval (S7)", func(t *testing.T) {
		entry, err := scheduler.Translate("job_abc", scheduler.TypePeriodic, scheduler.Payload{
			FrequencyType: "minutes", Frequency: 15,
		})
		require.NoError(t, err)
		assert.Equal(t, 15, entry.IntervalMinutes)
	})

	t.Run("Should tolerate trailing plural and parentheses, case-insensitively", func(t *testing.T) {
		entry, err := scheduler.Translate("job_abc", scheduler.TypePeriodic, scheduler.Payload{
			FrequencyType: "(Hours)", Frequency: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, 120, entry.IntervalMinutes)
	})

	t.Run("Should approximate a month as 30 days", func(t *testing.T) {
		entry, err := scheduler.Translate("job_abc", scheduler.TypePeriodic, scheduler.Payload{
			FrequencyType: "MONTHS", Frequency: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, 60*24*30, entry.IntervalMinutes)
	})

	t.Run("Should fail on an unknown frequency type", func(t *testing.T) {
		_, err := scheduler.Translate("job_abc", scheduler.TypePeriodic, scheduler.Payload{
			FrequencyType: "fortnights", Frequency: 1,
		})
		assert.Error(t, err)
	})
}
