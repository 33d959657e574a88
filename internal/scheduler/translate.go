package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/compozy/workflows/internal/apperrors"
)

// Entry is the recurring-store-agnostic materialization of a Schedule's
// recurrence: either a cron-like fixed time (ScheduleType ONCE/WEEKLY/
// MONTHLY) or a fixed interval (PERIODIC). Exactly one of CronSpec or
// IntervalMinutes is meaningful, selected by Kind. It also carries
// everything Runner needs to fire the dispatch when the Recurring Scheduler
// Store's entry comes due, since the store has no notion of tasks or
// parameters of its own — only a name and a recurrence.
type Entry struct {
	Name            string
	Kind            Type
	CronSpec        string // standard 5-field minute hour dom month dow, robfig/cron syntax
	IntervalMinutes int

	TaskName         string
	UserScheduleName string
	SchedulePayload  Payload
	Parameters       map[string]any
}

// minutesPerUnit approximates calendar units as flat minute counts, per
// spec.md §4.4 PERIODIC ("month ≈ 30 days").
var minutesPerUnit = map[string]int{
	"MINUTE": 1,
	"HOUR":   60,
	"DAY":    60 * 24,
	"WEEK":   60 * 24 * 7,
	"MONTH":  60 * 24 * 30,
}

// Translate materializes a Schedule's type-specific payload into a
// recurring-store Entry, per spec.md §4.4 "Schedule translation". name is
// the already-synthesized redbeat_schedule_name; IMMEDIATE schedules never
// reach here (they skip the recurring store entirely).
func Translate(name string, scheduleType Type, payload Payload) (*Entry, error) {
	switch scheduleType {
	case TypeOnce:
		return translateOnce(name, payload)
	case TypeWeeklySpecificDays:
		return translateWeekly(name, payload)
	case TypeMonthlySpecificDate:
		return translateMonthly(name, payload)
	case TypePeriodic:
		return translatePeriodic(name, payload)
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unsupported schedule_type %q", scheduleType), nil)
	}
}

// translateOnce accepts "YYYY-MM-DD HH:MM" and pins a cron entry to that
// exact minute/hour/day/month.
func translateOnce(name string, payload Payload) (*Entry, error) {
	ts, err := time.Parse("2006-01-02 15:04", payload.Timestamp)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("invalid ONCE timestamp %q", payload.Timestamp), err)
	}
	spec := fmt.Sprintf("%d %d %d %d *", ts.Minute(), ts.Hour(), ts.Day(), int(ts.Month()))
	return &Entry{Name: name, Kind: TypeOnce, CronSpec: spec}, nil
}

// translateWeekly runs at 00:00 on every listed day; unrecognized day names
// are dropped rather than rejected.
func translateWeekly(name string, payload Payload) (*Entry, error) {
	var days []string
	for _, raw := range payload.Values {
		d, ok := dayAbbrev[strings.ToUpper(strings.TrimSpace(raw))]
		if !ok {
			continue
		}
		days = append(days, strconv.Itoa(d))
	}
	if len(days) == 0 {
		return nil, apperrors.Validation("WEEKLY_SPECIFIC_DAYS requires at least one recognized day", nil)
	}
	spec := fmt.Sprintf("0 0 * * %s", strings.Join(days, ","))
	return &Entry{Name: name, Kind: TypeWeeklySpecificDays, CronSpec: spec}, nil
}

// translateMonthly runs at 00:00 on every listed day-of-month.
func translateMonthly(name string, payload Payload) (*Entry, error) {
	var dates []string
	for _, raw := range payload.Values {
		d, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || d < 1 || d > 31 {
			continue
		}
		dates = append(dates, strconv.Itoa(d))
	}
	if len(dates) == 0 {
		return nil, apperrors.Validation("MONTHLY_SPECIFIC_DATES requires at least one valid day-of-month", nil)
	}
	spec := fmt.Sprintf("0 0 %s * *", strings.Join(dates, ","))
	return &Entry{Name: name, Kind: TypeMonthlySpecificDate, CronSpec: spec}, nil
}

// translatePeriodic parses FREQUENCY_TYPE (trailing "s" and parentheses
// tolerated, case-insensitive) and FREQUENCY into a flat interval in
// minutes.
func translatePeriodic(name string, payload Payload) (*Entry, error) {
	if payload.Frequency <= 0 {
		return nil, apperrors.Validation("PERIODIC requires a positive frequency", nil)
	}
	unit := normalizeFrequencyType(payload.FrequencyType)
	perUnit, ok := minutesPerUnit[unit]
	if !ok {
		return nil, apperrors.Validation(fmt.Sprintf("unsupported frequency_type %q", payload.FrequencyType), nil)
	}
	return &Entry{Name: name, Kind: TypePeriodic, IntervalMinutes: perUnit * payload.Frequency}, nil
}

// normalizeFrequencyType upper-cases, strips surrounding parentheses, and
// trims a trailing plural "s" from a PERIODIC frequency_type, so "Minutes",
// "(MINUTES)", and "minute" all resolve to "MINUTE".
func normalizeFrequencyType(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	s = strings.TrimSuffix(s, "S")
	return s
}
