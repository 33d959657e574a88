// Package scheduler implements the Task Scheduler (C7): validates and
// materializes Schedule definitions into a Redis-backed recurring store,
// and supports cancel/reschedule/ad-hoc dispatch lifecycle operations.
package scheduler

import "time"

// Type enumerates the recurrence kinds a Schedule can declare.
type Type string

const (
	TypeImmediate           Type = "IMMEDIATE"
	TypeOnce                Type = "ONCE"
	TypeWeeklySpecificDays  Type = "WEEKLY_SPECIFIC_DAYS"
	TypeMonthlySpecificDate Type = "MONTHLY_SPECIFIC_DATES"
	TypePeriodic            Type = "PERIODIC"
)

// Payload is the type-specific recurrence body, per spec.md §3 "Schedule".
// Only the fields relevant to ScheduleType are populated by callers; the
// translator (translate.go) reads the ones it needs and ignores the rest.
type Payload struct {
	// ONCE: "YYYY-MM-DD HH:MM".
	Timestamp string `json:"timestamp,omitempty"`
	// WEEKLY_SPECIFIC_DAYS: three-letter uppercase day names.
	// MONTHLY_SPECIFIC_DATES: day-of-month strings.
	Values []string `json:"values,omitempty"`
	// PERIODIC.
	FrequencyType string `json:"frequency_type,omitempty"`
	Frequency     int    `json:"frequency,omitempty"`
}

// Schedule is a user-defined recurrence bound to a Task.
type Schedule struct {
	ID                  int64          `db:"schedule_id"      json:"schedule_id"`
	UserScheduleName    string         `db:"user_schedule_name" json:"user_schedule_name"`
	RedbeatScheduleName *string        `db:"redbeat_schedule_name" json:"redbeat_schedule_name"`
	TaskName            string         `db:"task_name"        json:"task_name"`
	Args                []any          `json:"args,omitempty"`
	Kwargs              map[string]any `json:"kwargs,omitempty"`
	Parameters          map[string]any `json:"parameters,omitempty"`
	ScheduleType        Type           `db:"schedule_type"    json:"schedule_type"`
	Schedule            Payload        `json:"schedule"`
	CancelledYN         bool           `db:"cancelled_yn"     json:"cancelled_yn"`
	CreatedAt           time.Time      `db:"created_at"       json:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"       json:"updated_at"`
}

// dayAbbrev maps a three-letter uppercase day name onto cron's 0=Sunday
// convention, per spec.md §4.4 WEEKLY_SPECIFIC_DAYS.
var dayAbbrev = map[string]int{
	"SUN": 0, "MON": 1, "TUE": 2, "WED": 3, "THU": 4, "FRI": 5, "SAT": 6,
}
