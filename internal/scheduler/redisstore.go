package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/compozy/workflows/internal/apperrors"
)

// redisKeyPrefix namespaces every recurring entry this service owns inside
// a shared Redis instance, the way redbeat namespaces its own keys.
const redisKeyPrefix = "workflows:redbeat:"

// cronParser validates CronSpec entries with the standard 5-field syntax
// (minute hour dom month dow), matching spec.md §4.4's crontab-style
// materialization.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// RecurringStore is the external recurring scheduler the Task Scheduler
// materializes entries into (the "Recurring Scheduler Store" of the
// glossary). Entries are created, replaced, deleted and read by name, and
// listed as a whole. Revoking an ad-hoc dispatch is not part of this
// interface: Scheduler.CancelAdHoc calls Revoke(ctx, taskID) only on stores
// that also have that method.
type RecurringStore interface {
	// Put creates or replaces the entry for e.Name.
	Put(ctx context.Context, e *Entry) error
	// Delete removes the entry by name. Deleting a missing name is not an
	// error (idempotent, per redbeat's own semantics).
	Delete(ctx context.Context, name string) error
	// Get returns the stored entry, or ok=false if absent.
	Get(ctx context.Context, name string) (*Entry, bool, error)
	// List returns every live entry, the set Runner materializes into its
	// in-memory cron.Cron on each poll.
	List(ctx context.Context) ([]*Entry, error)
}

// RedisRecurringStore implements RecurringStore against Redis, the way
// redbeat persists its schedule entries: one string key per entry,
// "workflows:redbeat:<redbeat_schedule_name>", holding the JSON-encoded Entry.
type RedisRecurringStore struct {
	client *redis.Client
}

// NewRedisRecurringStore builds a RedisRecurringStore.
func NewRedisRecurringStore(client *redis.Client) *RedisRecurringStore {
	return &RedisRecurringStore{client: client}
}

// Put validates CronSpec (when present) and writes the entry as a JSON
// blob under its namespaced key.
func (s *RedisRecurringStore) Put(ctx context.Context, e *Entry) error {
	if e.CronSpec != "" {
		if _, err := cronParser.Parse(e.CronSpec); err != nil {
			return apperrors.Validation(fmt.Sprintf("invalid cron spec %q", e.CronSpec), err)
		}
	}
	data, err := json.Marshal(e)
	if err != nil {
		return apperrors.SchedulerStore("marshaling recurring entry", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+e.Name, data, 0).Err(); err != nil {
		return apperrors.SchedulerStore(fmt.Sprintf("writing recurring entry %q", e.Name), err)
	}
	return nil
}

// Delete removes the entry; a missing key is not an error.
func (s *RedisRecurringStore) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+name).Err(); err != nil {
		return apperrors.SchedulerStore(fmt.Sprintf("deleting recurring entry %q", name), err)
	}
	return nil
}

// Get loads the entry by name.
func (s *RedisRecurringStore) Get(ctx context.Context, name string) (*Entry, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+name).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, apperrors.SchedulerStore(fmt.Sprintf("reading recurring entry %q", name), err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, apperrors.SchedulerStore(fmt.Sprintf("unmarshaling recurring entry %q", name), err)
	}
	return &e, true, nil
}

// List scans every namespaced key, skipping the "revoked:" ad-hoc markers,
// and decodes each stored entry. Used by Runner to rebuild its in-memory
// cron.Cron on each poll.
func (s *RedisRecurringStore) List(ctx context.Context) ([]*Entry, error) {
	var entries []*Entry
	var cursor uint64
	revokedPrefix := redisKeyPrefix + "revoked:"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, apperrors.SchedulerStore("scanning recurring entries", err)
		}
		for _, key := range keys {
			if strings.HasPrefix(key, revokedPrefix) {
				continue
			}
			raw, err := s.client.Get(ctx, key).Bytes()
			if err != nil {
				if err == redis.Nil {
					continue
				}
				return nil, apperrors.SchedulerStore(fmt.Sprintf("reading recurring entry %q", key), err)
			}
			var e Entry
			if err := json.Unmarshal(raw, &e); err != nil {
				return nil, apperrors.SchedulerStore(fmt.Sprintf("unmarshaling recurring entry %q", key), err)
			}
			entries = append(entries, &e)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return entries, nil
}

// Revoke records a revocation marker for an ad-hoc dispatch under
// "workflows:redbeat:revoked:<taskID>". It does not stop a dispatch that is
// already running; List skips these markers and nothing else reads them.
func (s *RedisRecurringStore) Revoke(ctx context.Context, taskID string) error {
	key := redisKeyPrefix + "revoked:" + taskID
	if err := s.client.Set(ctx, key, "1", 0).Err(); err != nil {
		return apperrors.SchedulerStore(fmt.Sprintf("revoking ad-hoc task %q", taskID), err)
	}
	return nil
}
