package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const (
	participantSequenceKey = "referral:participant_id"
	participantSequence    = "participant_id_seq"

	// participantSequenceLock is the advisory lock key guarding the sequence.
	participantSequenceLock int64 = 0x72656662
)

// nextIDScript raises the counter to the sheet floor when it lags behind and
// then increments it, in one atomic step.
var nextIDScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if current < floor then
	redis.call('SET', KEYS[1], ARGV[1])
end
return redis.call('INCR', KEYS[1])
`)

// RedisSequence hands out participant ids from a Redis counter shared by every
// bot instance.
type RedisSequence struct {
	client *redis.Client
	key    string
}

// NewRedisSequence constructs a RedisSequence.
func NewRedisSequence(client *redis.Client) *RedisSequence {
	return &RedisSequence{client: client, key: participantSequenceKey}
}

// Next returns an id strictly greater than floor and than any id issued before.
func (s *RedisSequence) Next(ctx context.Context, floor int) (int, error) {
	id, err := nextIDScript.Run(ctx, s.client, []string{s.key}, floor).Int()
	if err != nil {
		return 0, fmt.Errorf("redis next participant id: %w", err)
	}
	return id, nil
}

// PostgresSequence hands out participant ids from a PostgreSQL sequence.
type PostgresSequence struct {
	db *sqlx.DB
}

// NewPostgresSequence constructs a PostgresSequence.
func NewPostgresSequence(db *sqlx.DB) *PostgresSequence {
	return &PostgresSequence{db: db}
}

// EnsureSchema creates the sequence when missing.
func (s *PostgresSequence) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE SEQUENCE IF NOT EXISTS "+participantSequence+" START 1"); err != nil {
		return fmt.Errorf("create participant sequence: %w", err)
	}
	return nil
}

// Next raises the sequence to floor when it lags behind and returns nextval.
// The raise and the nextval run under a transaction-scoped advisory lock so
// that two allocators seeded with the same floor never both pass the check.
func (s *PostgresSequence) Next(ctx context.Context, floor int) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin participant id transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", participantSequenceLock); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("lock participant sequence: %w", err)
	}

	if floor > 0 {
		query := "SELECT setval($1, $2, true) FROM " + participantSequence +
			" WHERE last_value < $2 OR (NOT is_called AND last_value <= $2)"
		if _, err := tx.ExecContext(ctx, query, participantSequence, floor); err != nil {
			tx.Rollback() //nolint:errcheck
			return 0, fmt.Errorf("raise participant sequence: %w", err)
		}
	}

	var id int
	if err := tx.GetContext(ctx, &id, "SELECT nextval($1)", participantSequence); err != nil {
		tx.Rollback() //nolint:errcheck
		return 0, fmt.Errorf("next participant id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit participant id: %w", err)
	}
	return id, nil
}
