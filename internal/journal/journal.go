// internal/journal/journal.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for the move journal.
var DefaultQueueName = "gridlife_moves"

// MoveRecord is one applied claim, in the order it mutated the board. A
// consumer can reconstruct the whole match from these records since the
// window resolution is deterministic.
type MoveRecord struct {
	MatchID   uuid.UUID `json:"match_id"`
	Version   int       `json:"version"`
	Seat      string    `json:"seat"`
	Cell      int       `json:"cell"`
	Window    int       `json:"window,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// ResultRecord marks a match's terminal transition.
type ResultRecord struct {
	MatchID   uuid.UUID `json:"match_id"`
	Version   int       `json:"version"`
	Winner    string    `json:"winner"`
	Line      []int     `json:"line,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// Publisher pushes journal records onto a Redis list for an out-of-process
// consumer. All publishing is fire-and-forget: coordination never blocks on
// the journal, and a nil Publisher silently drops records.
type Publisher struct {
	rdb   *redis.Client
	queue string
}

// Connect initializes a Publisher from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//   - JOURNAL_QUEUE_NAME (default DefaultQueueName)
func Connect() (*Publisher, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Publisher{rdb: rdb, queue: getEnv("JOURNAL_QUEUE_NAME", DefaultQueueName)}, nil
}

// PublishMove enqueues an applied-move record asynchronously.
func (p *Publisher) PublishMove(rec MoveRecord) {
	p.push("move", rec)
}

// PublishResult enqueues a terminal-result record asynchronously.
func (p *Publisher) PublishResult(rec ResultRecord) {
	p.push("result", rec)
}

func (p *Publisher) push(kind string, rec interface{}) {
	if p == nil || p.rdb == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("journal: failed to marshal %s record: %v", kind, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
			log.Printf("journal: failed to RPush %s record: %v", kind, err)
		}
	}()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
