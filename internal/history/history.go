// Package history publishes per-action game records to a Redis queue
// for an out-of-process historian to drain.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tontyoutoure/xianqi/engine"
)

const actionQueueKey = "xianqi:game_actions"

// ActionRecord is one published game action.
type ActionRecord struct {
	GameID     string            `json:"game_id"`
	RoomID     int               `json:"room_id"`
	Version    int               `json:"version"`
	Seat       engine.Seat       `json:"seat"`
	ActionIdx  int               `json:"action_idx"`
	ActionType engine.ActionType `json:"action_type"`
	CoverList  engine.CardCounts `json:"cover_list,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// Publisher pushes action records onto the Redis queue. A nil Publisher
// is valid and drops everything, so callers never branch on history
// being configured.
type Publisher struct {
	rdb *redis.Client
	log *logrus.Logger
}

// New connects a publisher to the Redis instance at addr.
func New(addr string, log *logrus.Logger) *Publisher {
	return &Publisher{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		log: log,
	}
}

// Publish enqueues one record asynchronously. Failures are logged and
// dropped: history must never affect game outcomes.
func (p *Publisher) Publish(record ActionRecord) {
	if p == nil {
		return
	}
	record.Timestamp = time.Now().UnixMilli()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.publish(ctx, record); err != nil {
			p.log.WithError(err).WithFields(logrus.Fields{
				"game_id": record.GameID,
				"version": record.Version,
			}).Warn("failed to publish action record")
		}
	}()
}

func (p *Publisher) publish(ctx context.Context, record ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode action record: %w", err)
	}
	if err := p.rdb.LPush(ctx, actionQueueKey, data).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", actionQueueKey, err)
	}
	return nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	return p.rdb.Close()
}
