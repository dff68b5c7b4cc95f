package retirement

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Notice is the payload delivered to each historical custodian.
type Notice struct {
	DeclarationID string    `json:"declaration_id"`
	ResourceID    string    `json:"resource_id"`
	Custodian     string    `json:"custodian"`
	SentAt        time.Time `json:"sent_at"`
}

// MemoryNotifier collects notices in process. Tests and single-node
// deployments use it directly.
type MemoryNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (m *MemoryNotifier) NotifyCustodians(_ context.Context, declarationID, resourceID string, custodians []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for _, custodian := range custodians {
		m.notices = append(m.notices, Notice{
			DeclarationID: declarationID,
			ResourceID:    resourceID,
			Custodian:     custodian,
			SentAt:        now,
		})
	}
	return nil
}

// Notices returns a copy of everything sent so far.
func (m *MemoryNotifier) Notices() []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notice, len(m.notices))
	copy(out, m.notices)
	return out
}

// RedisNotifier publishes each notice to a per-custodian channel. Delivery
// fan-out to actual transports (mail, push) subscribes on the other side.
type RedisNotifier struct {
	client  *redis.Client
	channel string // channel prefix; the custodian ID is appended
}

func NewRedisNotifier(client *redis.Client, channelPrefix string) *RedisNotifier {
	if channelPrefix == "" {
		channelPrefix = "retirement.notices"
	}
	return &RedisNotifier{client: client, channel: channelPrefix}
}

func (r *RedisNotifier) NotifyCustodians(ctx context.Context, declarationID, resourceID string, custodians []string) error {
	now := time.Now()
	for _, custodian := range custodians {
		payload, err := json.Marshal(Notice{
			DeclarationID: declarationID,
			ResourceID:    resourceID,
			Custodian:     custodian,
			SentAt:        now,
		})
		if err != nil {
			return fmt.Errorf("cannot encode notice: %w", err)
		}
		channel := r.channel + ":" + custodian
		if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
			return fmt.Errorf("notice to %s not published: %w", custodian, err)
		}
	}
	return nil
}
