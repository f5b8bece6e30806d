package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"couplecare-crisis/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// releaseLeaseScript deletes the lease only while it is still held by the caller
var releaseLeaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// StateManager sweep coordination state kept in Redis: the run lease and the last summary
type StateManager struct {
	redisClient *redis.Client
	keyPrefix   string
	leaseTTL    time.Duration
	summaryTTL  time.Duration
	logger      *zap.Logger
}

// NewStateManager creates a state manager
func NewStateManager(redisClient *redis.Client, keyPrefix string, leaseTTL, summaryTTL time.Duration, logger *zap.Logger) *StateManager {
	return &StateManager{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		leaseTTL:    leaseTTL,
		summaryTTL:  summaryTTL,
		logger:      logger,
	}
}

// LeaseKey key holding the sweep lease
func (s *StateManager) LeaseKey() string {
	return s.keyPrefix + "lease"
}

// SummaryKey key holding the last summary
func (s *StateManager) SummaryKey() string {
	return s.keyPrefix + "last_summary"
}

// AcquireLease takes the sweep lease for holder; false when another holder owns it
func (s *StateManager) AcquireLease(ctx context.Context, holder string) (bool, error) {
	ok, err := s.redisClient.SetNX(ctx, s.LeaseKey(), holder, s.leaseTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweep lease: %w", err)
	}
	return ok, nil
}

// ReleaseLease drops the lease if holder still owns it
func (s *StateManager) ReleaseLease(ctx context.Context, holder string) error {
	if err := releaseLeaseScript.Run(ctx, s.redisClient, []string{s.LeaseKey()}, holder).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release sweep lease: %w", err)
	}
	return nil
}

// LeaseHolder current lease holder, empty when free
func (s *StateManager) LeaseHolder(ctx context.Context) (string, error) {
	holder, err := s.redisClient.Get(ctx, s.LeaseKey()).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to read sweep lease: %w", err)
	}
	return holder, nil
}

// SaveSummary stores the summary with the configured TTL
func (s *StateManager) SaveSummary(ctx context.Context, summary *models.SweepSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal sweep summary: %w", err)
	}
	if err := s.redisClient.Set(ctx, s.SummaryKey(), data, s.summaryTTL).Err(); err != nil {
		return fmt.Errorf("failed to save sweep summary: %w", err)
	}
	return nil
}

// LastSummary most recent stored summary, nil when none
func (s *StateManager) LastSummary(ctx context.Context) (*models.SweepSummary, error) {
	val, err := s.redisClient.Get(ctx, s.SummaryKey()).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sweep summary: %w", err)
	}

	var summary models.SweepSummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sweep summary: %w", err)
	}
	return &summary, nil
}
