package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

// ChallengeStore implements service.ChallengeStore with expiring keys, so a
// login started on one instance can finish on another.
type ChallengeStore struct {
	rdb *redis.Client
}

// NewChallengeStore creates a ChallengeStore backed by the given Client.
func NewChallengeStore(c *Client) *ChallengeStore {
	return &ChallengeStore{rdb: c.rdb}
}

func challengeKey(addr common.Address) string {
	return "auth:challenge:" + addr.Hex()
}

// Put implements service.ChallengeStore.
func (s *ChallengeStore) Put(ctx context.Context, addr common.Address, message string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, challengeKey(addr), message, ttl).Err(); err != nil {
		return fmt.Errorf("redis: put challenge: %w", err)
	}
	return nil
}

// Take implements service.ChallengeStore.
func (s *ChallengeStore) Take(ctx context.Context, addr common.Address) (string, error) {
	msg, err := s.rdb.GetDel(ctx, challengeKey(addr)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrChallengeExpired
	}
	if err != nil {
		return "", fmt.Errorf("redis: take challenge: %w", err)
	}
	return msg, nil
}

var _ service.ChallengeStore = (*ChallengeStore)(nil)
