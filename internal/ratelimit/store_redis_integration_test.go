//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"signals/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	store *Redis
	rd    *containers.RedisContainer
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.rd = containers.GetManager().GetRedis(s.T())
	s.store = NewRedis(s.rd.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.rd.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSlidingWindow() {
	ctx := context.Background()
	start := time.Now()
	now := start
	s.store.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		res, err := s.store.Allow(ctx, "sub:citycontrol", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
		now = now.Add(time.Second)
	}

	res, err := s.store.Allow(ctx, "sub:citycontrol", 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.Equal(0, res.Remaining)
	s.WithinDuration(start.Add(time.Minute), res.ResetAt, time.Millisecond)

	now = start.Add(time.Minute + 10*time.Millisecond)
	res, err = s.store.Allow(ctx, "sub:citycontrol", 3, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)
}

func (s *RedisStoreSuite) TestKeysAreIndependent() {
	ctx := context.Background()

	res, err := s.store.Allow(ctx, "ip:10.0.0.1", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)

	res, err = s.store.Allow(ctx, "ip:10.0.0.2", 1, time.Minute)
	s.Require().NoError(err)
	s.True(res.Allowed)

	res, err = s.store.Allow(ctx, "ip:10.0.0.1", 1, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
}
