//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/ratelimit"
	id "rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/testutil/containers"
)

type RedisWindowStoreSuite struct {
	suite.Suite
	redis   *containers.RedisContainer
	limiter *ratelimit.Limiter
}

func TestRedisWindowStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisWindowStoreSuite))
}

func (s *RedisWindowStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	limiter, err := ratelimit.New(ratelimit.NewRedisWindowStore(s.redis.Client))
	s.Require().NoError(err)
	s.limiter = limiter
}

func (s *RedisWindowStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisWindowStoreSuite) at(offset time.Duration) context.Context {
	base := time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	return requestcontext.WithTime(context.Background(), base.Add(offset))
}

// TestWindowFillsAndDrains walks an identity through the full limiter cycle:
// under the limit, at the limit, then free again once the oldest attempt ages
// out of the window.
func (s *RedisWindowStoreSuite) TestWindowFillsAndDrains() {
	userID := id.NewUserID()

	for i := 0; i < ratelimit.MaxAttempts; i++ {
		limited, err := s.limiter.IsLimited(s.at(time.Duration(i)*time.Second), userID, "attendance")
		s.Require().NoError(err)
		s.False(limited)
		s.Require().NoError(s.limiter.RegisterAttempt(s.at(time.Duration(i)*time.Second), userID, "attendance"))
	}

	limited, err := s.limiter.IsLimited(s.at(3*time.Second), userID, "attendance")
	s.Require().NoError(err)
	s.True(limited)

	retry, err := s.limiter.RetryAfter(s.at(3*time.Second), userID, "attendance")
	s.Require().NoError(err)
	s.Positive(retry)

	// The first attempt at t+0s leaves the 60s window just after t+60s.
	limited, err = s.limiter.IsLimited(s.at(61*time.Second), userID, "attendance")
	s.Require().NoError(err)
	s.False(limited)
}

func (s *RedisWindowStoreSuite) TestIdentitiesAreIndependent() {
	noisy := id.NewUserID()
	quiet := id.NewUserID()

	for i := 0; i < ratelimit.MaxAttempts; i++ {
		s.Require().NoError(s.limiter.RegisterAttempt(s.at(0), noisy, "attendance"))
	}

	limited, err := s.limiter.IsLimited(s.at(time.Second), quiet, "attendance")
	s.Require().NoError(err)
	s.False(limited)

	limited, err = s.limiter.IsLimited(s.at(time.Second), noisy, "attendance")
	s.Require().NoError(err)
	s.True(limited)
}

func (s *RedisWindowStoreSuite) TestActionsAreIndependent() {
	userID := id.NewUserID()

	for i := 0; i < ratelimit.MaxAttempts; i++ {
		s.Require().NoError(s.limiter.RegisterAttempt(s.at(0), userID, "attendance"))
	}

	limited, err := s.limiter.IsLimited(s.at(time.Second), userID, "enrollment")
	s.Require().NoError(err)
	s.False(limited)
}
