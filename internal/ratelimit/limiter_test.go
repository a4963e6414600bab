package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/ratelimit"
	id "rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
)

type LimiterSuite struct {
	suite.Suite
	limiter *ratelimit.Limiter
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	limiter, err := ratelimit.New(ratelimit.NewInMemoryWindowStore())
	s.Require().NoError(err)
	s.limiter = limiter
}

func at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *LimiterSuite) TestCheckDoesNotRecord() {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := id.NewUserID()

	// any number of pure checks never trips the limit
	for range 10 {
		limited, err := s.limiter.IsLimited(at(base), userID, "attendance")
		s.Require().NoError(err)
		s.False(limited)
	}
}

func (s *LimiterSuite) TestLimitAfterMaxAttempts() {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := id.NewUserID()

	for i := range ratelimit.MaxAttempts {
		limited, err := s.limiter.IsLimited(at(base), userID, "attendance")
		s.Require().NoError(err)
		s.False(limited, "attempt %d should not be limited yet", i)
		s.Require().NoError(s.limiter.RegisterAttempt(at(base.Add(time.Duration(i)*time.Second)), userID, "attendance"))
	}

	limited, err := s.limiter.IsLimited(at(base.Add(3*time.Second)), userID, "attendance")
	s.Require().NoError(err)
	s.True(limited)

	s.Run("other identities are unaffected", func() {
		limited, err := s.limiter.IsLimited(at(base.Add(3*time.Second)), id.NewUserID(), "attendance")
		s.Require().NoError(err)
		s.False(limited)
	})

	s.Run("other actions are unaffected", func() {
		limited, err := s.limiter.IsLimited(at(base.Add(3*time.Second)), userID, "registration")
		s.Require().NoError(err)
		s.False(limited)
	})
}

func (s *LimiterSuite) TestWindowSlides() {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := id.NewUserID()

	for i := range ratelimit.MaxAttempts {
		s.Require().NoError(s.limiter.RegisterAttempt(at(base.Add(time.Duration(i)*time.Second)), userID, "attendance"))
	}

	limited, err := s.limiter.IsLimited(at(base.Add(30*time.Second)), userID, "attendance")
	s.Require().NoError(err)
	s.True(limited)

	// 61 seconds after the first attempt, it has left the window
	limited, err = s.limiter.IsLimited(at(base.Add(61*time.Second)), userID, "attendance")
	s.Require().NoError(err)
	s.False(limited)
}

func (s *LimiterSuite) TestRetryAfter() {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := id.NewUserID()

	s.Run("zero when no attempts recorded", func() {
		retry, err := s.limiter.RetryAfter(at(base), userID, "attendance")
		s.Require().NoError(err)
		s.Zero(retry)
	})

	s.Run("derived from the oldest surviving attempt", func() {
		for i := range ratelimit.MaxAttempts {
			s.Require().NoError(s.limiter.RegisterAttempt(at(base.Add(time.Duration(i)*time.Second)), userID, "attendance"))
		}

		retry, err := s.limiter.RetryAfter(at(base.Add(10*time.Second)), userID, "attendance")
		s.Require().NoError(err)
		// oldest at base leaves the window at base+60s
		s.Equal(50, retry)
	})
}
