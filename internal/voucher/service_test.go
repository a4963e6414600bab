package voucher_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/voucher"
	"rollcall/internal/voucher/store"
	id "rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/sentinel"
)

type ServiceSuite struct {
	suite.Suite
	service *voucher.Service
	store   *store.InMemoryStore
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	svc, err := voucher.New(s.store)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TestIssueAndRedeem() {
	issued := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), issued)
	userID := id.NewUserID()
	sessionID := id.NewSessionID()

	s.Run("issue returns an opaque token", func() {
		token, err := s.service.Issue(ctx, userID, sessionID)
		s.Require().NoError(err)
		s.NotEmpty(token)
		// 32 random bytes, raw URL-safe base64
		s.Len(token, 43)
	})

	s.Run("redeem with correct bindings succeeds once", func() {
		token, err := s.service.Issue(ctx, userID, sessionID)
		s.Require().NoError(err)

		s.NoError(s.service.Redeem(ctx, token, userID, sessionID))
		s.ErrorIs(s.service.Redeem(ctx, token, userID, sessionID), sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown token reports not found", func() {
		err := s.service.Redeem(ctx, "no-such-token", userID, sessionID)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("wrong identity reports mismatch without consuming", func() {
		token, err := s.service.Issue(ctx, userID, sessionID)
		s.Require().NoError(err)

		s.ErrorIs(s.service.Redeem(ctx, token, id.NewUserID(), sessionID), sentinel.ErrMismatch)
		// the rightful owner can still redeem
		s.NoError(s.service.Redeem(ctx, token, userID, sessionID))
	})

	s.Run("wrong session reports mismatch", func() {
		token, err := s.service.Issue(ctx, userID, sessionID)
		s.Require().NoError(err)

		s.ErrorIs(s.service.Redeem(ctx, token, userID, id.NewSessionID()), sentinel.ErrMismatch)
	})
}

func (s *ServiceSuite) TestExpiry() {
	issued := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	userID := id.NewUserID()
	sessionID := id.NewSessionID()

	s.Run("redeem within the window succeeds", func() {
		token, err := s.service.Issue(requestcontext.WithTime(context.Background(), issued), userID, sessionID)
		s.Require().NoError(err)

		almostExpired := requestcontext.WithTime(context.Background(), issued.Add(119*time.Second))
		s.NoError(s.service.Redeem(almostExpired, token, userID, sessionID))
	})

	s.Run("expired voucher reports Expired once, then AlreadyUsed", func() {
		token, err := s.service.Issue(requestcontext.WithTime(context.Background(), issued), userID, sessionID)
		s.Require().NoError(err)

		late := requestcontext.WithTime(context.Background(), issued.Add(121*time.Second))
		s.ErrorIs(s.service.Redeem(late, token, userID, sessionID), sentinel.ErrExpired)
		// consumed as a side effect: second attempt is AlreadyUsed, not Expired
		s.ErrorIs(s.service.Redeem(late, token, userID, sessionID), sentinel.ErrAlreadyUsed)
	})

	s.Run("issuance purges vouchers already past expiry", func() {
		stale, err := s.service.Issue(requestcontext.WithTime(context.Background(), issued), userID, sessionID)
		s.Require().NoError(err)

		// issuing two minutes plus later garbage-collects the stale voucher
		later := requestcontext.WithTime(context.Background(), issued.Add(3*time.Minute))
		_, err = s.service.Issue(later, userID, sessionID)
		s.Require().NoError(err)

		s.ErrorIs(s.service.Redeem(later, stale, userID, sessionID), sentinel.ErrNotFound)
	})
}

// TestConcurrentRedemption verifies the exactly-once guarantee: any number of
// racing redemptions of one token yield a single success, the rest AlreadyUsed.
func (s *ServiceSuite) TestConcurrentRedemption() {
	issued := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), issued)
	userID := id.NewUserID()
	sessionID := id.NewSessionID()

	token, err := s.service.Issue(ctx, userID, sessionID)
	s.Require().NoError(err)

	const goroutines = 32
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		used      atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := s.service.Redeem(ctx, token, userID, sessionID); {
			case err == nil:
				successes.Add(1)
			default:
				s.ErrorIs(err, sentinel.ErrAlreadyUsed)
				used.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), used.Load())
}
