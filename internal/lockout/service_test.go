package lockout_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rollcall/internal/lockout"
	"rollcall/internal/lockout/store"
	id "rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	svc  *lockout.Service
	user id.UserID
	t0   time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	svc, err := lockout.New(store.NewInMemoryStore())
	s.Require().NoError(err)
	s.svc = svc
	s.user = id.NewUserID()
	s.t0 = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.t0.Add(offset))
}

func (s *ServiceSuite) fail(ctx context.Context, category lockout.Category, n int) lockout.Status {
	var status lockout.Status
	for i := 0; i < n; i++ {
		var err error
		status, err = s.svc.RecordFailure(ctx, s.user, category)
		s.Require().NoError(err)
	}
	return status
}

func (s *ServiceSuite) TestBiometricLockAfterThreeViolations() {
	s.False(s.fail(s.at(0), lockout.CategoryBiometric, 2).Locked)

	status := s.fail(s.at(0), lockout.CategoryBiometric, 1)
	s.True(status.Locked)
	s.Equal(lockout.CategoryBiometric, status.Category)
	s.Equal(s.t0.Add(10*time.Minute), status.Until)

	got, err := s.svc.IsLocked(s.at(5*time.Minute), s.user)
	s.Require().NoError(err)
	s.True(got.Locked)
}

func (s *ServiceSuite) TestLockExpiresWithoutExplicitReset() {
	s.fail(s.at(0), lockout.CategoryBiometric, 3)

	got, err := s.svc.IsLocked(s.at(10*time.Minute+time.Second), s.user)
	s.Require().NoError(err)
	s.False(got.Locked)

	// The expired lock is cleared, so a fresh run of violations is required.
	s.False(s.fail(s.at(11*time.Minute), lockout.CategoryBiometric, 2).Locked)
	s.True(s.fail(s.at(11*time.Minute), lockout.CategoryBiometric, 1).Locked)
}

func (s *ServiceSuite) TestCredentialLockAfterEightFailures() {
	s.False(s.fail(s.at(0), lockout.CategoryCredential, 7).Locked)

	status := s.fail(s.at(0), lockout.CategoryCredential, 1)
	s.True(status.Locked)
	s.Equal(s.t0.Add(15*time.Minute), status.Until)
}

func (s *ServiceSuite) TestCategoriesAreIndependent() {
	s.fail(s.at(0), lockout.CategoryBiometric, 2)
	s.False(s.fail(s.at(0), lockout.CategoryCredential, 7).Locked)

	// The seven credential failures contribute nothing to the biometric count.
	s.True(s.fail(s.at(0), lockout.CategoryBiometric, 1).Locked)
}

func (s *ServiceSuite) TestResetBiometricLeavesCredentialAlone() {
	s.fail(s.at(0), lockout.CategoryBiometric, 2)
	s.fail(s.at(0), lockout.CategoryCredential, 7)

	s.Require().NoError(s.svc.ResetBiometric(s.at(0), s.user))

	s.False(s.fail(s.at(0), lockout.CategoryBiometric, 2).Locked)
	s.True(s.fail(s.at(0), lockout.CategoryCredential, 1).Locked)
}

func (s *ServiceSuite) TestFailuresDuringLockDoNotExtendIt() {
	s.fail(s.at(0), lockout.CategoryBiometric, 3)

	status := s.fail(s.at(5*time.Minute), lockout.CategoryBiometric, 1)
	s.True(status.Locked)
	s.Equal(s.t0.Add(10*time.Minute), status.Until)
}
