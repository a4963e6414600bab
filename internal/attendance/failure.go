package attendance

import (
	"fmt"
	"time"
)

// FailureKind enumerates every way a marking attempt can be refused. The
// transport layer maps kinds to HTTP statuses; the kind string itself is
// stable API surface for clients and metrics.
type FailureKind string

const (
	FailAccountLocked     FailureKind = "account_locked"
	FailSessionNotOpen    FailureKind = "session_not_open"
	FailNotEnrolled       FailureKind = "not_enrolled"
	FailAlreadyMarked     FailureKind = "already_marked"
	FailRateLimited       FailureKind = "rate_limited"
	FailInvalidVoucher    FailureKind = "invalid_voucher"
	FailFaceNotRegistered FailureKind = "face_not_registered"
	FailBadImage          FailureKind = "bad_image"
	FailLivenessFailed    FailureKind = "liveness_failed"
	FailBiometricMismatch FailureKind = "biometric_mismatch"
	FailOutsideCampus     FailureKind = "outside_campus"
)

// Voucher failure subreasons.
const (
	VoucherNotFound    = "not_found"
	VoucherAlreadyUsed = "already_used"
	VoucherExpired     = "expired"
	VoucherMismatch    = "mismatch"
)

// Failure is the typed refusal returned by Mark. It satisfies error so it can
// travel an ordinary error return, and callers unwrap it with errors.As.
type Failure struct {
	Kind      FailureKind
	Subreason string
	// RetryAfterSeconds is set for FailRateLimited.
	RetryAfterSeconds int
	// LockedUntil is set for FailAccountLocked.
	LockedUntil time.Time
}

func (f *Failure) Error() string {
	if f.Subreason != "" {
		return fmt.Sprintf("attendance refused: %s (%s)", f.Kind, f.Subreason)
	}
	return fmt.Sprintf("attendance refused: %s", f.Kind)
}

func refuse(kind FailureKind) *Failure {
	return &Failure{Kind: kind}
}
