// Package attendance is the verification orchestrator. A marking attempt
// passes an ordered chain of checks, cheapest and least consumptive first:
// nothing is spent (no voucher burned, no rate-limit attempt recorded) until
// every precondition that can be checked for free has passed. The chain
// short-circuits on the first failure, and adversarial failures feed the
// threat engine with their severity weight.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rollcall/internal/attendance/metrics"
	"rollcall/internal/biometric"
	"rollcall/internal/geofence"
	"rollcall/internal/liveness"
	"rollcall/internal/lockout"
	"rollcall/internal/session"
	"rollcall/internal/threat"
	"rollcall/internal/vision"
	"rollcall/pkg/domain"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/sentinel"
)

// rateLimitAction is the window shared by all attendance attempts.
const rateLimitAction = "attendance"

// SessionDirectory is the slice of the session service the orchestrator needs.
type SessionDirectory interface {
	OpenFor(ctx context.Context, sessionID domain.SessionID) (session.AttendanceSession, error)
	IsEnrolled(ctx context.Context, studentID domain.UserID, courseID domain.CourseID) (bool, error)
	Campus(ctx context.Context, courseID domain.CourseID) (session.Campus, error)
}

// VoucherRedeemer consumes single-use attendance vouchers.
type VoucherRedeemer interface {
	Redeem(ctx context.Context, token string, userID domain.UserID, sessionID domain.SessionID) error
}

// FaceVerifier is the slice of the biometric service the orchestrator needs.
type FaceVerifier interface {
	Enrolled(ctx context.Context, userID domain.UserID) (bool, error)
	Verify(ctx context.Context, userID domain.UserID, frame []byte) (biometric.Verification, error)
}

// RateLimiter gates repeated failed attempts.
type RateLimiter interface {
	IsLimited(ctx context.Context, userID domain.UserID, action string) (bool, error)
	RegisterAttempt(ctx context.Context, userID domain.UserID, action string) error
	RetryAfter(ctx context.Context, userID domain.UserID, action string) (int, error)
}

// Lockouts answers and feeds the suspension counters.
type Lockouts interface {
	IsLocked(ctx context.Context, userID domain.UserID) (lockout.Status, error)
	RecordFailure(ctx context.Context, userID domain.UserID, category lockout.Category) (lockout.Status, error)
}

// ThreatRecorder accumulates adversarial failures.
type ThreatRecorder interface {
	Record(ctx context.Context, userID domain.UserID, points int, event string, details map[string]any)
}

// LivenessDetector screens a frame for presentation attacks.
type LivenessDetector interface {
	Assess(frame image.Image) liveness.Assessment
}

// MarkRequest is one attempt to mark attendance.
type MarkRequest struct {
	StudentID    domain.UserID
	SessionID    domain.SessionID
	Lat          float64
	Lon          float64
	VoucherToken string
	Frame        []byte
}

// Result is returned on success.
type Result struct {
	RecordID       uuid.UUID
	Similarity     float64
	DistanceMeters float64
}

type Service struct {
	sessions SessionDirectory
	vouchers VoucherRedeemer
	faces    FaceVerifier
	live     LivenessDetector
	limiter  RateLimiter
	lockouts Lockouts
	threats  ThreatRecorder
	records  RecordStore
	trusted  *geofence.TrustedNetworks

	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTrustedNetworks sets the on-premises CIDR allow-list consulted by the
// geofence check.
func WithTrustedNetworks(t *geofence.TrustedNetworks) Option {
	return func(s *Service) { s.trusted = t }
}

func New(
	sessions SessionDirectory,
	vouchers VoucherRedeemer,
	faces FaceVerifier,
	live LivenessDetector,
	limiter RateLimiter,
	lockouts Lockouts,
	threats ThreatRecorder,
	records RecordStore,
	opts ...Option,
) (*Service, error) {
	if sessions == nil || vouchers == nil || faces == nil || live == nil ||
		limiter == nil || lockouts == nil || threats == nil || records == nil {
		return nil, fmt.Errorf("all attendance dependencies are required")
	}
	svc := &Service{
		sessions: sessions,
		vouchers: vouchers,
		faces:    faces,
		live:     live,
		limiter:  limiter,
		lockouts: lockouts,
		threats:  threats,
		records:  records,
		tracer:   otel.Tracer("rollcall/attendance"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Mark runs the full verification chain. On refusal the returned error is a
// *Failure; any other error is an internal fault.
func (s *Service) Mark(ctx context.Context, req MarkRequest) (Result, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "attendance.Mark", trace.WithAttributes(
		attribute.String("user.id", req.StudentID.String()),
		attribute.String("session.id", req.SessionID.String()),
	))
	defer span.End()

	res, err := s.mark(ctx, req)

	var failure *Failure
	switch {
	case err == nil:
		span.SetAttributes(attribute.Float64("similarity", res.Similarity),
			attribute.Float64("distance_meters", res.DistanceMeters))
		s.metrics.ObserveSuccess(start, res.Similarity, res.DistanceMeters)
	case errors.As(err, &failure):
		span.SetAttributes(attribute.String("refusal", string(failure.Kind)))
		s.metrics.ObserveRefusal(start, string(failure.Kind))
	default:
		span.RecordError(err)
		s.metrics.ObserveRefusal(start, "internal_error")
	}
	return res, err
}

func (s *Service) mark(ctx context.Context, req MarkRequest) (Result, error) {
	// Lockout first: a suspended identity learns nothing about any other check.
	status, err := s.lockouts.IsLocked(ctx, req.StudentID)
	if err != nil {
		return Result{}, fmt.Errorf("check lockout: %w", err)
	}
	if status.Locked {
		return Result{}, &Failure{Kind: FailAccountLocked, LockedUntil: status.Until}
	}

	limited, err := s.limiter.IsLimited(ctx, req.StudentID, rateLimitAction)
	if err != nil {
		return Result{}, fmt.Errorf("check rate limit: %w", err)
	}
	if limited {
		retry, err := s.limiter.RetryAfter(ctx, req.StudentID, rateLimitAction)
		if err != nil {
			return Result{}, fmt.Errorf("compute retry-after: %w", err)
		}
		s.threats.Record(ctx, req.StudentID, threat.WeightBruteForce, threat.EventBruteForce,
			s.details(ctx, req, "retry_after_seconds", retry))
		return Result{}, &Failure{Kind: FailRateLimited, RetryAfterSeconds: retry}
	}

	sess, err := s.sessions.OpenFor(ctx, req.SessionID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return Result{}, &Failure{Kind: FailSessionNotOpen, Subreason: "not_found"}
	case errors.Is(err, sentinel.ErrInvalidState):
		return Result{}, &Failure{Kind: FailSessionNotOpen, Subreason: "closed"}
	case err != nil:
		return Result{}, fmt.Errorf("load session: %w", err)
	}

	enrolled, err := s.sessions.IsEnrolled(ctx, req.StudentID, sess.CourseID)
	if err != nil {
		return Result{}, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return Result{}, refuse(FailNotEnrolled)
	}

	// Duplicate check sits before redemption so an honest double-submit does
	// not burn a fresh voucher.
	marked, err := s.records.Exists(ctx, req.StudentID, req.SessionID)
	if err != nil {
		return Result{}, fmt.Errorf("check existing record: %w", err)
	}
	if marked {
		return Result{}, refuse(FailAlreadyMarked)
	}

	if err := s.redeemVoucher(ctx, req); err != nil {
		return Result{}, err
	}

	faceRegistered, err := s.faces.Enrolled(ctx, req.StudentID)
	if err != nil {
		return Result{}, fmt.Errorf("check face enrollment: %w", err)
	}
	if !faceRegistered {
		return Result{}, refuse(FailFaceNotRegistered)
	}

	img, err := vision.Decode(req.Frame)
	if err != nil {
		return Result{}, refuse(FailBadImage)
	}

	if assessment := s.live.Assess(img); !assessment.Live {
		reasons := strings.Join(assessment.Reasons, "; ")
		s.penalize(ctx, req, threat.WeightSpoofing, threat.EventSpoofing,
			s.details(ctx, req, "reasons", reasons, "suspicion", assessment.Suspicion))
		return Result{}, &Failure{Kind: FailLivenessFailed, Subreason: reasons}
	}

	verification, err := s.faces.Verify(ctx, req.StudentID, req.Frame)
	if err != nil {
		return Result{}, fmt.Errorf("verify face: %w", err)
	}
	if !verification.Matched {
		s.penalize(ctx, req, threat.WeightImpersonation, threat.EventImpersonation,
			s.details(ctx, req, "similarity", verification.Similarity))
		return Result{}, &Failure{Kind: FailBiometricMismatch}
	}

	campus, err := s.sessions.Campus(ctx, sess.CourseID)
	if err != nil {
		return Result{}, fmt.Errorf("load campus reference: %w", err)
	}
	clientIP := requestcontext.ClientIP(ctx)
	geo := geofence.Evaluate(
		geofence.Coordinate{Lat: campus.Lat, Lon: campus.Lon},
		campus.RadiusMeters,
		geofence.Coordinate{Lat: req.Lat, Lon: req.Lon},
		s.trusted.Contains(clientIP),
	)
	if !geo.Accepted {
		s.threats.Record(ctx, req.StudentID, threat.WeightLocationSpoof, threat.EventLocationSpoof,
			s.details(ctx, req, "distance_meters", geo.DistanceMeters))
		return Result{}, refuse(FailOutsideCampus)
	}

	rec := AttendanceRecord{
		ID:             uuid.New(),
		StudentID:      req.StudentID,
		SessionID:      req.SessionID,
		MarkedAt:       requestcontext.Now(ctx),
		Similarity:     verification.Similarity,
		DistanceMeters: geo.DistanceMeters,
		IPAddress:      clientIP,
		Method:         Method,
	}
	if err := s.records.Insert(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a race with a parallel attempt that survived the checks.
			return Result{}, refuse(FailAlreadyMarked)
		}
		return Result{}, fmt.Errorf("persist attendance record: %w", err)
	}

	s.logger.InfoContext(ctx, "attendance marked",
		"user_id", req.StudentID,
		"session_id", req.SessionID,
		"similarity", verification.Similarity,
		"distance_meters", geo.DistanceMeters,
		"geo_rule", geo.Rule,
	)
	return Result{RecordID: rec.ID, Similarity: verification.Similarity, DistanceMeters: geo.DistanceMeters}, nil
}

// redeemVoucher consumes the token and translates redemption errors into the
// voucher failure taxonomy. Every invalid token is treated as a replay signal.
func (s *Service) redeemVoucher(ctx context.Context, req MarkRequest) error {
	err := s.vouchers.Redeem(ctx, req.VoucherToken, req.StudentID, req.SessionID)
	if err == nil {
		return nil
	}

	var subreason string
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		subreason = VoucherNotFound
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		subreason = VoucherAlreadyUsed
	case errors.Is(err, sentinel.ErrExpired):
		subreason = VoucherExpired
	case errors.Is(err, sentinel.ErrMismatch):
		subreason = VoucherMismatch
	default:
		return fmt.Errorf("redeem voucher: %w", err)
	}

	s.threats.Record(ctx, req.StudentID, threat.WeightReplay, threat.EventReplay,
		s.details(ctx, req, "subreason", subreason))
	return &Failure{Kind: FailInvalidVoucher, Subreason: subreason}
}

// penalize applies the side effects of a failed biometric check: one
// rate-limit attempt, one biometric-abuse count, one threat entry.
func (s *Service) penalize(ctx context.Context, req MarkRequest, weight int, event string, details map[string]any) {
	if err := s.limiter.RegisterAttempt(ctx, req.StudentID, rateLimitAction); err != nil {
		s.logger.ErrorContext(ctx, "register rate-limit attempt", "user_id", req.StudentID, "error", err)
	}
	if _, err := s.lockouts.RecordFailure(ctx, req.StudentID, lockout.CategoryBiometric); err != nil {
		s.logger.ErrorContext(ctx, "record biometric failure", "user_id", req.StudentID, "error", err)
	}
	s.threats.Record(ctx, req.StudentID, weight, event, details)
}

// details builds the alert context common to every threat entry.
func (s *Service) details(ctx context.Context, req MarkRequest, extra ...any) map[string]any {
	d := map[string]any{
		"session_id": req.SessionID.String(),
		"client_ip":  requestcontext.ClientIP(ctx),
		"user_agent": requestcontext.UserAgent(ctx),
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if key, ok := extra[i].(string); ok {
			d[key] = extra[i+1]
		}
	}
	return d
}
