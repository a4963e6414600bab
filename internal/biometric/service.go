// Package biometric enrolls face templates and verifies probe frames against
// them. Embedding extraction is a black box behind the Extractor contract;
// this package owns quality gating, aggregation, encryption at rest, and the
// similarity decision.
package biometric

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	id "rollcall/pkg/domain"
	domainerrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/sentinel"
)

const (
	// DefaultThreshold is the cosine similarity required for a match.
	DefaultThreshold = 0.80

	// minEnrollmentFrames is how many captures registration demands up front.
	minEnrollmentFrames = 3
	// minUsableFrames is how many must survive the quality gate.
	minUsableFrames = 2

	// maxConcurrentExtractions bounds parallel calls to the embedding service
	// during one registration.
	maxConcurrentExtractions = 4
)

var (
	// ErrInsufficientFrames means fewer than the required enrollment captures
	// were supplied.
	ErrInsufficientFrames = domainerrors.Newf(domainerrors.CodeInvalidInput,
		"at least %d enrollment frames are required", minEnrollmentFrames)
	// ErrInsufficientQuality means too few frames survived the quality gate.
	ErrInsufficientQuality = domainerrors.New(domainerrors.CodeInvalidInput,
		"too few enrollment frames passed the quality gate")
	// ErrDegenerateEmbedding means the aggregated embedding had zero magnitude.
	ErrDegenerateEmbedding = domainerrors.New(domainerrors.CodeInvariantViolation,
		"aggregated embedding has zero magnitude")
)

// LockoutResetter clears an identity's biometric-abuse counter. A fresh
// enrollment is a trust reset.
type LockoutResetter interface {
	ResetBiometric(ctx context.Context, userID id.UserID) error
}

// Verification is the outcome of matching one probe frame.
type Verification struct {
	// Matched reports whether the best-scoring candidate is the claimed
	// identity and meets the similarity threshold.
	Matched bool
	// BestMatch is the best-scoring enrolled identity, zero when no candidate
	// produced a score.
	BestMatch id.UserID
	// Similarity is the best score achieved, even on rejection, so callers can
	// distinguish "close but not enough" from "no signal".
	Similarity float64
}

type Service struct {
	store     Store
	extractor Extractor
	codec     *Codec
	lockouts  LockoutResetter
	threshold float64
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithThreshold overrides the similarity threshold.
func WithThreshold(threshold float64) Option {
	return func(s *Service) { s.threshold = threshold }
}

func New(store Store, extractor Extractor, codec *Codec, lockouts LockoutResetter, opts ...Option) (*Service, error) {
	if store == nil || extractor == nil || codec == nil {
		return nil, fmt.Errorf("biometric store, extractor and codec are required")
	}
	svc := &Service{
		store:     store,
		extractor: extractor,
		codec:     codec,
		lockouts:  lockouts,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Enrolled reports whether the identity has a registered template.
func (s *Service) Enrolled(ctx context.Context, userID id.UserID) (bool, error) {
	_, err := s.store.Get(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Register enrolls an identity from several captures. Frames failing the
// quality gate are dropped; the survivors' embeddings are averaged and
// re-normalized so the stored template approximates the centroid direction of
// the captures rather than any single noisy one. The previous template, if
// any, is replaced wholesale.
func (s *Service) Register(ctx context.Context, userID id.UserID, frames [][]byte) error {
	if len(frames) < minEnrollmentFrames {
		return ErrInsufficientFrames
	}

	usable := make([][]byte, 0, len(frames))
	for _, frame := range frames {
		if frameUsable(frame) {
			usable = append(usable, frame)
		}
	}
	if len(usable) < minUsableFrames {
		s.logger.InfoContext(ctx, "enrollment rejected by quality gate",
			"user_id", userID, "submitted", len(frames), "usable", len(usable))
		return ErrInsufficientQuality
	}

	embeddings := make([][]float32, len(usable))
	sem := semaphore.NewWeighted(maxConcurrentExtractions)
	g, gctx := errgroup.WithContext(ctx)
	for i, frame := range usable {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			vec, err := s.extractor.Extract(gctx, frame)
			if err != nil {
				return fmt.Errorf("extract enrollment embedding: %w", err)
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	template := averageVectors(embeddings)
	if !normalize(template) {
		return ErrDegenerateEmbedding
	}

	ciphertext, err := s.codec.Seal(template)
	if err != nil {
		return fmt.Errorf("seal template: %w", err)
	}
	if err := s.store.Upsert(ctx, Template{
		UserID:     userID,
		Ciphertext: ciphertext,
		UpdatedAt:  requestcontext.Now(ctx),
	}); err != nil {
		return fmt.Errorf("persist template: %w", err)
	}

	if s.lockouts != nil {
		if err := s.lockouts.ResetBiometric(ctx, userID); err != nil {
			// The template is already stored; a failed counter reset should not
			// fail the enrollment.
			s.logger.WarnContext(ctx, "biometric counter reset failed", "user_id", userID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "biometric template registered",
		"user_id", userID, "frames_used", len(usable))
	return nil
}

// Verify matches a probe frame against every enrolled template and reports
// whether the best candidate is the claimed identity. Extraction failure is a
// non-match, not an error: an undecodable or faceless frame scores zero.
// Templates that fail to decrypt are skipped and logged; one corrupt row must
// not take verification down for everyone.
func (s *Service) Verify(ctx context.Context, userID id.UserID, frame []byte) (Verification, error) {
	probe, err := s.extractor.Extract(ctx, frame)
	if err != nil {
		s.logger.InfoContext(ctx, "probe extraction failed", "user_id", userID, "error", err)
		return Verification{}, nil
	}
	if !normalize(probe) {
		return Verification{}, nil
	}

	templates, err := s.store.List(ctx)
	if err != nil {
		return Verification{}, fmt.Errorf("load templates: %w", err)
	}

	var best Verification
	for _, tpl := range templates {
		stored, err := s.codec.Open(tpl.Ciphertext)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecryptable template",
				"template_user_id", tpl.UserID, "error", err)
			continue
		}
		if len(stored) != len(probe) || !normalize(stored) {
			s.logger.WarnContext(ctx, "skipping malformed template", "template_user_id", tpl.UserID)
			continue
		}
		if score := cosine(probe, stored); score > best.Similarity || best.BestMatch.IsZero() {
			best.BestMatch = tpl.UserID
			best.Similarity = score
		}
	}

	best.Matched = best.Similarity >= s.threshold && best.BestMatch == userID
	return best, nil
}
