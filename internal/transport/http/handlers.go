// Package httptransport is the HTTP layer. Handlers stay thin: decode, call
// the domain service, encode. All policy lives behind the service interfaces.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"rollcall/internal/alert"
	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/pkg/domain"
	domainerrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

// maxUploadBytes bounds a marking or enrollment upload.
const maxUploadBytes = 10 << 20

// AuthService is the login surface.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, auth.User, error)
}

// VoucherIssuer mints single-use attendance vouchers.
type VoucherIssuer interface {
	Issue(ctx context.Context, userID domain.UserID, sessionID domain.SessionID) (string, error)
}

// Marker runs the verification pipeline.
type Marker interface {
	Mark(ctx context.Context, req attendance.MarkRequest) (attendance.Result, error)
}

// FaceRegistrar enrolls biometric templates.
type FaceRegistrar interface {
	Register(ctx context.Context, userID domain.UserID, frames [][]byte) error
}

// AlertReader lists recent security alerts.
type AlertReader interface {
	ListRecent(ctx context.Context, limit int) ([]alert.SecurityAlert, error)
}

type Handler struct {
	auth       AuthService
	vouchers   VoucherIssuer
	marker     Marker
	faces      FaceRegistrar
	alerts     AlertReader
	voucherTTL time.Duration
	logger     *slog.Logger
}

func NewHandler(
	authSvc AuthService,
	vouchers VoucherIssuer,
	marker Marker,
	faces FaceRegistrar,
	alerts AlertReader,
	voucherTTL time.Duration,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		auth:       authSvc,
		vouchers:   vouchers,
		marker:     marker,
		faces:      faces,
		alerts:     alerts,
		voucherTTL: voucherTTL,
		logger:     logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid request body"))
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user": map[string]string{
			"id":    user.ID.String(),
			"name":  user.Name,
			"email": user.Email,
			"role":  string(user.Role),
		},
	})
}

type issueVoucherRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) handleIssueVoucher(w http.ResponseWriter, r *http.Request) {
	var req issueVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid request body"))
		return
	}
	sessionID, err := domain.ParseSessionID(req.SessionID)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid session id"))
		return
	}

	token, err := h.vouchers.Issue(r.Context(), requestcontext.UserID(r.Context()), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"voucher":            token,
		"expires_in_seconds": int(h.voucherTTL.Seconds()),
	})
}

func (h *Handler) handleMark(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid multipart form"))
		return
	}

	sessionID, err := domain.ParseSessionID(r.FormValue("session_id"))
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid session id"))
		return
	}
	lat, err := strconv.ParseFloat(r.FormValue("latitude"), 64)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid latitude"))
		return
	}
	lon, err := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid longitude"))
		return
	}
	frame, err := readUpload(r, "frame")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.marker.Mark(r.Context(), attendance.MarkRequest{
		StudentID:    requestcontext.UserID(r.Context()),
		SessionID:    sessionID,
		Lat:          lat,
		Lon:          lon,
		VoucherToken: r.FormValue("voucher"),
		Frame:        frame,
	})
	if err != nil {
		var failure *attendance.Failure
		if errors.As(err, &failure) {
			writeRefusal(w, failure)
			return
		}
		h.logger.ErrorContext(r.Context(), "mark attendance failed", "error", err)
		writeError(w, domainerrors.New(domainerrors.CodeInternal, "verification failed"))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"record_id":       res.RecordID.String(),
		"similarity":      res.Similarity,
		"distance_meters": res.DistanceMeters,
	})
}

func (h *Handler) handleRegisterFace(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid multipart form"))
		return
	}

	var frames [][]byte
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["frames"] {
			frame, err := readFile(header)
			if err != nil {
				writeError(w, err)
				return
			}
			frames = append(frames, frame)
		}
	}

	if err := h.faces.Register(r.Context(), requestcontext.UserID(r.Context()), frames); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, domainerrors.New(domainerrors.CodeInvalidInput, "invalid limit"))
			return
		}
		limit = parsed
	}

	alerts, err := h.alerts.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, map[string]any{
			"id":         a.ID.String(),
			"user_id":    a.UserID.String(),
			"event":      a.Event,
			"score":      a.Score,
			"details":    a.Details,
			"resolved":   a.Resolved,
			"created_at": a.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out})
}

func readUpload(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, domainerrors.New(domainerrors.CodeInvalidInput, "missing "+field+" upload")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInvalidInput, "read "+field+" upload")
	}
	return data, nil
}

func readFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInvalidInput, "open upload")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInvalidInput, "read upload")
	}
	return data, nil
}
