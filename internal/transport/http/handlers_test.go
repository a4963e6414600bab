package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rollcall/internal/alert"
	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/voucher"
	"rollcall/pkg/domain"
	domainerrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
)

type stubAuth struct {
	token string
	user  auth.User
	err   error
}

func (s *stubAuth) Login(_ context.Context, _, _ string) (string, auth.User, error) {
	return s.token, s.user, s.err
}

type stubVouchers struct {
	token     string
	err       error
	userID    domain.UserID
	sessionID domain.SessionID
}

func (s *stubVouchers) Issue(_ context.Context, userID domain.UserID, sessionID domain.SessionID) (string, error) {
	s.userID = userID
	s.sessionID = sessionID
	return s.token, s.err
}

type stubMarker struct {
	req      attendance.MarkRequest
	clientIP string
	res      attendance.Result
	err      error
}

func (s *stubMarker) Mark(ctx context.Context, req attendance.MarkRequest) (attendance.Result, error) {
	s.req = req
	s.clientIP = requestcontext.ClientIP(ctx)
	return s.res, s.err
}

type stubFaces struct {
	userID domain.UserID
	frames [][]byte
	err    error
}

func (s *stubFaces) Register(_ context.Context, userID domain.UserID, frames [][]byte) error {
	s.userID = userID
	s.frames = frames
	return s.err
}

type stubAlerts struct {
	alerts []alert.SecurityAlert
	limit  int
}

func (s *stubAlerts) ListRecent(_ context.Context, limit int) ([]alert.SecurityAlert, error) {
	s.limit = limit
	return s.alerts, nil
}

type stubVerifier struct {
	userID domain.UserID
	err    error
}

func (s *stubVerifier) Verify(string) (domain.UserID, error) {
	return s.userID, s.err
}

type TransportSuite struct {
	suite.Suite

	auth     *stubAuth
	vouchers *stubVouchers
	marker   *stubMarker
	faces    *stubFaces
	alerts   *stubAlerts
	verifier *stubVerifier

	userID domain.UserID
	server http.Handler
}

func TestTransportSuite(t *testing.T) {
	suite.Run(t, new(TransportSuite))
}

func (s *TransportSuite) SetupTest() {
	s.userID = domain.NewUserID()
	s.auth = &stubAuth{token: "session-token", user: auth.User{
		ID:    s.userID,
		Email: "ananya@example.edu",
		Name:  "Ananya Rao",
		Role:  auth.RoleStudent,
	}}
	s.vouchers = &stubVouchers{token: "voucher-token"}
	s.marker = &stubMarker{res: attendance.Result{
		RecordID:       uuid.UUID{1},
		Similarity:     0.93,
		DistanceMeters: 41.5,
	}}
	s.faces = &stubFaces{}
	s.alerts = &stubAlerts{}
	s.verifier = &stubVerifier{userID: s.userID}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(s.auth, s.vouchers, s.marker, s.faces, s.alerts, voucher.DefaultTTL, logger)
	s.server = NewRouter(handler, s.verifier, logger)
}

func (s *TransportSuite) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *TransportSuite) decode(rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *TransportSuite) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer session-token")
	return req
}

func (s *TransportSuite) markForm(fields map[string]string, frame []byte) (*bytes.Buffer, string) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for key, value := range fields {
		s.Require().NoError(w.WriteField(key, value))
	}
	if frame != nil {
		part, err := w.CreateFormFile("frame", "frame.png")
		s.Require().NoError(err)
		_, err = part.Write(frame)
		s.Require().NoError(err)
	}
	s.Require().NoError(w.Close())
	return &buf, w.FormDataContentType()
}

func (s *TransportSuite) TestHealthz() {
	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *TransportSuite) TestLogin() {
	body := strings.NewReader(`{"email":"ananya@example.edu","password":"hunter22"}`)
	rec := s.do(httptest.NewRequest(http.MethodPost, "/auth/login", body))

	s.Require().Equal(http.StatusOK, rec.Code)
	resp := s.decode(rec)
	s.Equal("session-token", resp["token"])
	user := resp["user"].(map[string]any)
	s.Equal(s.userID.String(), user["id"])
	s.Equal("student", user["role"])
}

func (s *TransportSuite) TestLoginRejectsMalformedBody() {
	rec := s.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{")))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *TransportSuite) TestLoginLockedAccount() {
	s.auth.err = auth.ErrLocked
	body := strings.NewReader(`{"email":"ananya@example.edu","password":"hunter22"}`)
	rec := s.do(httptest.NewRequest(http.MethodPost, "/auth/login", body))
	s.Equal(http.StatusLocked, rec.Code)
}

func (s *TransportSuite) TestMissingBearerToken() {
	body := strings.NewReader(`{"session_id":"` + domain.NewSessionID().String() + `"}`)
	rec := s.do(httptest.NewRequest(http.MethodPost, "/attendance/voucher", body))

	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("unauthorized", s.decode(rec)["error"])
}

func (s *TransportSuite) TestRejectedToken() {
	s.verifier.err = domainerrors.New(domainerrors.CodeUnauthorized, "token expired")
	body := strings.NewReader(`{"session_id":"` + domain.NewSessionID().String() + `"}`)
	req := s.authed(httptest.NewRequest(http.MethodPost, "/attendance/voucher", body))
	s.Equal(http.StatusUnauthorized, s.do(req).Code)
}

func (s *TransportSuite) TestIssueVoucher() {
	sessionID := domain.NewSessionID()
	body := strings.NewReader(`{"session_id":"` + sessionID.String() + `"}`)
	req := s.authed(httptest.NewRequest(http.MethodPost, "/attendance/voucher", body))
	rec := s.do(req)

	s.Require().Equal(http.StatusCreated, rec.Code)
	resp := s.decode(rec)
	s.Equal("voucher-token", resp["voucher"])
	s.InDelta(120, resp["expires_in_seconds"], 0)
	s.Equal(s.userID, s.vouchers.userID)
	s.Equal(sessionID, s.vouchers.sessionID)
}

func (s *TransportSuite) TestMark() {
	sessionID := domain.NewSessionID()
	frame := []byte("png-bytes")
	buf, contentType := s.markForm(map[string]string{
		"session_id": sessionID.String(),
		"latitude":   "12.9716",
		"longitude":  "77.5946",
		"voucher":    "voucher-token",
	}, frame)

	req := s.authed(httptest.NewRequest(http.MethodPost, "/attendance/mark", buf))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	rec := s.do(req)

	s.Require().Equal(http.StatusCreated, rec.Code)
	resp := s.decode(rec)
	s.InDelta(0.93, resp["similarity"], 1e-9)
	s.InDelta(41.5, resp["distance_meters"], 1e-9)

	s.Equal(s.userID, s.marker.req.StudentID)
	s.Equal(sessionID, s.marker.req.SessionID)
	s.InDelta(12.9716, s.marker.req.Lat, 1e-9)
	s.InDelta(77.5946, s.marker.req.Lon, 1e-9)
	s.Equal("voucher-token", s.marker.req.VoucherToken)
	s.Equal(frame, s.marker.req.Frame)
	s.Equal("203.0.113.5", s.marker.clientIP)
}

func (s *TransportSuite) TestMarkRejectsBadCoordinates() {
	buf, contentType := s.markForm(map[string]string{
		"session_id": domain.NewSessionID().String(),
		"latitude":   "north-ish",
		"longitude":  "77.5946",
		"voucher":    "voucher-token",
	}, []byte("png-bytes"))

	req := s.authed(httptest.NewRequest(http.MethodPost, "/attendance/mark", buf))
	req.Header.Set("Content-Type", contentType)
	s.Equal(http.StatusBadRequest, s.do(req).Code)
}

func (s *TransportSuite) TestMarkRequiresFrame() {
	buf, contentType := s.markForm(map[string]string{
		"session_id": domain.NewSessionID().String(),
		"latitude":   "12.9716",
		"longitude":  "77.5946",
		"voucher":    "voucher-token",
	}, nil)

	req := s.authed(httptest.NewRequest(http.MethodPost, "/attendance/mark", buf))
	req.Header.Set("Content-Type", contentType)
	s.Equal(http.StatusBadRequest, s.do(req).Code)
}

func (s *TransportSuite) TestMarkRateLimitedRefusal() {
	s.marker.err = &attendance.Failure{
		Kind:              attendance.FailRateLimited,
		RetryAfterSeconds: 37,
	}
	buf, contentType := s.markForm(map[string]string{
		"session_id": domain.NewSessionID().String(),
		"latitude":   "12.9716",
		"longitude":  "77.5946",
		"voucher":    "voucher-token",
	}, []byte("png-bytes"))

	req := s.authed(httptest.NewRequest(http.MethodPost, "/attendance/mark", buf))
	req.Header.Set("Content-Type", contentType)
	rec := s.do(req)

	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("37", rec.Header().Get("Retry-After"))
	resp := s.decode(rec)
	s.Equal(string(attendance.FailRateLimited), resp["refusal"])
	s.InDelta(37, resp["retry_after_seconds"], 0)
}

func (s *TransportSuite) TestMarkLockedRefusal() {
	until := time.Date(2026, 3, 9, 10, 30, 0, 0, time.UTC)
	s.marker.err = &attendance.Failure{
		Kind:        attendance.FailAccountLocked,
		LockedUntil: until,
	}
	buf, contentType := s.markForm(map[string]string{
		"session_id": domain.NewSessionID().String(),
		"latitude":   "12.9716",
		"longitude":  "77.5946",
		"voucher":    "voucher-token",
	}, []byte("png-bytes"))

	req := s.authed(httptest.NewRequest(http.MethodPost, "/attendance/mark", buf))
	req.Header.Set("Content-Type", contentType)
	rec := s.do(req)

	s.Equal(http.StatusLocked, rec.Code)
	s.Equal("2026-03-09T10:30:00Z", s.decode(rec)["locked_until"])
}

func (s *TransportSuite) TestMarkVoucherRefusal() {
	s.marker.err = &attendance.Failure{
		Kind:      attendance.FailInvalidVoucher,
		Subreason: attendance.VoucherAlreadyUsed,
	}
	buf, contentType := s.markForm(map[string]string{
		"session_id": domain.NewSessionID().String(),
		"latitude":   "12.9716",
		"longitude":  "77.5946",
		"voucher":    "voucher-token",
	}, []byte("png-bytes"))

	req := s.authed(httptest.NewRequest(http.MethodPost, "/attendance/mark", buf))
	req.Header.Set("Content-Type", contentType)
	rec := s.do(req)

	s.Equal(http.StatusForbidden, rec.Code)
	resp := s.decode(rec)
	s.Equal(string(attendance.FailInvalidVoucher), resp["refusal"])
	s.Equal(string(attendance.VoucherAlreadyUsed), resp["subreason"])
}

func (s *TransportSuite) TestRegisterFace() {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		part, err := w.CreateFormFile("frames", name)
		s.Require().NoError(err)
		_, err = part.Write([]byte(name))
		s.Require().NoError(err)
	}
	s.Require().NoError(w.Close())

	req := s.authed(httptest.NewRequest(http.MethodPost, "/biometric/register", &buf))
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := s.do(req)

	s.Equal(http.StatusNoContent, rec.Code)
	s.Equal(s.userID, s.faces.userID)
	s.Len(s.faces.frames, 3)
}

func (s *TransportSuite) TestListAlerts() {
	s.alerts.alerts = []alert.SecurityAlert{{
		UserID:    s.userID,
		Event:     "presentation_spoof",
		Score:     6,
		CreatedAt: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
	}}

	req := s.authed(httptest.NewRequest(http.MethodGet, "/security/alerts", nil))
	rec := s.do(req)

	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(50, s.alerts.limit)
	list := s.decode(rec)["alerts"].([]any)
	s.Require().Len(list, 1)
	entry := list[0].(map[string]any)
	s.Equal("presentation_spoof", entry["event"])
	s.Equal(false, entry["resolved"])
	s.Equal("2026-03-09T09:00:00Z", entry["created_at"])
}

func (s *TransportSuite) TestListAlertsRejectsBadLimit() {
	req := s.authed(httptest.NewRequest(http.MethodGet, "/security/alerts?limit=0", nil))
	s.Equal(http.StatusBadRequest, s.do(req).Code)
}
