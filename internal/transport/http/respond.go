package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"rollcall/internal/attendance"
	domainerrors "rollcall/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates coded domain errors into JSON envelopes. Messages for
// internal faults are masked; the code alone is enough for clients.
func writeError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != domainerrors.CodeInternal {
		var de *domainerrors.Error
		if errors.As(err, &de) {
			body["message"] = de.Message
		}
	}
	writeJSON(w, statusForCode(code), body)
}

func statusForCode(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeInvalidInput:
		return http.StatusBadRequest
	case domainerrors.CodeNotFound:
		return http.StatusNotFound
	case domainerrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case domainerrors.CodeForbidden:
		return http.StatusForbidden
	case domainerrors.CodeConflict:
		return http.StatusConflict
	case domainerrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case domainerrors.CodeLocked:
		return http.StatusLocked
	case domainerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case domainerrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeRefusal renders an attendance refusal. Every kind maps to a stable
// status so clients can branch without parsing strings.
func writeRefusal(w http.ResponseWriter, failure *attendance.Failure) {
	body := map[string]any{"refusal": string(failure.Kind)}
	if failure.Subreason != "" {
		body["subreason"] = failure.Subreason
	}

	status := http.StatusForbidden
	switch failure.Kind {
	case attendance.FailAccountLocked:
		status = http.StatusLocked
		if !failure.LockedUntil.IsZero() {
			body["locked_until"] = failure.LockedUntil.UTC().Format(time.RFC3339)
		}
	case attendance.FailRateLimited:
		status = http.StatusTooManyRequests
		body["retry_after_seconds"] = failure.RetryAfterSeconds
		w.Header().Set("Retry-After", strconv.Itoa(failure.RetryAfterSeconds))
	case attendance.FailSessionNotOpen, attendance.FailAlreadyMarked, attendance.FailFaceNotRegistered:
		status = http.StatusConflict
	case attendance.FailBadImage:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, body)
}
