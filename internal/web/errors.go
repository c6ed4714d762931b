package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details and the request ID (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Formatted as JSON for API callers and as an HTML fragment otherwise
//
// Per-file ingestion failures never come through here: they are reported as
// notices on the event stream. This path is for requests that could not be
// handled at all (bad multipart body, unknown session, shutdown).

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/logging"
	"github.com/JonMunkholm/dropzone/internal/web/templates"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError maps err to a user message, logs it, and writes the response.
// Errors with a specific code are logged as warnings; ERR000 is an error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userErr := core.NewUserError(err)

	logger := logging.FromContext(r.Context())
	log := logger.Error
	if core.IsUserFacing(err) {
		log = logger.Warn
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", userErr.Technical.Error(),
		"code", userErr.User.Code,
	)

	writeUserMessage(w, r, statusCode, userErr.User)
}

// writeError writes a request-level error that has no underlying Go error.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message, action string) {
	logging.FromContext(r.Context()).Warn("request rejected",
		"path", r.URL.Path,
		"status", statusCode,
		"code", code,
		"message", message,
	)
	writeUserMessage(w, r, statusCode, core.UserMessage{Message: message, Action: action, Code: code})
}

func writeUserMessage(w http.ResponseWriter, r *http.Request, statusCode int, msg core.UserMessage) {
	if wantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// clientIP strips the port from a RemoteAddr.
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
