package web

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/dropzone/internal/core"
	"github.com/JonMunkholm/dropzone/internal/dropzone"
	"github.com/JonMunkholm/dropzone/internal/logging"
	"github.com/JonMunkholm/dropzone/internal/web/templates"
	"github.com/gorilla/websocket"
)

// SessionHeader carries the drag session id on drop requests.
const SessionHeader = "X-Dropzone-Session"

// multipartMemory is how much of a multipart body is held in memory; the
// rest spills to temp files.
const multipartMemory = 32 << 20

// sseHeartbeat keeps idle event streams alive through proxies.
const sseHeartbeat = 15 * time.Second

// handleIndex renders the dropzone page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	policy := s.pipeline.Policy()
	templates.Page(templates.PageProps{
		AllowedImageTypes: s.cfg.Limits.AllowedImageTypes,
		ImageMaxBytes:     policy.Image,
		PDFMaxBytes:       policy.PDF,
		DocumentMaxBytes:  policy.Document,
	}).Render(r.Context(), w)
}

// DropResponse is the body returned for drop and programmatic uploads.
// Individual results and notices are delivered on /api/events.
type DropResponse struct {
	Session string           `json:"session,omitempty"`
	Report  core.BatchReport `json:"report"`
}

// handleDrop processes files dropped on a page. The session header ties the
// drop to the page's drag tracker so its overlay state resets.
func (s *Server) handleDrop(w http.ResponseWriter, r *http.Request) {
	files, ok := s.parseFiles(w, r, "files", "file")
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	session := r.Header.Get(SessionHeader)
	tracker, found := s.sessions.Get(session)
	if !found {
		if session != "" {
			logging.FromContext(r.Context()).Debug("drop for unknown session", "session", session)
		}
		session = ""
		tracker = dropzone.NewTracker(s.batch, nil)
	}

	report := tracker.Drop(r.Context(), files)
	writeJSON(w, r, http.StatusOK, DropResponse{Session: session, Report: report})
}

// handleFiles is the programmatic entry point: every part is processed with
// the configured batch concurrency.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, ok := s.parseFiles(w, r, "files", "file")
	if !ok {
		return
	}
	defer r.MultipartForm.RemoveAll()

	ctx := core.ContextWithChannel(r.Context(), core.ChannelAPI)
	report := s.batch.ProcessAll(ctx, files)
	writeJSON(w, r, http.StatusOK, DropResponse{Report: report})
}

// handlePaste treats every "items" part as a clipboard item, typed by the
// part's Content-Type. Plain "text" form values are text/plain items.
func (s *Server) handlePaste(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	defer r.MultipartForm.RemoveAll()

	var items []dropzone.ClipboardItem
	for _, h := range r.MultipartForm.File["items"] {
		items = append(items, dropzone.ClipboardItem{
			Type:   h.Header.Get("Content-Type"),
			Name:   pastedName(h.Filename),
			Size:   h.Size,
			Source: core.MultipartSource{Header: h},
		})
	}
	for _, text := range r.MultipartForm.Value["text"] {
		items = append(items, dropzone.ClipboardItem{
			Type:   "text/plain",
			Size:   int64(len(text)),
			Source: core.BytesSource(text),
		})
	}

	writeJSON(w, r, http.StatusOK, s.paste.HandlePaste(r.Context(), items))
}

// pastedName drops the placeholder names browsers give clipboard blobs.
func pastedName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "blob", "image.png":
		return ""
	}
	return name
}

// handleEvents streams results and notices via Server-Sent Events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	events, cancel := s.stream.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logging.FromContext(r.Context()).Error("streaming not supported", "error", err)
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Stream closed or this subscriber fell behind
				fmt.Fprint(w, "event: close\ndata: {}\n\n")
				rc.Flush()
				return
			}
			data, err := ev.MarshalJSON()
			if err != nil {
				logging.FromContext(r.Context()).Error("encode event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
			rc.Flush()

		case <-s.closing:
			fmt.Fprint(w, "event: close\ndata: {}\n\n")
			rc.Flush()
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			rc.Flush()

		case <-r.Context().Done():
			// Client disconnected
			return
		}
	}
}

// StatusResponse reports server load.
type StatusResponse struct {
	Uploads     core.UploadLimiterStatus `json:"uploads"`
	Sessions    int                      `json:"sessions"`
	Subscribers int                      `json:"subscribers"`
	Concurrency int                      `json:"drop_concurrency"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Sessions:    s.sessions.Len(),
		Subscribers: s.stream.Subscribers(),
		Concurrency: s.batch.Concurrency(),
	}
	if s.limiter != nil {
		resp.Uploads = s.limiter.Status()
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// wsMessage is sent to the page over the drag socket.
type wsMessage struct {
	Type     string             `json:"type"` // session, feedback, error
	Session  string             `json:"session,omitempty"`
	Feedback *dropzone.Feedback `json:"feedback,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// dragEvent is relayed from the page for every drag event.
type dragEvent struct {
	Event string `json:"event"`
}

// handleDragSocket relays browser drag events to a per-page Tracker and
// answers each with the overlay state.
func (s *Server) handleDragSocket(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(4096)

	id, tracker := s.sessions.Open()
	defer s.sessions.Close(id)
	logger = logger.With("session", id)
	logger.Debug("drag session opened")

	initial := tracker.Over()
	if err := conn.WriteJSON(wsMessage{Type: "session", Session: id, Feedback: &initial}); err != nil {
		return
	}

	for {
		var msg dragEvent
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("drag session read failed", "error", err)
			}
			return
		}

		ev, err := dropzone.ParseEventType(msg.Event)
		if err != nil {
			if werr := conn.WriteJSON(wsMessage{Type: "error", Error: err.Error()}); werr != nil {
				return
			}
			continue
		}

		fb, _ := tracker.Handle(ev)
		if err := conn.WriteJSON(wsMessage{Type: "feedback", Feedback: &fb}); err != nil {
			return
		}
	}
}

// parseFiles parses a multipart body and returns the file parts under the
// first of fields that has any, in the order they were sent.
func (s *Server) parseFiles(w http.ResponseWriter, r *http.Request, fields ...string) ([]core.FileHandle, bool) {
	if !s.parseForm(w, r) {
		return nil, false
	}

	var headers []*multipart.FileHeader
	for _, f := range fields {
		if headers = r.MultipartForm.File[f]; len(headers) > 0 {
			break
		}
	}
	if len(headers) == 0 {
		r.MultipartForm.RemoveAll()
		writeError(w, r, http.StatusBadRequest, "REQ001", "No files provided",
			fmt.Sprintf("Send files in a %q multipart field", fields[0]))
		return nil, false
	}

	files := make([]core.FileHandle, len(headers))
	for i, h := range headers {
		files[i] = core.NewMultipartFile(h)
	}
	return files, true
}

// parseForm reads a size-capped multipart body into r.MultipartForm.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxRequestBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "REQ002", "Request is too large",
				"Send fewer files per request")
			return false
		}
		s.respondError(w, r, &core.ReadError{Filename: "request body", Err: err}, http.StatusBadRequest)
		return false
	}
	return true
}
