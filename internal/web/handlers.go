package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/facturador/internal/core"
	"github.com/JonMunkholm/facturador/internal/logging"
	"github.com/go-chi/chi/v5"
)

// sseHeartbeat keeps idle event streams alive through proxies.
const sseHeartbeat = 15 * time.Second

// maxMultipartMemory is how much of a multipart form is held in memory.
const maxMultipartMemory = 32 << 20

// parseResponse is returned by the parse endpoint.
type parseResponse struct {
	SessionID string           `json:"sessionId"`
	FileName  string           `json:"fileName"`
	Rows      []core.ParsedRow `json:"rows"`
	Warnings  []string         `json:"warnings"`
	Counts    core.Counts      `json:"counts"`
}

// submitResponse acknowledges a background batch.
type submitResponse struct {
	SessionID string      `json:"sessionId"`
	Status    string      `json:"status"`
	Counts    core.Counts `json:"counts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"activeBatches": s.service.ActiveStatus(),
	})
}

func (s *Server) handleFormFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.InvoiceFormFields())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListSessions())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	b := s.service.CreateSession()
	logging.WithFields(r.Context(), "session_id", b.ID()).Info("session created")

	w.Header().Set("Location", "/api/sessions/"+b.ID())
	writeJSON(w, http.StatusCreated, b.Snapshot())
}

// batch resolves the session in the URL or writes the error response.
func (s *Server) batch(w http.ResponseWriter, r *http.Request) (*core.Batch, bool) {
	b, err := s.service.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondError(w, r, err)
		return nil, false
	}
	return b, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	b, ok := s.batch(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.service.CloseSession(id); err != nil {
		s.respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "session_id", id).Info("session closed")
	w.WriteHeader(http.StatusNoContent)
}

// handleParse loads a spreadsheet into the session, replacing its rows.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	b, ok := s.batch(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		if statusFor(err) == http.StatusRequestEntityTooLarge {
			s.respondError(w, r, err)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	logging.WithFields(r.Context(), "session_id", b.ID()).Info("file received",
		"file", header.Filename,
		"size", header.Size,
	)

	result, err := b.Load(r.Context(), header.Filename, data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, parseResponse{
		SessionID: b.ID(),
		FileName:  header.Filename,
		Rows:      result.Rows,
		Warnings:  result.Warnings,
		Counts:    b.Counts(),
	})
}

// handleSubmitAll starts a background batch and returns immediately.
// Progress is followed on the events stream.
func (s *Server) handleSubmitAll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if err := s.service.StartSubmitAll(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}

	b, err := s.service.Session(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/sessions/"+id)
	writeJSON(w, http.StatusAccepted, submitResponse{
		SessionID: id,
		Status:    string(core.StatusProcessing),
		Counts:    b.Counts(),
	})
}

// handleSubmitRow submits one row and waits for the outcome. A rejection by
// the issuance service is a 200 with the row in status error.
func (s *Server) handleSubmitRow(w http.ResponseWriter, r *http.Request) {
	b, ok := s.batch(w, r)
	if !ok {
		return
	}

	row, err := b.SubmitOne(r.Context(), chi.URLParam(r, "rowID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	b, ok := s.batch(w, r)
	if !ok {
		return
	}
	if err := b.Reset(); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b.Snapshot())
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	attempts, err := s.attempts.Attempts(r.Context(), id, limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if attempts == nil {
		attempts = []core.Attempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

// handleEvents streams batch events via Server-Sent Events until the client
// leaves, the session is closed or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	b, ok := s.batch(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, fmt.Errorf("streaming not supported"))
		return
	}

	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	eventID := 0
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				logging.FromContext(r.Context()).Error("marshal event", "error", err)
				continue
			}
			eventID++
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", eventID, ev.Type, data)
			flusher.Flush()

		case <-s.closing:
			fmt.Fprint(w, "event: closed\ndata: {}\n\n")
			flusher.Flush()
			return

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
