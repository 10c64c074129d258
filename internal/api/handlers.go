package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"drugscreen/internal/logging"
	"drugscreen/internal/screening"
	"drugscreen/internal/services"
	"drugscreen/internal/store"
	"drugscreen/internal/workflow"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Store().Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "database unavailable", Kind: services.Kind(err)})
		return
	}
	writeJSON(w, http.StatusOK, FromStatusSummary(s.manager.Status(r.Context())))
}

func (s *Server) handleSaveHook(w http.ResponseWriter, r *http.Request) {
	suppress := false
	if raw := strings.TrimSpace(r.URL.Query().Get("suppress_reentry")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid suppress_reentry value", Kind: "validation"})
			return
		}
		suppress = parsed
	}
	result, err := s.manager.Hook(r.Context(), chi.URLParam(r, "id"), store.SaveOptions{SuppressReentry: suppress})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromResult(result))
}

func (s *Server) handleGetTest(w http.ResponseWriter, r *http.Request) {
	test, err := s.manager.Store().FindTest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TestResponse{Test: FromTest(test)})
}

func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	var req screenRequest
	if !s.decode(w, r, &req) {
		return
	}
	test, outcome, err := s.manager.RecordScreen(r.Context(), chi.URLParam(r, "id"), workflow.ScreenInput{
		Detected:     req.Detected,
		Breathalyzer: screening.Breathalyzer{Taken: req.Breathalyzer.Taken, BAC: req.Breathalyzer.BAC},
		DocumentID:   req.DocumentID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithTest(w, r, test.ID, func(t Test) any {
		return ScreenResponse{Test: t, Outcome: FromOutcome(outcome)}
	})
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !s.decode(w, r, &req) {
		return
	}
	test, err := s.manager.RecordDecision(r.Context(), chi.URLParam(r, "id"),
		store.ConfirmationDecision(strings.ToLower(strings.TrimSpace(req.Decision))), req.Substances)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithTest(w, r, test.ID, nil)
}

func (s *Server) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	var req confirmationRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Results) == 0 && req.DocumentID == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "results or documentId required", Kind: "validation"})
		return
	}
	test, err := s.manager.RecordConfirmation(r.Context(), chi.URLParam(r, "id"), toConfirmationResults(req.Results), req.DocumentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithTest(w, r, test.ID, nil)
}

func (s *Server) handleInconclusive(w http.ResponseWriter, r *http.Request) {
	var req inconclusiveRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	test, err := s.manager.MarkInconclusive(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithTest(w, r, test.ID, nil)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	var req notificationsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "enabled is required", Kind: "validation"})
		return
	}
	test, err := s.manager.SetNotifications(r.Context(), chi.URLParam(r, "id"), *req.Enabled)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithTest(w, r, test.ID, nil)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "document storage unavailable"})
		return
	}
	query := r.URL.Query()
	kind := workflow.DocumentKind(strings.ToLower(strings.TrimSpace(query.Get("kind"))))
	if kind == "" {
		kind = workflow.DocumentScreening
	}
	if kind != workflow.DocumentScreening && kind != workflow.DocumentConfirmation {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("unknown document kind %q", kind), Kind: "validation"})
		return
	}
	testID := chi.URLParam(r, "id")
	if _, err := s.manager.Store().FindTest(r.Context(), testID); err != nil {
		s.writeError(w, r, err)
		return
	}
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "document too large"})
		return
	}
	if len(content) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "document body is empty", Kind: "validation"})
		return
	}
	filename := strings.TrimSpace(query.Get("filename"))
	if filename == "" {
		filename = string(kind) + ".pdf"
	}
	doc, err := s.docs.Put(r.Context(), filename, r.Header.Get("Content-Type"), content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.manager.AttachDocument(r.Context(), testID, kind, doc.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondWithTest(w, r, testID, nil)
}

// respondWithTest reloads the record so the response carries any stage the
// save just sent. wrap builds a custom payload; nil sends a TestResponse.
func (s *Server) respondWithTest(w http.ResponseWriter, r *http.Request, testID string, wrap func(Test) any) {
	test, err := s.manager.Store().FindTest(r.Context(), testID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dto := FromTest(test)
	if wrap == nil {
		writeJSON(w, http.StatusOK, TestResponse{Test: dto})
		return
	}
	writeJSON(w, http.StatusOK, wrap(dto))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Kind: "validation"})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorHint, "inspect the wrapped error"),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: services.Kind(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDataIntegrity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrConfiguration), errors.Is(err, services.ErrMissingPrereqs):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
