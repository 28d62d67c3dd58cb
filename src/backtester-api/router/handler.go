package router

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jiaming2012/trading-gym/src/backtester-api/services"
	"github.com/jiaming2012/trading-gym/src/eventmodels"
)

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func setResponse(response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("SetResponse: encode: %w", err)
	}

	return nil
}

func setErrorResponse(err *eventmodels.WebError, w http.ResponseWriter) {
	if err.StatusCode >= 500 {
		log.Errorf("%s: %v", err.Message, err)
	} else {
		log.Warnf("%s: %v", err.Message, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)

	if encodeErr := json.NewEncoder(w).Encode(err.Response()); encodeErr != nil {
		log.Errorf("setErrorResponse: encode: %v", encodeErr)
	}
}

func writeResult(msg string, response interface{}, err error, w http.ResponseWriter) {
	if err != nil {
		setErrorResponse(toWebError(msg, err), w)
		return
	}

	if err := setResponse(response, w); err != nil {
		log.Errorf("%s: failed to set response: %v", msg, err)
	}
}

func sessionID(r *http.Request) (uuid.UUID, *eventmodels.WebError) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, eventmodels.NewWebError(400, "failed to parse session id", err)
	}

	return id, nil
}

type handler struct {
	service *GymService
}

func (h *handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setErrorResponse(eventmodels.NewWebError(400, "createSession: failed to decode request", err), w)
		return
	}

	resp, err := h.service.CreateSession(req)
	writeResult("createSession", resp, err, w)
}

func (h *handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, webErr := sessionID(r)
	if webErr != nil {
		setErrorResponse(webErr, w)
		return
	}

	err := h.service.DeleteSession(id)
	writeResult("deleteSession", map[string]string{"session_id": id.String()}, err, w)
}

func (h *handler) handleReset(w http.ResponseWriter, r *http.Request) {
	id, webErr := sessionID(r)
	if webErr != nil {
		setErrorResponse(webErr, w)
		return
	}

	resp, err := h.service.Reset(r.Context(), id)
	writeResult("reset", resp, err, w)
}

func (h *handler) handleStep(w http.ResponseWriter, r *http.Request) {
	id, webErr := sessionID(r)
	if webErr != nil {
		setErrorResponse(webErr, w)
		return
	}

	var req StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		setErrorResponse(eventmodels.NewWebError(400, "step: failed to decode request", err), w)
		return
	}

	resp, err := h.service.Step(r.Context(), id, req)
	writeResult("step", resp, err, w)
}

func (h *handler) handleJournal(w http.ResponseWriter, r *http.Request) {
	id, webErr := sessionID(r)
	if webErr != nil {
		setErrorResponse(webErr, w)
		return
	}

	var filter services.JournalFilter
	if err := queryDecoder.Decode(&filter, r.URL.Query()); err != nil {
		setErrorResponse(eventmodels.NewWebError(400, "journal: failed to decode query", err), w)
		return
	}

	entries, err := h.service.Journal(id, filter)
	writeResult("journal", entries, err, w)
}

// SetupHandler registers the gym endpoints on router. Each route carries its
// pattern as the http.route attribute of the otelhttp span.
func SetupHandler(router *mux.Router, service *GymService) {
	h := &handler{service: service}

	handle := func(pattern string, f http.HandlerFunc, methods ...string) {
		router.Handle(pattern, otelhttp.WithRouteTag(pattern, f)).Methods(methods...)
	}

	handle("/sessions", h.handleCreateSession, http.MethodPost)
	handle("/sessions/{id}", h.handleDeleteSession, http.MethodDelete)
	handle("/sessions/{id}/reset", h.handleReset, http.MethodPost)
	handle("/sessions/{id}/step", h.handleStep, http.MethodPost)
	handle("/sessions/{id}/journal", h.handleJournal, http.MethodGet)
	handle("/sessions/{id}/ws", h.handleWebsocket, http.MethodGet)
}
