package marginalia

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/engine"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/outbox"
	"github.com/marginalia-app/marginalia/pkg/store"
)

// ReaderHeader carries the authenticated reader id.
const ReaderHeader = "X-Reader-Id"

const maxBodyBytes = 1 << 20

// errorBody is the wire form of a failed command.
type errorBody struct {
	StatusCode int            `json:"statusCode"`
	Error      string         `json:"error"`
	Details    engine.Details `json:"details"`
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"store":    a.config.Store.Backend,
		"readOnly": a.IsReadOnly(),
		"time":     time.Now().Unix(),
	})
}

func (a *App) handleCreateReader(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string         `json:"name"`
		Profile models.JSONMap `json:"profile"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	reader := &models.Reader{Name: body.Name, Profile: body.Profile}
	if err := a.store.CreateReader(r.Context(), reader); err != nil {
		a.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, reader)
}

func (a *App) handleGetReader(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseReaderID(mux.Vars(r)["readerId"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Reader not found")
		return
	}
	reader, err := a.store.GetReader(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if reader == nil {
		respondError(w, http.StatusNotFound, "Reader not found")
		return
	}
	respondJSON(w, http.StatusOK, reader)
}

// handleProcess runs one command envelope through the engine.
//
// Response:
//   - 201 Created with a Location header and the activity view
//   - 400, 403, 404 or 500 with {statusCode, error, details}
func (a *App) handleProcess(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.authenticate(w, r)
	if !ok {
		return
	}

	var env command.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&env); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{
			StatusCode: http.StatusBadRequest,
			Error:      string(engine.BadEnvelope),
			Details:    engine.Details{Type: "InvalidJSON", MissingParams: []string{"body"}},
		})
		return
	}

	activity, err := a.engine.Process(r.Context(), actor, env)
	if err != nil {
		a.respondFailure(w, err)
		return
	}

	log := a.engine.Outbox()
	w.Header().Set("Location", log.URI(activity.ID))
	respondJSON(w, http.StatusCreated, log.View(activity))
}

func (a *App) handleListActivities(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.authenticate(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	log := a.engine.Outbox()
	activities, err := log.List(r.Context(), a.store, actor, limit)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	views := make([]outbox.View, 0, len(activities))
	for _, act := range activities {
		views = append(views, log.View(act))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"totalItems":   len(views),
		"orderedItems": views,
	})
}

func (a *App) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	actor, ok := readerFromHeader(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing or invalid "+ReaderHeader)
		return
	}
	id, err := models.ParseActivityID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "Activity not found")
		return
	}

	log := a.engine.Outbox()
	activity, err := log.Get(r.Context(), a.store, id)
	if err != nil {
		a.respondStoreError(w, err)
		return
	}
	if activity == nil {
		respondError(w, http.StatusNotFound, "Activity not found")
		return
	}
	if activity.ReaderID != actor {
		respondError(w, http.StatusForbidden, "Activity belongs to another reader")
		return
	}
	respondJSON(w, http.StatusOK, log.View(activity))
}

func (a *App) handleGetReadOnly(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"readOnly": a.IsReadOnly()})
}

func (a *App) handleSetReadOnly(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReadOnly *bool `json:"readOnly"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil || body.ReadOnly == nil {
		respondError(w, http.StatusBadRequest, "readOnly is required")
		return
	}
	a.SetReadOnly(*body.ReadOnly)
	respondJSON(w, http.StatusOK, map[string]bool{"readOnly": a.IsReadOnly()})
}

// authenticate resolves the acting reader from the header and checks it
// against the {readerId} path segment.
func (a *App) authenticate(w http.ResponseWriter, r *http.Request) (models.ReaderID, bool) {
	actor, ok := readerFromHeader(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing or invalid "+ReaderHeader)
		return actor, false
	}
	if mux.Vars(r)["readerId"] != actor.String() {
		respondJSON(w, http.StatusForbidden, errorBody{
			StatusCode: http.StatusForbidden,
			Error:      string(engine.Forbidden),
			Details:    engine.Details{Type: "Reader", ID: mux.Vars(r)["readerId"]},
		})
		return actor, false
	}
	return actor, true
}

func readerFromHeader(r *http.Request) (models.ReaderID, bool) {
	id, err := models.ParseReaderID(r.Header.Get(ReaderHeader))
	return id, err == nil && !id.IsZero()
}

func (a *App) respondFailure(w http.ResponseWriter, err error) {
	f, ok := engine.AsFailure(err)
	if !ok {
		a.logger.Error().Err(err).Msg("unclassified engine error")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	status := f.StatusCode()
	if errors.Is(f, store.ErrReadOnly) {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, errorBody{
		StatusCode: status,
		Error:      string(f.Kind),
		Details:    f.Public(),
	})
}

func (a *App) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrReadOnly):
		respondError(w, http.StatusServiceUnavailable, "service is in read-only mode")
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error().Err(err).Msg("store error")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
