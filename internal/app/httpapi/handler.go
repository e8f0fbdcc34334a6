// Package httpapi exposes the REST surface of the calculation service.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/CalcStack/calc_service/internal/app"
	"github.com/CalcStack/calc_service/internal/app/domain/calculation"
	"github.com/CalcStack/calc_service/internal/app/metrics"
	apperrors "github.com/CalcStack/calc_service/internal/errors"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a router exposing the core REST API. Routes under
// /calculations and /users/me require a bearer token.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}

	r := mux.NewRouter().StrictSlash(true)
	r.HandleFunc("/", h.info).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/users/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/users/login", h.login).Methods(http.MethodPost)

	me := r.PathPrefix("/users/me").Subrouter()
	me.Use(authMiddleware(h.app.Guard))
	me.HandleFunc("", h.deleteAccount).Methods(http.MethodDelete)

	calc := r.PathPrefix("/calculations").Subrouter()
	calc.Use(authMiddleware(h.app.Guard))
	calc.HandleFunc("", h.browseCalculations).Methods(http.MethodGet)
	calc.HandleFunc("", h.addCalculation).Methods(http.MethodPost)
	calc.HandleFunc("/{id}", h.readCalculation).Methods(http.MethodGet)
	calc.HandleFunc("/{id}", h.editCalculation).Methods(http.MethodPut, http.MethodPatch)
	calc.HandleFunc("/{id}", h.deleteCalculation).Methods(http.MethodDelete)

	return r
}

func (h *handler) info(w http.ResponseWriter, r *http.Request) {
	kinds := h.app.Registry.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":    "calc_service",
		"version":    "1.0.0",
		"operations": names,
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Principals.Register(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.app.Principals.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (h *handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeServiceError(w, apperrors.Unauthorized("missing principal"))
		return
	}

	if err := h.app.Principals.Delete(r.Context(), p.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) browseCalculations(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeServiceError(w, apperrors.Unauthorized("missing principal"))
		return
	}

	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", 0)

	records, err := h.app.Calculations.Browse(r.Context(), p, offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []calculation.Calculation{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *handler) addCalculation(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeServiceError(w, apperrors.Unauthorized("missing principal"))
		return
	}

	var payload struct {
		A    float64          `json:"a"`
		B    float64          `json:"b"`
		Kind calculation.Kind `json:"type"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	created, err := h.app.Calculations.Create(r.Context(), p, payload.A, payload.B, payload.Kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) readCalculation(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeServiceError(w, apperrors.Unauthorized("missing principal"))
		return
	}

	record, err := h.app.Calculations.Read(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *handler) editCalculation(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeServiceError(w, apperrors.Unauthorized("missing principal"))
		return
	}

	var payload struct {
		A    *float64          `json:"a"`
		B    *float64          `json:"b"`
		Kind *calculation.Kind `json:"type"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	updated, err := h.app.Calculations.Edit(r.Context(), p, mux.Vars(r)["id"], payload.A, payload.B, payload.Kind)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteCalculation(w http.ResponseWriter, r *http.Request) {
	p, ok := principalFrom(r.Context())
	if !ok {
		writeServiceError(w, apperrors.Unauthorized("missing principal"))
		return
	}

	if err := h.app.Calculations.Delete(r.Context(), p, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func decodeJSON(body io.Reader, dst interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("unexpected trailing data in request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeServiceError maps a service error to its HTTP status. Anything outside
// the taxonomy becomes an opaque 500.
func writeServiceError(w http.ResponseWriter, err error) {
	if svcErr := apperrors.GetServiceError(err); svcErr != nil {
		writeJSON(w, svcErr.HTTPStatus, map[string]interface{}{
			"error": svcErr.Message,
			"code":  string(svcErr.Code),
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
