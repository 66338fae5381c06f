package admin

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/aaronsb/screentimed/internal/config"
	"github.com/aaronsb/screentimed/internal/domain"
	"github.com/aaronsb/screentimed/pkg/logger"
)

// Server exposes Surface over a loopback-only HTTP API, the transport
// screentimectl talks to (spec §4.10, §6).
type Server struct {
	surface *Surface
	log     logger.Logger
	router  *mux.Router
	dbCfg   config.DatabaseConfig
}

// NewServer builds the mux.Router and registers every route.
func NewServer(surface *Surface, dbCfg config.DatabaseConfig, log logger.Logger) *Server {
	s := &Server{surface: surface, log: log, router: mux.NewRouter(), dbCfg: dbCfg}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	r.HandleFunc("/users", s.handleAddUser).Methods(http.MethodPost)
	r.HandleFunc("/users/{user}/limits", s.handleGetLimits).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/limits", s.handleSetLimits).Methods(http.MethodPut)
	r.HandleFunc("/users/{user}/schedule", s.handleGetSchedule).Methods(http.MethodGet)
	r.HandleFunc("/users/{user}/schedule", s.handleImportSchedule).Methods(http.MethodPut)
	r.HandleFunc("/users/{user}/schedule/{slot}", s.handleSetScheduleSlot).Methods(http.MethodPut)
	r.HandleFunc("/users/{user}/audit", s.handleListAudit).Methods(http.MethodGet)

	r.HandleFunc("/patterns", s.handleListPatterns).Methods(http.MethodGet)
	r.HandleFunc("/patterns", s.handleAddPattern).Methods(http.MethodPost)
	r.HandleFunc("/patterns/{id}/state", s.handleSetPatternState).Methods(http.MethodPut)
	r.HandleFunc("/patterns/{id}", s.handleModifyPattern).Methods(http.MethodPatch)

	r.HandleFunc("/discovery", s.handleListDiscovery).Methods(http.MethodGet)
	r.HandleFunc("/discovery/promote", s.handlePromoteDiscovery).Methods(http.MethodPost)
	r.HandleFunc("/discovery/ignore", s.handleIgnoreDiscovery).Methods(http.MethodPost)

	r.HandleFunc("/templates", s.handleListTemplates).Methods(http.MethodGet)
	r.HandleFunc("/templates", s.handleAddTemplate).Methods(http.MethodPost)
	r.HandleFunc("/templates/test", s.handleTestTemplate).Methods(http.MethodPost)

	r.HandleFunc("/maintenance", s.handleMaintenance).Methods(http.MethodPost)

	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.surface.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleAddUser(w http.ResponseWriter, r *http.Request) {
	var u domain.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.surface.AddUser(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleGetLimits(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	l, err := s.surface.GetLimits(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if l == nil {
		writeError(w, http.StatusNotFound, errNotFound("limits", user))
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleSetLimits(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	var l domain.Limits
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	l.User = user
	if err := s.surface.SetLimits(r.Context(), l); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	grid, err := s.surface.GetSchedule(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"schedule": grid})
}

func (s *Server) handleImportSchedule(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	var body struct {
		Schedule string `json:"schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.surface.ImportSchedule(r.Context(), user, body.Schedule); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"schedule": body.Schedule})
}

func (s *Server) handleSetScheduleSlot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user := vars["user"]
	slot, err := strconv.Atoi(vars["slot"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Allowed bool `json:"allowed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.surface.SetScheduleSlot(r.Context(), user, slot, body.Allowed); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": body.Allowed})
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.surface.ListAudit(r.Context(), user, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	patterns, err := s.surface.ListPatterns(r.Context(), owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, patterns)
}

func (s *Server) handleAddPattern(w http.ResponseWriter, r *http.Request) {
	var p domain.Pattern
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.surface.AddPattern(r.Context(), p)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleSetPatternState(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		State domain.MonitorState `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.surface.SetPatternState(r.Context(), id, body.State); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": string(body.State)})
}

func (s *Server) handleModifyPattern(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var body struct {
		Category    domain.Category `json:"category"`
		DisplayName string          `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.surface.ModifyPattern(r.Context(), id, body.Category, body.DisplayName); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListDiscovery(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.surface.ListDiscoveryCandidates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if candidates == nil {
		candidates = []domain.DiscoveryCandidate{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

func (s *Server) handlePromoteDiscovery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Candidate   domain.DiscoveryCandidate `json:"candidate"`
		Category    domain.Category           `json:"category"`
		DisplayName string                    `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.surface.PromoteCandidate(r.Context(), body.Candidate, body.Category, body.DisplayName)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleIgnoreDiscovery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Candidate domain.DiscoveryCandidate `json:"candidate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.surface.IgnoreCandidate(r.Context(), body.Candidate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.surface.ListTemplates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) handleAddTemplate(w http.ResponseWriter, r *http.Request) {
	var t domain.MessageTemplate
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	id, err := s.surface.AddTemplate(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleTestTemplate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Intention string            `json:"intention"`
		Vars      map[string]string `json:"vars"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	title, text, err := s.surface.TestRenderTemplate(r.Context(), body.Intention, body.Vars)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": title, "body": text})
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if err := s.surface.TriggerMaintenance(r.Context(), s.dbCfg); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "complete"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	statuses, err := s.surface.Status(r.Context(), user, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func errNotFound(kind, id string) error {
	return &notFoundError{kind: kind, id: id}
}

type notFoundError struct {
	kind, id string
}

func (e *notFoundError) Error() string {
	return e.kind + " not found: " + e.id
}
