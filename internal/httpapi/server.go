// Package httpapi is the control-plane HTTP surface (spec.md §6): run,
// stream, submit-input and cancel endpoints for suites and individual
// steps, routed with gorilla/mux in the same
// registerRoutes/router.HandleFunc(...).Methods(...) style the teacher
// uses for its service routers.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/stepflow/orchestrator/internal/apierr"
	"github.com/stepflow/orchestrator/internal/catalog"
	"github.com/stepflow/orchestrator/internal/config"
	"github.com/stepflow/orchestrator/internal/coordinator"
	"github.com/stepflow/orchestrator/internal/domain"
	"github.com/stepflow/orchestrator/internal/logging"
	"github.com/stepflow/orchestrator/internal/schedule"
	"github.com/stepflow/orchestrator/internal/sse"
)

// Server holds the dependencies every control-plane handler needs.
type Server struct {
	store          catalog.Store
	driver         *coordinator.Driver
	logger         *logging.Logger
	maxUploadBytes int64
}

// NewServer builds a Server. maxUploadBytes bounds the request body of
// any endpoint that can carry environment file bytes (spec.md §6
// "File upload 50 MiB"); 0 falls back to config.DefaultMaxUploadBytes.
func NewServer(store catalog.Store, driver *coordinator.Driver, logger *logging.Logger, maxUploadBytes int64) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = config.DefaultMaxUploadBytes
	}
	return &Server{store: store, driver: driver, logger: logger, maxUploadBytes: maxUploadBytes}
}

// Register wires every control-plane route onto router.
func (s *Server) Register(router *mux.Router) {
	router.HandleFunc("/api/test-suites/{suiteId}/run", s.handleRunSuite).Methods(http.MethodPost)
	router.HandleFunc("/api/test-suites/{suiteId}/steps/{stepId}/run", s.handleRunStep).Methods(http.MethodPost)
	router.HandleFunc("/api/test-suites/{suiteId}/run/stream", s.handleStreamSuite).Methods(http.MethodGet)
	router.HandleFunc("/api/test-suites/{suiteId}/steps/{stepId}/run/stream", s.handleStreamStep).Methods(http.MethodGet)
	router.HandleFunc("/api/test-suites/{suiteId}/run/{runId}/inputs", s.handleSubmitInput).Methods(http.MethodPost)
	router.HandleFunc("/api/test-suites/{suiteId}/run/{runId}/cancel", s.handleCancel).Methods(http.MethodPost)

	router.HandleFunc("/api/test-suites", s.handleListSuites).Methods(http.MethodGet)
	router.HandleFunc("/api/test-suites/{suiteId}", s.handleGetSuite).Methods(http.MethodGet)
	router.HandleFunc("/api/test-suites/{suiteId}", s.handleSaveSuite).Methods(http.MethodPut)
	router.HandleFunc("/api/test-suites/{suiteId}", s.handleDeleteSuite).Methods(http.MethodDelete)

	router.HandleFunc("/api/environments", s.handleListEnvironments).Methods(http.MethodGet)
	router.HandleFunc("/api/environments/{envId}", s.handleGetEnvironment).Methods(http.MethodGet)
	router.HandleFunc("/api/environments/{envId}", s.handleSaveEnvironment).Methods(http.MethodPut)
	router.HandleFunc("/api/environments/{envId}", s.handleDeleteEnvironment).Methods(http.MethodDelete)

	router.HandleFunc("/api/schedules", s.handleListSchedules).Methods(http.MethodGet)
	router.HandleFunc("/api/schedules/{scheduleId}", s.handleSaveSchedule).Methods(http.MethodPut)
	router.HandleFunc("/api/schedules/{scheduleId}", s.handleDeleteSchedule).Methods(http.MethodDelete)
	router.HandleFunc("/api/schedules/preview", s.handlePreviewSchedule).Methods(http.MethodGet)

	router.HandleFunc("/api/test-suites/{suiteId}/runs", s.handleListRuns).Methods(http.MethodGet)
	router.HandleFunc("/api/runs/{runId}", s.handleGetRun).Methods(http.MethodGet)
}

type runSuiteBody struct {
	EnvironmentID string `json:"environmentId"`
}

// discardingSink is used for the synchronous (non-streaming) endpoints,
// whose callers only want the final SuiteExecutionResult.
type discardingSink struct{}

func (discardingSink) Emit(coordinator.Event) {}

func (s *Server) loadSuiteAndEnv(r *http.Request, suiteID, environmentID string) (*domain.Suite, *domain.Environment, error) {
	suite, err := s.store.Suite(r.Context(), suiteID)
	if err != nil {
		return nil, nil, err
	}
	if environmentID == "" {
		environmentID = suite.DefaultEnvironmentID
	}
	var env *domain.Environment
	if environmentID != "" {
		env, err = s.store.Environment(r.Context(), environmentID)
		if err != nil {
			return nil, nil, err
		}
	}
	return suite, env, nil
}

func (s *Server) handleRunSuite(w http.ResponseWriter, r *http.Request) {
	suiteID := mux.Vars(r)["suiteId"]
	var body runSuiteBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, apierr.Validation("invalid request body"))
			return
		}
	}

	suite, env, err := s.loadSuiteAndEnv(r, suiteID, body.EnvironmentID)
	if err != nil {
		writeError(w, err)
		return
	}

	run, err := s.driver.RunSuite(r.Context(), suite, env, domain.TriggerManual, "", discardingSink{})
	if err != nil {
		writeError(w, err)
		return
	}
	s.persistRun(r, run)
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunStep(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	suiteID, stepID := vars["suiteId"], vars["stepId"]
	var body runSuiteBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, apierr.Validation("invalid request body"))
			return
		}
	}

	suite, env, err := s.loadSuiteAndEnv(r, suiteID, body.EnvironmentID)
	if err != nil {
		writeError(w, err)
		return
	}

	run, err := s.driver.RunStep(r.Context(), suite, env, stepID, domain.TriggerManual, "", discardingSink{})
	if err != nil {
		writeError(w, err)
		return
	}
	s.persistRun(r, run)
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleStreamSuite(w http.ResponseWriter, r *http.Request) {
	suiteID := mux.Vars(r)["suiteId"]
	suite, env, err := s.loadSuiteAndEnv(r, suiteID, r.URL.Query().Get("environmentId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, err)
		return
	}
	sink := &sseSink{w: writer}

	run, err := s.driver.RunSuite(r.Context(), suite, env, domain.TriggerManual, "", sink)
	if err != nil {
		return
	}
	s.persistRun(r, run)
}

func (s *Server) handleStreamStep(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	suiteID, stepID := vars["suiteId"], vars["stepId"]
	suite, env, err := s.loadSuiteAndEnv(r, suiteID, r.URL.Query().Get("environmentId"))
	if err != nil {
		writeError(w, err)
		return
	}

	writer, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, err)
		return
	}
	sink := &sseSink{w: writer}

	run, err := s.driver.RunStep(r.Context(), suite, env, stepID, domain.TriggerManual, "", sink)
	if err != nil {
		return
	}
	s.persistRun(r, run)
}

func (s *Server) persistRun(r *http.Request, run *domain.Run) {
	if run == nil {
		return
	}
	if err := s.store.SaveRun(r.Context(), run); err != nil && s.logger != nil {
		s.logger.WithContext(r.Context()).WithError(err).Error("failed to persist run")
	}
}

type submitInputBody struct {
	Values map[string]string `json:"values"`
}

func (s *Server) handleSubmitInput(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	var body submitInputBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierr.Validation("invalid request body"))
		return
	}
	if ok := s.driver.SubmitInput(runID, body.Values); !ok {
		writeError(w, apierr.NotFound("run", runID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["runId"]
	if ok := s.driver.Cancel(runID); !ok {
		writeError(w, apierr.NotFound("run", runID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSuites(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	suites, err := s.store.ListSuites(r.Context(), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suites)
}

func (s *Server) handleGetSuite(w http.ResponseWriter, r *http.Request) {
	suite, err := s.store.Suite(r.Context(), mux.Vars(r)["suiteId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suite)
}

func (s *Server) handleSaveSuite(w http.ResponseWriter, r *http.Request) {
	var suite domain.Suite
	if err := json.NewDecoder(r.Body).Decode(&suite); err != nil {
		writeError(w, apierr.Validation("invalid request body"))
		return
	}
	suite.ID = mux.Vars(r)["suiteId"]
	if err := s.store.SaveSuite(r.Context(), &suite); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suite)
}

func (s *Server) handleDeleteSuite(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSuite(r.Context(), mux.Vars(r)["suiteId"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	envs, err := s.store.ListEnvironments(r.Context(), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

func (s *Server) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	env, err := s.store.Environment(r.Context(), mux.Vars(r)["envId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleSaveEnvironment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	var env domain.Environment
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeError(w, apierr.Validation("invalid request body: exceeds upload limit or malformed"))
		return
	}
	env.ID = mux.Vars(r)["envId"]
	if err := s.store.SaveEnvironment(r.Context(), &env); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleDeleteEnvironment(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteEnvironment(r.Context(), mux.Vars(r)["envId"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	scheds, err := s.store.ListSchedules(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheds)
}

func (s *Server) handleSaveSchedule(w http.ResponseWriter, r *http.Request) {
	var sched domain.Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		writeError(w, apierr.Validation("invalid request body"))
		return
	}
	sched.ID = mux.Vars(r)["scheduleId"]
	if err := s.store.SaveSchedule(r.Context(), &sched); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSchedule(r.Context(), mux.Vars(r)["scheduleId"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	runs, err := s.store.ListRuns(r.Context(), mux.Vars(r)["suiteId"], offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handlePreviewSchedule(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("cronExpr")
	if expr == "" {
		writeError(w, apierr.Validation("cronExpr is required"))
		return
	}
	n, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || n <= 0 {
		n = 5
	}
	times, err := schedule.PreviewNextRuns(expr, time.Now(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"nextRuns": times})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Run(r.Context(), mux.Vars(r)["runId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func pageParams(r *http.Request) (offset, limit int) {
	q := r.URL.Query()
	offset, _ = strconv.Atoi(q.Get("offset"))
	limit, _ = strconv.Atoi(q.Get("limit"))
	return offset, limit
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	ee := apierr.As(err)
	status := apierr.HTTPStatus(err)
	if ee != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"kind":    ee.Kind,
			"message": ee.Message,
			"details": ee.Details,
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"kind":    "INTERNAL",
		"message": err.Error(),
	})
}
