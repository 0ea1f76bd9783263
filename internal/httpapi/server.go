package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"comfyd/internal/manager"
	"comfyd/internal/params"
	"comfyd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *manager.Manager satisfies it.
type Service interface {
	Start(sessionID string, p params.Parameters, sink manager.Sink) (*manager.Job, error)
	Cancel(sessionID string) error
	CancelJob(j *manager.Job)
	Session(sessionID string) (types.JobStatus, bool)
	Sessions() []types.JobStatus
	Status() types.StatusResponse
	Ready() bool
	DefaultWorkflow() string
}

// Catalog lists the registered workflow templates.
type Catalog interface {
	Workflows() []types.Workflow
}

// NewMux builds the router. catalog may be nil.
func NewMux(svc Service, catalog Catalog) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if mw := corsMiddleware(); mw != nil {
		r.Use(mw)
	}
	// Compression for JSON endpoints; NDJSON streams are left alone.
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/status", statusHandler(svc))
	r.Get("/workflows", workflowsHandler(svc, catalog))
	r.Get("/options", optionsHandler)
	r.Get("/sessions", sessionsHandler(svc))
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Post("/generate", inflight(generateHandler(svc)))
		r.Get("/job", jobHandler(svc))
		r.Delete("/job", cancelHandler(svc))
	})

	MountSwagger(r)
	return r
}

// statusHandler reports counters and active jobs.
//
// @Summary  Server status
// @Tags     status
// @Produce  json
// @Success  200  {object}  types.StatusResponse
// @Router   /status [get]
func statusHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	}
}

// @Summary  List workflow templates
// @Tags     workflows
// @Produce  json
// @Success  200  {object}  types.WorkflowsResponse
// @Router   /workflows [get]
func workflowsHandler(svc Service, catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := types.WorkflowsResponse{Workflows: []types.Workflow{}, Default: svc.DefaultWorkflow()}
		if catalog != nil {
			resp.Workflows = append(resp.Workflows, catalog.Workflows()...)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// optionsHandler serves the menu catalogs and the defaults of a fresh session.
//
// @Summary  Parameter catalogs
// @Tags     workflows
// @Produce  json
// @Success  200  {object}  types.OptionsResponse
// @Router   /options [get]
func optionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.OptionsResponse{
		Samplers:   params.Samplers,
		Schedulers: params.Schedulers,
		Sizes:      params.Extensions,
		Defaults:   params.DefaultRequest(),
	})
}

// @Summary  List active jobs
// @Tags     sessions
// @Produce  json
// @Success  200  {object}  types.SessionsResponse
// @Router   /sessions [get]
func sessionsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions := svc.Sessions()
		if sessions == nil {
			sessions = []types.JobStatus{}
		}
		writeJSON(w, http.StatusOK, types.SessionsResponse{Sessions: sessions})
	}
}

// @Summary  Active job of a session
// @Tags     sessions
// @Produce  json
// @Param    sessionID  path  string  true  "Session id"
// @Success  200  {object}  types.JobStatus
// @Failure  404  {object}  types.ErrorResponse
// @Router   /sessions/{sessionID}/job [get]
func jobHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		st, ok := svc.Session(sessionID)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "no active job for session "+sessionID)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// cancelHandler requests cancellation and returns without waiting for it.
//
// @Summary  Cancel the active job of a session
// @Tags     sessions
// @Produce  json
// @Param    sessionID  path  string  true  "Session id"
// @Success  202  {object}  types.JobStatus
// @Failure  404  {object}  types.ErrorResponse
// @Router   /sessions/{sessionID}/job [delete]
func cancelHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		if err := svc.Cancel(sessionID); err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		st, ok := svc.Session(sessionID)
		if !ok {
			st = types.JobStatus{SessionID: sessionID, State: string(manager.StateCancelled), Cancelled: true}
		}
		if lvl := requestLogLevel(r); lvl >= LevelInfo {
			l := requestLogger(r, sessionID)
			l.Info().Str("job_id", st.JobID).Msg("cancel requested")
		}
		writeJSON(w, http.StatusAccepted, st)
	}
}

// generateHandler starts a job and streams it as NDJSON: one start line,
// progress lines, then one done line. A client that goes away cancels the job.
//
// @Summary  Generate an image
// @Tags     sessions
// @Accept   json
// @Produce  application/x-ndjson
// @Param    sessionID  path  string                true  "Session id"
// @Param    request    body  types.GenerateRequest true  "Generation parameters"
// @Success  200  {object}  types.DoneLine  "NDJSON: StartLine, ProgressLine..., DoneLine"
// @Failure  400  {object}  types.ErrorResponse
// @Failure  409  {object}  types.ErrorResponse
// @Failure  503  {object}  types.ErrorResponse
// @Router   /sessions/{sessionID}/generate [post]
func generateHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "sessionID")
		lvl := requestLogLevel(r)
		log := requestLogger(r, sessionID)
		start := time.Now()

		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		// Limit body size (configurable, default 1MiB)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		p, err := params.FromRequest(req)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			logEnd(log, lvl, http.StatusBadRequest, start, err)
			return
		}

		sink := newStreamSink()
		defer close(sink.gone)
		job, err := svc.Start(sessionID, p, sink)
		if err != nil {
			status := statusFor(err)
			switch status {
			case http.StatusConflict:
				IncrementRejection("already_active")
			case http.StatusServiceUnavailable:
				IncrementRejection("shutting_down")
			}
			writeJSONError(w, status, err.Error())
			logEnd(log, lvl, status, start, err)
			return
		}
		if lvl >= LevelInfo {
			log.Info().Str("workflow", p.Workflow).Int("steps", p.Steps).Str("size", p.Size()).Msg("generate start")
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		enc := json.NewEncoder(w)
		flusher, _ := w.(http.Flusher)
		emit := func(v any) bool {
			if err := enc.Encode(v); err != nil {
				return false
			}
			if flusher != nil {
				flusher.Flush()
			}
			return true
		}
		emit(types.StartLine{SessionID: sessionID, State: string(manager.StateSubmitting)})

		base := serverBaseCtx.Done()
		for {
			select {
			case it := <-sink.items:
				if it.outcome != nil {
					o := *it.outcome
					emit(doneLine(o))
					var failure error
					if o.State == manager.StateFailed {
						failure = o.Err
					}
					logEnd(log.With().Str("job_id", o.JobID).Str("state", string(o.State)).Logger(), lvl, http.StatusOK, start, failure)
					return
				}
				if !emit(types.ProgressLine{Progress: it.tick.Percent, Value: it.tick.Value, Max: it.tick.Max}) {
					svc.CancelJob(job)
					return
				}
				if lvl >= LevelDebug {
					log.Debug().Float64("progress", it.tick.Percent).Msg("generate progress")
				}
			case <-r.Context().Done():
				svc.CancelJob(job)
				if lvl >= LevelInfo {
					log.Info().Dur("dur", time.Since(start)).Msg("client disconnected, job cancelled")
				}
				return
			case <-base:
				// Shutdown: cancel, then keep streaming until the outcome.
				svc.CancelJob(job)
				base = nil
			}
		}
	}
}

// doneLine renders the terminal NDJSON record of o.
func doneLine(o manager.Outcome) types.DoneLine {
	line := types.DoneLine{
		Done:      true,
		State:     string(o.State),
		JobID:     o.JobID,
		Seed:      o.Seed,
		ElapsedMS: o.Elapsed.Milliseconds(),
	}
	if o.State == manager.StateCompleted {
		line.ImageBase64 = base64.StdEncoding.EncodeToString(o.Artifact)
	} else if o.Err != nil {
		line.Error = o.Err.Error()
	}
	return line
}

// writeJSON writes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
