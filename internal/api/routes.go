package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/logging"
	"github.com/zash3dit/zashedit/internal/playback"
	"github.com/zash3dit/zashedit/internal/store"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	cfg.Logger = logging.OrDiscard(cfg.Logger)
	if cfg.Media == nil {
		cfg.Media = playback.NewServer(cfg.Logger)
	}
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	// Media elements cannot send bearer headers, so clip media is limited
	// to loopback callers instead.
	r.Group(func(r chi.Router) {
		r.Use(LoopbackGuard())
		r.Get("/projects/{id}/videos/{clipID}/media", mediaHandler(cfg))
		r.Head("/projects/{id}/videos/{clipID}/media", mediaHandler(cfg))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Tokens, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", listProjectsHandler(cfg))
			r.Post("/", createProjectHandler(cfg))
			r.Get("/events", projectEventsHandler(cfg))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getProjectHandler(cfg))
				r.Patch("/", renameProjectHandler(cfg))
				r.Delete("/", deleteProjectHandler(cfg))

				r.Post("/videos", importVideoHandler(cfg))
				r.Post("/merge", mergeHandler(cfg))
				r.Route("/videos/{clipID}", func(r chi.Router) {
					r.Delete("/", removeVideoHandler(cfg))
					r.Post("/trim", trimHandler(cfg))
					r.Post("/split", splitHandler(cfg))
					r.Post("/effects", effectsHandler(cfg))
					r.Post("/overlays/burn", burnOverlaysHandler(cfg))
					r.Post("/mix", mixAudioHandler(cfg))
					r.Put("/transition", transitionHandler(cfg))
					r.Put("/position", positionHandler(cfg))
				})

				r.Post("/audio", importAudioHandler(cfg))
				r.Patch("/audio/{audioID}", updateAudioHandler(cfg))
				r.Delete("/audio/{audioID}", deleteAudioHandler(cfg))

				r.Post("/overlays", addOverlayHandler(cfg))
				r.Put("/overlays/{overlayID}", updateOverlayHandler(cfg))
				r.Delete("/overlays/{overlayID}", deleteOverlayHandler(cfg))

				r.Get("/export/edl", exportEDLHandler(cfg))
				r.Post("/export/edl", writeEDLHandler(cfg))
			})
		})

		r.Get("/operations", listOperationsHandler(cfg))
		r.Get("/operations/{id}", getOperationHandler(cfg))
		r.Post("/operations/{id}/retry", retryOperationHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		projects, _ := cfg.Service.ListProjects(ctx)
		ops, _ := cfg.Service.Operations(ctx, 0, 20)

		resp := StatusResponse{State: "idle", ProjectsCount: len(projects)}
		for _, op := range ops {
			switch op.Status {
			case store.OperationRunning:
				resp.State = "encoding"
				resp.OperationsRunning++
				if resp.ActiveOperation == nil {
					resp.ActiveOperation = op
				}
			case store.OperationFailed:
				if resp.LastError == "" {
					resp.LastError = op.Error
				}
			}
		}
		if resp.LastError != "" && resp.State == "idle" {
			resp.State = "error"
		}

		if cfg.Doctor != nil {
			if caps := cfg.Doctor.Peek(); caps != nil {
				resp.Tools = &ToolsResponse{
					FFmpeg:    ToolResponse{Available: caps.FFmpeg.Available, Version: caps.FFmpeg.Version, Error: caps.FFmpeg.Error},
					FFprobe:   ToolResponse{Available: caps.FFprobe.Available, Version: caps.FFprobe.Version, Error: caps.FFprobe.Error},
					DryRun:    caps.DryRun,
					CanEncode: caps.CanEncode(),
				}
				if !caps.ProbedAt.IsZero() {
					resp.Tools.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		clipID, ok := pathID(w, r, "clipID")
		if !ok {
			return
		}

		p, err := cfg.Service.GetProject(r.Context(), projectID)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		for _, c := range p.VideoClips {
			if c.ID != clipID {
				continue
			}
			if err := cfg.Media.Stream(w, r, c.FilePath); err != nil {
				cfg.Logger.Error("media stream error", "error", err, "project_id", projectID, "clip_id", clipID)
				WriteError(w, http.StatusInternalServerError, "failed to read media", "INTERNAL_ERROR")
			}
			return
		}
		WriteAppError(w, cfg.Logger, apperr.NotFound(apperr.StageProject, "video clip %d not found in project %d", clipID, projectID))
	}
}

// pathID parses a numeric URL parameter, answering 400 when it is not one.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, name+" must be a positive integer", "BAD_REQUEST")
		return 0, false
	}
	return id, true
}

// decodeBody reads a JSON body, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), "BAD_REQUEST")
		return false
	}
	return true
}
