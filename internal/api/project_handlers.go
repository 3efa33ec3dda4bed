package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/editing"
	"github.com/zash3dit/zashedit/internal/timeline"
)

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Service.ListProjects(r.Context())
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectsResponse{Projects: projects})
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		p, err := cfg.Service.CreateProject(r.Context(), req.Name, req.Resolution, req.FrameRate)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, p)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		p, err := cfg.Service.GetProject(r.Context(), id)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func renameProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req RenameProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		p, err := cfg.Service.RenameProject(r.Context(), id, req.Name)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := cfg.Service.DeleteProject(r.Context(), id); err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func importVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req ImportVideoRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := cfg.Service.ImportVideo(r.Context(), id, req.Path, req.Duration)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, importStatus(res), res)
	}
}

func importAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req ImportAudioRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := cfg.Service.ImportAudio(r.Context(), id, editing.AudioImport{
			Path:      req.Path,
			Duration:  req.Duration,
			StartTime: req.StartTime,
			Volume:    req.Volume,
		})
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, importStatus(res), res)
	}
}

// importStatus is 201 for a new clip and 200 for a skipped path.
func importStatus(res *editing.ImportResult) int {
	if res.Imported {
		return http.StatusCreated
	}
	return http.StatusOK
}

func removeVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return clipMutation(cfg, func(r *http.Request, projectID, clipID int64) (*timeline.Project, error) {
		return cfg.Service.RemoveVideoClip(r.Context(), projectID, clipID)
	})
}

func transitionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TransitionRequest
		clipMutation(cfg, func(r *http.Request, projectID, clipID int64) (*timeline.Project, error) {
			t, err := timeline.ParseTransition(req.Type)
			if err != nil {
				return nil, apperr.Invalid(apperr.StageTransition, "%v", err)
			}
			return cfg.Service.SetTransition(r.Context(), projectID, clipID, t, req.Duration)
		}, &req)(w, r)
	}
}

func positionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PositionRequest
		clipMutation(cfg, func(r *http.Request, projectID, clipID int64) (*timeline.Project, error) {
			return cfg.Service.Reorder(r.Context(), projectID, clipID, req.Position)
		}, &req)(w, r)
	}
}

func trimHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TrimRequest
		clipEncode(cfg, func(r *http.Request, projectID, clipID int64) (*editing.Result, error) {
			return cfg.Service.Trim(r.Context(), projectID, editing.TrimParams{ClipID: clipID, Start: req.Start, End: req.End})
		}, &req)(w, r)
	}
}

func splitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitRequest
		clipEncode(cfg, func(r *http.Request, projectID, clipID int64) (*editing.Result, error) {
			return cfg.Service.Split(r.Context(), projectID, editing.SplitParams{ClipID: clipID, At: req.At})
		}, &req)(w, r)
	}
}

func effectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EffectsRequest
		clipEncode(cfg, func(r *http.Request, projectID, clipID int64) (*editing.Result, error) {
			fx, err := req.toEffects()
			if err != nil {
				return nil, apperr.Invalid(apperr.StageEffects, "%v", err)
			}
			return cfg.Service.ApplyEffects(r.Context(), projectID, editing.EffectsParams{ClipID: clipID, Effects: fx})
		}, &req)(w, r)
	}
}

func burnOverlaysHandler(cfg ServerConfig) http.HandlerFunc {
	return clipEncode(cfg, func(r *http.Request, projectID, clipID int64) (*editing.Result, error) {
		return cfg.Service.BurnOverlays(r.Context(), projectID, editing.ClipParams{ClipID: clipID})
	})
}

func mixAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return clipEncode(cfg, func(r *http.Request, projectID, clipID int64) (*editing.Result, error) {
		return cfg.Service.MixAudio(r.Context(), projectID, editing.ClipParams{ClipID: clipID})
	})
}

func mergeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req MergeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := cfg.Service.Merge(r.Context(), id, editing.MergeParams{ClipIDs: req.ClipIDs})
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func updateAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editing.AudioUpdate
		childMutation(cfg, "audioID", func(r *http.Request, projectID, audioID int64) (*timeline.Project, error) {
			return cfg.Service.UpdateAudioClip(r.Context(), projectID, audioID, req)
		}, &req)(w, r)
	}
}

func deleteAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return childMutation(cfg, "audioID", func(r *http.Request, projectID, audioID int64) (*timeline.Project, error) {
		return cfg.Service.DeleteAudioClip(r.Context(), projectID, audioID)
	})
}

func addOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req editing.Overlay
		if !decodeBody(w, r, &req) {
			return
		}
		p, err := cfg.Service.AddTextOverlay(r.Context(), id, req)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusCreated, p)
	}
}

func updateOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editing.Overlay
		childMutation(cfg, "overlayID", func(r *http.Request, projectID, overlayID int64) (*timeline.Project, error) {
			return cfg.Service.UpdateTextOverlay(r.Context(), projectID, overlayID, req)
		}, &req)(w, r)
	}
}

func deleteOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return childMutation(cfg, "overlayID", func(r *http.Request, projectID, overlayID int64) (*timeline.Project, error) {
		return cfg.Service.DeleteTextOverlay(r.Context(), projectID, overlayID)
	})
}

type childFunc[T any] func(r *http.Request, projectID, childID int64) (T, error)

// childHandler resolves the project id and a child id from the path, decodes
// the optional body into req and writes fn's result as JSON.
func childHandler[T any](cfg ServerConfig, param string, fn childFunc[T], req ...any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		childID, ok := pathID(w, r, param)
		if !ok {
			return
		}
		if len(req) > 0 && !decodeBody(w, r, req[0]) {
			return
		}
		out, err := fn(r, projectID, childID)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, out)
	}
}

func childMutation(cfg ServerConfig, param string, fn childFunc[*timeline.Project], req ...any) http.HandlerFunc {
	return childHandler(cfg, param, fn, req...)
}

func clipMutation(cfg ServerConfig, fn childFunc[*timeline.Project], req ...any) http.HandlerFunc {
	return childHandler(cfg, "clipID", fn, req...)
}

func clipEncode(cfg ServerConfig, fn childFunc[*editing.Result], req ...any) http.HandlerFunc {
	return childHandler(cfg, "clipID", fn, req...)
}

// projectEventsHandler streams the project list as server-sent events, one
// "projects" event per change.
func projectEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteError(w, http.StatusInternalServerError, "streaming unsupported", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for projects := range cfg.Service.WatchProjects(r.Context()) {
			data, err := json.Marshal(ProjectsResponse{Projects: projects})
			if err != nil {
				cfg.Logger.Error("encode project event", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "event: projects\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
