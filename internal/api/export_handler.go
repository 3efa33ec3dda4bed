package api

import (
	"net/http"

	"github.com/zash3dit/zashedit/internal/export"
)

// exportEDLHandler returns the project's edit decision list as text.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
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

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(export.GenerateEDL(p, r.URL.Query().Get("title"))))
	}
}

// writeEDLHandler writes the list into a directory on this machine.
func writeEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req export.Request
		if !decodeBody(w, r, &req) {
			return
		}
		p, err := cfg.Service.GetProject(r.Context(), id)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}

		res, err := export.Write(p, req)
		if err != nil {
			WriteAppError(w, cfg.Logger, err)
			return
		}
		cfg.Logger.Info("edl exported", "project_id", id, "path", res.OutputPath, "events", res.EventCount)
		WriteJSON(w, http.StatusOK, res)
	}
}
