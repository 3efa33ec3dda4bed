package api

import (
	"encoding/json"

	"github.com/zash3dit/zashedit/internal/editing"
	"github.com/zash3dit/zashedit/internal/store"
	"github.com/zash3dit/zashedit/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State             string           `json:"state"`
	LastError         string           `json:"last_error,omitempty"`
	ProjectsCount     int              `json:"projects_count"`
	OperationsRunning int              `json:"operations_running"`
	ActiveOperation   *store.Operation `json:"active_operation,omitempty"`
	Tools             *ToolsResponse   `json:"tools,omitempty"`
}

type ToolsResponse struct {
	FFmpeg      ToolResponse `json:"ffmpeg"`
	FFprobe     ToolResponse `json:"ffprobe"`
	DryRun      bool         `json:"dry_run"`
	CanEncode   bool         `json:"can_encode"`
	LastProbeAt string       `json:"last_probe_at,omitempty"`
}

type ToolResponse struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code"`
	Stage     string         `json:"stage,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
	Retry     *RetryResponse `json:"retry,omitempty"`
}

// RetryResponse tells the client how to re-issue a failed operation.
type RetryResponse struct {
	OperationID string          `json:"operation_id"`
	Stage       string          `json:"stage"`
	Params      json.RawMessage `json:"params"`
}

type CreateProjectRequest struct {
	Name       string `json:"name"`
	Resolution string `json:"resolution,omitempty"`
	FrameRate  int    `json:"frame_rate,omitempty"`
}

type RenameProjectRequest struct {
	Name string `json:"name"`
}

type ProjectsResponse struct {
	Projects []*timeline.Project `json:"projects"`
}

type ImportVideoRequest struct {
	Path     string `json:"path"`
	Duration int64  `json:"duration,omitempty"`
}

type ImportAudioRequest struct {
	Path      string   `json:"path"`
	Duration  int64    `json:"duration,omitempty"`
	StartTime int64    `json:"start_time"`
	Volume    *float64 `json:"volume,omitempty"`
}

type TrimRequest struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

type SplitRequest struct {
	At int64 `json:"at"`
}

type MergeRequest struct {
	ClipIDs []int64 `json:"clip_ids"`
}

type TransitionRequest struct {
	Type     string `json:"type"`
	Duration int64  `json:"duration,omitempty"`
}

type PositionRequest struct {
	Position int `json:"position"`
}

// EffectsRequest fields left out keep their neutral value.
type EffectsRequest struct {
	Filter        string   `json:"filter,omitempty"`
	Brightness    *float64 `json:"brightness,omitempty"`
	Contrast      *float64 `json:"contrast,omitempty"`
	Saturation    *float64 `json:"saturation,omitempty"`
	PlaybackSpeed *float64 `json:"playback_speed,omitempty"`
}

func (r EffectsRequest) toEffects() (editing.Effects, error) {
	fx := editing.NeutralEffects()
	if r.Filter != "" {
		f, err := timeline.ParseFilter(r.Filter)
		if err != nil {
			return fx, err
		}
		fx.Filter = f
	}
	if r.Brightness != nil {
		fx.Brightness = *r.Brightness
	}
	if r.Contrast != nil {
		fx.Contrast = *r.Contrast
	}
	if r.Saturation != nil {
		fx.Saturation = *r.Saturation
	}
	if r.PlaybackSpeed != nil {
		fx.PlaybackSpeed = *r.PlaybackSpeed
	}
	return fx, nil
}

type OperationsResponse struct {
	Operations []*store.Operation `json:"operations"`
}
