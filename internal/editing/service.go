package editing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/encoder"
	"github.com/zash3dit/zashedit/internal/logging"
	"github.com/zash3dit/zashedit/internal/store"
	"github.com/zash3dit/zashedit/internal/timeline"
)

type Config struct {
	Store      *store.Store
	Operations *store.OperationLog
	Gate       *encoder.Gate
	Workspace  *encoder.Workspace
	// Prober fills in durations for imports that do not give one. Optional.
	Prober encoder.Prober
	Now    func() time.Time
	Logger *slog.Logger
}

// Service runs edits end to end: load the snapshot, plan, encode through the
// gate, promote outputs and persist.
type Service struct {
	store     *store.Store
	ops       *store.OperationLog
	gate      *encoder.Gate
	workspace *encoder.Workspace
	prober    encoder.Prober
	engine    *Engine
	logger    *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func NewService(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:     cfg.Store,
		ops:       cfg.Operations,
		gate:      cfg.Gate,
		workspace: cfg.Workspace,
		prober:    cfg.Prober,
		engine:    &Engine{Now: now, Stage: cfg.Workspace.Stage},
		logger:    logging.WithComponent(logging.OrDiscard(cfg.Logger), "editing"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Result is what an encoder-backed edit returns.
type Result struct {
	Project   *timeline.Project `json:"project"`
	Operation *store.Operation  `json:"operation,omitempty"`
}

// ImportResult reports an import. Imported is false when the path failed
// validation; the project is then returned unchanged and Reason says why.
type ImportResult struct {
	Project  *timeline.Project `json:"project"`
	Imported bool              `json:"imported"`
	ClipID   int64             `json:"clip_id,omitempty"`
	Reason   string            `json:"reason,omitempty"`
}

// Retry identifies a failed operation and the request that produced it.
// Passing OperationID to Service.Retry issues the same request again.
type Retry struct {
	OperationID string          `json:"operation_id"`
	Stage       apperr.Stage    `json:"stage"`
	Params      json.RawMessage `json:"params"`
}

// OperationError is returned when a logged operation fails.
type OperationError struct {
	Retry Retry
	Err   error
}

func (e *OperationError) Error() string { return e.Err.Error() }
func (e *OperationError) Unwrap() error { return e.Err }

// RetryFor extracts the retry handle from err, if it has one.
func RetryFor(err error) (Retry, bool) {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Retry, true
	}
	return Retry{}, false
}

type TrimParams struct {
	ClipID int64 `json:"clip_id"`
	Start  int64 `json:"start"`
	End    int64 `json:"end"`
}

type SplitParams struct {
	ClipID int64 `json:"clip_id"`
	At     int64 `json:"at"`
}

type MergeParams struct {
	ClipIDs []int64 `json:"clip_ids"`
}

type EffectsParams struct {
	ClipID int64 `json:"clip_id"`
	Effects
}

type ClipParams struct {
	ClipID int64 `json:"clip_id"`
}

// AudioImport describes an audio file to add. A nil Volume means 1.0.
type AudioImport struct {
	Path      string   `json:"path"`
	Duration  int64    `json:"duration"`
	StartTime int64    `json:"start_time"`
	Volume    *float64 `json:"volume,omitempty"`
}

func (s *Service) ListProjects(ctx context.Context) ([]*timeline.Project, error) {
	return s.store.GetAll(ctx)
}

func (s *Service) GetProject(ctx context.Context, id int64) (*timeline.Project, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) CreateProject(ctx context.Context, name, resolution string, frameRate int) (*timeline.Project, error) {
	ctx, done, err := s.opContext(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	p, err := s.engine.CreateProject(name, resolution, frameRate)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.Insert(ctx, p)
	if err != nil {
		return nil, apperr.Restage(err, apperr.StageProject)
	}
	s.logger.Info("project created", "project_id", saved.ID, "name", saved.Name)
	return saved, nil
}

func (s *Service) RenameProject(ctx context.Context, id int64, name string) (*timeline.Project, error) {
	return s.mutate(ctx, id, apperr.StageProject, func(p *timeline.Project) (*timeline.Project, error) {
		return s.engine.RenameProject(p, name)
	})
}

func (s *Service) DeleteProject(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return apperr.Restage(err, apperr.StageProject)
	}
	s.logger.Info("project deleted", "project_id", id)
	return nil
}

// ImportVideo appends a video file to the project. An invalid path is not
// an error: the project comes back unchanged with Imported false.
func (s *Service) ImportVideo(ctx context.Context, projectID int64, path string, duration int64) (*ImportResult, error) {
	ctx, done, err := s.opContext(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	snap, err := s.store.GetByID(ctx, projectID)
	if err != nil {
		return nil, apperr.Restage(err, apperr.StageImport)
	}
	if err := timeline.ValidateMediaPath(path); err != nil {
		s.logger.Warn("import skipped", "project_id", projectID, "path", logging.SanitizePath(path), "reason", err.Error())
		return &ImportResult{Project: snap, Reason: err.Error()}, nil
	}
	if duration, err = s.resolveDuration(ctx, path, duration); err != nil {
		return nil, err
	}

	p, err := s.engine.ImportVideo(snap, path, duration)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.Update(ctx, p)
	if err != nil {
		return nil, apperr.Restage(err, apperr.StageImport)
	}
	clip := saved.VideoClips[len(saved.VideoClips)-1]
	s.logger.Info("video imported", "project_id", projectID, "clip_id", clip.ID, "position", clip.Position, "duration_ms", clip.Duration)
	return &ImportResult{Project: saved, Imported: true, ClipID: clip.ID}, nil
}

// ImportAudio appends an audio file to the project, with the same silent
// handling of invalid paths as ImportVideo.
func (s *Service) ImportAudio(ctx context.Context, projectID int64, req AudioImport) (*ImportResult, error) {
	ctx, done, err := s.opContext(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	snap, err := s.store.GetByID(ctx, projectID)
	if err != nil {
		return nil, apperr.Restage(err, apperr.StageImport)
	}
	if err := timeline.ValidateMediaPath(req.Path); err != nil {
		s.logger.Warn("import skipped", "project_id", projectID, "path", logging.SanitizePath(req.Path), "reason", err.Error())
		return &ImportResult{Project: snap, Reason: err.Error()}, nil
	}
	duration, err := s.resolveDuration(ctx, req.Path, req.Duration)
	if err != nil {
		return nil, err
	}
	volume := 1.0
	if req.Volume != nil {
		volume = *req.Volume
	}

	p, err := s.engine.ImportAudio(snap, req.Path, duration, req.StartTime, volume)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.Update(ctx, p)
	if err != nil {
		return nil, apperr.Restage(err, apperr.StageImport)
	}
	clip := saved.AudioClips[len(saved.AudioClips)-1]
	s.logger.Info("audio imported", "project_id", projectID, "audio_id", clip.ID, "duration_ms", clip.Duration)
	return &ImportResult{Project: saved, Imported: true, ClipID: clip.ID}, nil
}

func (s *Service) resolveDuration(ctx context.Context, path string, duration int64) (int64, error) {
	if duration > 0 {
		return duration, nil
	}
	if duration < 0 {
		return 0, apperr.Invalid(apperr.StageImport, "duration must not be negative")
	}
	if s.prober == nil {
		return 0, apperr.Invalid(apperr.StageImport, "duration is required when media probing is unavailable")
	}
	ms, err := s.prober.ProbeDuration(ctx, path)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInvalidInput, apperr.StageImport, "cannot read media duration", err)
	}
	return ms, nil
}

func (s *Service) Trim(ctx context.Context, projectID int64, p TrimParams) (*Result, error) {
	return s.encode(ctx, projectID, apperr.StageTrim, p, "", func(snap *timeline.Project) (Plan, error) {
		return s.engine.Trim(snap, p.ClipID, p.Start, p.End)
	})
}

func (s *Service) Split(ctx context.Context, projectID int64, p SplitParams) (*Result, error) {
	return s.encode(ctx, projectID, apperr.StageSplit, p, "", func(snap *timeline.Project) (Plan, error) {
		return s.engine.Split(snap, p.ClipID, p.At)
	})
}

func (s *Service) Merge(ctx context.Context, projectID int64, p MergeParams) (*Result, error) {
	return s.encode(ctx, projectID, apperr.StageMerge, p, "", func(snap *timeline.Project) (Plan, error) {
		return s.engine.Merge(snap, p.ClipIDs)
	})
}

func (s *Service) ApplyEffects(ctx context.Context, projectID int64, p EffectsParams) (*Result, error) {
	return s.encode(ctx, projectID, apperr.StageEffects, p, "", func(snap *timeline.Project) (Plan, error) {
		return s.engine.ApplyEffects(snap, p.ClipID, p.Effects)
	})
}

func (s *Service) BurnOverlays(ctx context.Context, projectID int64, p ClipParams) (*Result, error) {
	return s.encode(ctx, projectID, apperr.StageOverlay, p, "", func(snap *timeline.Project) (Plan, error) {
		return s.engine.BurnOverlays(snap, p.ClipID)
	})
}

func (s *Service) MixAudio(ctx context.Context, projectID int64, p ClipParams) (*Result, error) {
	return s.encode(ctx, projectID, apperr.StageMix, p, "", func(snap *timeline.Project) (Plan, error) {
		return s.engine.MixAudio(snap, p.ClipID)
	})
}

func (s *Service) SetTransition(ctx context.Context, projectID, clipID int64, t timeline.TransitionType, duration int64) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, apperr.StageTransition, func(p *timeline.Project) (*timeline.Project, error) {
		return s.engine.SetTransition(p, clipID, t, duration)
	})
}

func (s *Service) Reorder(ctx context.Context, projectID, clipID int64, position int) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, apperr.StageReorder, func(p *timeline.Project) (*timeline.Project, error) {
		return s.engine.Reorder(p, clipID, position)
	})
}

func (s *Service) RemoveVideoClip(ctx context.Context, projectID, clipID int64) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, apperr.StageProject, func(p *timeline.Project) (*timeline.Project, error) {
		return s.engine.RemoveVideoClip(p, clipID)
	})
}

func (s *Service) AddTextOverlay(ctx context.Context, projectID int64, o Overlay) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, apperr.StageOverlay, func(p *timeline.Project) (*timeline.Project, error) {
		return s.engine.AddTextOverlay(p, o)
	})
}

func (s *Service) UpdateTextOverlay(ctx context.Context, projectID, overlayID int64, o Overlay) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, apperr.StageOverlay, func(p *timeline.Project) (*timeline.Project, error) {
		return s.engine.UpdateTextOverlay(p, overlayID, o)
	})
}

func (s *Service) DeleteTextOverlay(ctx context.Context, projectID, overlayID int64) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, apperr.StageOverlay, func(p *timeline.Project) (*timeline.Project, error) {
		return s.engine.DeleteTextOverlay(p, overlayID)
	})
}

func (s *Service) UpdateAudioClip(ctx context.Context, projectID, audioID int64, u AudioUpdate) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, apperr.StageAudio, func(p *timeline.Project) (*timeline.Project, error) {
		return s.engine.UpdateAudioClip(p, audioID, u)
	})
}

func (s *Service) DeleteAudioClip(ctx context.Context, projectID, audioID int64) (*timeline.Project, error) {
	return s.mutate(ctx, projectID, apperr.StageAudio, func(p *timeline.Project) (*timeline.Project, error) {
		return s.engine.DeleteAudioClip(p, audioID)
	})
}

// WatchProjects streams the full project list now and after every change
// until ctx is done.
func (s *Service) WatchProjects(ctx context.Context) <-chan []*timeline.Project {
	return s.store.Watch(ctx)
}

// Operations lists logged operations, newest first. projectID 0 lists all.
func (s *Service) Operations(ctx context.Context, projectID int64, limit int) ([]*store.Operation, error) {
	ops, err := s.ops.List(ctx, projectID, limit)
	if err != nil {
		return nil, apperr.Storage(apperr.StageStore, "failed to list operations", err)
	}
	return ops, nil
}

func (s *Service) Operation(ctx context.Context, id string) (*store.Operation, error) {
	op, err := s.ops.Get(ctx, id)
	if err != nil {
		return nil, apperr.Storage(apperr.StageStore, "failed to load operation", err)
	}
	if op == nil {
		return nil, apperr.NotFound(apperr.StageStore, "operation %s not found", id)
	}
	return op, nil
}

// Retry re-issues a failed operation with its recorded parameters against
// the project's current state.
func (s *Service) Retry(ctx context.Context, operationID string) (*Result, error) {
	op, err := s.Operation(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if op.Status != store.OperationFailed {
		return nil, apperr.Invalid(op.Stage, "operation %s is %s; only failed operations can be retried", op.ID, op.Status)
	}

	decode := func(v any) error {
		if err := json.Unmarshal(op.Params, v); err != nil {
			return apperr.Wrap(apperr.KindInvalidInput, op.Stage, "recorded parameters are unreadable", err)
		}
		return nil
	}

	var build func(*timeline.Project) (Plan, error)
	switch op.Stage {
	case apperr.StageTrim:
		var p TrimParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		build = func(snap *timeline.Project) (Plan, error) { return s.engine.Trim(snap, p.ClipID, p.Start, p.End) }
	case apperr.StageSplit:
		var p SplitParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		build = func(snap *timeline.Project) (Plan, error) { return s.engine.Split(snap, p.ClipID, p.At) }
	case apperr.StageMerge:
		var p MergeParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		build = func(snap *timeline.Project) (Plan, error) { return s.engine.Merge(snap, p.ClipIDs) }
	case apperr.StageEffects:
		var p EffectsParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		build = func(snap *timeline.Project) (Plan, error) { return s.engine.ApplyEffects(snap, p.ClipID, p.Effects) }
	case apperr.StageOverlay:
		var p ClipParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		build = func(snap *timeline.Project) (Plan, error) { return s.engine.BurnOverlays(snap, p.ClipID) }
	case apperr.StageMix:
		var p ClipParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		build = func(snap *timeline.Project) (Plan, error) { return s.engine.MixAudio(snap, p.ClipID) }
	default:
		return nil, apperr.Invalid(op.Stage, "operations of stage %q cannot be retried", op.Stage)
	}

	return s.encode(ctx, op.ProjectID, op.Stage, json.RawMessage(op.Params), op.ID, build)
}

// Close stops accepting work, waits for dispatched encoder runs to finish
// and removes their staged outputs.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		s.gate.Close()
		var n int
		n, err = s.workspace.Cleanup()
		s.logger.Info("editing service closed", "staged_files_removed", n)
	})
	return err
}

func (s *Service) opContext(ctx context.Context) (context.Context, func(), error) {
	if s.ctx.Err() != nil {
		return nil, nil, apperr.Resource(apperr.StageProject, "service is shutting down", s.ctx.Err())
	}
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() { stop(); cancel() }, nil
}

// mutate applies a metadata-only edit and persists it immediately.
func (s *Service) mutate(ctx context.Context, projectID int64, stage apperr.Stage, fn func(*timeline.Project) (*timeline.Project, error)) (*timeline.Project, error) {
	ctx, done, err := s.opContext(ctx)
	if err != nil {
		return nil, apperr.Restage(err, stage)
	}
	defer done()

	snap, err := s.store.GetByID(ctx, projectID)
	if err != nil {
		return nil, apperr.Restage(err, stage)
	}
	p, err := fn(snap)
	if err != nil {
		return nil, err
	}
	saved, err := s.store.Update(ctx, p)
	if err != nil {
		return nil, apperr.Restage(err, stage)
	}
	s.logger.Info("project updated", "project_id", projectID, "stage", stage)
	return saved, nil
}

// encode runs an encoder-backed edit. retryOf, when set, is the failed
// operation being re-issued; otherwise a new operation is logged.
func (s *Service) encode(ctx context.Context, projectID int64, stage apperr.Stage, params any, retryOf string,
	build func(*timeline.Project) (Plan, error)) (*Result, error) {
	ctx, done, err := s.opContext(ctx)
	if err != nil {
		return nil, apperr.Restage(err, stage)
	}
	defer done()

	plan, err := s.plan(ctx, projectID, stage, build)
	if err != nil {
		if retryOf != "" {
			log := logging.WithOperation(logging.WithProjectID(s.logger, projectID), retryOf, string(stage))
			s.failOperation(ctx, log, retryOf, err, false)
		}
		return nil, err
	}

	op, err := s.startOperation(ctx, projectID, stage, params, retryOf)
	if err != nil {
		return nil, err
	}
	log := logging.WithOperation(logging.WithProjectID(s.logger, projectID), op.ID, string(stage))
	retry := Retry{OperationID: op.ID, Stage: stage, Params: op.Params}

	if plan.Provisional != nil {
		if _, err := s.store.Update(ctx, plan.Provisional); err != nil {
			err = apperr.Restage(err, stage)
			s.failOperation(ctx, log, op.ID, err, true)
			return nil, &OperationError{Retry: retry, Err: err}
		}
		log.Info("provisional state persisted")
	}

	for _, in := range plan.Instructions {
		res, err := s.gate.Run(ctx, in)
		if err != nil {
			// A dispatched run keeps going; its staged output is removed
			// by Workspace.Cleanup on shutdown.
			err = apperr.Wrap(apperr.KindResourceFailure, stage, "encoding did not complete", err)
			s.failOperation(ctx, log, op.ID, err, true)
			return nil, &OperationError{Retry: retry, Err: err}
		}
		if !res.Success {
			s.workspace.Discard(plan.Outputs()...)
			err := apperr.Encoding(stage, res.Diagnostic, res.Retryable())
			s.failOperation(ctx, log, op.ID, err, res.Retryable())
			return nil, &OperationError{Retry: retry, Err: err}
		}
	}

	promoted := make(map[string]string, len(plan.Instructions))
	for _, staged := range plan.Outputs() {
		final, err := s.workspace.Promote(staged)
		if err != nil {
			s.workspace.Discard(plan.Outputs()...)
			err = apperr.Resource(stage, "cannot move encoder output into the media directory", err)
			s.failOperation(ctx, log, op.ID, err, true)
			return nil, &OperationError{Retry: retry, Err: err}
		}
		promoted[staged] = final
	}
	for i := range plan.Project.VideoClips {
		if final, ok := promoted[plan.Project.VideoClips[i].FilePath]; ok {
			plan.Project.VideoClips[i].FilePath = final
		}
	}

	// The media now exists; record it even if the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	saved, err := s.store.Update(persistCtx, plan.Project)
	if err != nil {
		err = apperr.Restage(err, stage)
		s.failOperation(persistCtx, log, op.ID, err, true)
		return nil, &OperationError{Retry: retry, Err: err}
	}
	if err := s.ops.Complete(persistCtx, op.ID); err != nil {
		log.Warn("failed to mark operation completed", "error", err)
	}
	log.Info("operation completed", "outputs", len(promoted))

	if refreshed, err := s.ops.Get(persistCtx, op.ID); err == nil && refreshed != nil {
		op = refreshed
	}
	return &Result{Project: saved, Operation: op}, nil
}

func (s *Service) plan(ctx context.Context, projectID int64, stage apperr.Stage, build func(*timeline.Project) (Plan, error)) (Plan, error) {
	snap, err := s.store.GetByID(ctx, projectID)
	if err != nil {
		return Plan{}, apperr.Restage(err, stage)
	}
	return build(snap)
}

func (s *Service) startOperation(ctx context.Context, projectID int64, stage apperr.Stage, params any, retryOf string) (*store.Operation, error) {
	if retryOf != "" {
		if err := s.ops.Restart(ctx, retryOf); err != nil {
			return nil, apperr.Wrap(apperr.KindInvalidInput, stage, "cannot restart operation", err)
		}
		op, err := s.ops.Get(ctx, retryOf)
		if err != nil {
			return nil, apperr.Storage(stage, "cannot reload operation", fmt.Errorf("operation %s: %w", retryOf, err))
		}
		if op == nil {
			return nil, apperr.Storage(stage, "cannot reload operation", fmt.Errorf("operation %s vanished after restart", retryOf))
		}
		return op, nil
	}
	op, err := s.ops.Start(ctx, projectID, stage, params)
	if err != nil {
		return nil, apperr.Storage(stage, "cannot record operation", err)
	}
	return op, nil
}

func (s *Service) failOperation(ctx context.Context, log *slog.Logger, id string, cause error, retryable bool) {
	log.Warn("operation failed", "error", cause, "retryable", retryable)
	if err := s.ops.Fail(context.WithoutCancel(ctx), id, cause.Error(), retryable); err != nil {
		log.Warn("failed to record operation failure", "error", err)
	}
}
