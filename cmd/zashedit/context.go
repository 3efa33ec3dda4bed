package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/zash3dit/zashedit/internal/config"
	"github.com/zash3dit/zashedit/internal/db"
	"github.com/zash3dit/zashedit/internal/editing"
	"github.com/zash3dit/zashedit/internal/encoder"
	"github.com/zash3dit/zashedit/internal/logging"
	"github.com/zash3dit/zashedit/internal/store"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool
	dryRunFlag *bool

	configOnce sync.Once
	config     *config.EnvConfig
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag, dryRunFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
		dryRunFlag: dryRunFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.EnvConfig, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) dryRun() bool {
	if c.dryRunFlag != nil && *c.dryRunFlag {
		return true
	}
	return c.config != nil && c.config.DryRun()
}

// app is the wired editing stack for one process. It owns the data
// directory lock for its lifetime.
type app struct {
	cfg       *config.EnvConfig
	logger    *slog.Logger
	lock      *flock.Flock
	db        *db.DB
	service   *editing.Service
	workspace *encoder.Workspace
	doctor    *encoder.CachedDoctor
}

// open wires the stack. The data directory lock is taken before the
// database is opened, so a second process fails fast instead of marking the
// first one's operations as interrupted.
func (c *commandContext) open(logOut io.Writer, level string) (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir(), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	logger := logging.New(logOut, level)

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, errors.New("another zashedit process holds " + cfg.LockPath() + "; use its HTTP API or stop it first")
	}

	a := &app{cfg: cfg, logger: logger, lock: lock}
	if err := a.wire(c.dryRun()); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(dryRun bool) error {
	cfg, logger := a.cfg, a.logger

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	a.db = database

	backend, err := store.NewSQLiteBackend(context.Background(), database)
	if err != nil {
		return fmt.Errorf("initialize project store: %w", err)
	}

	ws, err := encoder.NewWorkspace(cfg.StagingDir(), cfg.MediaDir())
	if err != nil {
		return fmt.Errorf("initialize media workspace: %w", err)
	}
	if n, err := ws.Cleanup(); err != nil {
		logger.Warn("failed to clear staging directory", "error", err)
	} else if n > 0 {
		logger.Info("removed leftover staged outputs", "count", n)
	}
	a.workspace = ws

	var enc encoder.Encoder
	if dryRun {
		logger.Info("dry run: edits are recorded without running ffmpeg")
		enc = &encoder.Stub{}
	} else {
		ff, err := encoder.NewFFmpeg(cfg.FFmpegPath(), cfg.EncodeTimeout(), logger)
		if err != nil {
			return fmt.Errorf("%w (set ffmpeg_path, or use --dry-run)", err)
		}
		enc = ff
	}

	a.doctor = encoder.NewCachedDoctor(encoder.ToolCheck{
		FFmpeg:  cfg.FFmpegPath(),
		FFprobe: cfg.FFprobePath(),
		DryRun:  dryRun,
	}, logger)

	a.service = editing.NewService(editing.Config{
		Store:      store.New(backend, logger),
		Operations: store.NewOperationLog(database.Conn()),
		Gate:       encoder.NewGate(enc),
		Workspace:  ws,
		Prober:     encoder.FFprobe{Binary: cfg.FFprobePath()},
		Logger:     logger,
	})
	return nil
}

func (a *app) Close() error {
	var errs []error
	if a.service != nil {
		errs = append(errs, a.service.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Unlock())
	}
	return errors.Join(errs...)
}

// withService runs fn against a freshly wired stack. One-shot commands log
// warnings and above unless the configured level is debug.
func (c *commandContext) withService(cmd *cobra.Command, fn func(context.Context, *editing.Service) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	level := "warn"
	if cfg.LogLevel() == "debug" {
		level = "debug"
	}
	a, err := c.open(cmd.ErrOrStderr(), level)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a.service)
}
