package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/zash3dit/zashedit/internal/instruction"
	"github.com/zash3dit/zashedit/internal/logging"
)

const maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

// FFmpeg runs instructions through the ffmpeg binary.
type FFmpeg struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFmpeg resolves binary on PATH. A zero timeout means none.
func NewFFmpeg(binary string, timeout time.Duration, logger *slog.Logger) (*FFmpeg, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("cannot locate ffmpeg %q: %w", binary, err)
	}
	return &FFmpeg{binary: path, timeout: timeout, logger: logging.WithComponent(logging.OrDiscard(logger), "ffmpeg")}, nil
}

func (f *FFmpeg) Binary() string {
	return f.binary
}

func (f *FFmpeg) Execute(ctx context.Context, in instruction.Instruction) (Result, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := os.MkdirAll(filepath.Dir(in.OutputPath), 0755); err != nil {
		return Result{}, fmt.Errorf("cannot create output dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, f.binary, in.Args()...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	f.logger.Info("executing encoder command",
		"stage", in.Stage,
		"inputs", len(in.Inputs),
		"output", logging.SanitizePath(in.OutputPath),
	)
	f.logger.Debug("encoder command line", "command", in.String())

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}
	diagnostic := stderrBuf.String()
	if exitCode != 0 && diagnostic == "" && err != nil {
		diagnostic = err.Error()
	}
	if ctx.Err() == context.DeadlineExceeded {
		diagnostic = "timed out after " + f.timeout.String() + ": " + diagnostic
	}

	if exitCode != 0 {
		f.logger.Warn("encoder command failed",
			"stage", in.Stage,
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(diagnostic, 512),
		)
	} else {
		f.logger.Info("encoder command succeeded",
			"stage", in.Stage,
			"duration_ms", elapsed.Milliseconds(),
		)
	}

	return Result{
		Success:    exitCode == 0,
		ExitCode:   exitCode,
		Diagnostic: diagnostic,
		Duration:   elapsed,
	}, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
