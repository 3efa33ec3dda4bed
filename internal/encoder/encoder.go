// Package encoder runs transcode instructions. Runs are admitted one at a
// time through a Gate, and outputs are staged in a Workspace until the
// caller promotes them.
package encoder

import (
	"context"
	"time"

	"github.com/zash3dit/zashedit/internal/instruction"
)

// Encoder executes one instruction. A non-nil error means the encoder could
// not be started at all; a started run that fails reports Success false.
type Encoder interface {
	Execute(ctx context.Context, in instruction.Instruction) (Result, error)
}

type Result struct {
	Success    bool          `json:"success"`
	ExitCode   int           `json:"exit_code"`
	Diagnostic string        `json:"diagnostic,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Retryable reports whether running the same instruction again could
// plausibly succeed. Exit codes from signals and timeouts are retryable;
// a clean non-zero exit usually means bad input.
func (r Result) Retryable() bool {
	return !r.Success && (r.ExitCode < 0 || r.ExitCode > 128)
}

// EncoderFunc adapts a function to the Encoder interface.
type EncoderFunc func(ctx context.Context, in instruction.Instruction) (Result, error)

func (f EncoderFunc) Execute(ctx context.Context, in instruction.Instruction) (Result, error) {
	return f(ctx, in)
}
