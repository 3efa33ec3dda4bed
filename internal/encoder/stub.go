package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zash3dit/zashedit/internal/instruction"
)

// Stub is an Encoder that never spawns a process. It writes a small
// placeholder to the output path and records every instruction, which is
// what dry runs and tests need. Fail, when set, decides per instruction
// whether the run fails and with which diagnostic.
type Stub struct {
	Fail  func(in instruction.Instruction) (diagnostic string, failed bool)
	Delay time.Duration

	mu   sync.Mutex
	runs []instruction.Instruction
}

func (s *Stub) Execute(ctx context.Context, in instruction.Instruction) (Result, error) {
	s.mu.Lock()
	s.runs = append(s.runs, in)
	s.mu.Unlock()

	start := time.Now()
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return Result{ExitCode: -1, Diagnostic: ctx.Err().Error(), Duration: time.Since(start)}, nil
		}
	}
	if s.Fail != nil {
		if diag, failed := s.Fail(in); failed {
			return Result{ExitCode: 1, Diagnostic: diag, Duration: time.Since(start)}, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(in.OutputPath), 0755); err != nil {
		return Result{}, err
	}
	body := fmt.Sprintf("stub output of %s\n", in.String())
	if err := os.WriteFile(in.OutputPath, []byte(body), 0644); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Duration: time.Since(start)}, nil
}

// Runs returns the instructions executed so far.
func (s *Stub) Runs() []instruction.Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]instruction.Instruction(nil), s.runs...)
}
