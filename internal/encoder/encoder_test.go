package encoder

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zash3dit/zashedit/internal/apperr"
	"github.com/zash3dit/zashedit/internal/instruction"
)

func TestGate_RunsOneAtATime(t *testing.T) {
	var active, peak int32
	enc := EncoderFunc(func(ctx context.Context, in instruction.Instruction) (Result, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return Result{Success: true}, nil
	})
	g := NewGate(enc)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Run(context.Background(), instruction.Instruction{}); err != nil {
				t.Errorf("Run() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if peak != 1 {
		t.Fatalf("peak concurrent runs = %d, want 1", peak)
	}
}

func TestGate_CancelledCallerDoesNotAbortDispatchedRun(t *testing.T) {
	release := make(chan struct{})
	var finished atomic.Bool
	var sawCancel atomic.Bool
	enc := EncoderFunc(func(ctx context.Context, in instruction.Instruction) (Result, error) {
		<-release
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		finished.Store(true)
		return Result{Success: true}, nil
	})
	g := NewGate(enc)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := g.Run(ctx, instruction.Instruction{})
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	close(release)

	// The next run only gets the slot once the detached one released it.
	res, err := g.Run(context.Background(), instruction.Instruction{})
	if err != nil || !res.Success {
		t.Fatalf("Run() after cancellation = %+v, %v", res, err)
	}
	if !finished.Load() {
		t.Fatal("dispatched run did not finish")
	}
	if sawCancel.Load() {
		t.Fatal("dispatched run observed the caller's cancellation")
	}
}

func TestGate_CancelWhileQueued(t *testing.T) {
	release := make(chan struct{})
	enc := EncoderFunc(func(ctx context.Context, in instruction.Instruction) (Result, error) {
		<-release
		return Result{Success: true}, nil
	})
	g := NewGate(enc)

	go g.Run(context.Background(), instruction.Instruction{})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := g.Run(ctx, instruction.Instruction{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("queued Run() error = %v, want deadline exceeded", err)
	}
	close(release)
	g.Close()
}

func TestGate_CloseWaitsForDispatchedAndRejectsQueued(t *testing.T) {
	release := make(chan struct{})
	var executions atomic.Int32
	var finished atomic.Bool
	enc := EncoderFunc(func(ctx context.Context, in instruction.Instruction) (Result, error) {
		executions.Add(1)
		<-release
		finished.Store(true)
		return Result{Success: true}, nil
	})
	g := NewGate(enc)

	first := make(chan error, 1)
	go func() {
		_, err := g.Run(context.Background(), instruction.Instruction{})
		first <- err
	}()
	for executions.Load() == 0 {
		runtime.Gosched()
	}

	const queued = 6
	queuedErrs := make(chan error, queued)
	for i := 0; i < queued; i++ {
		go func() {
			_, err := g.Run(context.Background(), instruction.Instruction{})
			queuedErrs <- err
		}()
	}

	closed := make(chan struct{})
	go func() {
		g.Close()
		close(closed)
	}()
	for !g.isClosed() {
		runtime.Gosched()
	}

	select {
	case <-closed:
		t.Fatal("Close() returned while a run was in flight")
	case <-time.After(10 * time.Millisecond):
	}
	close(release)
	<-closed
	if !finished.Load() {
		t.Fatal("Close() returned before the dispatched run finished")
	}

	if err := <-first; err != nil {
		t.Fatalf("dispatched Run() error = %v", err)
	}
	for i := 0; i < queued; i++ {
		err := <-queuedErrs
		if !errors.Is(err, ErrGateClosed) {
			t.Errorf("queued Run() error = %v, want ErrGateClosed", err)
		}
		if !apperr.Is(err, apperr.KindResourceFailure) {
			t.Errorf("queued Run() kind = %q, want RESOURCE_FAILURE", apperr.KindOf(err))
		}
	}
	if n := executions.Load(); n != 1 {
		t.Fatalf("encoder executions = %d, want 1", n)
	}
}

func TestResult_Retryable(t *testing.T) {
	tests := []struct {
		res  Result
		want bool
	}{
		{Result{Success: true}, false},
		{Result{ExitCode: 1}, false},
		{Result{ExitCode: -1}, true},
		{Result{ExitCode: 137}, true},
	}
	for _, tt := range tests {
		if got := tt.res.Retryable(); got != tt.want {
			t.Errorf("%+v.Retryable() = %v, want %v", tt.res, got, tt.want)
		}
	}
}

func TestLimitedWriter_KeepsTail(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 4}
	lw.Write([]byte("abc"))
	lw.Write([]byte("defg"))
	if buf.String() != "defg" {
		t.Fatalf("tail = %q, want defg", buf.String())
	}
}

func TestWorkspace(t *testing.T) {
	root := t.TempDir()
	ws, err := NewWorkspace(filepath.Join(root, "staging"), filepath.Join(root, "media"))
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}

	staged := ws.Stage("trim", "/videos/in.MOV")
	if filepath.Dir(staged) != ws.StagingDir() || filepath.Ext(staged) != ".mov" {
		t.Fatalf("Stage() = %s", staged)
	}
	if ws.Stage("trim", "/videos/in.MOV") == staged {
		t.Fatal("Stage() returned the same path twice")
	}

	if _, err := ws.Promote(staged); err == nil {
		t.Fatal("Promote() of a missing file succeeded")
	}
	os.WriteFile(staged, []byte("data"), 0644)
	final, err := ws.Promote(staged)
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}
	if filepath.Dir(final) != ws.MediaDir() {
		t.Errorf("promoted to %s", final)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Error("staged file still present after promote")
	}

	leftover := ws.Stage("split", "a.mp4")
	os.WriteFile(leftover, []byte("x"), 0644)
	os.WriteFile(ws.Stage("split", "a.mp4"), []byte("x"), 0644)
	n, err := ws.Cleanup()
	if err != nil || n != 2 {
		t.Fatalf("Cleanup() = %d, %v", n, err)
	}
	if _, err := os.Stat(final); err != nil {
		t.Errorf("Cleanup() touched promoted media: %v", err)
	}
}

func TestStub(t *testing.T) {
	out := filepath.Join(t.TempDir(), "o.mp4")
	stub := &Stub{Fail: func(in instruction.Instruction) (string, bool) {
		return "no space left", in.Stage == apperr.StageMerge
	}}

	res, err := stub.Execute(context.Background(), instruction.Copy(apperr.StageOverlay, "/a.mp4", out))
	if err != nil || !res.Success {
		t.Fatalf("Execute() = %+v, %v", res, err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("stub output missing: %v", err)
	}

	res, _ = stub.Execute(context.Background(), instruction.Concat([]string{"/a.mp4", "/b.mp4"}, out))
	if res.Success || res.Diagnostic != "no space left" {
		t.Fatalf("Execute() = %+v, want failure", res)
	}
	if len(stub.Runs()) != 2 {
		t.Errorf("Runs() = %d, want 2", len(stub.Runs()))
	}
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{"streams":[{"index":0,"codec_type":"video","duration":"4.950"},{"index":1,"codec_type":"audio","duration":"5.010"}],"format":{"duration":"5.0123"}}`)
	res, err := ParseProbe(data)
	if err != nil {
		t.Fatalf("ParseProbe() error = %v", err)
	}
	if got := res.DurationMillis(); got != 5012 {
		t.Errorf("DurationMillis() = %d, want 5012", got)
	}
	if !res.HasVideo() {
		t.Error("HasVideo() = false")
	}

	res.Format.Duration = "N/A"
	if got := res.DurationMillis(); got != 5010 {
		t.Errorf("DurationMillis() fallback = %d, want 5010", got)
	}

	if _, err := ParseProbe([]byte("not json")); err == nil {
		t.Error("ParseProbe() accepted garbage")
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestFFmpeg_Execute(t *testing.T) {
	bin := writeScript(t, `for last; do :; done
echo "encoded" > "$last"
`)
	f, err := NewFFmpeg(bin, time.Minute, nil)
	if err != nil {
		t.Fatalf("NewFFmpeg() error = %v", err)
	}
	out := filepath.Join(t.TempDir(), "nested", "o.mp4")

	res, err := f.Execute(context.Background(), instruction.Copy(apperr.StageOverlay, "/a.mp4", out))
	if err != nil || !res.Success || res.ExitCode != 0 {
		t.Fatalf("Execute() = %+v, %v", res, err)
	}
	if data, err := os.ReadFile(out); err != nil || strings.TrimSpace(string(data)) != "encoded" {
		t.Fatalf("output = %q, %v", data, err)
	}
}

func TestFFmpeg_ExecuteFailure(t *testing.T) {
	bin := writeScript(t, `echo "Invalid data found when processing input" >&2
exit 3
`)
	f, err := NewFFmpeg(bin, 0, nil)
	if err != nil {
		t.Fatalf("NewFFmpeg() error = %v", err)
	}

	res, err := f.Execute(context.Background(), instruction.Copy(apperr.StageOverlay, "/a.mp4", filepath.Join(t.TempDir(), "o.mp4")))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Success || res.ExitCode != 3 {
		t.Fatalf("Execute() = %+v, want exit 3", res)
	}
	if !strings.Contains(res.Diagnostic, "Invalid data") {
		t.Errorf("Diagnostic = %q", res.Diagnostic)
	}
	if res.Retryable() {
		t.Error("clean exit 3 should not be retryable")
	}
}

func TestNewFFmpeg_MissingBinary(t *testing.T) {
	if _, err := NewFFmpeg(filepath.Join(t.TempDir(), "nope"), 0, nil); err == nil {
		t.Fatal("NewFFmpeg() accepted a missing binary")
	}
}
