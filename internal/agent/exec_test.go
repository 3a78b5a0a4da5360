package agent

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"jobbot/pkg/logx"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
}

func TestExecRuntimeEchoesStdout(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	r, err := NewExecRuntime([]string{"sh", "-c", "cat; echo; echo job=$JOBBOT_JOB_NAME skills=$JOBBOT_SKILLS"}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	res, err := r.Execute(context.Background(), Request{
		JobName: "demo",
		Prompt:  "hello agent",
		Skills:  []string{"a", "b"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(res.Output, "hello agent") {
		t.Errorf("prompt not passed on stdin: %q", res.Output)
	}
	if !strings.Contains(res.Output, "job=demo skills=a,b") {
		t.Errorf("job context not in environment: %q", res.Output)
	}
}

func TestExecRuntimeSurfacesStderr(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	r, err := NewExecRuntime([]string{"sh", "-c", "echo boom >&2; exit 3"}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.Execute(context.Background(), Request{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want stderr surfaced", err)
	}
}

func TestExecRuntimeHonorsCancellation(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	r, err := NewExecRuntime([]string{"sh", "-c", "sleep 30"}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = r.Execute(ctx, Request{Prompt: "x"})
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

func TestNewExecRuntimeRejectsEmptyCommand(t *testing.T) {
	t.Parallel()
	if _, err := NewExecRuntime(nil, logx.Nop()); err == nil {
		t.Fatal("expected error for empty command")
	}
}
