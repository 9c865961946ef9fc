package heicplanes

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
)

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := ExecRunner{Dir: t.TempDir()}

	out, err := r.Run(context.Background(), "sh", "-c", "echo 64 x 48")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(string(out)) != "64 x 48" {
		t.Fatalf("stdout: %q", out)
	}

	_, err = r.Run(context.Background(), "sh", "-c", "echo bad input >&2; exit 3")
	var te *ExternalToolError
	if !errors.As(err, &te) {
		t.Fatalf("expected ExternalToolError, got %v", err)
	}
	if te.Tool != "sh" || te.ExitCode != 3 || te.Stderr != "bad input" {
		t.Fatalf("tool error: %+v", te)
	}
}

func TestExecRunnerMissingTool(t *testing.T) {
	_, err := ExecRunner{}.Run(context.Background(), "heicplanes-no-such-tool")
	var te *ExternalToolError
	if !errors.As(err, &te) || te.ExitCode != -1 {
		t.Fatalf("expected start failure, got %v", err)
	}
}

func TestExecRunnerCancelled(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ExecRunner{}.Run(ctx, "sh", "-c", "sleep 5")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}
