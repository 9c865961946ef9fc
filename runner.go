package heicplanes

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Runner runs an external command and returns its standard output. A
// command that cannot start or exits non-zero yields an *ExternalToolError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Dir is the working directory of commands, the current one if empty.
	Dir    string
	Logger logrus.FieldLogger
}

// Run implements Runner. Cancelling ctx kills the process.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Logger != nil {
		r.Logger.WithField("cmd", name+" "+strings.Join(args, " ")).Debug("running")
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		te := &ExternalToolError{
			Tool:     name,
			Args:     args,
			ExitCode: -1,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			te.ExitCode = ee.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			te.Err = ctxErr
		}
		return stdout.Bytes(), te
	}
	return stdout.Bytes(), nil
}
