package agent

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"jobbot/pkg/logx"
)

// ExecRuntime drives an agent CLI as a subprocess: the assembled prompt goes
// to stdin, the reply comes back on stdout. Job context travels in the
// environment so the wrapper script can set up skills and MCP servers.
type ExecRuntime struct {
	argv []string
	log  logx.Logger
}

func NewExecRuntime(argv []string, log logx.Logger) (*ExecRuntime, error) {
	if len(argv) == 0 {
		return nil, errors.New("agent command is empty")
	}
	return &ExecRuntime{
		argv: argv,
		log:  log.With(logx.String("component", "agent")),
	}, nil
}

func (r *ExecRuntime) Execute(ctx context.Context, req Request) (Result, error) {
	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	cmd.Stdin = strings.NewReader(req.Prompt)
	cmd.Env = append(os.Environ(),
		"JOBBOT_JOB_NAME="+req.JobName,
		"JOBBOT_ISOLATED="+strconv.FormatBool(req.Isolated),
		"JOBBOT_SKILLS="+strings.Join(req.Skills, ","),
		"JOBBOT_MCP_SERVERS="+strings.Join(req.MCPServers, ","),
		"JOBBOT_MCP_TOOLS="+strings.Join(req.MCPTools, ","),
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("agent run", logx.String("job", req.JobName), logx.Int("prompt_len", len(req.Prompt)))
	err := cmd.Run()
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return Result{}, errors.New(err.Error() + ": " + lastLine(msg))
		}
		return Result{}, err
	}
	return Result{Output: strings.TrimSpace(stdout.String())}, nil
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
