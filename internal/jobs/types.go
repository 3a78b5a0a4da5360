// Package jobs owns the filesystem-backed job definitions: one markdown
// file per job with a yaml frontmatter header and a sectioned free-text
// body. Validation runs on every load and is never cached across edits.
package jobs

import (
	"fmt"
	"strings"
	"time"

	"jobbot/internal/schedule"
)

type Delivery string

const (
	DeliverAnnounce Delivery = "announce"
	DeliverNone     Delivery = "none"
)

type Mode string

const (
	ModeIsolated Mode = "isolated"
	ModeMain     Mode = "main"
)

type Backoff string

const (
	BackoffNone        Backoff = "none"
	BackoffExponential Backoff = "exponential"
)

// Job is one parsed definition file. A job is either valid (ready to
// schedule) or quarantined with InvalidReasons; it is never silently dropped.
type Job struct {
	Path string

	Name        string
	Description string
	Schedule    string
	Timezone    string
	Enabled     bool
	Delivery    Delivery
	Channel     string // "auto" or an explicit channel id
	Mode        Mode

	Skills     []string
	MCPServers []string
	MCPTools   []string

	TimeoutSeconds int // 0 means process default
	MaxRetries     int
	RetryBackoff   Backoff

	CreatedBy        string
	CreatedChannelID string

	Prompt            string
	Steps             []string
	OutputConstraints []string
	// ExtraSections preserves unrecognized body sections verbatim, in file
	// order, so hand-added sections survive a round trip.
	ExtraSections []Section

	// Rule is the compiled recurrence; zero when the schedule is invalid.
	Rule schedule.Rule

	// InvalidReasons quarantines the job when non-empty. Recomputed on every
	// load, surfaced verbatim by the list operation.
	InvalidReasons []string
}

type Section struct {
	Heading string
	Text    string
}

func (j *Job) Valid() bool { return len(j.InvalidReasons) == 0 }

// Location resolves the job's timezone. Only meaningful for valid jobs.
func (j *Job) Location() (*time.Location, error) {
	return time.LoadLocation(j.Timezone)
}

// ResolveChannel returns the concrete delivery channel id, or "" when none
// resolves (delivery suppressed or auto with no originating channel).
func (j *Job) ResolveChannel() string {
	if j.Channel != "" && j.Channel != "auto" {
		return j.Channel
	}
	return j.CreatedChannelID
}

// BuildPrompt assembles the final execution prompt from the body sections.
func (j *Job) BuildPrompt() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(j.Prompt))
	if len(j.Steps) > 0 {
		b.WriteString("\n\n手順:")
		for _, step := range j.Steps {
			b.WriteString("\n- ")
			b.WriteString(step)
		}
	}
	if len(j.OutputConstraints) > 0 {
		b.WriteString("\n\n出力条件:")
		for _, item := range j.OutputConstraints {
			b.WriteString("\n- ")
			b.WriteString(item)
		}
	}
	for _, sec := range j.ExtraSections {
		body := strings.TrimSpace(sec.Text)
		if body == "" {
			continue
		}
		b.WriteString("\n\n")
		b.WriteString(body)
	}
	return strings.TrimSpace(b.String())
}

// ExecutionSpec is the per-run derived view of a valid job. It is computed
// fresh for every execution and never persisted.
type ExecutionSpec struct {
	JobName string
	Prompt  string
	Mode    Mode

	Skills     []string
	MCPServers []string
	MCPTools   []string

	Timeout time.Duration

	Deliver   bool
	ChannelID string
}

// ExecutionSpec derives the run spec, falling back to defaultTimeout when the
// job does not override timeout_seconds.
func (j *Job) ExecutionSpec(defaultTimeout time.Duration) ExecutionSpec {
	timeout := defaultTimeout
	if j.TimeoutSeconds > 0 {
		timeout = time.Duration(j.TimeoutSeconds) * time.Second
	}
	return ExecutionSpec{
		JobName:    j.Name,
		Prompt:     j.BuildPrompt(),
		Mode:       j.Mode,
		Skills:     append([]string(nil), j.Skills...),
		MCPServers: append([]string(nil), j.MCPServers...),
		MCPTools:   append([]string(nil), j.MCPTools...),
		Timeout:    timeout,
		Deliver:    j.Delivery == DeliverAnnounce,
		ChannelID:  j.ResolveChannel(),
	}
}

// CreateSpec is the input to Store.Create, post command normalization.
type CreateSpec struct {
	Name        string
	Description string
	Prompt      string
	Schedule    string
	Timezone    string // empty means process default

	CreatedBy        string
	CreatedChannelID string
}

// ValidationError rejects a create before any file is written.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "invalid job definition: " + strings.Join(e.Reasons, "; ")
}

// NotFoundError reports an operation against a job that does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job not found: %s", e.Name)
}

// LoadError reports a file that could not be parsed into a definition at
// all. The loader returns these alongside the jobs it did parse; one broken
// file never blocks the rest.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return e.File + ": " + e.Err.Error()
}
