package jobs

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"jobbot/internal/mcp"
	"jobbot/internal/schedule"
	"jobbot/internal/skills"
)

var (
	reName    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	reChannel = regexp.MustCompile(`^-?[0-9]+$`)
)

// Validator checks a parsed job against the runtime environment. Registries
// are queried at validation time so a removed skill quarantines the job on
// the next load rather than breaking an execution mid-flight.
type Validator struct {
	DefaultTimezone string
	Skills          skills.Registry
	MCP             mcp.Registry
}

// Validate fills in inheritable defaults, compiles the recurrence rule and
// records every failure in j.InvalidReasons. It always checks the full
// definition so the operator sees all problems at once.
func (v *Validator) Validate(j *Job) {
	j.InvalidReasons = nil
	reason := func(format string, args ...any) {
		j.InvalidReasons = append(j.InvalidReasons, fmt.Sprintf(format, args...))
	}

	if j.Name == "" {
		reason("name: required")
	} else if !reName.MatchString(j.Name) {
		reason("name: %q must be lowercase letters, digits and hyphens", j.Name)
	}

	if j.Timezone == "" {
		j.Timezone = v.DefaultTimezone
	}
	if _, err := time.LoadLocation(j.Timezone); err != nil {
		reason("timezone: unknown zone %q", j.Timezone)
	}

	if rule, err := schedule.Parse(j.Schedule); err != nil {
		reason("schedule: %v", err)
	} else {
		j.Rule = rule
	}

	switch j.Delivery {
	case DeliverAnnounce, DeliverNone:
	default:
		reason("delivery: %q must be %s or %s", j.Delivery, DeliverAnnounce, DeliverNone)
	}
	switch j.Mode {
	case ModeIsolated, ModeMain:
	default:
		reason("mode: %q must be %s or %s", j.Mode, ModeIsolated, ModeMain)
	}
	switch j.RetryBackoff {
	case BackoffNone, BackoffExponential:
	default:
		reason("retry_backoff: %q must be %s or %s", j.RetryBackoff, BackoffNone, BackoffExponential)
	}
	if j.MaxRetries < 0 {
		reason("max_retries: must not be negative")
	}
	if j.TimeoutSeconds < 0 {
		reason("timeout_seconds: must not be negative")
	}

	if j.Channel != "auto" && !reChannel.MatchString(j.Channel) {
		reason("channel: %q must be auto or a channel id", j.Channel)
	}
	if j.Delivery == DeliverAnnounce && j.ResolveChannel() == "" {
		reason("delivery: channel is auto but no originating channel is recorded")
	}

	if v.Skills != nil {
		for _, name := range j.Skills {
			if !v.Skills.HasSkill(name) {
				reason("unknown skill: %s", name)
			}
		}
	}
	if v.MCP != nil {
		for _, name := range j.MCPServers {
			if !v.MCP.HasServer(name) {
				reason("unknown mcp server: %s", name)
			}
		}
		for _, tool := range j.MCPTools {
			server, _, ok := strings.Cut(tool, ".")
			if !ok || server == "" {
				reason("mcp tool %q: must be server.tool", tool)
				continue
			}
			if !v.MCP.HasServer(server) {
				reason("mcp tool %q: unknown server %s", tool, server)
			}
		}
	}
}
