package jobs

import (
	"fmt"
	"strings"

	"go.yaml.in/yaml/v3"
)

const frontmatterDelim = "---"

// header mirrors the yaml frontmatter block of a job file.
type header struct {
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description,omitempty"`
	Schedule         string   `yaml:"schedule"`
	Timezone         string   `yaml:"timezone,omitempty"`
	Enabled          *bool    `yaml:"enabled"`
	Delivery         string   `yaml:"delivery,omitempty"`
	Channel          string   `yaml:"channel,omitempty"`
	Mode             string   `yaml:"mode,omitempty"`
	Skills           []string `yaml:"skills,omitempty"`
	MCPServers       []string `yaml:"mcp_servers,omitempty"`
	MCPTools         []string `yaml:"mcp_tools,omitempty"`
	TimeoutSeconds   int      `yaml:"timeout_seconds,omitempty"`
	MaxRetries       int      `yaml:"max_retries,omitempty"`
	RetryBackoff     string   `yaml:"retry_backoff,omitempty"`
	CreatedBy        string   `yaml:"created_by,omitempty"`
	CreatedChannelID string   `yaml:"created_channel_id,omitempty"`
}

// Parse decodes one job file. It fails only when the frontmatter block is
// structurally unreadable; field-level problems become InvalidReasons during
// validation, not parse errors.
func Parse(raw []byte) (*Job, error) {
	front, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, err
	}

	var h header
	if err := yaml.Unmarshal([]byte(front), &h); err != nil {
		return nil, fmt.Errorf("frontmatter: %w", err)
	}

	j := &Job{
		Name:             strings.TrimSpace(h.Name),
		Description:      strings.TrimSpace(h.Description),
		Schedule:         strings.TrimSpace(h.Schedule),
		Timezone:         strings.TrimSpace(h.Timezone),
		Enabled:          h.Enabled == nil || *h.Enabled,
		Delivery:         Delivery(defaultStr(h.Delivery, string(DeliverAnnounce))),
		Channel:          defaultStr(strings.TrimSpace(h.Channel), "auto"),
		Mode:             Mode(defaultStr(h.Mode, string(ModeIsolated))),
		Skills:           h.Skills,
		MCPServers:       h.MCPServers,
		MCPTools:         h.MCPTools,
		TimeoutSeconds:   h.TimeoutSeconds,
		MaxRetries:       h.MaxRetries,
		RetryBackoff:     Backoff(defaultStr(h.RetryBackoff, string(BackoffNone))),
		CreatedBy:        strings.TrimSpace(h.CreatedBy),
		CreatedChannelID: strings.TrimSpace(h.CreatedChannelID),
	}
	parseBody(j, body)
	return j, nil
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func splitFrontmatter(raw string) (front, body string, err error) {
	raw = strings.TrimPrefix(raw, "\ufeff")
	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t\r") != frontmatterDelim {
		return "", "", fmt.Errorf("missing frontmatter")
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r") == frontmatterDelim {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), nil
		}
	}
	return "", "", fmt.Errorf("unterminated frontmatter")
}

// parseBody splits the markdown body on top-level "# " headings. Prompt,
// Steps and Output are recognized in either language; everything else is
// kept verbatim as an extra section.
func parseBody(j *Job, body string) {
	type rawSection struct {
		heading string
		lines   []string
	}
	var sections []rawSection
	cur := rawSection{}
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			if cur.heading != "" || len(cur.lines) > 0 {
				sections = append(sections, cur)
			}
			cur = rawSection{heading: strings.TrimSpace(strings.TrimPrefix(line, "# "))}
			continue
		}
		cur.lines = append(cur.lines, line)
	}
	if cur.heading != "" || len(cur.lines) > 0 {
		sections = append(sections, cur)
	}

	for _, sec := range sections {
		text := strings.TrimSpace(strings.Join(sec.lines, "\n"))
		switch normalizeHeading(sec.heading) {
		case "prompt":
			j.Prompt = text
		case "steps":
			j.Steps = parseListItems(sec.lines)
		case "output":
			j.OutputConstraints = parseListItems(sec.lines)
		default:
			if sec.heading == "" && text == "" {
				continue
			}
			j.ExtraSections = append(j.ExtraSections, Section{
				Heading: sec.heading,
				Text:    "# " + sec.heading + "\n" + text,
			})
		}
	}
}

func normalizeHeading(h string) string {
	switch strings.ToLower(h) {
	case "prompt", "プロンプト":
		return "prompt"
	case "steps", "手順":
		return "steps"
	case "output", "出力条件":
		return "output"
	}
	return h
}

func parseListItems(lines []string) []string {
	var items []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") {
			items = append(items, strings.TrimSpace(trimmed[2:]))
		} else if trimmed != "" && len(items) > 0 {
			// continuation of the previous item
			items[len(items)-1] += " " + trimmed
		}
	}
	return items
}

// Serialize renders a job back to its file form. Known sections come first,
// extra sections follow in their original order.
func Serialize(j *Job) ([]byte, error) {
	enabled := j.Enabled
	h := header{
		Name:             j.Name,
		Description:      j.Description,
		Schedule:         j.Schedule,
		Timezone:         j.Timezone,
		Enabled:          &enabled,
		Delivery:         string(j.Delivery),
		Channel:          j.Channel,
		Mode:             string(j.Mode),
		Skills:           j.Skills,
		MCPServers:       j.MCPServers,
		MCPTools:         j.MCPTools,
		TimeoutSeconds:   j.TimeoutSeconds,
		MaxRetries:       j.MaxRetries,
		RetryBackoff:     string(j.RetryBackoff),
		CreatedBy:        j.CreatedBy,
		CreatedChannelID: j.CreatedChannelID,
	}
	front, err := yaml.Marshal(&h)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString(frontmatterDelim + "\n")
	b.Write(front)
	b.WriteString(frontmatterDelim + "\n")
	b.WriteString("\n# Prompt\n")
	if j.Prompt != "" {
		b.WriteString(j.Prompt + "\n")
	}
	if len(j.Steps) > 0 {
		b.WriteString("\n# Steps\n")
		for _, step := range j.Steps {
			b.WriteString("- " + step + "\n")
		}
	}
	if len(j.OutputConstraints) > 0 {
		b.WriteString("\n# Output\n")
		for _, item := range j.OutputConstraints {
			b.WriteString("- " + item + "\n")
		}
	}
	for _, sec := range j.ExtraSections {
		b.WriteString("\n" + strings.TrimSpace(sec.Text) + "\n")
	}
	return []byte(b.String()), nil
}
