// Package schedule parses natural-language recurrence expressions and
// computes due instants.
//
// Exactly three shapes are recognized, each in an English and a Japanese
// spelling:
//
//	hourly            / 毎時
//	daily HH:MM       / 毎日 HH:MM
//	weekdays HH:MM    / 平日 HH:MM
//
// Internally a rule compiles to a five-field cron expression evaluated by
// robfig/cron in the job's own location, so daylight-saving transitions are
// handled by the cron library rather than by hand.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Kind int

const (
	Hourly Kind = iota
	Daily
	Weekdays
)

func (k Kind) String() string {
	switch k {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	case Weekdays:
		return "weekdays"
	default:
		return "unknown"
	}
}

// Rule is a parsed recurrence expression.
type Rule struct {
	Kind   Kind
	Hour   int // 0 for hourly
	Minute int // 0 for hourly
	Text   string

	sched cron.Schedule
}

// ParseError reports an expression that matches none of the supported shapes.
// It carries the raw text so callers can surface it verbatim.
type ParseError struct {
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unsupported schedule %q", e.Text)
}

// Help returns the user-facing summary of accepted shapes.
func Help() string {
	return "対応する頻度: 毎時/hourly, 毎日 HH:MM/daily HH:MM, 平日 HH:MM/weekdays HH:MM"
}

var (
	parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	reHourly = regexp.MustCompile(`^(?i:hourly|毎時)$`)
	reAtTime = regexp.MustCompile(`^(?i)(daily|weekdays?|毎日|平日)\s*([01]?\d|2[0-3]):([0-5]\d)$`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// Normalize collapses internal whitespace so equivalent spellings compare equal.
func Normalize(expr string) string {
	return reSpaces.ReplaceAllString(strings.TrimSpace(expr), " ")
}

// Parse maps a recurrence expression to a Rule.
func Parse(expr string) (Rule, error) {
	text := Normalize(expr)
	if text == "" {
		return Rule{}, &ParseError{Text: expr}
	}

	if reHourly.MatchString(text) {
		return compile(Rule{Kind: Hourly, Text: text}, "0 * * * *")
	}

	m := reAtTime.FindStringSubmatch(text)
	if m == nil {
		return Rule{}, &ParseError{Text: text}
	}
	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])

	r := Rule{Hour: hour, Minute: minute, Text: text}
	switch strings.ToLower(m[1]) {
	case "daily", "毎日":
		r.Kind = Daily
		return compile(r, fmt.Sprintf("%d %d * * *", minute, hour))
	default: // weekday forms
		r.Kind = Weekdays
		return compile(r, fmt.Sprintf("%d %d * * 1-5", minute, hour))
	}
}

func compile(r Rule, spec string) (Rule, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		// The specs above are fixed templates; a parse failure here is a bug.
		return Rule{}, fmt.Errorf("compile schedule %q: %w", spec, err)
	}
	r.sched = s
	return r, nil
}

// Next returns the first due instant strictly after now, evaluated in loc.
// The result carries loc so callers can compare and log in job-local time.
func (r Rule) Next(now time.Time, loc *time.Location) time.Time {
	if r.sched == nil || loc == nil {
		return time.Time{}
	}
	return r.sched.Next(now.In(loc))
}

// Validate reports whether expr matches one of the supported shapes.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}
