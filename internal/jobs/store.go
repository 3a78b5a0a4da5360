package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"jobbot/internal/schedule"
	"jobbot/pkg/logx"
)

// Store reads and writes job definition files under a single directory.
// The files are the source of truth; nothing is cached between calls, so an
// external edit is picked up on the next load.
type Store struct {
	dir       string
	validator *Validator
	log       logx.Logger
}

func NewStore(dir string, validator *Validator, log logx.Logger) *Store {
	return &Store{
		dir:       dir,
		validator: validator,
		log:       log.With(logx.String("component", "jobs")),
	}
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) pathFor(name string) string {
	return filepath.Join(s.dir, name+".md")
}

// LoadAll parses every *.md file in the directory in file-name order. Files
// that cannot be parsed at all are reported as LoadErrors; jobs that parse
// but fail validation come back quarantined, not omitted.
func (s *Store) LoadAll(ctx context.Context) ([]*Job, []*LoadError) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, []*LoadError{{File: s.dir, Err: err}}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var out []*Job
	var broken []*LoadError
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		j, err := s.loadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.log.Warn("skipping unreadable job file", logx.String("file", name), logx.Err(err))
			broken = append(broken, &LoadError{File: name, Err: err})
			continue
		}
		out = append(out, j)
	}
	return out, broken
}

// Get loads a single job by name.
func (s *Store) Get(ctx context.Context, name string) (*Job, error) {
	j, err := s.loadFile(s.pathFor(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &NotFoundError{Name: name}
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Store) loadFile(path string) (*Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	j, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	j.Path = path
	base := strings.TrimSuffix(filepath.Base(path), ".md")
	if j.Name == "" {
		j.Name = base
	}
	s.validator.Validate(j)
	if j.Name != base {
		j.InvalidReasons = append(j.InvalidReasons,
			fmt.Sprintf("name: %q does not match file name %q", j.Name, base))
	}
	return j, nil
}

// Create validates the spec and writes a new definition file. Nothing is
// written when validation fails; an existing job is never overwritten.
func (s *Store) Create(ctx context.Context, spec CreateSpec) (*Job, error) {
	var reasons []string
	if spec.Name == "" {
		reasons = append(reasons, "name: required")
	} else if !reName.MatchString(spec.Name) {
		reasons = append(reasons, fmt.Sprintf("name: %q must be lowercase letters, digits and hyphens", spec.Name))
	}
	if strings.TrimSpace(spec.Prompt) == "" {
		reasons = append(reasons, "prompt: required")
	}
	if err := schedule.Validate(spec.Schedule); err != nil {
		reasons = append(reasons, fmt.Sprintf("schedule: %v", err))
	}
	tz := spec.Timezone
	if tz == "" {
		tz = s.validator.DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		reasons = append(reasons, fmt.Sprintf("timezone: unknown zone %q", tz))
	}
	if len(reasons) > 0 {
		return nil, &ValidationError{Reasons: reasons}
	}

	path := s.pathFor(spec.Name)
	if _, err := os.Stat(path); err == nil {
		return nil, &ValidationError{Reasons: []string{fmt.Sprintf("name: job %q already exists", spec.Name)}}
	}

	j := &Job{
		Path:             path,
		Name:             spec.Name,
		Description:      spec.Description,
		Schedule:         schedule.Normalize(spec.Schedule),
		Timezone:         tz,
		Enabled:          true,
		Delivery:         DeliverAnnounce,
		Channel:          "auto",
		Mode:             ModeIsolated,
		RetryBackoff:     BackoffNone,
		CreatedBy:        spec.CreatedBy,
		CreatedChannelID: spec.CreatedChannelID,
		Prompt:           strings.TrimSpace(spec.Prompt),
	}
	s.validator.Validate(j)
	if !j.Valid() {
		return nil, &ValidationError{Reasons: j.InvalidReasons}
	}
	if err := s.write(j); err != nil {
		return nil, err
	}
	s.log.Info("job created",
		logx.String("job", j.Name),
		logx.String("schedule", j.Schedule),
		logx.String("timezone", j.Timezone))
	return j, nil
}

// SetEnabled persists a pause or resume. The rest of the file round-trips
// unchanged, extra sections included.
func (s *Store) SetEnabled(ctx context.Context, name string, enabled bool) (*Job, error) {
	j, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if j.Enabled == enabled {
		return j, nil
	}
	j.Enabled = enabled
	if err := s.write(j); err != nil {
		return nil, err
	}
	s.log.Info("job toggled", logx.String("job", name), logx.Bool("enabled", enabled))
	return j, nil
}

// Delete removes the definition file.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := os.Remove(s.pathFor(name))
	if errors.Is(err, fs.ErrNotExist) {
		return &NotFoundError{Name: name}
	}
	if err != nil {
		return err
	}
	s.log.Info("job deleted", logx.String("job", name))
	return nil
}

// write serializes atomically: temp file in the same directory, then rename.
func (s *Store) write(j *Job) error {
	data, err := Serialize(j)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+j.Name+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, j.Path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
