package jobs

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"jobbot/pkg/logx"
)

// Watcher reports changes to the job definition directory so the scheduler
// can drop its due cache. It only signals "something changed"; the store is
// re-read by whoever cares.
type Watcher struct {
	dir      string
	onChange func()
	log      logx.Logger
}

func NewWatcher(dir string, onChange func(), log logx.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		onChange: onChange,
		log:      log.With(logx.String("component", "jobs-watch")),
	}
}

// Watch blocks until ctx is done. When fsnotify gets into a bad state the
// watcher may stop delivering events or close its channels; self-heal by
// recreating it with a small jittered backoff.
func (w *Watcher) Watch(ctx context.Context) error {
	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// debounce so an editor's partial writes collapse into one notification
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			if ctx.Err() != nil {
				return
			}
			w.log.Debug("jobs directory changed", logx.String("dir", w.dir))
			w.onChange()
		})
	}

	wait := func() bool {
		d := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff *= 2
			if backoff > restartBackoffMax {
				backoff = restartBackoffMax
			}
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("jobs watch init failed", logx.Err(err), logx.String("dir", w.dir))
			if !wait() {
				return nil
			}
			continue
		}
		if err := fw.Add(w.dir); err != nil {
			_ = fw.Close()
			w.log.Warn("jobs watch add failed", logx.Err(err), logx.String("dir", w.dir))
			if !wait() {
				return nil
			}
			continue
		}
		backoff = restartBackoffBase
		w.log.Debug("jobs watcher started", logx.String("dir", w.dir))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				// ignore our own temp files mid-write; the rename fires anyway
				base := filepath.Base(ev.Name)
				if strings.HasSuffix(base, ".tmp") || !strings.HasSuffix(base, ".md") {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					debounce()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				// Overflow means events were missed; signal once and keep going.
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					debounce()
					continue
				}
				w.log.Warn("jobs watch error", logx.Err(err), logx.String("dir", w.dir))
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = fw.Close()
		if ctx.Err() != nil {
			return nil
		}
		w.log.Warn("jobs watcher stopped; restarting", logx.String("dir", w.dir))
		if !wait() {
			return nil
		}
	}
}
