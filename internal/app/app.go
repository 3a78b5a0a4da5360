// Package app wires configuration, transport, the scheduler engine and the
// gateway into one startable unit.
package app

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"jobbot/internal/adapters/telegram"
	"jobbot/internal/agent"
	"jobbot/internal/config"
	"jobbot/internal/engine"
	"jobbot/internal/gateway"
	"jobbot/internal/history"
	"jobbot/internal/jobs"
	"jobbot/internal/mcp"
	"jobbot/internal/skills"
	"jobbot/internal/transport"
	"jobbot/pkg/logx"
)

type App struct {
	cfg *config.Config
	log logx.Logger

	closeLog func() error
	adapter  *telegram.Adapter
	store    *jobs.Store
	hist     *history.Store
	engine   *engine.Engine
	gateway  *gateway.Gateway
	watcher  *jobs.Watcher

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg *config.Config) (*App, error) {
	log, closeLog := logx.New(logx.Config{Level: cfg.LogLevel, File: cfg.LogFile})

	if err := os.MkdirAll(cfg.JobsDir, 0o755); err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("jobs dir: %w", err)
	}

	skillsReg := skills.NewDirRegistry(cfg.SkillsDir)
	mcpReg := mcp.NewFileRegistry(cfg.MCPConfigPath)
	validator := &jobs.Validator{
		DefaultTimezone: cfg.DefaultTimezone,
		Skills:          skillsReg,
		MCP:             mcpReg,
	}
	store := jobs.NewStore(cfg.JobsDir, validator, log)

	hist, err := history.Open(cfg.HistoryDB, log)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("history: %w", err)
	}

	runtime, err := agent.NewExecRuntime(cfg.AgentCommand, log)
	if err != nil {
		_ = hist.Close()
		_ = closeLog()
		return nil, fmt.Errorf("agent runtime: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{Token: cfg.TelegramToken}, log)
	if err != nil {
		_ = hist.Close()
		_ = closeLog()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	eng := engine.New(engine.Config{
		SchedulerEnabled: cfg.SchedulerEnabled,
		PollInterval:     cfg.PollInterval,
		AgentTimeout:     cfg.AgentTimeout,
		RetryBase:        cfg.RetryBase,
		RetryMaxDelay:    cfg.RetryMaxDelay,
	}, store, hist, runtime, adapter, log)

	gw := gateway.New(gateway.Config{BusyMessage: cfg.BusyMessage}, store, hist, eng, adapter, log)
	watcher := jobs.NewWatcher(cfg.JobsDir, eng.InvalidateDue, log)

	return &App{
		cfg:      cfg,
		log:      log,
		closeLog: closeLog,
		adapter:  adapter,
		store:    store,
		hist:     hist,
		engine:   eng,
		gateway:  gw,
		watcher:  watcher,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	updates := make(chan transport.Update, 64)
	if err := a.adapter.Start(ctx, updates); err != nil {
		return fmt.Errorf("telegram start: %w", err)
	}
	a.engine.Start(ctx)

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		_ = a.watcher.Watch(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.gateway.Run(ctx, updates)
	}()

	a.notifySystemd(ctx)
	a.log.Info("jobbot started",
		logx.String("jobs_dir", a.cfg.JobsDir),
		logx.Bool("scheduler", a.cfg.SchedulerEnabled))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if a.cancel != nil {
		a.cancel()
	}
	_ = a.adapter.Stop(ctx)
	a.engine.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	err := a.hist.Close()
	a.log.Info("jobbot stopped")
	_ = a.closeLog()
	return err
}

// notifySystemd reports readiness and keeps the watchdog fed when running
// under systemd. A no-op everywhere else.
func (a *App) notifySystemd(ctx context.Context) {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if !sent {
		return
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}
