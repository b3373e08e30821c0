package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"tubewatch/internal/config"
	"tubewatch/internal/storage"
	kit "tubewatch/internal/transport"
	"tubewatch/internal/transport/telegram"
	"tubewatch/internal/watch"
	"tubewatch/internal/youtube"
	"tubewatch/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager

	log   logx.Logger
	logs  *logx.Service
	store storage.Store

	adapter kit.Adapter
	yt      *youtube.Service
	engine  *watch.Engine

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	pollTimeout, err := config.DurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	busyTimeout, err := config.DurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		logSvc.Close()
		return nil, err
	}
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, err
	}

	yt := youtube.NewService(youtube.NewClient(cfg.YouTube.APIKey), youtube.ServiceConfig{
		RequestInterval: cfg.RequestInterval(),
		RegionCode:      cfg.YouTube.RegionCode,
		Language:        cfg.YouTube.Language,
	}, log.With(logx.String("comp", "youtube")))

	idle, err := config.DurationOrDefault("watch.idle_interval", cfg.Watch.IdleInterval, 30*time.Second)
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, err
	}
	engine := watch.New(watch.Config{IdleInterval: idle},
		store, yt, ad, log.With(logx.String("comp", "watch")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		adapter: ad,
		yt:      yt,
		engine:  engine,
		updates: make(chan kit.Update, 256),
	}, nil
}

// Run blocks until ctx is cancelled or an admin requests shutdown.
func (a *App) Run(ctx context.Context) error {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := a.cfgm.Get()
	if len(cfg.Telegram.AdminUserIDs) == 0 {
		a.log.Warn("telegram.admin_user_ids is empty, admin commands are open to everyone")
	}

	cmds := NewCommands(a.adapter, a.store, a.yt, cfg.Telegram.AdminUserIDs, cancel,
		a.log.With(logx.String("comp", "commands")))

	if err := a.adapter.Start(rctx, a.updates); err != nil {
		return err
	}

	// The first category refresh shares the request gate with the poll loop,
	// so a failure here only delays category names, not startup.
	if err := a.yt.RefreshCategories(rctx); err != nil {
		a.log.Warn("initial category refresh failed", logx.Err(err))
	}
	cr := cron.New()
	if _, err := cr.AddFunc("@daily", func() {
		if err := a.yt.RefreshCategories(rctx); err != nil {
			a.log.Warn("category refresh failed", logx.Err(err))
		}
	}); err != nil {
		a.log.Warn("category refresh schedule rejected", logx.Err(err))
	}
	cr.Start()

	if err := a.adapter.UpdateMenuCommands(rctx, cmds.MenuCommands()); err != nil {
		a.log.Warn("menu commands update failed", logx.Err(err))
	}

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		a.engine.Run(rctx)
	}()
	go cmds.Run(rctx, a.updates)
	go a.watchConfig(rctx)
	go a.notifySystemd(rctx)

	a.log.Info("running", logx.Duration("request_interval", a.yt.RequestInterval()))
	<-rctx.Done()
	a.log.Info("shutting down")

	// The engine finishes its in-flight playlist, including any compensating
	// deletes, before the adapter and store are torn down under it.
	<-engineDone

	stopCtx := cr.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(2 * time.Second):
	}

	shctx, shcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shcancel()
	if err := a.adapter.Stop(shctx); err != nil {
		a.log.Warn("adapter stop failed", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.logs.Close()
	return ctx.Err()
}

// watchConfig hot-reloads the config file. Only logging settings take effect
// without a restart; everything else is committed for the next boot.
func (a *App) watchConfig(ctx context.Context) {
	sub := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(sub)

	go func() {
		if err := a.cfgm.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.log.Info("config reloaded", logx.String("log_level", cfg.Logging.Level))
		}
	}
}

// notifySystemd reports readiness and feeds the watchdog when running under
// systemd with Type=notify. A no-op otherwise.
func (a *App) notifySystemd(ctx context.Context) {
	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if !ok {
		return
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			daemon.SdNotify(false, daemon.SdNotifyStopping)
			return
		case <-t.C:
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
