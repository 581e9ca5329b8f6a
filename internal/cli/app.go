package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/soyeahso/validade/internal/channel"
	"github.com/soyeahso/validade/internal/config"
	"github.com/soyeahso/validade/internal/conversation"
	"github.com/soyeahso/validade/internal/dates"
	"github.com/soyeahso/validade/internal/domain"
	"github.com/soyeahso/validade/internal/extract"
	"github.com/soyeahso/validade/internal/hooks"
	"github.com/soyeahso/validade/internal/llm"
	"github.com/soyeahso/validade/internal/logging"
	"github.com/soyeahso/validade/internal/metrics"
	"github.com/soyeahso/validade/internal/reminder"
	"github.com/soyeahso/validade/internal/routing"
	"github.com/soyeahso/validade/internal/store"
)

const shutdownTimeout = 10 * time.Second

// app is the assembled bot. Channels are registered on app.channels
// between newApp and run.
type app struct {
	cfg      config.Config
	log      *logging.Logger
	hooks    *hooks.Manager
	metrics  *metrics.Metrics
	store    store.ReminderStore
	norm     *dates.Normalizer
	channels *channel.Registry
	sched    *reminder.Scheduler
	engine   *conversation.Engine
	router   *routing.Router
}

// newApp opens storage and builds the extraction, scheduling and
// conversation layers from cfg.
func newApp(ctx context.Context, cfg config.Config, storeOpts store.Options, log *logging.Logger) (*app, error) {
	loc, err := cfg.Reminders.Location()
	if err != nil {
		return nil, err
	}
	hour, minute, err := cfg.Reminders.Clock()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		hooks:    hooks.NewManager(log),
		norm:     dates.New(loc),
		channels: channel.NewRegistry(log),
	}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}
	if err := a.hooks.RegisterCommands(hookSpecs(cfg.Hooks)); err != nil {
		return nil, err
	}

	reg := llm.NewRegistryFromConfig(cfg.LLM, log)
	text, image, err := extract.Sources(ctx, cfg, reg, a.norm, log)
	if err != nil {
		return nil, fmt.Errorf("configuring extraction: %w", err)
	}
	adapter := extract.NewAdapter(text, image, a.norm, log,
		extract.WithMetrics(a.metrics),
		extract.WithTimeout(cfg.LLM.Timeout()),
	)

	a.store, err = store.OpenReminders(ctx, storeOpts, log)
	if err != nil {
		return nil, fmt.Errorf("opening reminder store: %w", err)
	}

	a.sched = reminder.New(a.store, a.channels, reminder.Config{
		Location:    loc,
		Hour:        hour,
		Minute:      minute,
		SendTimeout: cfg.Reminders.SendTimeout(),
	}, log, reminder.WithHooks(a.hooks), reminder.WithMetrics(a.metrics))

	a.router = routing.NewRouter(a.channels, a.hooks, log)
	sessions := conversation.NewSessionStore(cfg.Session.MaxSessions, cfg.Session.IdleTimeout(),
		conversation.OnExpire(func(s domain.Session) { a.engine.Expired(s) }))
	a.engine = conversation.NewEngine(sessions, adapter, a.sched, a.norm, log,
		conversation.WithHooks(a.hooks),
		conversation.WithMetrics(a.metrics),
		conversation.WithReply(a.router.Reply),
	)
	return a, nil
}

func hookSpecs(cfg config.HooksConfig) []hooks.CommandSpec {
	specs := make([]hooks.CommandSpec, 0, len(cfg.Commands))
	for _, h := range cfg.Commands {
		specs = append(specs, hooks.CommandSpec{
			Event:   h.Event,
			Command: h.Command,
			Timeout: time.Duration(h.Timeout) * time.Millisecond,
		})
	}
	return specs
}

// run wires the registered channels to the engine, re-arms stored
// reminders and blocks until ctx is cancelled or the channels exit.
func (a *app) run(ctx context.Context) error {
	a.router.Wire(a.engine)

	armed, err := a.sched.Resume(ctx)
	if err != nil {
		a.close()
		return fmt.Errorf("resuming reminders: %w", err)
	}
	channels := a.channels.List()
	a.log.Info().Strs("channels", channels).Int("armed", armed).Msg("bot started")
	a.hooks.Emit(ctx, hooks.EventBotStart, map[string]any{"channels": channels, "armed": armed})

	if len(channels) == 0 {
		<-ctx.Done()
	} else {
		err = a.channels.Run(ctx)
	}
	a.shutdown()
	return err
}

// shutdown drains queued messages before the channels stop so their
// replies still go out.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.engine.Close(ctx); err != nil {
		a.log.Warn().Err(err).Msg("conversation engine did not drain")
	}
	a.channels.StopAll(ctx)
	a.sched.Stop()
	a.hooks.Emit(ctx, hooks.EventBotStop, nil)
	if err := a.hooks.Wait(ctx); err != nil {
		a.log.Warn().Err(err).Msg("hooks still running at shutdown")
	}
	a.close()
	a.log.Info().Msg("bot stopped")
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing reminder store")
	}
}

// storeOptions maps the storage config onto store.Options.
func storeOptions(cfg config.StorageConfig) store.Options {
	return store.Options{
		Driver:      cfg.Driver,
		Path:        paths.DatabasePath(cfg),
		DatabaseURL: cfg.DatabaseURL,
	}
}

// loadConfig loads and validates the config file, then opens the root
// logger it describes. The --log-level flag wins over the file.
func loadConfig() (config.Config, func() error, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, nil, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}

	root, closeLog, err := logging.Open(logging.Options{
		Level: cfg.Logging.Level,
		Style: cfg.Logging.ConsoleStyle,
		File:  cfg.Logging.File,
	})
	if err != nil {
		return cfg, nil, err
	}
	log = root
	return cfg, closeLog, nil
}
