// Package app wires all Stagehand subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes them until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithExpressionStore, WithTranscript, etc.). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/stagehand/internal/config"
	"github.com/MrWong99/stagehand/internal/discord"
	"github.com/MrWong99/stagehand/internal/discord/commands"
	"github.com/MrWong99/stagehand/internal/expression"
	"github.com/MrWong99/stagehand/internal/health"
	"github.com/MrWong99/stagehand/internal/mcpcmd"
	"github.com/MrWong99/stagehand/internal/observe"
	"github.com/MrWong99/stagehand/internal/roster"
	"github.com/MrWong99/stagehand/internal/sprite"
	"github.com/MrWong99/stagehand/internal/stage"
	"github.com/MrWong99/stagehand/internal/surface"
	"github.com/MrWong99/stagehand/internal/transcript"
)

// Version is the application version reported in telemetry and MCP
// handshakes. Overridden at build time via -ldflags.
var Version = "dev"

// App owns all subsystem lifetimes.
type App struct {
	mu  sync.Mutex
	cfg *config.Config

	cfgPath  string
	logLevel *slog.LevelVar

	ring     *transcript.Ring
	store    expression.Store
	stage    *surface.Stage
	overlay  *surface.Server
	director *stage.Director
	bot      *discord.Bot
	watcher  *config.Watcher
	server   *http.Server
	metrics  *observe.Metrics

	// closers are called in order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithExpressionStore injects an expression store instead of creating one
// from config.
func WithExpressionStore(s expression.Store) Option {
	return func(a *App) { a.store = s }
}

// WithTranscript injects a transcript ring instead of creating an empty one.
func WithTranscript(r *transcript.Ring) Option {
	return func(a *App) { a.ring = r }
}

// WithConfigPath enables hot reloading of the config file at path.
func WithConfigPath(path string) Option {
	return func(a *App) { a.cfgPath = path }
}

// WithLogLevelVar hands the app the level var behind the process logger so
// log-level config changes apply without a restart.
func WithLogLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together: transcript ring,
// expression store, classifier, sprite locator, overlay server, stage
// director, and (when a token is configured) the Discord bot.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		metrics: observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.ring == nil {
		a.ring = transcript.NewRing(cfg.Discord.HistoryLimit)
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	if err := a.initStage(); err != nil {
		return nil, fmt.Errorf("app: init stage: %w", err)
	}

	if err := a.initDiscord(ctx); err != nil {
		return nil, fmt.Errorf("app: init discord: %w", err)
	}

	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore selects the expression store: an injected double, PostgreSQL when
// a DSN is configured, or the in-memory store.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	if dsn := a.cfg.Store.PostgresDSN; dsn != "" {
		pg, err := expression.NewPostgresStore(ctx, dsn)
		if err != nil {
			return err
		}
		a.store = pg
		a.closers = append(a.closers, func() error {
			pg.Close()
			return nil
		})
		slog.Info("expression store ready", "backend", "postgres")
		return nil
	}

	a.store = expression.NewMemStore()
	slog.Info("expression store ready", "backend", "memory")
	return nil
}

// initStage builds the overlay server and the director with its optional
// decorators (classifier, sprite locator).
func (a *App) initStage() error {
	a.stage = surface.NewStage()
	a.overlay = surface.NewServer(surface.WithTransition(a.cfg.Stage.Transition.Std()))

	dirOpts := []stage.Option{
		stage.WithDefaultExpression(a.cfg.Expressions.Default),
	}

	if name := a.cfg.Expressions.Provider; name != "" {
		var llmOpts []anyllmlib.Option
		if a.cfg.Expressions.APIKey != "" {
			llmOpts = append(llmOpts, anyllmlib.WithAPIKey(a.cfg.Expressions.APIKey))
		}
		if a.cfg.Expressions.BaseURL != "" {
			llmOpts = append(llmOpts, anyllmlib.WithBaseURL(a.cfg.Expressions.BaseURL))
		}
		classifier, err := expression.NewClassifier(name, a.cfg.Expressions.Model,
			a.cfg.Expressions.Labels, a.cfg.Expressions.Default, llmOpts...)
		if err != nil {
			return err
		}
		dirOpts = append(dirOpts, stage.WithClassifier(classifier))
		slog.Info("expression classifier ready", "provider", name, "model", a.cfg.Expressions.Model)
	}

	if dir := a.cfg.Sprites.Dir; dir != "" {
		locOpts := []sprite.FSOption{sprite.WithExtensions(a.cfg.Sprites.Extensions)}
		if a.cfg.Sprites.BaseURL != "" {
			locOpts = append(locOpts, sprite.WithBaseURL(a.cfg.Sprites.BaseURL))
		}
		dirOpts = append(dirOpts, stage.WithLocator(sprite.NewFSLocator(dir, locOpts...)))
		slog.Info("sprite locator ready", "dir", dir)
	}

	a.director = stage.NewDirector(a.ring, a.stage, a.overlay, a.store,
		stage.FromConfig(a.cfg), dirOpts...)
	return nil
}

// initDiscord connects the bot, registers the slash commands, and seeds the
// transcript from channel history. Skipped when no token is configured.
func (a *App) initDiscord(ctx context.Context) error {
	if a.cfg.Discord.Token == "" {
		slog.Info("discord disabled, transcript fed externally")
		return nil
	}

	bot, err := discord.New(ctx, a.cfg.Discord, a.ring, a.director)
	if err != nil {
		return err
	}
	a.bot = bot
	a.closers = append(a.closers, bot.Close)

	commands.NewStageCommands(bot.Permissions(), a).Register(bot.Router())
	commands.NewExpressionCommands(bot.Permissions(), a.store, a.cfg.Expressions.Labels).Register(bot.Router())

	if err := bot.Backfill(ctx); err != nil {
		slog.Warn("discord history backfill failed, starting empty", "err", err)
	}

	slog.Info("discord bot connected", "guild_id", a.cfg.Discord.GuildID, "channel_id", a.cfg.Discord.ChannelID)
	return nil
}

// initHTTP assembles the HTTP surface: overlay websocket, health endpoints,
// and the Prometheus scrape endpoint.
func (a *App) initHTTP() {
	checkers := []health.Checker{health.Transcript(a.ring)}
	if p, ok := a.store.(health.Pinger); ok {
		checkers = append(checkers, health.Store(p))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/ws", a.countClients(a.overlay))

	a.server = &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: observe.Middleware(a.metrics)(mux),
	}
}

// countClients tracks the overlay subscriber gauge around the websocket
// handler's lifetime.
func (a *App) countClients(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.metrics.OverlayClients.Add(r.Context(), 1)
		defer a.metrics.OverlayClients.Add(context.WithoutCancel(r.Context()), -1)
		next.ServeHTTP(w, r)
	})
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the director loop, the HTTP server, the Discord bot, and the
// config watcher, blocking until ctx is cancelled or a subsystem fails.
func (a *App) Run(ctx context.Context) error {
	if a.cfgPath != "" {
		w, err := config.NewWatcher(a.cfgPath, a.handleConfigChange)
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			a.watcher = w
			defer w.Stop()
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.director.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("app: director: %w", err)
		}
		return nil
	})

	if a.bot != nil {
		g.Go(func() error {
			if err := a.bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: discord bot: %w", err)
			}
			return nil
		})
	}

	if a.server.Addr != "" {
		g.Go(func() error {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	slog.Info("app running", "listen_addr", a.server.Addr, "stage_enabled", a.cfg.Stage.Enabled)
	return g.Wait()
}

// ServeMCP serves the MCP stdio tool surface until ctx is cancelled. Run it
// alongside [App.Run] when the process is launched as an MCP server.
func (a *App) ServeMCP(ctx context.Context) error {
	return mcpcmd.NewServer(Version, a, a.store).ServeStdio(ctx)
}

// ─── Stage control ───────────────────────────────────────────────────────────

// App is the control surface behind the slash commands and MCP tools.
var (
	_ commands.StageService = (*App)(nil)
	_ mcpcmd.StageService   = (*App)(nil)
)

// Snapshot returns the current roster state.
func (a *App) Snapshot() roster.Snapshot {
	return a.director.Snapshot()
}

// Restart tears the stage down and rebuilds it from transcript history.
func (a *App) Restart(ctx context.Context) error {
	return a.director.Restart(ctx)
}

// SetMembers replaces the custom member list and restarts the stage. An
// empty list reverts to transcript participants.
func (a *App) SetMembers(ctx context.Context, names []string) error {
	a.mu.Lock()
	a.cfg.Stage.CustomMembers = names
	settings := stage.FromConfig(a.cfg)
	a.mu.Unlock()

	a.director.ApplySettings(settings)
	return a.director.Restart(ctx)
}

// SetEnabled toggles the stage. Disabling clears all slots; enabling leaves
// the stage empty until the next evaluation cycle or restart.
func (a *App) SetEnabled(ctx context.Context, enabled bool) error {
	a.mu.Lock()
	a.cfg.Stage.Enabled = enabled
	settings := stage.FromConfig(a.cfg)
	a.mu.Unlock()

	a.director.ApplySettings(settings)
	if enabled {
		return a.director.Restart(ctx)
	}
	return nil
}

// ─── Config reload ───────────────────────────────────────────────────────────

// handleConfigChange classifies a config file change and applies what can be
// applied live.
func (a *App) handleConfigChange(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}

	a.mu.Lock()
	// Keep command-driven overrides when the file section did not change.
	if !d.RestartStage {
		new.Stage.CustomMembers = a.cfg.Stage.CustomMembers
	}
	if !d.EnabledChanged {
		new.Stage.Enabled = a.cfg.Stage.Enabled
	}
	a.cfg = new
	settings := stage.FromConfig(new)
	a.mu.Unlock()

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.HotReload || d.EnabledChanged || d.RestartStage {
		a.director.ApplySettings(settings)
		slog.Info("stage settings reloaded",
			"hot", d.HotReload, "enabled_changed", d.EnabledChanged, "restart_stage", d.RestartStage)
	}

	if d.RestartStage {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.director.Restart(ctx); err != nil {
			slog.Warn("stage restart after config change failed", "err", err)
		}
	}

	if d.RestartProcess {
		slog.Warn("config change affects connection-level settings; restart the process to apply them")
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.watcher != nil {
			a.watcher.Stop()
		}
		if err := a.overlay.Shutdown(ctx); err != nil {
			slog.Warn("overlay shutdown error", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// SlogLevel maps a config log level onto the slog scale.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
