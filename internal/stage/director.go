// Package stage orchestrates the refresh cycle: it reads the transcript,
// resolves presence for the latest message, reconciles the roster engine,
// decorates slots with expressions and sprites, and publishes snapshots to
// the overlay. A director owns the roster state; every mutation goes through
// it.
package stage

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/stagehand/internal/config"
	"github.com/MrWong99/stagehand/internal/expression"
	"github.com/MrWong99/stagehand/internal/observe"
	"github.com/MrWong99/stagehand/internal/presence"
	"github.com/MrWong99/stagehand/internal/restart"
	"github.com/MrWong99/stagehand/internal/roster"
	"github.com/MrWong99/stagehand/internal/sprite"
	"github.com/MrWong99/stagehand/internal/surface"
	"github.com/MrWong99/stagehand/internal/transcript"
	"github.com/MrWong99/stagehand/internal/transcript/fuzzy"
)

// MinInterval is the floor for the periodic re-evaluation interval.
const MinInterval = time.Second

// Refresh triggers, used as metric attributes and in logs.
const (
	TriggerPeriodic = "periodic"
	TriggerMessage  = "message"
	TriggerCommand  = "command"
)

// Renderer receives the slot list after every completed cycle.
// Satisfied by [surface.Server].
type Renderer interface {
	Publish(slots []surface.Slot)
}

// Settings is the per-cycle configuration snapshot the director reads.
type Settings struct {
	Enabled       bool
	Capacities    roster.Capacities
	Exclude       []string
	CustomMembers []string
	Interval      time.Duration
	Debounce      time.Duration
	RestartDelay  time.Duration
}

// FromConfig maps the stage section of cfg onto Settings. The re-evaluation
// interval follows the transition duration but never drops below
// [MinInterval].
func FromConfig(cfg *config.Config) Settings {
	return Settings{
		Enabled: cfg.Stage.Enabled,
		Capacities: roster.Capacities{
			Left:  cfg.Stage.SlotsLeft,
			Right: cfg.Stage.SlotsRight,
		},
		Exclude:       cfg.Stage.Exclude,
		CustomMembers: cfg.Stage.CustomMembers,
		Interval:      max(cfg.Stage.Transition.Std(), MinInterval),
		Debounce:      cfg.Stage.DebounceWindow.Std(),
		RestartDelay:  cfg.Stage.RestartDelay.Std(),
	}
}

// Director drives the stage. All roster and surface mutation is serialized
// through it; external readers use [Director.Snapshot].
type Director struct {
	provider   transcript.Provider
	resolver   *presence.Resolver
	engine     *roster.Engine
	stage      *surface.Stage
	renderer   Renderer
	guard      *restart.Guard
	normalizer *fuzzy.Normalizer
	store      expression.Store
	classifier *expression.Classifier
	locator    sprite.Locator
	metrics    *observe.Metrics
	defaultExp string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	// busy suppresses overlapping refresh cycles; a cycle that observes it
	// held exits as a no-op and the next tick catches up.
	busy atomic.Bool

	// mu guards engine and stage mutation plus the settings snapshot.
	mu       sync.Mutex
	settings Settings
	active   int

	wg sync.WaitGroup
}

// Option configures a [Director].
type Option func(*Director)

// WithClassifier enables LLM expression classification for the latest
// speaker.
func WithClassifier(c *expression.Classifier) Option {
	return func(d *Director) { d.classifier = c }
}

// WithLocator enables sprite lookup for decorated slots.
func WithLocator(l sprite.Locator) Option {
	return func(d *Director) { d.locator = l }
}

// WithMetrics overrides the metrics instance (default [observe.DefaultMetrics]).
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Director) { d.metrics = m }
}

// WithDefaultExpression sets the expression used when no override or
// classification applies. Default "neutral".
func WithDefaultExpression(expr string) Option {
	return func(d *Director) {
		if expr != "" {
			d.defaultExp = expr
		}
	}
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Director) { d.now = now }
}

// NewDirector wires a director around the given collaborators. st must be
// the same stage the returned director publishes from; the roster engine is
// created on top of it.
func NewDirector(provider transcript.Provider, st *surface.Stage, renderer Renderer, store expression.Store, settings Settings, opts ...Option) *Director {
	d := &Director{
		provider:   provider,
		resolver:   presence.NewResolver(),
		engine:     roster.NewEngine(st),
		stage:      st,
		renderer:   renderer,
		normalizer: fuzzy.New(),
		store:      store,
		defaultExp: "neutral",
		now:        time.Now,
		sleep:      sleepCtx,
		settings:   settings,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	d.guard = restart.NewGuard(settings.Debounce, d.restartSequence)
	return d
}

// Run builds the initial stage from transcript history, then re-evaluates
// periodically until ctx is cancelled. It blocks; run it in a goroutine or
// an errgroup.
func (d *Director) Run(ctx context.Context) error {
	if err := d.rebuild(ctx); err != nil {
		slog.Warn("stage: initial build failed, continuing with empty stage", "err", err)
	}

	for {
		interval := max(d.snapshotSettings().Interval, MinInterval)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			d.guard.Stop()
			d.wg.Wait()
			return ctx.Err()
		case <-timer.C:
			d.Refresh(ctx, TriggerPeriodic)
		}
	}
}

// Refresh runs one evaluation cycle. Overlapping calls are suppressed, not
// queued; the periodic loop catches up.
func (d *Director) Refresh(ctx context.Context, trigger string) {
	if !d.busy.CompareAndSwap(false, true) {
		return
	}
	defer d.busy.Store(false)

	s := d.snapshotSettings()
	if !s.Enabled {
		return
	}

	start := d.now()
	last, ok, err := d.provider.Last(ctx)
	if err != nil {
		slog.Warn("stage: read last message", "err", err)
		return
	}

	master, err := d.masterNames(ctx, s)
	if err != nil {
		slog.Warn("stage: read participants", "err", err)
		return
	}

	var desired []string
	var speaker string
	if ok {
		desired = d.resolver.Resolve(last, presence.Input{
			Master:        master,
			CustomMembers: s.CustomMembers,
			Exclude:       excludeSet(s.Exclude),
		})
		if sp, found := d.normalizer.Resolve(last.Speaker, master); found {
			speaker = sp
		}
	}

	d.apply(ctx, desired, s)
	d.metrics.RecordRefresh(ctx, d.now().Sub(start).Seconds(), trigger)

	d.decorateAsync(ctx, speaker, last)
}

// Restart requests a full stage restart: tear-down, a minimum delay, then a
// rebuild from transcript history. Bursts coalesce into one execution whose
// result every caller shares; triggers during a running restart are ignored.
func (d *Director) Restart(ctx context.Context) error {
	return d.guard.Trigger(ctx)
}

// ApplySettings swaps the configuration snapshot. Disabling clears the
// stage; capacity changes take effect on the next cycle.
func (d *Director) ApplySettings(s Settings) {
	d.mu.Lock()
	wasEnabled := d.settings.Enabled
	d.settings = s
	if wasEnabled && !s.Enabled {
		d.engine.Clear()
		d.trackActiveLocked()
	}
	d.mu.Unlock()

	if wasEnabled && !s.Enabled {
		d.renderer.Publish(d.stage.Slots())
	}
}

// Snapshot returns the current roster state.
func (d *Director) Snapshot() roster.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Snapshot()
}

// ── internals ────────────────────────────────────────────────────────────────

// restartSequence is the guarded restart body: tear down, pause for the
// configured delay, rebuild from history.
func (d *Director) restartSequence(ctx context.Context) error {
	// Hold the busy flag for the whole sequence so refresh cycles cannot
	// interleave between tear-down and set-up.
	for !d.busy.CompareAndSwap(false, true) {
		if err := d.sleep(ctx, 10*time.Millisecond); err != nil {
			return err
		}
	}
	defer d.busy.Store(false)

	start := d.now()
	s := d.snapshotSettings()

	d.mu.Lock()
	d.engine.Clear()
	d.trackActiveLocked()
	d.mu.Unlock()
	d.renderer.Publish(d.stage.Slots())

	if err := d.sleep(ctx, max(s.RestartDelay, 0)); err != nil {
		return err
	}

	err := d.rebuild(ctx)
	d.metrics.Restarts.Add(ctx, 1)
	d.metrics.RestartDuration.Record(ctx, d.now().Sub(start).Seconds())
	return err
}

// rebuild derives the full roster from transcript history: every
// non-excluded member, ordered by speaking recency.
func (d *Director) rebuild(ctx context.Context) error {
	s := d.snapshotSettings()
	if !s.Enabled {
		return nil
	}

	master, err := d.masterNames(ctx, s)
	if err != nil {
		return err
	}
	msgs, err := d.provider.Messages(ctx)
	if err != nil {
		return err
	}

	excluded := excludeSet(s.Exclude)
	candidates := make([]string, 0, len(master))
	for _, name := range master {
		if _, skip := excluded[strings.ToLower(name)]; skip {
			continue
		}
		candidates = append(candidates, name)
	}

	desired := roster.OrderFromHistory(candidates, msgs)
	d.apply(ctx, desired, s)

	var last transcript.Message
	var speaker string
	if m, ok, err := d.provider.Last(ctx); err == nil && ok {
		last = m
		if sp, found := d.normalizer.Resolve(m.Speaker, master); found {
			speaker = sp
		}
	}
	d.decorateAsync(ctx, speaker, last)
	return nil
}

// apply reconciles the engine against desired and publishes the result.
func (d *Director) apply(ctx context.Context, desired []string, s Settings) {
	d.mu.Lock()
	d.engine.Refresh(desired, s.Capacities)
	d.trackActiveLocked()
	d.mu.Unlock()

	d.renderer.Publish(d.stage.Slots())
}

// trackActiveLocked updates the active-slots gauge from the engine snapshot.
// Caller holds d.mu.
func (d *Director) trackActiveLocked() {
	snap := d.engine.Snapshot()
	active := len(snap.Left) + len(snap.Right)
	if snap.Current != "" {
		active++
	}
	if delta := active - d.active; delta != 0 {
		d.metrics.ActiveSlots.Add(context.Background(), int64(delta))
	}
	d.active = active
}

// decorateAsync resolves expressions and sprites for the current slots in
// the background and republishes when done. Lookup failures leave slots
// undecorated; they never fail the refresh.
func (d *Director) decorateAsync(ctx context.Context, speaker string, last transcript.Message) {
	snap := d.Snapshot()
	if len(snap.Names) == 0 {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.decorate(context.WithoutCancel(ctx), snap.Names, speaker, last)
	}()
}

func (d *Director) decorate(ctx context.Context, names []string, speaker string, last transcript.Message) {
	for _, name := range names {
		expr := d.expressionFor(ctx, name, speaker, last)

		ref := ""
		if d.locator != nil {
			located, ok, err := d.locator.Locate(ctx, name, expr)
			switch {
			case err != nil:
				slog.Warn("stage: sprite lookup", "name", name, "expression", expr, "err", err)
				d.metrics.RecordSpriteLookup(ctx, "error")
			case ok:
				ref = located
				d.metrics.RecordSpriteLookup(ctx, "hit")
			default:
				d.metrics.RecordSpriteLookup(ctx, "miss")
			}
		}

		d.stage.SetExpression(name, expr, ref)
	}

	d.renderer.Publish(d.stage.Slots())
}

// expressionFor resolves the expression shown for name: a locked override
// wins outright; the latest speaker may be re-classified; otherwise the
// stored or default expression applies.
func (d *Director) expressionFor(ctx context.Context, name, speaker string, last transcript.Message) string {
	expr := d.defaultExp
	locked := false

	if ov, err := d.store.Get(ctx, name); err == nil {
		locked = ov.Locked
		if ov.Expression != "" {
			expr = ov.Expression
		}
	} else if !errors.Is(err, expression.ErrNotFound) {
		slog.Warn("stage: read expression override", "name", name, "err", err)
	}

	if locked || d.classifier == nil || speaker == "" || !strings.EqualFold(name, speaker) || last.Text == "" {
		return expr
	}

	start := d.now()
	label, err := d.classifier.Classify(ctx, speaker, last.Text)
	seconds := d.now().Sub(start).Seconds()
	if err != nil {
		slog.Warn("stage: expression classification", "name", name, "err", err)
		d.metrics.RecordClassifierCall(ctx, seconds, "fallback")
	} else {
		d.metrics.RecordClassifierCall(ctx, seconds, "ok")
	}
	if label == "" {
		return expr
	}

	if err := d.store.Set(ctx, name, label); err != nil {
		slog.Warn("stage: persist expression", "name", name, "err", err)
	}
	return label
}

// masterNames returns the priority-ordered participant list: the custom
// member override when configured, else the transcript's participants.
func (d *Director) masterNames(ctx context.Context, s Settings) ([]string, error) {
	if len(s.CustomMembers) > 0 {
		return s.CustomMembers, nil
	}
	return d.provider.Participants(ctx)
}

func (d *Director) snapshotSettings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

func excludeSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}

// sleepCtx pauses for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
