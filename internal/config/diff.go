package config

import "slices"

// ConfigDiff describes what changed between two configs and how the change
// must be applied. Hot-reloadable fields take effect on the next evaluation
// cycle; everything under RestartStage needs a full stage restart; fields
// under RestartProcess only apply after the process is relaunched.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// EnabledChanged reports a flip of the stage.enabled gate.
	EnabledChanged bool
	Enabled        bool

	// HotReload covers fields the next evaluation cycle picks up on its own:
	// slot capacities, the exclude list, transition, and classifier labels.
	HotReload bool

	// RestartStage covers fields that invalidate current slot assignments:
	// the custom member list and the sprite layout.
	RestartStage bool

	// RestartProcess covers connection-level fields (Discord credentials,
	// listen address, store DSN, classifier provider wiring) and the
	// debounce window, which is fixed when the restart guard is built.
	RestartProcess bool
}

// Empty reports whether no change was detected.
func (d ConfigDiff) Empty() bool {
	return d == ConfigDiff{}
}

// Diff compares old and new configs and classifies every change by how it
// must be applied.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Stage.Enabled != new.Stage.Enabled {
		d.EnabledChanged = true
		d.Enabled = new.Stage.Enabled
	}

	if old.Stage.SlotsLeft != new.Stage.SlotsLeft ||
		old.Stage.SlotsRight != new.Stage.SlotsRight ||
		old.Stage.Transition != new.Stage.Transition ||
		old.Stage.RestartDelay != new.Stage.RestartDelay ||
		!slices.Equal(old.Stage.Exclude, new.Stage.Exclude) ||
		!slices.Equal(old.Expressions.Labels, new.Expressions.Labels) ||
		old.Expressions.Default != new.Expressions.Default {
		d.HotReload = true
	}

	if !slices.Equal(old.Stage.CustomMembers, new.Stage.CustomMembers) {
		d.RestartStage = true
	}
	if old.Sprites.Dir != new.Sprites.Dir ||
		old.Sprites.BaseURL != new.Sprites.BaseURL ||
		!slices.Equal(old.Sprites.Extensions, new.Sprites.Extensions) {
		d.RestartStage = true
	}

	if old.Discord != new.Discord ||
		old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Store != new.Store ||
		old.Stage.DebounceWindow != new.Stage.DebounceWindow ||
		classifierWiring(old.Expressions) != classifierWiring(new.Expressions) {
		d.RestartProcess = true
	}

	return d
}

// classifierWiring projects the connection-level classifier fields.
func classifierWiring(e ExpressionsConfig) [4]string {
	return [4]string{e.Provider, e.Model, e.APIKey, e.BaseURL}
}
