package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidClassifierProviders lists known expression classifier backends.
// Used by [Validate] to warn about unrecognised provider names.
var ValidClassifierProviders = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and validates
// the result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Stage
	if cfg.Stage.SlotsLeft < -1 {
		errs = append(errs, fmt.Errorf("stage.slots_left %d is invalid; use -1 for unbounded or a non-negative count", cfg.Stage.SlotsLeft))
	}
	if cfg.Stage.SlotsRight < -1 {
		errs = append(errs, fmt.Errorf("stage.slots_right %d is invalid; use -1 for unbounded or a non-negative count", cfg.Stage.SlotsRight))
	}
	if cfg.Stage.DebounceWindow < 0 {
		errs = append(errs, fmt.Errorf("stage.debounce_window must not be negative"))
	}
	if cfg.Stage.RestartDelay < 0 {
		errs = append(errs, fmt.Errorf("stage.restart_delay must not be negative"))
	}

	// Duplicate custom member detection, case-insensitive like presence matching.
	seen := make(map[string]int, len(cfg.Stage.CustomMembers))
	for i, name := range cfg.Stage.CustomMembers {
		if name == "" {
			errs = append(errs, fmt.Errorf("stage.custom_members[%d] is empty", i))
			continue
		}
		folded := strings.ToLower(name)
		if prev, ok := seen[folded]; ok {
			errs = append(errs, fmt.Errorf("stage.custom_members[%d] %q is a duplicate of stage.custom_members[%d]", i, name, prev))
		}
		seen[folded] = i
	}

	// Discord
	if cfg.Discord.Token != "" {
		if cfg.Discord.GuildID == "" {
			errs = append(errs, fmt.Errorf("discord.guild_id is required when discord.token is set"))
		}
		if cfg.Discord.ChannelID == "" {
			errs = append(errs, fmt.Errorf("discord.channel_id is required when discord.token is set"))
		}
	}
	if cfg.Discord.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("discord.history_limit must not be negative"))
	}

	// Expressions
	if cfg.Expressions.Provider != "" {
		if !slices.Contains(ValidClassifierProviders, cfg.Expressions.Provider) {
			slog.Warn("unknown classifier provider, may be a typo or third-party provider",
				"name", cfg.Expressions.Provider,
				"known", ValidClassifierProviders,
			)
		}
		if cfg.Expressions.Model == "" {
			errs = append(errs, fmt.Errorf("expressions.model is required when expressions.provider is set"))
		}
	}
	if cfg.Expressions.Default != "" && len(cfg.Expressions.Labels) > 0 &&
		!slices.Contains(cfg.Expressions.Labels, cfg.Expressions.Default) {
		errs = append(errs, fmt.Errorf("expressions.default %q is not in expressions.labels", cfg.Expressions.Default))
	}

	// Sprites availability
	if cfg.Sprites.Dir == "" && len(cfg.Stage.CustomMembers) > 0 {
		slog.Warn("sprites.dir is empty; slots will render without portraits")
	}

	return errors.Join(errs...)
}
