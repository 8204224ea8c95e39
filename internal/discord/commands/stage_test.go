package commands

import (
	"context"
	"slices"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/stagehand/internal/discord"
	"github.com/MrWong99/stagehand/internal/discord/mock"
	"github.com/MrWong99/stagehand/internal/roster"
)

// fakeStageService records calls for assertion.
type fakeStageService struct {
	snapshot   roster.Snapshot
	restarts   int
	members    []string
	membersSet bool
	enabled    *bool
}

func (f *fakeStageService) Snapshot() roster.Snapshot { return f.snapshot }

func (f *fakeStageService) Restart(context.Context) error {
	f.restarts++
	return nil
}

func (f *fakeStageService) SetMembers(_ context.Context, names []string) error {
	f.members = names
	f.membersSet = true
	return nil
}

func (f *fakeStageService) SetEnabled(_ context.Context, enabled bool) error {
	f.enabled = &enabled
	return nil
}

func subcommandInteraction(command, sub string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{
				Name: command,
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{
						Name:    sub,
						Type:    discordgo.ApplicationCommandOptionSubCommand,
						Options: options,
					},
				},
			},
			Member: &discordgo.Member{User: &discordgo.User{ID: "operator"}},
		},
	}
}

func stringOption(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func TestStageDefinition(t *testing.T) {
	t.Parallel()

	sc := NewStageCommands(discord.NewPermissionChecker(""), &fakeStageService{})
	def := sc.Definition()

	if def.Name != "stage" {
		t.Errorf("Name = %q, want %q", def.Name, "stage")
	}

	expectedSubs := []string{"show", "restart", "members", "clearmembers", "on", "off"}
	if len(def.Options) != len(expectedSubs) {
		t.Fatalf("Options count = %d, want %d", len(def.Options), len(expectedSubs))
	}
	for i, name := range expectedSubs {
		if def.Options[i].Name != name {
			t.Errorf("subcommand[%d] = %q, want %q", i, def.Options[i].Name, name)
		}
		if def.Options[i].Type != discordgo.ApplicationCommandOptionSubCommand {
			t.Errorf("subcommand[%d] type = %d, want SubCommand", i, def.Options[i].Type)
		}
	}

	// Verify members takes a required names option.
	memberOpts := def.Options[2].Options
	if len(memberOpts) != 1 || memberOpts[0].Name != "names" || !memberOpts[0].Required {
		t.Fatalf("unexpected members options: %+v", memberOpts)
	}
}

func TestStageRegister(t *testing.T) {
	t.Parallel()

	sc := NewStageCommands(discord.NewPermissionChecker(""), &fakeStageService{})
	router := discord.NewCommandRouter()
	sc.Register(router)

	cmds := router.ApplicationCommands()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 application command, got %d", len(cmds))
	}
	if cmds[0].Name != "stage" {
		t.Errorf("command name = %q, want %q", cmds[0].Name, "stage")
	}
}

func TestStageHandlers(t *testing.T) {
	t.Parallel()

	t.Run("restart forwards to the service", func(t *testing.T) {
		t.Parallel()
		svc := &fakeStageService{}
		sc := NewStageCommands(discord.NewPermissionChecker(""), svc)
		router := discord.NewCommandRouter()
		sc.Register(router)

		router.Handle(&mock.InteractionResponder{}, subcommandInteraction("stage", "restart"))
		if svc.restarts != 1 {
			t.Fatalf("want 1 restart, got %d", svc.restarts)
		}
	})

	t.Run("members parses the comma-separated list", func(t *testing.T) {
		t.Parallel()
		svc := &fakeStageService{}
		sc := NewStageCommands(discord.NewPermissionChecker(""), svc)
		router := discord.NewCommandRouter()
		sc.Register(router)

		router.Handle(&mock.InteractionResponder{}, subcommandInteraction("stage", "members",
			stringOption("names", "Dana, Alice ,Bob")))
		if !slices.Equal(svc.members, []string{"Dana", "Alice", "Bob"}) {
			t.Fatalf("want parsed names, got %v", svc.members)
		}
	})

	t.Run("clearmembers passes nil", func(t *testing.T) {
		t.Parallel()
		svc := &fakeStageService{}
		sc := NewStageCommands(discord.NewPermissionChecker(""), svc)
		router := discord.NewCommandRouter()
		sc.Register(router)

		router.Handle(&mock.InteractionResponder{}, subcommandInteraction("stage", "clearmembers"))
		if !svc.membersSet || svc.members != nil {
			t.Fatalf("want nil member list, got set=%v members=%v", svc.membersSet, svc.members)
		}
	})

	t.Run("non-operators are rejected", func(t *testing.T) {
		t.Parallel()
		svc := &fakeStageService{}
		sc := NewStageCommands(discord.NewPermissionChecker("someone-else"), svc)
		router := discord.NewCommandRouter()
		sc.Register(router)

		responder := &mock.InteractionResponder{}
		router.Handle(responder, subcommandInteraction("stage", "restart"))
		if svc.restarts != 0 {
			t.Fatal("non-operator must not restart the stage")
		}
		if resp := responder.LastResponse(); resp == nil || resp.Data.Flags != discordgo.MessageFlagsEphemeral {
			t.Fatalf("want ephemeral rejection, got %+v", resp)
		}
	})

	t.Run("on and off toggle the stage", func(t *testing.T) {
		t.Parallel()
		svc := &fakeStageService{}
		sc := NewStageCommands(discord.NewPermissionChecker(""), svc)
		router := discord.NewCommandRouter()
		sc.Register(router)

		router.Handle(&mock.InteractionResponder{}, subcommandInteraction("stage", "off"))
		if svc.enabled == nil || *svc.enabled {
			t.Fatal("off must disable the stage")
		}
		router.Handle(&mock.InteractionResponder{}, subcommandInteraction("stage", "on"))
		if svc.enabled == nil || !*svc.enabled {
			t.Fatal("on must enable the stage")
		}
	})
}

func TestSplitNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want []string
	}{
		{"Dana,Alice,Bob", []string{"Dana", "Alice", "Bob"}},
		{"  Dana  ", []string{"Dana"}},
		{"Dana,,  ,Bob", []string{"Dana", "Bob"}},
		{"", nil},
	}

	for _, tt := range tests {
		if got := splitNames(tt.raw); !slices.Equal(got, tt.want) {
			t.Errorf("splitNames(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSubcommandStringOption(t *testing.T) {
	t.Parallel()

	i := subcommandInteraction("stage", "members", stringOption("names", "Dana"))

	if got := subcommandStringOption(i, "names"); got != "Dana" {
		t.Errorf("subcommandStringOption = %q, want %q", got, "Dana")
	}
	if got := subcommandStringOption(i, "nonexistent"); got != "" {
		t.Errorf("subcommandStringOption for missing = %q, want empty", got)
	}
}
