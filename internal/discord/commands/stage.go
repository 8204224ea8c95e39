// Package commands implements the Stagehand slash commands: stage roster
// control and expression overrides.
package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/stagehand/internal/discord"
	"github.com/MrWong99/stagehand/internal/roster"
)

// commandTimeout bounds a single command-triggered operation.
const commandTimeout = 30 * time.Second

// StageService is the control surface the /stage commands need. The
// application wires it to the stage director and the live configuration.
type StageService interface {
	// Snapshot returns the current roster state.
	Snapshot() roster.Snapshot

	// Restart tears the stage down and rebuilds it from history.
	Restart(ctx context.Context) error

	// SetMembers replaces the custom member list (first entry is the primary
	// user) and restarts the stage. An empty list reverts to transcript
	// participants.
	SetMembers(ctx context.Context, names []string) error

	// SetEnabled toggles the stage on or off.
	SetEnabled(ctx context.Context, enabled bool) error
}

// StageCommands handles the /stage slash command group.
type StageCommands struct {
	perms   *discord.PermissionChecker
	service StageService
}

// NewStageCommands creates a StageCommands handler.
func NewStageCommands(perms *discord.PermissionChecker, service StageService) *StageCommands {
	return &StageCommands{perms: perms, service: service}
}

// Register registers all /stage subcommands with the router.
func (sc *StageCommands) Register(router *discord.CommandRouter) {
	def := sc.Definition()
	router.RegisterCommand("stage", def, func(s discord.Responder, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/stage show`, `/stage restart`, `/stage members`, `/stage clearmembers`, `/stage on`, `/stage off`.")
	})
	router.RegisterHandler("stage/show", sc.handleShow)
	router.RegisterHandler("stage/restart", sc.handleRestart)
	router.RegisterHandler("stage/members", sc.handleMembers)
	router.RegisterHandler("stage/clearmembers", sc.handleClearMembers)
	router.RegisterHandler("stage/on", sc.handleOn)
	router.RegisterHandler("stage/off", sc.handleOff)
}

// Definition returns the /stage ApplicationCommand for Discord registration.
func (sc *StageCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "stage",
		Description: "Control the overlay stage",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "show",
				Description: "Show who currently occupies the stage",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "restart",
				Description: "Tear the stage down and rebuild it from chat history",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "members",
				Description: "Set a fixed member list (first name is you)",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:        "names",
						Description: "Comma-separated member names",
						Type:        discordgo.ApplicationCommandOptionString,
						Required:    true,
					},
				},
			},
			{
				Name:        "clearmembers",
				Description: "Revert to the transcript's participant list",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "on",
				Description: "Enable the stage",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "off",
				Description: "Disable the stage and clear all slots",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	}
}

// handleShow handles /stage show.
func (sc *StageCommands) handleShow(s discord.Responder, i *discordgo.InteractionCreate) {
	snap := sc.service.Snapshot()

	focus := snap.Current
	if focus == "" {
		focus = "*empty*"
	}
	left := "*empty*"
	if len(snap.Left) > 0 {
		left = strings.Join(snap.Left, ", ")
	}
	right := "*empty*"
	if len(snap.Right) > 0 {
		right = strings.Join(snap.Right, ", ")
	}

	embed := &discordgo.MessageEmbed{
		Title: "Stage",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Focus", Value: focus},
			{Name: "Left", Value: left, Inline: true},
			{Name: "Right", Value: right, Inline: true},
		},
	}
	discord.RespondEmbed(s, i, embed)
}

// handleRestart handles /stage restart.
func (sc *StageCommands) handleRestart(s discord.Responder, i *discordgo.InteractionCreate) {
	if !sc.perms.IsOperator(i) {
		discord.RespondEphemeral(s, i, "Only the configured operator can restart the stage.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := sc.service.Restart(ctx); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.RespondEphemeral(s, i, "Stage restarted.")
}

// handleMembers handles /stage members <names>.
func (sc *StageCommands) handleMembers(s discord.Responder, i *discordgo.InteractionCreate) {
	if !sc.perms.IsOperator(i) {
		discord.RespondEphemeral(s, i, "Only the configured operator can change the member list.")
		return
	}

	names := splitNames(subcommandStringOption(i, "names"))
	if len(names) == 0 {
		discord.RespondEphemeral(s, i, "Provide at least one member name.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := sc.service.SetMembers(ctx, names); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Member list set to: %s.", strings.Join(names, ", ")))
}

// handleClearMembers handles /stage clearmembers.
func (sc *StageCommands) handleClearMembers(s discord.Responder, i *discordgo.InteractionCreate) {
	if !sc.perms.IsOperator(i) {
		discord.RespondEphemeral(s, i, "Only the configured operator can change the member list.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := sc.service.SetMembers(ctx, nil); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.RespondEphemeral(s, i, "Member list cleared; back to transcript participants.")
}

// handleOn handles /stage on.
func (sc *StageCommands) handleOn(s discord.Responder, i *discordgo.InteractionCreate) {
	sc.setEnabled(s, i, true, "Stage enabled.")
}

// handleOff handles /stage off.
func (sc *StageCommands) handleOff(s discord.Responder, i *discordgo.InteractionCreate) {
	sc.setEnabled(s, i, false, "Stage disabled.")
}

func (sc *StageCommands) setEnabled(s discord.Responder, i *discordgo.InteractionCreate, enabled bool, confirmation string) {
	if !sc.perms.IsOperator(i) {
		discord.RespondEphemeral(s, i, "Only the configured operator can toggle the stage.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := sc.service.SetEnabled(ctx, enabled); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.RespondEphemeral(s, i, confirmation)
}

// splitNames parses a comma-separated name list, dropping empty entries.
func splitNames(raw string) []string {
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// subcommandStringOption extracts a string option value from a subcommand
// interaction.
func subcommandStringOption(i *discordgo.InteractionCreate, name string) string {
	data := i.ApplicationCommandData()
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		for _, opt := range data.Options[0].Options {
			if opt.Name == name {
				return opt.StringValue()
			}
		}
	}
	return ""
}
