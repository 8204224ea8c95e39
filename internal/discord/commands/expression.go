package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/stagehand/internal/discord"
	"github.com/MrWong99/stagehand/internal/expression"
)

// ExpressionCommands handles the /expression slash command group. Overrides
// set here survive restarts through the expression store; locked overrides
// additionally fence off automatic classification.
type ExpressionCommands struct {
	perms  *discord.PermissionChecker
	store  expression.Store
	labels []string
}

// NewExpressionCommands creates an ExpressionCommands handler. labels is the
// closed set offered by autocomplete; free-form labels are still accepted so
// sprites outside the classifier's vocabulary stay reachable.
func NewExpressionCommands(perms *discord.PermissionChecker, store expression.Store, labels []string) *ExpressionCommands {
	return &ExpressionCommands{perms: perms, store: store, labels: labels}
}

// Register registers all /expression subcommands with the router.
func (ec *ExpressionCommands) Register(router *discord.CommandRouter) {
	def := ec.Definition()
	router.RegisterCommand("expression", def, func(s discord.Responder, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/expression set`, `/expression clear`, `/expression lock`, `/expression unlock`, `/expression list`.")
	})
	router.RegisterHandler("expression/set", ec.handleSet)
	router.RegisterHandler("expression/clear", ec.handleClear)
	router.RegisterHandler("expression/lock", ec.handleLock)
	router.RegisterHandler("expression/unlock", ec.handleUnlock)
	router.RegisterHandler("expression/list", ec.handleList)

	router.RegisterAutocomplete("expression/set", ec.handleLabelAutocomplete)
}

// Definition returns the /expression ApplicationCommand for Discord
// registration.
func (ec *ExpressionCommands) Definition() *discordgo.ApplicationCommand {
	nameOpt := func() *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Name:        "name",
			Description: "Member name",
			Type:        discordgo.ApplicationCommandOptionString,
			Required:    true,
		}
	}

	return &discordgo.ApplicationCommand{
		Name:        "expression",
		Description: "Manage member expressions",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "set",
				Description: "Set a member's expression",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					nameOpt(),
					{
						Name:         "label",
						Description:  "Expression label",
						Type:         discordgo.ApplicationCommandOptionString,
						Required:     true,
						Autocomplete: true,
					},
				},
			},
			{
				Name:        "clear",
				Description: "Remove a member's expression override",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     []*discordgo.ApplicationCommandOption{nameOpt()},
			},
			{
				Name:        "lock",
				Description: "Freeze a member's expression against automatic updates",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     []*discordgo.ApplicationCommandOption{nameOpt()},
			},
			{
				Name:        "unlock",
				Description: "Allow automatic updates for a member's expression again",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options:     []*discordgo.ApplicationCommandOption{nameOpt()},
			},
			{
				Name:        "list",
				Description: "List all expression overrides",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	}
}

// handleSet handles /expression set <name> <label>.
func (ec *ExpressionCommands) handleSet(s discord.Responder, i *discordgo.InteractionCreate) {
	if !ec.perms.IsOperator(i) {
		discord.RespondEphemeral(s, i, "Only the configured operator can manage expressions.")
		return
	}

	name := subcommandStringOption(i, "name")
	label := strings.TrimSpace(subcommandStringOption(i, "label"))
	if name == "" || label == "" {
		discord.RespondEphemeral(s, i, "Both a member name and a label are required.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := ec.store.Set(ctx, name, label); err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("**%s** now shows %q.", name, label))
}

// handleClear handles /expression clear <name>.
func (ec *ExpressionCommands) handleClear(s discord.Responder, i *discordgo.InteractionCreate) {
	if !ec.perms.IsOperator(i) {
		discord.RespondEphemeral(s, i, "Only the configured operator can manage expressions.")
		return
	}

	name := subcommandStringOption(i, "name")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := ec.store.Delete(ctx, name)
	if errors.Is(err, expression.ErrNotFound) {
		discord.RespondEphemeral(s, i, fmt.Sprintf("No override for %q.", name))
		return
	}
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Override for **%s** removed.", name))
}

// handleLock handles /expression lock <name>.
func (ec *ExpressionCommands) handleLock(s discord.Responder, i *discordgo.InteractionCreate) {
	ec.setLocked(s, i, true)
}

// handleUnlock handles /expression unlock <name>.
func (ec *ExpressionCommands) handleUnlock(s discord.Responder, i *discordgo.InteractionCreate) {
	ec.setLocked(s, i, false)
}

func (ec *ExpressionCommands) setLocked(s discord.Responder, i *discordgo.InteractionCreate, locked bool) {
	if !ec.perms.IsOperator(i) {
		discord.RespondEphemeral(s, i, "Only the configured operator can manage expressions.")
		return
	}

	name := subcommandStringOption(i, "name")

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := ec.store.SetLocked(ctx, name, locked)
	if errors.Is(err, expression.ErrNotFound) {
		discord.RespondEphemeral(s, i, fmt.Sprintf("No override for %q; set an expression first.", name))
		return
	}
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}

	verb := "locked"
	if !locked {
		verb = "unlocked"
	}
	discord.RespondEphemeral(s, i, fmt.Sprintf("Expression for **%s** %s.", name, verb))
}

// handleList handles /expression list.
func (ec *ExpressionCommands) handleList(s discord.Responder, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	overrides, err := ec.store.List(ctx)
	if err != nil {
		discord.RespondError(s, i, err)
		return
	}
	if len(overrides) == 0 {
		discord.RespondEphemeral(s, i, "No expression overrides set.")
		return
	}

	var lines []string
	for _, o := range overrides {
		icon := "🔓"
		if o.Locked {
			icon = "🔒"
		}
		lines = append(lines, fmt.Sprintf("%s **%s**: %q", icon, o.Name, o.Expression))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Expression overrides",
		Description: strings.Join(lines, "\n"),
		Color:       0x5865F2,
	}
	discord.RespondEmbed(s, i, embed)
}

// handleLabelAutocomplete offers the configured label vocabulary for the
// "label" option of /expression set.
func (ec *ExpressionCommands) handleLabelAutocomplete(s discord.Responder, i *discordgo.InteractionCreate) {
	// Find the focused option's partial value.
	partial := ""
	data := i.ApplicationCommandData()
	if len(data.Options) > 0 && data.Options[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		for _, opt := range data.Options[0].Options {
			if opt.Focused {
				partial = strings.ToLower(opt.StringValue())
				break
			}
		}
	}

	var choices []*discordgo.ApplicationCommandOptionChoice
	for _, label := range ec.labels {
		if partial == "" || strings.HasPrefix(strings.ToLower(label), partial) {
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  label,
				Value: label,
			})
		}
		// Discord limits autocomplete to 25 choices.
		if len(choices) >= 25 {
			break
		}
	}

	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
}
