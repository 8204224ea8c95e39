package discord

import "github.com/bwmarrin/discordgo"

// PermissionChecker validates that a Discord user is the configured operator
// before executing privileged slash commands.
type PermissionChecker struct {
	operatorID string
}

// NewPermissionChecker creates a PermissionChecker gated on the given user
// ID.
func NewPermissionChecker(operatorID string) *PermissionChecker {
	return &PermissionChecker{operatorID: operatorID}
}

// IsOperator checks whether the interaction author is the configured
// operator. If operatorID is empty, all users are treated as operators
// (useful for development).
func (p *PermissionChecker) IsOperator(i *discordgo.InteractionCreate) bool {
	if p.operatorID == "" {
		return true
	}
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID == p.operatorID
	}
	if i.User != nil {
		return i.User.ID == p.operatorID
	}
	return false
}
