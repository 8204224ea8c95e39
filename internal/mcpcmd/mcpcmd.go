// Package mcpcmd exposes stage control as MCP tools over stdio, so an LLM
// frontend can inspect the roster, restart the stage, and manage expression
// overrides through the Model Context Protocol.
package mcpcmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/MrWong99/stagehand/internal/expression"
	"github.com/MrWong99/stagehand/internal/roster"
)

// StageService is the control surface the MCP tools need. The application
// wires it to the stage director and the live configuration.
type StageService interface {
	Snapshot() roster.Snapshot
	Restart(ctx context.Context) error
	SetMembers(ctx context.Context, names []string) error
	SetEnabled(ctx context.Context, enabled bool) error
}

// Server hosts the Stagehand MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	stage     StageService
	store     expression.Store
}

// NewServer builds the MCP server and registers all tools.
func NewServer(version string, stage StageService, store expression.Store) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("stagehand", version,
			server.WithToolCapabilities(true)),
		stage: stage,
		store: store,
	}

	s.mcpServer.AddTool(stageShowTool(), s.handleStageShow)
	s.mcpServer.AddTool(stageRestartTool(), s.handleStageRestart)
	s.mcpServer.AddTool(stageMembersTool(), s.handleStageMembers)
	s.mcpServer.AddTool(stageEnableTool(), s.handleStageEnable)
	s.mcpServer.AddTool(expressionSetTool(), s.handleExpressionSet)
	s.mcpServer.AddTool(expressionClearTool(), s.handleExpressionClear)
	s.mcpServer.AddTool(expressionLockTool(), s.handleExpressionLock)
	s.mcpServer.AddTool(expressionListTool(), s.handleExpressionList)

	return s
}

// ServeStdio serves MCP over stdin/stdout until ctx is cancelled or the
// client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp: serve stdio: %w", err)
	}
	return nil
}

// ── stage tools ──────────────────────────────────────────────────────────────

func stageShowTool() mcp.Tool {
	return mcp.NewTool("stage_show",
		mcp.WithDescription("Show the current stage roster: who holds focus and who occupies the left and right columns."),
	)
}

func (s *Server) handleStageShow(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := s.stage.Snapshot()
	out, err := json.MarshalIndent(map[string]any{
		"focus": snap.Current,
		"left":  snap.Left,
		"right": snap.Right,
	}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal roster: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func stageRestartTool() mcp.Tool {
	return mcp.NewTool("stage_restart",
		mcp.WithDescription("Tear the stage down and rebuild it from chat history. Rapid calls coalesce into a single restart."),
	)
}

func (s *Server) handleStageRestart(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.stage.Restart(ctx); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to restart stage: %v", err)), nil
	}
	return mcp.NewToolResultText("Stage restarted."), nil
}

func stageMembersTool() mcp.Tool {
	return mcp.NewTool("stage_members",
		mcp.WithDescription("Replace the custom member list and restart the stage. The first name is the primary user. Pass an empty string to revert to transcript participants."),
		mcp.WithString("names",
			mcp.Required(),
			mcp.Description("Comma-separated member names, or empty to clear"),
		),
	)
}

func (s *Server) handleStageMembers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	raw, _ := args["names"].(string)

	var names []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}

	if err := s.stage.SetMembers(ctx, names); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set members: %v", err)), nil
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("Member list cleared; back to transcript participants."), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Member list set to: %s.", strings.Join(names, ", "))), nil
}

func stageEnableTool() mcp.Tool {
	return mcp.NewTool("stage_enable",
		mcp.WithDescription("Enable or disable the stage. Disabling clears all slots."),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("true to enable, false to disable"),
		),
	)
}

func (s *Server) handleStageEnable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	enabled, ok := args["enabled"].(bool)
	if !ok {
		return mcp.NewToolResultError("enabled is required"), nil
	}

	if err := s.stage.SetEnabled(ctx, enabled); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to toggle stage: %v", err)), nil
	}
	if enabled {
		return mcp.NewToolResultText("Stage enabled."), nil
	}
	return mcp.NewToolResultText("Stage disabled."), nil
}

// ── expression tools ─────────────────────────────────────────────────────────

func expressionSetTool() mcp.Tool {
	return mcp.NewTool("expression_set",
		mcp.WithDescription("Set a member's expression override. The override persists until cleared."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Member name"),
		),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("Expression label (e.g. joy, anger)"),
		),
	)
}

func (s *Server) handleExpressionSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	name, _ := args["name"].(string)
	label, _ := args["label"].(string)
	if name == "" || label == "" {
		return mcp.NewToolResultError("name and label are required"), nil
	}

	if err := s.store.Set(ctx, name, label); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set expression: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s now shows %q.", name, label)), nil
}

func expressionClearTool() mcp.Tool {
	return mcp.NewTool("expression_clear",
		mcp.WithDescription("Remove a member's expression override."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Member name"),
		),
	)
}

func (s *Server) handleExpressionClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	err := s.store.Delete(ctx, name)
	if errors.Is(err, expression.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no override for %q", name)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to clear expression: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Override for %s removed.", name)), nil
}

func expressionLockTool() mcp.Tool {
	return mcp.NewTool("expression_lock",
		mcp.WithDescription("Lock or unlock a member's expression. A locked expression is never changed by automatic classification."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Member name"),
		),
		mcp.WithBoolean("locked",
			mcp.Required(),
			mcp.Description("true to lock, false to unlock"),
		),
	)
}

func (s *Server) handleExpressionLock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	name, _ := args["name"].(string)
	locked, ok := args["locked"].(bool)
	if name == "" || !ok {
		return mcp.NewToolResultError("name and locked are required"), nil
	}

	err := s.store.SetLocked(ctx, name, locked)
	if errors.Is(err, expression.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no override for %q; set an expression first", name)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update lock: %v", err)), nil
	}

	verb := "locked"
	if !locked {
		verb = "unlocked"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Expression for %s %s.", name, verb)), nil
}

func expressionListTool() mcp.Tool {
	return mcp.NewTool("expression_list",
		mcp.WithDescription("List all expression overrides with their lock state."),
	)
}

func (s *Server) handleExpressionList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	overrides, err := s.store.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list expressions: %v", err)), nil
	}

	out, err := json.MarshalIndent(overrides, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal overrides: %v", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}
