package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/castellan/castellan/internal/alert"
	"github.com/castellan/castellan/internal/session"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Router   Notifier
	Sessions *session.Store
}

// NewMCPServer creates an MCP server exposing the alerting and session
// surface as tools for operator-side agents.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"castellan",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("castellan security-assistant engine: push alerts and notifications into active conversations, inspect conversation state."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("send_security_alert",
			mcp.WithDescription("Fan a security alert out to known conversations, honoring per-user notification preferences."),
			mcp.WithString("title", mcp.Description("Alert headline"), mcp.Required()),
			mcp.WithString("description", mcp.Description("What happened and why it matters"), mcp.Required()),
			mcp.WithString("severity", mcp.Description("low, medium, high, or critical (default medium)")),
			mcp.WithString("category", mcp.Description("threat, incident, compliance, vulnerability, or access (default threat)")),
			mcp.WithString("source", mcp.Description("System that raised the alert")),
			mcp.WithArray("target_users", mcp.Description("Restrict delivery to these user ids")),
		),
		mcpSendSecurityAlert(deps),
	)

	s.AddTool(
		mcp.NewTool("broadcast_notification",
			mcp.WithDescription("Send a plain proactive message to all known conversations."),
			mcp.WithString("message", mcp.Description("Message text"), mcp.Required()),
			mcp.WithString("title", mcp.Description("Optional headline")),
		),
		mcpBroadcastNotification(deps),
	)

	s.AddTool(
		mcp.NewTool("conversation_stats",
			mcp.WithDescription("Return session statistics: totals, active count, urgency distribution."),
		),
		mcpConversationStats(deps),
	)

	s.AddTool(
		mcp.NewTool("list_conversations",
			mcp.WithDescription("List conversations currently reachable for proactive delivery."),
		),
		mcpListConversations(deps),
	)

	return s
}

func mcpSendSecurityAlert(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}
		description, err := req.RequireString("description")
		if err != nil {
			return mcpError("description is required"), nil
		}

		a := alert.Alert{
			ID:          uuid.New().String(),
			Title:       title,
			Description: description,
			Severity:    alert.ParseSeverity(req.GetString("severity", "")),
			Category:    alert.ParseCategory(req.GetString("category", "")),
			Source:      req.GetString("source", "mcp"),
			Timestamp:   time.Now().UTC(),
		}

		result := deps.Router.SendAlert(ctx, a, req.GetStringSlice("target_users", nil))
		return mcpText(fmt.Sprintf("Alert %s delivered to %d of %d recipients", a.ID, result.Delivered, result.Attempted)), nil
	}
}

func mcpBroadcastNotification(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		result := deps.Router.SendMessage(ctx, req.GetString("title", ""), message, alert.SeverityMedium, nil, nil)
		return mcpText(fmt.Sprintf("Notification delivered to %d of %d recipients", result.Delivered, result.Attempted)), nil
	}
}

func mcpConversationStats(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		b, err := json.Marshal(deps.Sessions.Snapshot())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListConversations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		type entry struct {
			ConversationID string `json:"conversation_id"`
			UserID         string `json:"user_id"`
		}
		handles := deps.Sessions.DeliveryHandles()
		entries := make([]entry, len(handles))
		for i, h := range handles {
			entries[i] = entry{ConversationID: h.ConversationID, UserID: h.UserID}
		}
		b, err := json.Marshal(entries)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal conversations: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
