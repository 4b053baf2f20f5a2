// Package mcp exposes the harness as MCP tools so an AI decision source can
// validate and run scenarios, explore, and replay logs over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/guard"
	"github.com/ormasoftchile/axtest/pkg/target"
)

// Config wires the tool handlers. NewDriver is called once per run so each
// tool invocation gets a fresh driver connection.
type Config struct {
	Version string

	NewDriver func(ctx context.Context) (driver.Driver, error)

	// Procs and Launcher default to the real system backends.
	Procs    target.ProcessAPI
	Launcher target.Launcher

	// Guard applies to every mutating action a tool performs. Nil disables
	// gating, which only makes sense against a fake driver.
	Guard *guard.Guard

	// Root is the sessions directory; Tickets the ticket store root.
	Root    string
	Tickets string
}

// Handlers carries the config into the tool callbacks.
type Handlers struct {
	cfg Config
}

// NewServer creates an MCP server with the axtest tools registered.
func NewServer(cfg Config) *server.MCPServer {
	h := &Handlers{cfg: cfg}

	s := server.NewMCPServer(
		"axtest",
		cfg.Version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("axtest/validate",
			mcp.WithDescription("Validate an axtest scenario YAML file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the scenario YAML file")),
		),
		h.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("axtest/scenario",
			mcp.WithDescription("Run an axtest scenario against its target application"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the scenario YAML file")),
		),
		h.HandleScenario,
	)

	s.AddTool(
		mcp.NewTool("axtest/random",
			mcp.WithDescription("Run seeded random exploration against a target (destructive actions are always declined over MCP)"),
			mcp.WithString("space", mcp.Required(), mcp.Description("Path to the action-space YAML file")),
			mcp.WithNumber("pid", mcp.Description("Target process id")),
			mcp.WithString("process", mcp.Description("Target process name")),
			mcp.WithString("title_re", mcp.Description("Target window title pattern")),
			mcp.WithNumber("seed", mcp.Description("Random seed (default 1)")),
			mcp.WithNumber("max_steps", mcp.Description("Step budget (default 50)")),
		),
		h.HandleRandom,
	)

	s.AddTool(
		mcp.NewTool("axtest/replay",
			mcp.WithDescription("Replay a recorded action log and report divergences"),
			mcp.WithString("log", mcp.Required(), mcp.Description("Path to an actions.jsonl file")),
			mcp.WithNumber("pid", mcp.Description("Target process id")),
			mcp.WithString("process", mcp.Description("Target process name")),
			mcp.WithString("title_re", mcp.Description("Target window title pattern")),
		),
		h.HandleReplay,
	)

	s.AddTool(
		mcp.NewTool("axtest/schema",
			mcp.WithDescription("Export axtest JSON Schema (scenario or action)"),
			mcp.WithString("type", mcp.Required(), mcp.Description("Schema type: 'scenario' or 'action'")),
		),
		h.HandleSchema,
	)

	return s
}
