package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/explore"
	"github.com/ormasoftchile/axtest/pkg/harness"
	"github.com/ormasoftchile/axtest/pkg/scenario"
	"github.com/ormasoftchile/axtest/pkg/session"
	"github.com/ormasoftchile/axtest/pkg/target"
)

// HandleValidate implements the axtest/validate MCP tool.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	sc, errs := scenario.ValidateFile(path)
	if scenario.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("✓ %s is valid (%d steps)", sc.Meta.Name, len(sc.Steps))), nil
}

// HandleSchema implements the axtest/schema MCP tool.
func (h *Handlers) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	schemaType, _ := args["type"].(string)

	var data []byte
	var err error

	switch schemaType {
	case "scenario":
		data, err = scenario.GenerateJSONSchema()
	case "action":
		data, err = action.GenerateJSONSchema()
	default:
		return errorResult(fmt.Sprintf("unknown schema type %q, use 'scenario' or 'action'", schemaType)), nil
	}

	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleScenario implements the axtest/scenario MCP tool.
func (h *Handlers) HandleScenario(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	sc, errs := scenario.ValidateFile(path)
	if scenario.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}

	hn, err := h.newHarness(ctx, session.ModeScenario, sc.Target)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	defer hn.Close()

	report, res, err := hn.RunScenario(ctx, sc)
	if err != nil {
		return errorResult(fmt.Sprintf("scenario run: %s", err)), nil
	}

	response := map[string]any{
		"scenario": report.Scenario,
		"state":    report.State,
		"session":  res.SessionID,
	}
	if res.TicketID != "" {
		response["ticket"] = res.TicketID
	}
	if report.Finding != nil {
		response["finding"] = report.Finding
	}
	return jsonResult(response, report.State != scenario.Passed), nil
}

// HandleRandom implements the axtest/random MCP tool. There is no prompt on
// this surface, so destructive actions are always excluded regardless of
// what the action space allows.
func (h *Handlers) HandleRandom(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	spacePath, _ := args["space"].(string)
	if spacePath == "" {
		return errorResult("space argument is required"), nil
	}

	space, err := explore.LoadSpaceFile(spacePath)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	spec := specFromArgs(args)
	if spec.IsZero() {
		return errorResult("one of pid, process, title_re is required"), nil
	}

	seed := uint64(numberArg(args, "seed", 1))
	maxSteps := int(numberArg(args, "max_steps", 50))

	hn, err := h.newHarness(ctx, session.ModeExplore, spec)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	defer hn.Close()

	report, res, err := hn.RunRandom(ctx, space, explore.Policy{}, seed, maxSteps)
	if err != nil {
		return errorResult(fmt.Sprintf("exploration: %s", err)), nil
	}

	response := map[string]any{
		"seed":    report.Seed,
		"outcome": report.Outcome,
		"steps":   len(report.Steps),
		"session": res.SessionID,
	}
	if res.TicketID != "" {
		response["ticket"] = res.TicketID
	}
	if report.Finding != nil {
		response["finding"] = report.Finding
	}
	return jsonResult(response, report.Outcome == explore.OutcomeFailure || report.Outcome == explore.OutcomeAborted), nil
}

// HandleReplay implements the axtest/replay MCP tool.
func (h *Handlers) HandleReplay(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	logPath, _ := args["log"].(string)
	if logPath == "" {
		return errorResult("log argument is required"), nil
	}

	records, err := session.ReadLog(logPath)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	spec := specFromArgs(args)
	if spec.IsZero() {
		return errorResult("one of pid, process, title_re is required"), nil
	}

	hn, err := h.newHarness(ctx, session.ModeReplay, spec)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	defer hn.Close()

	report, res, err := hn.Replay(ctx, records)
	if err != nil {
		return errorResult(fmt.Sprintf("replay: %s", err)), nil
	}

	response := map[string]any{
		"reproduced": report.Reproduced,
		"diverged":   report.Diverged,
		"steps":      len(report.Steps),
		"session":    res.SessionID,
	}
	return jsonResult(response, report.Diverged > 0), nil
}

func (h *Handlers) newHarness(ctx context.Context, mode session.Mode, spec target.Spec) (*harness.Harness, error) {
	if h.cfg.NewDriver == nil {
		return nil, fmt.Errorf("no driver configured")
	}
	d, err := h.cfg.NewDriver(ctx)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	return harness.New(ctx, mode, harness.Options{
		Driver:   d,
		Procs:    h.cfg.Procs,
		Launcher: h.cfg.Launcher,
		Guard:    h.cfg.Guard,
		Root:     h.cfg.Root,
		Tickets:  h.cfg.Tickets,
		Target:   spec,
	})
}

func specFromArgs(args map[string]any) target.Spec {
	spec := target.Spec{PID: int32(numberArg(args, "pid", 0))}
	spec.Process, _ = args["process"].(string)
	spec.TitleRe, _ = args["title_re"].(string)
	return spec
}

// numberArg reads a JSON number argument, which arrives as float64.
func numberArg(args map[string]any, key string, def float64) float64 {
	if v, ok := args[key].(float64); ok {
		return v
	}
	return def
}

func formatErrors(errs []*scenario.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "error" {
			msgs = append(msgs, fmt.Sprintf("[%s] %s", e.Phase, e.Message))
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}

func jsonResult(v any, isErr bool) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}
}
