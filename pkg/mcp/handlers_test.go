package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/target"
)

type staticProcs map[int32]string

func (p staticProcs) PidExists(pid int32) (bool, error) {
	_, ok := p[pid]
	return ok, nil
}

func (p staticProcs) List() ([]target.ProcInfo, error) {
	var out []target.ProcInfo
	for pid, name := range p {
		out = append(out, target.ProcInfo{PID: pid, Name: name})
	}
	return out, nil
}

func (p staticProcs) Kill(pid int32) error {
	delete(p, pid)
	return nil
}

const demoScenario = `
apiVersion: scenario/v1
meta:
  name: click-main
target:
  pid: 100
steps:
  - id: click-main
    action:
      tool: click
      args:
        selector: {automation_id: MainButton}
`

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	base := t.TempDir()
	return &Handlers{cfg: Config{
		Version: "test",
		NewDriver: func(ctx context.Context) (driver.Driver, error) {
			d := driver.NewFakeDriver()
			d.Windows = []driver.Window{{Handle: 1, PID: 100, Title: "Demo"}}
			d.SetElements(100, []driver.Element{
				{AutomationID: "MainButton", ControlType: "Button", Enabled: true, Visible: true},
			})
			return d, nil
		},
		Procs:   staticProcs{100: "demoapp.exe"},
		Root:    filepath.Join(base, "sessions"),
		Tickets: filepath.Join(base, "tickets"),
	}}
}

func callReq(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(demoScenario), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestHandleValidate_MissingPath(t *testing.T) {
	h := newTestHandlers(t)
	result, err := h.HandleValidate(context.Background(), callReq(map[string]any{}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing path")
	}
}

func TestHandleValidate_Valid(t *testing.T) {
	h := newTestHandlers(t)
	result, err := h.HandleValidate(context.Background(), callReq(map[string]any{"path": writeScenario(t)}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Errorf("expected success: %+v", result.Content)
	}
}

func TestHandleSchema_Scenario(t *testing.T) {
	h := newTestHandlers(t)
	result, err := h.HandleSchema(context.Background(), callReq(map[string]any{"type": "scenario"}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Error("expected success for scenario schema")
	}
	if len(result.Content) == 0 {
		t.Error("expected schema content")
	}
}

func TestHandleSchema_UnknownType(t *testing.T) {
	h := newTestHandlers(t)
	result, err := h.HandleSchema(context.Background(), callReq(map[string]any{"type": "foo"}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for unknown schema type")
	}
}

func TestHandleScenario_Passes(t *testing.T) {
	h := newTestHandlers(t)
	result, err := h.HandleScenario(context.Background(), callReq(map[string]any{"path": writeScenario(t)}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("expected passing run: %+v", result.Content)
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type %T", result.Content[0])
	}
	var response map[string]any
	if err := json.Unmarshal([]byte(text.Text), &response); err != nil {
		t.Fatal(err)
	}
	if response["state"] != "passed" {
		t.Fatalf("state = %v", response["state"])
	}
	if response["session"] == "" {
		t.Fatal("no session id in response")
	}
}

func TestHandleRandom_RequiresTarget(t *testing.T) {
	h := newTestHandlers(t)
	space := filepath.Join(t.TempDir(), "space.yaml")
	doc := "name: demo\ntemplates:\n  - name: click-main\n    action:\n      tool: click\n      args:\n        selector: {automation_id: MainButton}\n"
	if err := os.WriteFile(space, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := h.HandleRandom(context.Background(), callReq(map[string]any{"space": space}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error without a target")
	}

	result, err = h.HandleRandom(context.Background(), callReq(map[string]any{
		"space": space, "pid": float64(100), "seed": float64(7), "max_steps": float64(5),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("expected exploration to run: %+v", result.Content)
	}
	text := result.Content[0].(mcp.TextContent)
	if !strings.Contains(text.Text, "exhausted") {
		t.Fatalf("outcome missing: %s", text.Text)
	}
}

func TestHandleReplay_MissingLog(t *testing.T) {
	h := newTestHandlers(t)
	result, err := h.HandleReplay(context.Background(), callReq(map[string]any{"pid": float64(100)}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected error for missing log")
	}
}
