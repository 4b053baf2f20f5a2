// mock-driver is a test helper binary that implements the accessibility
// driver JSON-RPC 2.0 protocol over stdio, serving a small fixed element
// tree for integration testing against a real subprocess.
//
//go:build ignore

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int64       `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

type element struct {
	AutomationID string `json:"automation_id,omitempty"`
	Name         string `json:"name,omitempty"`
	ControlType  string `json:"control_type,omitempty"`
	Enabled      bool   `json:"enabled"`
	Visible      bool   `json:"visible"`
	Value        string `json:"value,omitempty"`
}

type window struct {
	Handle uintptr `json:"handle"`
	PID    int32   `json:"pid"`
	Title  string  `json:"title"`
}

func main() {
	// Emit ready signal on stderr
	fmt.Fprintln(os.Stderr, "mock-driver: listening")

	tree := []element{
		{AutomationID: "MainButton", Name: "Run", ControlType: "Button", Enabled: true, Visible: true},
		{AutomationID: "NameBox", ControlType: "Edit", Enabled: true, Visible: true},
		{AutomationID: "StatusLabel", ControlType: "Text", Enabled: true, Visible: true, Value: "Ready"},
	}
	windows := []window{{Handle: 1, PID: 4321, Title: "Mock App"}}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var req request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			continue
		}

		if req.Method == "shutdown" {
			os.Exit(0)
		}

		resp := response{JSONRPC: "2.0", ID: req.ID}
		switch req.Method {
		case "ui.list_windows":
			resp.Result = map[string]interface{}{"windows": windows}
		case "ui.list_elements":
			resp.Result = map[string]interface{}{"elements": tree}
		case "ui.perform":
			var p struct {
				Op     string  `json:"op"`
				Target element `json:"target"`
				Text   string  `json:"text,omitempty"`
			}
			json.Unmarshal(req.Params, &p)
			switch p.Op {
			case "type_text":
				for i := range tree {
					if tree[i].AutomationID == p.Target.AutomationID {
						tree[i].Value = p.Text
					}
				}
				resp.Result = map[string]interface{}{}
			case "read_text":
				text := ""
				for _, el := range tree {
					if el.AutomationID == p.Target.AutomationID {
						text = el.Value
					}
				}
				resp.Result = map[string]interface{}{"text": text}
			default:
				resp.Result = map[string]interface{}{}
			}
		case "ui.cursor_pos":
			resp.Result = map[string]interface{}{"x": 512, "y": 384}
		case "ui.capture":
			var p struct {
				Path string `json:"path"`
			}
			json.Unmarshal(req.Params, &p)
			os.WriteFile(p.Path, []byte("mock image"), 0644)
			resp.Result = map[string]interface{}{"path": p.Path, "width": 1, "height": 1}
		default:
			resp.Error = map[string]interface{}{"code": -32601, "message": "method not found: " + req.Method}
		}

		out, _ := json.Marshal(resp)
		fmt.Println(string(out))
	}
}
