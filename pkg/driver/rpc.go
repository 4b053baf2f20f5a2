package driver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// RPCDriver talks to an external accessibility driver process over JSON-RPC
// 2.0 on stdin/stdout, one JSON document per line. The process is long-lived;
// all calls are serialized because the underlying accessibility tree only
// supports one operation at a time.
type RPCDriver struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	nextID int64
	mu     sync.Mutex
	done   chan struct{} // closed when the process exits
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("driver error %d: %s", e.Code, e.Message)
}

// SpawnRPC starts a driver process and returns once it is accepting calls.
func SpawnRPC(ctx context.Context, binary string, argv ...string) (*RPCDriver, error) {
	cmd := exec.CommandContext(ctx, binary, argv...)
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start driver process %q: %w", binary, err)
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	// Mirror driver diagnostics so they show up interleaved with run output.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			fmt.Fprintf(os.Stderr, "  [%s] %s\n", binary, scanner.Text())
		}
	}()

	// Brief pause to let the process initialize.
	time.Sleep(50 * time.Millisecond)

	return &RPCDriver{
		cmd:    cmd,
		stdin:  stdin,
		reader: bufio.NewReader(stdout),
		done:   done,
	}, nil
}

// call sends one request and blocks for its response, honoring ctx.
func (d *RPCDriver) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.done:
		return nil, fmt.Errorf("driver process has exited")
	default:
	}

	id := atomic.AddInt64(&d.nextID, 1)
	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	type readResult struct {
		line []byte
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := d.reader.ReadBytes('\n')
		ch <- readResult{line, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		return nil, fmt.Errorf("driver process exited mid-call")
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("read response: %w", r.err)
		}
		var resp rpcResponse
		if err := json.Unmarshal(r.line, &resp); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// ListElements implements Driver.
func (d *RPCDriver) ListElements(ctx context.Context, scope Scope) ([]Element, error) {
	raw, err := d.call(ctx, "ui.list_elements", scope)
	if err != nil {
		return nil, err
	}
	var out struct {
		Elements []Element `json:"elements"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	return out.Elements, nil
}

// ListWindows implements Driver.
func (d *RPCDriver) ListWindows(ctx context.Context) ([]Window, error) {
	raw, err := d.call(ctx, "ui.list_windows", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Windows []Window `json:"windows"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode windows: %w", err)
	}
	return out.Windows, nil
}

// Perform implements Driver.
func (d *RPCDriver) Perform(ctx context.Context, req Request) (*Result, error) {
	raw, err := d.call(ctx, "ui.perform", req)
	if err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode perform result: %w", err)
	}
	return &res, nil
}

// Capture implements Driver.
func (d *RPCDriver) Capture(ctx context.Context, scope Scope, path string) (*ImageRef, error) {
	params := struct {
		Scope Scope  `json:"scope"`
		Path  string `json:"path"`
	}{scope, path}
	raw, err := d.call(ctx, "ui.capture", params)
	if err != nil {
		return nil, err
	}
	var ref ImageRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, fmt.Errorf("decode capture result: %w", err)
	}
	return &ref, nil
}

// CursorPos implements Driver.
func (d *RPCDriver) CursorPos(ctx context.Context) (int, int, error) {
	raw, err := d.call(ctx, "ui.cursor_pos", nil)
	if err != nil {
		return 0, 0, err
	}
	var pos struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := json.Unmarshal(raw, &pos); err != nil {
		return 0, 0, fmt.Errorf("decode cursor position: %w", err)
	}
	return pos.X, pos.Y, nil
}

// Close terminates the driver process.
func (d *RPCDriver) Close() error {
	d.stdin.Close()
	select {
	case <-d.done:
		return nil
	case <-time.After(2 * time.Second):
		if d.cmd.Process != nil {
			d.cmd.Process.Kill()
		}
		return nil
	}
}
