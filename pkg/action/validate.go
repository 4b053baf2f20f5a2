package action

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError reports a malformed action. It is always produced locally;
// a malformed action never reaches the driver.
type ValidationError struct {
	Tool    Tool
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("action %q: %s: %s", e.Tool, e.Field, e.Message)
	}
	return fmt.Sprintf("action %q: %s", e.Tool, e.Message)
}

// Validate enforces the per-tool argument rules. It is the single gate every
// execution path goes through, whatever produced the action.
func Validate(a Action) error {
	if !a.Tool.Known() {
		return &ValidationError{Tool: a.Tool, Message: "unknown tool"}
	}

	needsSelector := false
	switch a.Tool {
	case Click, TypeText, Toggle, SelectItem, ReadText, GetState, WaitFor:
		needsSelector = true
	}
	if needsSelector {
		if a.Args.Selector == nil || a.Args.Selector.IsZero() {
			return &ValidationError{Tool: a.Tool, Field: "selector", Message: "required"}
		}
	}

	switch a.Tool {
	case SelectItem:
		if a.Args.Item == "" {
			return &ValidationError{Tool: a.Tool, Field: "item", Message: "required"}
		}
	case WaitFor:
		switch a.Args.Condition {
		case "exists", "enabled", "text_equals":
		case "":
			return &ValidationError{Tool: a.Tool, Field: "condition", Message: "required (exists, enabled, text_equals)"}
		default:
			return &ValidationError{Tool: a.Tool, Field: "condition", Message: fmt.Sprintf("unknown condition %q", a.Args.Condition)}
		}
		if a.Args.Condition == "text_equals" && a.Args.Value == "" {
			return &ValidationError{Tool: a.Tool, Field: "value", Message: "required for text_equals"}
		}
	}

	if a.Args.TimeoutMS < 0 {
		return &ValidationError{Tool: a.Tool, Field: "timeout_ms", Message: "must not be negative"}
	}
	if a.Args.Depth < 0 {
		return &ValidationError{Tool: a.Tool, Field: "depth", Message: "must not be negative"}
	}
	return nil
}

// GenerateJSONSchema produces a JSON Schema Draft 2020-12 document for the
// Action envelope, used to validate decision-source payloads and exported by
// the CLI for external tooling.
func GenerateJSONSchema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&Action{})
	s.ID = "https://github.com/ormasoftchile/axtest/schemas/action-v1.json"
	s.Title = "axtest Action v1"
	s.Description = "Schema for structured UI actions accepted by the axtest executor"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal action schema: %w", err)
	}
	return data, nil
}

var compiledSchema *sjsonschema.Schema

func actionSchema() (*sjsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	raw, err := GenerateJSONSchema()
	if err != nil {
		return nil, err
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal action schema: %w", err)
	}
	c := sjsonschema.NewCompiler()
	if err := c.AddResource("action-v1.json", doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := c.Compile("action-v1.json")
	if err != nil {
		return nil, fmt.Errorf("compile action schema: %w", err)
	}
	compiledSchema = sch
	return sch, nil
}

// DecodeUntrusted parses an action payload from an untrusted source (the
// decision source sends structured calls, never free text). The payload is
// checked against the generated JSON Schema, strictly decoded with unknown
// fields rejected, then run through Validate.
func DecodeUntrusted(raw []byte) (Action, error) {
	var zero Action

	sch, err := actionSchema()
	if err != nil {
		return zero, fmt.Errorf("action schema: %w", err)
	}
	doc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return zero, &ValidationError{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if err := sch.Validate(doc); err != nil {
		return zero, &ValidationError{Message: fmt.Sprintf("schema: %v", err)}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var a Action
	if err := dec.Decode(&a); err != nil {
		return zero, &ValidationError{Message: fmt.Sprintf("decode: %v", err)}
	}
	if err := Validate(a); err != nil {
		return zero, err
	}
	return a, nil
}
