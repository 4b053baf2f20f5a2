package action

import (
	"strings"
	"testing"

	"github.com/ormasoftchile/axtest/pkg/selector"
)

func TestMutatingClassification(t *testing.T) {
	mutating := []Tool{FocusWindow, Click, TypeText, Toggle, SelectItem}
	readOnly := []Tool{ReadText, GetState, WaitFor, Screenshot, ListElements, ListWindows}
	for _, tool := range mutating {
		if !tool.Mutating() {
			t.Errorf("%s should be mutating", tool)
		}
	}
	for _, tool := range readOnly {
		if tool.Mutating() {
			t.Errorf("%s should be read-only", tool)
		}
	}
}

func TestValidateUnknownTool(t *testing.T) {
	err := Validate(Action{Tool: "launch_missiles"})
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}
	if !strings.Contains(err.Error(), "unknown tool") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestValidateRequiresSelector(t *testing.T) {
	err := Validate(Action{Tool: Click})
	if err == nil {
		t.Fatal("expected error for click without selector")
	}
	ve, ok := err.(*ValidationError)
	if !ok || ve.Field != "selector" {
		t.Errorf("expected selector validation error, got %v", err)
	}
}

func TestValidateSelectItemRequiresItem(t *testing.T) {
	a := Action{Tool: SelectItem, Args: Args{Selector: &selector.Selector{AutomationID: "Combo"}}}
	if err := Validate(a); err == nil {
		t.Fatal("expected error for select_item without item")
	}
	a.Args.Item = "First"
	if err := Validate(a); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateWaitForCondition(t *testing.T) {
	sel := &selector.Selector{AutomationID: "StatusLabel"}
	cases := []struct {
		condition string
		value     string
		wantErr   bool
	}{
		{"exists", "", false},
		{"enabled", "", false},
		{"text_equals", "Done", false},
		{"text_equals", "", true},
		{"", "", true},
		{"glows", "", true},
	}
	for _, tc := range cases {
		a := Action{Tool: WaitFor, Args: Args{Selector: sel, Condition: tc.condition, Value: tc.value}}
		err := Validate(a)
		if (err != nil) != tc.wantErr {
			t.Errorf("condition=%q value=%q: err=%v, wantErr=%v", tc.condition, tc.value, err, tc.wantErr)
		}
	}
}

func TestValidateScreenshotNeedsNoSelector(t *testing.T) {
	if err := Validate(Action{Tool: Screenshot}); err != nil {
		t.Errorf("screenshot should validate without selector: %v", err)
	}
}

func TestDecodeUntrusted(t *testing.T) {
	raw := []byte(`{"tool":"click","args":{"selector":{"automation_id":"MainButton"}}}`)
	a, err := DecodeUntrusted(raw)
	if err != nil {
		t.Fatalf("DecodeUntrusted: %v", err)
	}
	if a.Tool != Click || a.Args.Selector.AutomationID != "MainButton" {
		t.Errorf("decoded wrong action: %+v", a)
	}
}

func TestDecodeUntrustedRejectsUnknownTool(t *testing.T) {
	raw := []byte(`{"tool":"shell_exec","args":{"text":"rm -rf /"}}`)
	if _, err := DecodeUntrusted(raw); err == nil {
		t.Fatal("expected rejection of unknown tool")
	}
}

func TestDecodeUntrustedRejectsUnknownFields(t *testing.T) {
	raw := []byte(`{"tool":"click","args":{"selector":{"automation_id":"A"}},"shell":"calc.exe"}`)
	if _, err := DecodeUntrusted(raw); err == nil {
		t.Fatal("expected rejection of extra fields")
	}
}

func TestDecodeUntrustedRejectsGarbage(t *testing.T) {
	if _, err := DecodeUntrusted([]byte(`"click the button please"`)); err == nil {
		t.Fatal("expected rejection of free text")
	}
}

func TestExitCodes(t *testing.T) {
	cases := map[ErrorKind]int{
		KindNone:            0,
		KindElementNotFound: 2,
		KindNotInteractive:  3,
		KindAmbiguous:       5,
		KindTimeout:         6,
		KindInterrupted:     7,
		KindInternal:        8,
		KindValidation:      1,
		KindDriverFailure:   1,
	}
	for kind, want := range cases {
		if got := kind.ExitCode(); got != want {
			t.Errorf("ExitCode(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestDescribe(t *testing.T) {
	a := Action{Tool: TypeText, Args: Args{
		Selector: &selector.Selector{AutomationID: "NameBox"},
		Text:     "hello",
	}}
	got := a.Describe()
	if got != `type_text aid=NameBox text="hello"` {
		t.Errorf("Describe() = %q", got)
	}
}
