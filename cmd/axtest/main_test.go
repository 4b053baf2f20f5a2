package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/target"
)

func resetRunFlags() {
	flagDriver = ""
	flagProfiles = "profiles.yaml"
	flagProfile = ""
	flagPID = 0
	flagProcess = ""
	flagExe = ""
	flagTitleRe = ""
	flagSessions = "sessions"
	flagTickets = "tickets"
	flagGuardState = defaultGuardState()
	flagTimeout = ""
}

func TestBuildRunContextRequiresTarget(t *testing.T) {
	resetRunFlags()
	if _, err := buildRunContext(); err == nil {
		t.Fatal("empty target accepted")
	}
}

func TestBuildRunContextFromFlags(t *testing.T) {
	resetRunFlags()
	flagPID = 42
	flagTimeout = "3s"

	rc, err := buildRunContext()
	if err != nil {
		t.Fatal(err)
	}
	if rc.Spec.PID != 42 {
		t.Fatalf("spec = %+v", rc.Spec)
	}
	if rc.Options.Timeout != 3*time.Second {
		t.Fatalf("timeout = %v", rc.Options.Timeout)
	}
	if rc.Options.Guard == nil {
		t.Fatal("guard not wired")
	}
}

func TestBuildRunContextProfileOverride(t *testing.T) {
	resetRunFlags()
	dir := t.TempDir()
	flagProfiles = filepath.Join(dir, "profiles.yaml")
	doc := `profiles:
  - name: demo
    target:
      process: demoapp.exe
    timeouts:
      action: 4s
`
	if err := os.WriteFile(flagProfiles, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	flagProfile = "demo"

	rc, err := buildRunContext()
	if err != nil {
		t.Fatal(err)
	}
	if rc.Spec.Process != "demoapp.exe" {
		t.Fatalf("spec = %+v", rc.Spec)
	}
	if rc.Options.Timeout != 4*time.Second {
		t.Fatalf("timeout = %v", rc.Options.Timeout)
	}

	// Explicit target flags replace the profile's target wholesale.
	flagPID = 7
	rc, err = buildRunContext()
	if err != nil {
		t.Fatal(err)
	}
	if rc.Spec.PID != 7 || rc.Spec.Process != "" {
		t.Fatalf("spec = %+v", rc.Spec)
	}
}

func TestExitCodeFor(t *testing.T) {
	if exitCodeFor(nil) != 0 {
		t.Fatal("nil result should exit 0")
	}
	if got := exitCodeFor(action.Failure(action.KindElementNotFound, "gone")); got != 2 {
		t.Fatalf("element_not_found exit = %d", got)
	}
	if got := exitCodeFor(action.Failure(action.KindTimeout, "slow")); got != 6 {
		t.Fatalf("timeout exit = %d", got)
	}
	if got := exitCodeFor(action.Success()); got != 0 {
		t.Fatalf("success exit = %d", got)
	}
}

func TestDescribeSpec(t *testing.T) {
	if got := describeSpec(target.Spec{PID: 9}); got != "pid=9" {
		t.Fatalf("got %q", got)
	}
	if got := describeSpec(target.Spec{Process: "a.exe"}); got != "process=a.exe" {
		t.Fatalf("got %q", got)
	}
}
