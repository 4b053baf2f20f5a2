package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ormasoftchile/axtest/pkg/target"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return &Store{Path: filepath.Join(t.TempDir(), "profiles.yaml")}
}

func TestStoreRoundTrip(t *testing.T) {
	s := tempStore(t)

	p := &Profile{
		Name:   "notepad",
		Target: target.Spec{Exe: `C:\Windows\notepad.exe`},
		Timeouts: Timeouts{
			Startup: "20s",
			Action:  "5s",
		},
		Safety: Safety{AllowDestructive: true},
	}
	if err := s.Add(p); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("notepad")
	if err != nil {
		t.Fatal(err)
	}
	if got.Target.Exe != p.Target.Exe {
		t.Fatalf("exe = %q", got.Target.Exe)
	}
	if got.Timeouts.StartupTimeout() != 20*time.Second {
		t.Fatalf("startup timeout = %v", got.Timeouts.StartupTimeout())
	}
	if got.Timeouts.ActionTimeout() != 5*time.Second {
		t.Fatalf("action timeout = %v", got.Timeouts.ActionTimeout())
	}
	if !got.Safety.AllowDestructive {
		t.Fatal("safety not persisted")
	}
}

func TestMissingFileIsEmptyStore(t *testing.T) {
	s := tempStore(t)
	profiles, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 0 {
		t.Fatalf("profiles = %v", profiles)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	s := tempStore(t)
	p := &Profile{Name: "calc", Target: target.Spec{Process: "calc.exe"}}
	if err := s.Add(p); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(p); err == nil {
		t.Fatal("duplicate accepted")
	}
}

func TestRemove(t *testing.T) {
	s := tempStore(t)
	if err := s.Add(&Profile{Name: "calc", Target: target.Spec{Process: "calc.exe"}}); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Remove("calc")
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Fatal("not removed")
	}
	removed, err = s.Remove("calc")
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Fatal("removed twice")
	}
}

func TestUpdate(t *testing.T) {
	s := tempStore(t)
	if err := s.Add(&Profile{Name: "calc", Target: target.Spec{Process: "calc.exe"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(&Profile{Name: "calc", Target: target.Spec{Process: "calculator.exe"}}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("calc")
	if err != nil {
		t.Fatal(err)
	}
	if got.Target.Process != "calculator.exe" {
		t.Fatalf("process = %q", got.Target.Process)
	}

	if err := s.Update(&Profile{Name: "ghost", Target: target.Spec{PID: 1}}); err == nil {
		t.Fatal("update of unknown profile accepted")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		profile Profile
		wantErr string
	}{
		{"no name", Profile{Target: target.Spec{PID: 1}}, "name is required"},
		{"no target", Profile{Name: "x"}, "one of pid"},
		{"bad title regex", Profile{Name: "x", Target: target.Spec{TitleRe: "("}}, "title_re"},
		{"bad destructive pattern", Profile{Name: "x", Target: target.Spec{PID: 1}, Safety: Safety{DestructivePatterns: []string{"["}}}, "destructive pattern"},
		{"bad timeout", Profile{Name: "x", Target: target.Spec{PID: 1}, Timeouts: Timeouts{Action: "fast"}}, "invalid timeout"},
		{"valid", Profile{Name: "x", Target: target.Spec{PID: 1}}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.profile.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want substring %q", err, tc.wantErr)
			}
		})
	}
}

func TestStrictFieldsRejected(t *testing.T) {
	s := tempStore(t)
	doc := "profiles:\n  - name: x\n    target:\n      pid: 1\n    banana: true\n"
	if err := os.WriteFile(s.Path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestTimeoutDefaults(t *testing.T) {
	var z Timeouts
	if z.StartupTimeout() != DefaultStartupTimeout {
		t.Fatalf("startup default = %v", z.StartupTimeout())
	}
	if z.ActionTimeout() != DefaultActionTimeout {
		t.Fatalf("action default = %v", z.ActionTimeout())
	}
	neg := Timeouts{Action: "-1s"}
	if neg.ActionTimeout() != DefaultActionTimeout {
		t.Fatalf("negative not defaulted: %v", neg.ActionTimeout())
	}
}

func TestCompiledPatternsAreCaseInsensitive(t *testing.T) {
	s := Safety{DestructivePatterns: []string{"wipe", "factory.?reset"}}
	res, err := s.CompiledPatterns()
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("compiled %d patterns", len(res))
	}
	if !res[0].MatchString("WipeDiskButton") {
		t.Fatal("pattern did not match mixed case")
	}
	if !res[1].MatchString("Factory Reset") {
		t.Fatal("second pattern did not match")
	}

	bad := Safety{DestructivePatterns: []string{"("}}
	if _, err := bad.CompiledPatterns(); err == nil {
		t.Fatal("invalid pattern accepted")
	}
}
