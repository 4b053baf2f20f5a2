package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/guard"
	"github.com/ormasoftchile/axtest/pkg/harness"
	"github.com/ormasoftchile/axtest/pkg/profile"
	"github.com/ormasoftchile/axtest/pkg/scenario"
	"github.com/ormasoftchile/axtest/pkg/session"
	"github.com/ormasoftchile/axtest/pkg/target"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "axtest",
	Short: "Accessibility-driven desktop application test harness",
	Long:  "axtest — drives desktop applications through their accessibility tree: scripted scenarios, seeded random exploration, replay, log minimization, and ticket assembly.",
}

// Flags shared by every command that runs actions against a target.
var (
	flagDriver     string
	flagProfiles   string
	flagProfile    string
	flagPID        int32
	flagProcess    string
	flagExe        string
	flagTitleRe    string
	flagSessions   string
	flagTickets    string
	flagGuardState string
	flagTimeout    string
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagDriver, "driver", os.Getenv("AXTEST_DRIVER"), "Accessibility driver command (JSON-RPC over stdio); empty uses the in-memory fake")
	cmd.Flags().StringVar(&flagProfiles, "profiles", "profiles.yaml", "Profile store path")
	cmd.Flags().StringVar(&flagProfile, "profile", "", "Named profile supplying target and policy")
	cmd.Flags().Int32Var(&flagPID, "pid", 0, "Target process id")
	cmd.Flags().StringVar(&flagProcess, "process", "", "Target process name")
	cmd.Flags().StringVar(&flagExe, "exe", "", "Executable to launch as the target")
	cmd.Flags().StringVar(&flagTitleRe, "title-re", "", "Target window title pattern")
	cmd.Flags().StringVar(&flagSessions, "sessions", "sessions", "Session artifact directory")
	cmd.Flags().StringVar(&flagTickets, "tickets", "tickets", "Ticket store directory")
	cmd.Flags().StringVar(&flagGuardState, "guard-state", defaultGuardState(), "Guard state file")
	cmd.Flags().StringVar(&flagTimeout, "timeout", "", "Per-action timeout (e.g. 10s); defaults from profile")
}

func defaultGuardState() string {
	return filepath.Join(os.TempDir(), "axtest-guard.json")
}

// runContext is everything the flag set resolves to for one invocation.
type runContext struct {
	Spec    target.Spec
	Profile *profile.Profile
	Options harness.Options
}

// buildRunContext merges profile and flags into harness options. Explicit
// target flags override the profile's target wholesale.
func buildRunContext() (*runContext, error) {
	rc := &runContext{}

	if flagProfile != "" {
		store := &profile.Store{Path: flagProfiles}
		p, err := store.Get(flagProfile)
		if err != nil {
			return nil, err
		}
		rc.Profile = p
		rc.Spec = p.Target
	}

	flagSpec := target.Spec{PID: flagPID, Process: flagProcess, Exe: flagExe, TitleRe: flagTitleRe}
	if !flagSpec.IsZero() {
		rc.Spec = flagSpec
	}
	if rc.Spec.IsZero() {
		return nil, fmt.Errorf("no target: use --profile or one of --pid, --process, --exe, --title-re")
	}

	timeout := time.Duration(0)
	startup := time.Duration(0)
	if rc.Profile != nil {
		timeout = rc.Profile.Timeouts.ActionTimeout()
		startup = rc.Profile.Timeouts.StartupTimeout()
	}
	if flagTimeout != "" {
		d, err := time.ParseDuration(flagTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
		timeout = d
	}

	rc.Options = harness.Options{
		Procs:          target.SystemProcs{},
		Launcher:       target.ExecLauncher{},
		Journal:        &target.Journal{Path: filepath.Join(flagSessions, "launched.json")},
		Guard:          guard.New(nil, flagGuardState),
		Root:           flagSessions,
		Tickets:        flagTickets,
		Target:         rc.Spec,
		Timeout:        timeout,
		StartupTimeout: startup,
		Progress:       os.Stderr,
	}
	return rc, nil
}

func (rc *runContext) newDriver(ctx context.Context) (driver.Driver, error) {
	if flagDriver == "" {
		return driver.NewFakeDriver(), nil
	}
	return driver.SpawnRPC(ctx, flagDriver)
}

func (rc *runContext) newHarness(ctx context.Context, mode session.Mode) (*harness.Harness, error) {
	d, err := rc.newDriver(ctx)
	if err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	rc.Options.Driver = d
	return harness.New(ctx, mode, rc.Options)
}

// exitCodeFor maps a failed action to its class-specific exit code, so
// scripted callers can branch on the failure class.
func exitCodeFor(res *action.Result) int {
	if res == nil {
		return 0
	}
	return res.ErrorKind.ExitCode()
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [scenario.yaml]",
	Short: "Validate a scenario YAML file against the schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	sc, errs := scenario.ValidateFile(args[0])

	var errors, warnings []*scenario.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			warnings = append(warnings, e)
		} else {
			errors = append(errors, e)
		}
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", w.Phase, w.Message)
		if w.Path != "" {
			fmt.Fprintf(os.Stderr, "    at: %s\n", w.Path)
		}
	}
	if len(errors) > 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: %d error(s)\n\n", len(errors))
		for i, e := range errors {
			fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
			}
		}
		return fmt.Errorf("validation failed with %d error(s)", len(errors))
	}
	fmt.Printf("✓ %s is valid (%d steps)\n", sc.Meta.Name, len(sc.Steps))
	return nil
}

// --- schema export ---

var schemaType string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	switch schemaType {
	case "scenario":
		data, err = scenario.GenerateJSONSchema()
	case "action":
		data, err = action.GenerateJSONSchema()
	default:
		return fmt.Errorf("unknown schema type %q, use 'scenario' or 'action'", schemaType)
	}
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}

	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("axtest %s (build: %s)\n", version, commit)
	},
}

func init() {
	schemaCmd.AddCommand(schemaExportCmd)
	schemaExportCmd.Flags().StringVar(&schemaType, "type", "scenario", "Schema to export: scenario or action")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
