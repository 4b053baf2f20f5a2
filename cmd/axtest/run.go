package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/explore"
	"github.com/ormasoftchile/axtest/pkg/harness"
	"github.com/ormasoftchile/axtest/pkg/minimize"
	"github.com/ormasoftchile/axtest/pkg/oracle"
	"github.com/ormasoftchile/axtest/pkg/scenario"
	"github.com/ormasoftchile/axtest/pkg/session"
)

// --- scenario run ---

var scenarioJSON bool

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Scenario operations",
}

var scenarioRunCmd = &cobra.Command{
	Use:   "run [scenario.yaml]",
	Short: "Execute a scenario against its target application",
	Args:  cobra.ExactArgs(1),
	RunE:  runScenario,
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, errs := scenario.ValidateFile(args[0])
	if scenario.HasErrors(errs) {
		for _, e := range errs {
			if e.Severity == "error" {
				fmt.Fprintf(os.Stderr, "  ✗ [%s] %s\n", e.Phase, e.Message)
			}
		}
		return fmt.Errorf("scenario validation failed")
	}

	// The scenario's own target applies unless flags override it.
	if flagPID == 0 && flagProcess == "" && flagExe == "" && flagTitleRe == "" {
		flagPID = sc.Target.PID
		flagProcess = sc.Target.Process
		flagExe = sc.Target.Exe
		flagTitleRe = sc.Target.TitleRe
	}

	rc, err := buildRunContext()
	if err != nil {
		return err
	}
	ctx := context.Background()
	h, err := rc.newHarness(ctx, session.ModeScenario)
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Fprintf(os.Stderr, "▶ scenario %s against %s\n", sc.Meta.Name, h.Target)
	report, res, runErr := h.RunScenario(ctx, sc)

	if scenarioJSON {
		printJSON(map[string]any{"report": report, "run": res})
	} else {
		fmt.Printf("Scenario: %s\n", report.Scenario)
		fmt.Printf("State:    %s\n", report.State)
		fmt.Printf("Session:  %s\n", res.SessionDir)
		if res.TicketID != "" {
			fmt.Printf("Ticket:   %s\n", res.TicketID)
		}
	}
	if runErr != nil {
		return runErr
	}
	if report.State != scenario.Passed {
		exitScenario(report)
	}
	return nil
}

// exitScenario picks the exit code from the failed step's action result,
// falling back to 1 for oracle findings.
func exitScenario(report *scenario.Report) {
	if report.FailedStep >= 0 && report.FailedStep < len(report.Steps) {
		step := report.Steps[report.FailedStep]
		if step.Result != nil && step.Result.ErrorKind != action.KindNone {
			os.Exit(exitCodeFor(step.Result))
		}
	}
	os.Exit(1)
}

// --- random run ---

var (
	randomSpace       string
	randomSeed        uint64
	randomSteps       int
	randomDestructive bool
	randomJSON        bool
)

var randomCmd = &cobra.Command{
	Use:   "random",
	Short: "Random exploration operations",
}

var randomRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run seeded random exploration against a target",
	RunE:  runRandom,
}

func runRandom(cmd *cobra.Command, args []string) error {
	rc, err := buildRunContext()
	if err != nil {
		return err
	}

	spacePath := randomSpace
	if spacePath == "" && rc.Profile != nil {
		spacePath = rc.Profile.Space
	}
	if spacePath == "" {
		return fmt.Errorf("--space is required (or set one on the profile)")
	}
	space, err := explore.LoadSpaceFile(spacePath)
	if err != nil {
		return err
	}

	allowDestructive := randomDestructive
	if rc.Profile != nil && rc.Profile.Safety.AllowDestructive {
		allowDestructive = true
	}
	policy := explore.Policy{AllowDestructive: allowDestructive}
	if rc.Profile != nil {
		patterns, err := rc.Profile.Safety.CompiledPatterns()
		if err != nil {
			return err
		}
		policy.DestructivePatterns = patterns
	}
	if allowDestructive {
		policy.Confirm = confirmDestructive
	}

	ctx := context.Background()
	h, err := rc.newHarness(ctx, session.ModeExplore)
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Fprintf(os.Stderr, "▶ exploring %s (seed=%d, max_steps=%d)\n", h.Target, randomSeed, randomSteps)
	report, res, runErr := h.RunRandom(ctx, space, policy, randomSeed, randomSteps)

	if randomJSON {
		printJSON(map[string]any{"report": report, "run": res})
	} else {
		fmt.Printf("Outcome:  %s (%d steps, seed %d)\n", report.Outcome, len(report.Steps), report.Seed)
		fmt.Printf("Session:  %s\n", res.SessionDir)
		if res.TicketID != "" {
			fmt.Printf("Ticket:   %s\n", res.TicketID)
		}
	}
	if runErr != nil {
		return runErr
	}
	if report.Outcome == explore.OutcomeFailure {
		os.Exit(1)
	}
	return nil
}

// confirmDestructive prompts the operator before a selected destructive
// action executes. Anything but an explicit yes declines.
func confirmDestructive(a action.Action) bool {
	rl, err := readline.New(fmt.Sprintf("⚠ destructive action %q, execute? [y/N] ", a.Describe()))
	if err != nil {
		return false
	}
	defer rl.Close()
	line, err := rl.Readline()
	if err != nil {
		return false
	}
	return line == "y" || line == "yes"
}

// --- replay ---

var replayJSON bool

var replayCmd = &cobra.Command{
	Use:   "replay [actions.jsonl]",
	Short: "Replay a recorded action log and report divergences",
	Args:  cobra.ExactArgs(1),
	RunE:  runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	records, err := session.ReadLog(args[0])
	if err != nil {
		return err
	}

	rc, err := buildRunContext()
	if err != nil {
		return err
	}
	ctx := context.Background()
	h, err := rc.newHarness(ctx, session.ModeReplay)
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Fprintf(os.Stderr, "▶ replaying %d steps against %s\n", len(records), h.Target)
	report, res, runErr := h.Replay(ctx, records)

	if replayJSON {
		printJSON(map[string]any{"report": report, "run": res})
	} else {
		fmt.Printf("Steps:     %d\n", len(report.Steps))
		fmt.Printf("Diverged:  %d\n", report.Diverged)
		fmt.Printf("Session:   %s\n", res.SessionDir)
		if report.Reproduced {
			fmt.Println("✓ log reproduced")
		} else {
			fmt.Println("≠ replay diverged from the recorded log")
		}
	}
	if runErr != nil {
		return runErr
	}
	if !report.Reproduced {
		os.Exit(1)
	}
	return nil
}

// --- minimize ---

var (
	minimizeKind   string
	minimizeBudget int
	minimizeOut    string
)

var minimizeCmd = &cobra.Command{
	Use:   "minimize [actions.jsonl]",
	Short: "Reduce a failing action log to a shorter one that still reproduces the finding",
	Args:  cobra.ExactArgs(1),
	RunE:  runMinimize,
}

func runMinimize(cmd *cobra.Command, args []string) error {
	records, err := session.ReadLog(args[0])
	if err != nil {
		return err
	}
	if minimizeKind == "" {
		return fmt.Errorf("--kind is required (the oracle kind the log reproduces)")
	}

	rc, err := buildRunContext()
	if err != nil {
		return err
	}

	// Every attempt gets a fresh target so earlier candidates cannot leak
	// state into later ones.
	factory := harness.Factory(func(ctx context.Context) (*harness.Harness, error) {
		return rc.newHarness(ctx, session.ModeMinimize)
	})

	m := &minimize.Minimizer{
		Attempt:  harness.MinimizeAttempt(factory),
		Budget:   minimizeBudget,
		Progress: os.Stderr,
	}

	result, err := m.Run(context.Background(), records, oracle.Kind(minimizeKind))
	if err != nil {
		return err
	}

	fmt.Printf("Attempts:  %d\n", result.Attempts)
	if result.Succeeded {
		fmt.Printf("✓ reduced %d steps to %d\n", len(records), len(result.Minimized))
	} else {
		fmt.Printf("⊘ no shorter log reproduced %s within budget\n", minimizeKind)
	}

	if minimizeOut != "" {
		if err := writeLog(minimizeOut, result.Minimized); err != nil {
			return err
		}
		fmt.Printf("Minimized: %s\n", minimizeOut)
	}
	return nil
}

func writeLog(path string, records []*session.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create minimized log: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return fmt.Errorf("encode record: %w", err)
		}
	}
	return f.Close()
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func init() {
	scenarioCmd.AddCommand(scenarioRunCmd)
	addRunFlags(scenarioRunCmd)
	scenarioRunCmd.Flags().BoolVar(&scenarioJSON, "json", false, "Output results as structured JSON")

	randomCmd.AddCommand(randomRunCmd)
	addRunFlags(randomRunCmd)
	randomRunCmd.Flags().StringVar(&randomSpace, "space", "", "Action-space YAML file (falls back to the profile's)")
	randomRunCmd.Flags().Uint64Var(&randomSeed, "seed", 1, "Random seed")
	randomRunCmd.Flags().IntVar(&randomSteps, "max-steps", 50, "Step budget")
	randomRunCmd.Flags().BoolVar(&randomDestructive, "allow-destructive", false, "Allow destructive templates (each one still prompts)")
	randomRunCmd.Flags().BoolVar(&randomJSON, "json", false, "Output results as structured JSON")

	addRunFlags(replayCmd)
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Output results as structured JSON")

	addRunFlags(minimizeCmd)
	minimizeCmd.Flags().StringVar(&minimizeKind, "kind", "", "Oracle kind the log reproduces (required)")
	minimizeCmd.Flags().IntVar(&minimizeBudget, "budget", minimize.DefaultBudget, "Replay attempt budget")
	minimizeCmd.Flags().StringVar(&minimizeOut, "out", "", "Write the minimized log to this path")

	rootCmd.AddCommand(scenarioCmd)
	rootCmd.AddCommand(randomCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(minimizeCmd)
}
