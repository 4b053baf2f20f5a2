package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/axtest/pkg/profile"
	"github.com/ormasoftchile/axtest/pkg/target"
)

var profilesPath string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile store operations",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	RunE:  runProfileList,
}

func runProfileList(cmd *cobra.Command, args []string) error {
	store := &profile.Store{Path: profilesPath}
	profiles, err := store.Load()
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		fmt.Println("no profiles")
		return nil
	}
	for _, p := range profiles {
		fmt.Printf("  %-20s %s\n", p.Name, describeSpec(p.Target))
	}
	return nil
}

func describeSpec(s target.Spec) string {
	switch {
	case s.PID != 0:
		return fmt.Sprintf("pid=%d", s.PID)
	case s.Process != "":
		return fmt.Sprintf("process=%s", s.Process)
	case s.Exe != "":
		return fmt.Sprintf("exe=%s", s.Exe)
	default:
		return fmt.Sprintf("title_re=%s", s.TitleRe)
	}
}

var (
	profileAddPID     int32
	profileAddProcess string
	profileAddExe     string
	profileAddTitleRe string
	profileAddTimeout string
	profileAddStartup string
	profileAddSpace   string
	profileAddDestr   bool
)

var profileAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileAdd,
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	store := &profile.Store{Path: profilesPath}
	p := &profile.Profile{
		Name: args[0],
		Target: target.Spec{
			PID:     profileAddPID,
			Process: profileAddProcess,
			Exe:     profileAddExe,
			TitleRe: profileAddTitleRe,
		},
		Space: profileAddSpace,
		Timeouts: profile.Timeouts{
			Action:  profileAddTimeout,
			Startup: profileAddStartup,
		},
		Safety: profile.Safety{AllowDestructive: profileAddDestr},
	}
	if err := store.Add(p); err != nil {
		return err
	}
	fmt.Printf("✓ added profile %s\n", p.Name)
	return nil
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileRemove,
}

func runProfileRemove(cmd *cobra.Command, args []string) error {
	store := &profile.Store{Path: profilesPath}
	removed, err := store.Remove(args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("profile %q not found", args[0])
	}
	fmt.Printf("✓ removed profile %s\n", args[0])
	return nil
}

func init() {
	profileCmd.PersistentFlags().StringVar(&profilesPath, "profiles", "profiles.yaml", "Profile store path")

	profileAddCmd.Flags().Int32Var(&profileAddPID, "pid", 0, "Target process id")
	profileAddCmd.Flags().StringVar(&profileAddProcess, "process", "", "Target process name")
	profileAddCmd.Flags().StringVar(&profileAddExe, "exe", "", "Executable to launch")
	profileAddCmd.Flags().StringVar(&profileAddTitleRe, "title-re", "", "Window title pattern")
	profileAddCmd.Flags().StringVar(&profileAddSpace, "space", "", "Default action-space file for exploration")
	profileAddCmd.Flags().StringVar(&profileAddTimeout, "timeout", "", "Per-action timeout (e.g. 10s)")
	profileAddCmd.Flags().StringVar(&profileAddStartup, "startup-timeout", "", "Launch wait timeout (e.g. 15s)")
	profileAddCmd.Flags().BoolVar(&profileAddDestr, "allow-destructive", false, "Allow destructive actions under this profile")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	rootCmd.AddCommand(profileCmd)
}
