package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/ormasoftchile/axtest/pkg/ticket"
)

var ticketRoot string

var ticketCmd = &cobra.Command{
	Use:   "ticket",
	Short: "Ticket operations",
}

// --- ticket list ---

var ticketListStatus string

var ticketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets by status",
	RunE:  runTicketList,
}

func runTicketList(cmd *cobra.Command, args []string) error {
	store := &ticket.Store{Root: ticketRoot}
	ids, err := store.List(ticket.Status(ticketListStatus))
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Printf("no %s tickets\n", ticketListStatus)
		return nil
	}
	for _, id := range ids {
		t, _, err := store.Load(id)
		if err != nil {
			fmt.Printf("  %s (unreadable: %v)\n", id, err)
			continue
		}
		fmt.Printf("  %s  %s\n", id, t.Title)
	}
	return nil
}

// --- ticket show ---

var ticketShowRaw bool

var ticketShowCmd = &cobra.Command{
	Use:   "show [ticket-id]",
	Short: "Render a ticket report in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketShow,
}

func runTicketShow(cmd *cobra.Command, args []string) error {
	store := &ticket.Store{Root: ticketRoot}
	_, dir, err := store.Load(args[0])
	if err != nil {
		return err
	}
	md, err := os.ReadFile(filepath.Join(dir, "ticket.md"))
	if err != nil {
		return fmt.Errorf("read ticket.md: %w", err)
	}

	if ticketShowRaw {
		fmt.Print(string(md))
		return nil
	}
	fmt.Println(renderMarkdown(string(md)))
	return nil
}

// renderMarkdown converts markdown to styled terminal output, falling back
// to the raw text if rendering fails.
func renderMarkdown(md string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// --- ticket triage ---

var triageDecision string

var ticketTriageCmd = &cobra.Command{
	Use:   "triage [ticket-id]",
	Short: "Move a pending ticket to fix or wontfix",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicketTriage,
}

func runTicketTriage(cmd *cobra.Command, args []string) error {
	id := args[0]
	store := &ticket.Store{Root: ticketRoot}

	decision := triageDecision
	if decision == "" {
		t, _, err := store.Load(id)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n  %s\n", id, t.Title)
		d, err := promptDecision()
		if err != nil {
			return err
		}
		decision = d
	}

	if err := store.Triage(id, ticket.Status(decision)); err != nil {
		return err
	}
	fmt.Printf("✓ %s → %s\n", id, decision)
	return nil
}

func promptDecision() (string, error) {
	rl, err := readline.New("triage [fix/wontfix]: ")
	if err != nil {
		return "", err
	}
	defer rl.Close()
	for {
		line, err := rl.Readline()
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "fix" || line == "wontfix" {
			return line, nil
		}
		fmt.Println("enter 'fix' or 'wontfix'")
	}
}

func init() {
	ticketCmd.PersistentFlags().StringVar(&ticketRoot, "tickets", "tickets", "Ticket store directory")
	ticketListCmd.Flags().StringVar(&ticketListStatus, "status", "pending", "Status to list: pending, fix, or wontfix")
	ticketTriageCmd.Flags().StringVar(&triageDecision, "decision", "", "Decision: fix or wontfix (prompts when omitted)")
	ticketShowCmd.Flags().BoolVar(&ticketShowRaw, "raw", false, "Print the raw markdown without styling")

	ticketCmd.AddCommand(ticketListCmd)
	ticketCmd.AddCommand(ticketShowCmd)
	ticketCmd.AddCommand(ticketTriageCmd)
	rootCmd.AddCommand(ticketCmd)
}
