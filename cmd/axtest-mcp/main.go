// Package main provides the axtest-mcp binary, an MCP server that lets an
// AI decision source validate and run axtest scenarios over stdio.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/axtest/pkg/driver"
	"github.com/ormasoftchile/axtest/pkg/guard"
	axmcp "github.com/ormasoftchile/axtest/pkg/mcp"
	"github.com/ormasoftchile/axtest/pkg/target"
)

var version = "dev"

func main() {
	driverCmd := flag.String("driver", os.Getenv("AXTEST_DRIVER"), "accessibility driver command (JSON-RPC over stdio); empty uses the in-memory fake")
	sessions := flag.String("sessions", "sessions", "session artifact directory")
	tickets := flag.String("tickets", "tickets", "ticket store directory")
	guardState := flag.String("guard-state", filepath.Join(os.TempDir(), "axtest-guard.json"), "guard state file shared with the CLI")
	flag.Parse()

	cfg := axmcp.Config{
		Version: version,
		NewDriver: func(ctx context.Context) (driver.Driver, error) {
			if *driverCmd == "" {
				return driver.NewFakeDriver(), nil
			}
			return driver.SpawnRPC(ctx, *driverCmd)
		},
		Procs:    target.SystemProcs{},
		Launcher: target.ExecLauncher{},
		Guard:    guard.New(nil, *guardState),
		Root:     *sessions,
		Tickets:  *tickets,
	}

	if err := server.ServeStdio(axmcp.NewServer(cfg)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
