//go:build ignore

package main

import (
	"fmt"
	"os"

	"github.com/ormasoftchile/axtest/pkg/action"
	"github.com/ormasoftchile/axtest/pkg/scenario"
)

func main() {
	data, err := scenario.GenerateJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll("schemas", 0755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/scenario-v1.json", data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/scenario-v1.json")

	actionData, err := action.GenerateJSONSchema()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error generating action schema: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile("schemas/action-v1.json", actionData, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("wrote schemas/action-v1.json")
}
