// Command bughunter-mcp exposes the BugHunter API as MCP tools over stdio.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("BUGHUNTER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:3000"
	}
	// Optional: the server may run with auth disabled.
	apiKey := os.Getenv("BUGHUNTER_API_KEY")

	s := server.NewMCPServer(
		"bughunter",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	registerTools(s, newAPIClient(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
