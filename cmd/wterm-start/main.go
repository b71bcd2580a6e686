// wterm-start creates a new session on the server from inside an existing
// one, inheriting the caller's working directory. Any arguments become the
// initial command typed into the fresh shell; without arguments the new
// session is a bare shell.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

type createResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func main() {
	command := strings.Join(os.Args[1:], " ")

	baseURL := os.Getenv("WTERM_API_URL")
	if baseURL == "" {
		fmt.Fprintln(os.Stderr, "Error: WTERM_API_URL is not set; run wterm-start from inside a wterm session")
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	resp, err := postCreate(baseURL, command, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !resp.Success || resp.SessionID == "" {
		msg := resp.Message
		if msg == "" {
			msg = "session creation failed"
		}
		fmt.Fprintf(os.Stderr, "✗ %s\n", msg)
		os.Exit(1)
	}

	fmt.Printf("✓ created %s\n", resp.SessionID)
	if command != "" {
		fmt.Printf("  running: %s\n", command)
	}
}

func postCreate(baseURL, command, cwd string) (*createResponse, error) {
	body, err := json.Marshal(map[string]any{
		"command": command,
		"cwd":     cwd,
	})
	if err != nil {
		return nil, err
	}

	httpResp, err := http.Post(baseURL+"/api/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("reaching wterm at %s: %w", baseURL, err)
	}
	defer httpResp.Body.Close()

	var resp createResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}
