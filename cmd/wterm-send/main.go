// wterm-send delivers a message to another session from inside a session.
// It reads its own identity from WTERM_SESSION_ID and the server location
// from WTERM_API_URL, both injected into every session's environment.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

type sendResponse struct {
	Success           bool     `json:"success"`
	Message           string   `json:"message"`
	MessageID         string   `json:"messageId"`
	Output            string   `json:"output"`
	AvailableSessions []string `json:"availableSessions"`
}

func main() {
	noWait := pflag.Bool("no-wait", false, "do not wait for a response capture")
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: wterm-send [--no-wait] <session-id> <message...>")
	}
	pflag.Parse()

	args := pflag.Args()
	if len(args) < 2 {
		pflag.Usage()
		os.Exit(1)
	}

	target := args[0]
	message := strings.Join(args[1:], " ")

	resp, err := postSend(apiBaseURL(), senderID(), target, message, !*noWait)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !resp.Success {
		fmt.Fprintf(os.Stderr, "✗ %s\n", resp.Message)
		if len(resp.AvailableSessions) > 0 {
			fmt.Fprintf(os.Stderr, "available sessions: %s\n", strings.Join(resp.AvailableSessions, ", "))
		}
		os.Exit(1)
	}

	fmt.Printf("✓ message sent to %s\n", target)
	if !*noWait && resp.Output != "" {
		fmt.Println()
		fmt.Println(resp.Output)
	}
}

func apiBaseURL() string {
	if url := os.Getenv("WTERM_API_URL"); url != "" {
		return url
	}
	return "http://localhost:3000"
}

func senderID() string {
	if id := os.Getenv("WTERM_SESSION_ID"); id != "" {
		return id
	}
	return "cli"
}

func postSend(baseURL, from, to, message string, wait bool) (*sendResponse, error) {
	body, err := json.Marshal(map[string]any{
		"from":            from,
		"to":              to,
		"message":         message,
		"waitForResponse": wait,
	})
	if err != nil {
		return nil, err
	}

	httpResp, err := http.Post(baseURL+"/api/send", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("reaching wterm at %s: %w", baseURL, err)
	}
	defer httpResp.Body.Close()

	var resp sendResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}
