// wterm-broadcast sends a message to every running session except the
// sender. Identity and server location come from the WTERM_* environment
// variables injected into each session.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: wterm-broadcast <message...>")
		os.Exit(1)
	}
	message := strings.Join(os.Args[1:], " ")

	baseURL := os.Getenv("WTERM_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	from := os.Getenv("WTERM_SESSION_ID")
	if from == "" {
		from = "cli"
	}

	body, _ := json.Marshal(map[string]any{
		"from":    from,
		"to":      "all",
		"message": message,
	})

	httpResp, err := http.Post(baseURL+"/api/send", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reaching wterm at %s: %v\n", baseURL, err)
		os.Exit(1)
	}
	defer httpResp.Body.Close()

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error: decoding response: %v\n", err)
		os.Exit(1)
	}
	if !resp.Success {
		fmt.Fprintf(os.Stderr, "✗ %s\n", resp.Message)
		os.Exit(1)
	}
	fmt.Println("✓ message sent to all sessions")
}
