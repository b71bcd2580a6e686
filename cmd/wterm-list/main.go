// wterm-list prints the session roster of the wterm server found via
// WTERM_API_URL. With --watch it stays connected over the websocket and
// reprints the roster whenever it changes, reconnecting with backoff if
// the server goes away.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/codefionn/wterm/internal/client"
)

type sessionInfo struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Command  string `json:"command"`
	ExitCode *int   `json:"exitCode"`
}

func main() {
	watch := pflag.Bool("watch", false, "stay connected and reprint the roster as it changes")
	pflag.Parse()

	baseURL := os.Getenv("WTERM_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	self := os.Getenv("WTERM_SESSION_ID")

	sessions, err := fetchSessions(baseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printRoster(sessions, self)

	if !*watch {
		return
	}

	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	done := make(chan int, 1)
	c := client.Dial(client.Options{
		URL: wsURL,
		OnMessage: func(data []byte) {
			var frame struct {
				Type     string        `json:"type"`
				Sessions []sessionInfo `json:"sessions"`
			}
			if err := json.Unmarshal(data, &frame); err != nil || frame.Type != "sessions" {
				return
			}
			fmt.Println()
			printRoster(frame.Sessions, self)
		},
		OnStateChange: func(state client.State, attempt int) {
			switch state {
			case client.StateReconnecting:
				fmt.Fprintf(os.Stderr, "connection lost, reconnecting (attempt %d)...\n", attempt)
			case client.StateFailed:
				fmt.Fprintln(os.Stderr, "Error: gave up reconnecting")
				done <- 1
			}
		},
	})

	code := <-done
	c.Close()
	os.Exit(code)
}

func fetchSessions(baseURL string) ([]sessionInfo, error) {
	httpResp, err := http.Get(baseURL + "/api/sessions")
	if err != nil {
		return nil, fmt.Errorf("reaching wterm at %s: %w", baseURL, err)
	}
	defer httpResp.Body.Close()

	var resp struct {
		Sessions []sessionInfo `json:"sessions"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return resp.Sessions, nil
}

func printRoster(sessions []sessionInfo, self string) {
	if len(sessions) == 0 {
		fmt.Println("no sessions")
		return
	}
	for _, s := range sessions {
		icon := "🔴"
		if s.Status == "running" {
			icon = "🟢"
		}
		current := ""
		if s.ID == self {
			current = " (current)"
		}
		command := s.Command
		if command == "" {
			command = "shell"
		}
		exitInfo := ""
		if s.Status == "exited" && s.ExitCode != nil {
			exitInfo = fmt.Sprintf(" [exit: %d]", *s.ExitCode)
		}
		fmt.Printf("%s %s%s  %s%s\n", icon, s.ID, current, command, exitInfo)
	}
}
