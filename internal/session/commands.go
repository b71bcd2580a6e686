package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	sendCommandRe      = regexp.MustCompile(`^/send\s+(\S+)\s+(.+)$`)
	broadcastCommandRe = regexp.MustCompile(`^/broadcast\s+(.+)$`)
	listCommandRe      = regexp.MustCompile(`^/list\s*$`)
	helpCommandRe      = regexp.MustCompile(`^/help\s*$`)
)

// dispatchCommand classifies one slash line typed into a session and
// executes it. Returns false for unrecognized lines, which then reach the
// shell untouched. Replies go straight into the issuing session's output
// stream so they render inline.
func (m *Manager) dispatchCommand(s *Session, line string) bool {
	switch {
	case sendCommandRe.MatchString(line):
		match := sendCommandRe.FindStringSubmatch(line)
		target, text := match[1], match[2]
		_, err := m.Send(context.Background(), s.id, target, text, false)
		if err != nil {
			m.injectOutput(s, fmt.Sprintf("\r\n✗ %v\r\n", err))
			if te, ok := err.(*TargetUnavailableError); ok && len(te.Available) > 0 {
				m.injectOutput(s, fmt.Sprintf("available sessions: %s\r\n", strings.Join(te.Available, ", ")))
			}
			return true
		}
		m.injectOutput(s, fmt.Sprintf("\r\n✓ message sent to %s\r\n", target))
		return true

	case broadcastCommandRe.MatchString(line):
		text := broadcastCommandRe.FindStringSubmatch(line)[1]
		_, err := m.Send(context.Background(), s.id, "all", text, false)
		if err != nil {
			m.injectOutput(s, fmt.Sprintf("\r\n✗ %v\r\n", err))
			return true
		}
		m.injectOutput(s, "\r\n✓ message sent to all sessions\r\n")
		return true

	case listCommandRe.MatchString(line):
		var sb strings.Builder
		sb.WriteString("\r\nactive sessions:\r\n")
		sb.WriteString(strings.Repeat("─", 50) + "\r\n")
		for _, info := range m.List() {
			icon := "🔴"
			if info.Status == StatusRunning {
				icon = "🟢"
			}
			current := ""
			if info.ID == s.id {
				current = " (current)"
			}
			command := info.Command
			if command == "" {
				command = m.opts.Shell
			}
			exitInfo := ""
			if info.Status == StatusExited && info.ExitCode != nil {
				exitInfo = fmt.Sprintf(" [exit: %d]", *info.ExitCode)
			}
			fmt.Fprintf(&sb, "  %s %s%s\r\n", icon, info.ID, current)
			fmt.Fprintf(&sb, "     command: %s%s\r\n\r\n", command, exitInfo)
		}
		m.injectOutput(s, sb.String())
		return true

	case helpCommandRe.MatchString(line):
		var sb strings.Builder
		sb.WriteString("\r\nwterm internal commands:\r\n")
		sb.WriteString(strings.Repeat("─", 50) + "\r\n")
		sb.WriteString("  /send <session-id> <message>  - send a message to one session\r\n")
		sb.WriteString("  /broadcast <message>          - send a message to all sessions\r\n")
		sb.WriteString("  /list                         - list active sessions\r\n")
		sb.WriteString("  /help                         - show this help\r\n")
		sb.WriteString("\r\nCLI commands (run from the shell):\r\n")
		sb.WriteString(strings.Repeat("─", 50) + "\r\n")
		sb.WriteString("  wterm-send <session-id> <message>\r\n")
		sb.WriteString("  wterm-broadcast <message>\r\n")
		sb.WriteString("  wterm-list\r\n\r\n")
		m.injectOutput(s, sb.String())
		return true
	}

	return false
}
