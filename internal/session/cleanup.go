package session

import (
	"regexp"
	"strings"
)

// Response capture cleanup. The raw capture is whatever the target's pty
// emitted during the settle window: echoed input, cursor movement, colors,
// the next prompt. These heuristics strip that down to the lines a human
// would call "the response". Best effort only.
var (
	cursorPositionRe = regexp.MustCompile(`\x1b\[[0-9]+;[0-9]+H`)
	sgrRe            = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	csiRe            = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	oscRe            = regexp.MustCompile(`\x1b\][^\x07\x1b]*(\x07|\x1b\\)`)
	modeRe           = regexp.MustCompile(`\x1b[=>]`)

	// promptLineRe matches a line that ends in a typical shell prompt
	// sigil with nothing after it.
	promptLineRe = regexp.MustCompile(`[$#%>]\s*$`)
)

// CleanResponse strips terminal control sequences from a captured
// response, drops the echo of the sent content, and trims trailing lines
// that look like a shell prompt.
func CleanResponse(raw, sent string) string {
	// Cursor positioning becomes a line break so full-screen redraws do
	// not glue lines together; everything else control-ish is dropped.
	clean := cursorPositionRe.ReplaceAllString(raw, "\n")
	clean = sgrRe.ReplaceAllString(clean, "")
	clean = csiRe.ReplaceAllString(clean, "")
	clean = oscRe.ReplaceAllString(clean, "")
	clean = modeRe.ReplaceAllString(clean, "")

	clean = strings.ReplaceAll(clean, "\r\n", "\n")
	clean = strings.ReplaceAll(clean, "\r", "\n")

	lines := strings.Split(clean, "\n")
	var out []string
	foundEcho := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// Leading blanks before any real content.
		if trimmed == "" && len(out) == 0 {
			continue
		}
		// The line echoing the content we typed.
		if !foundEcho && strings.Contains(line, sent) {
			foundEcho = true
			continue
		}
		out = append(out, line)
	}

	// Trailing blanks and prompt lines.
	for len(out) > 0 {
		last := strings.TrimSpace(out[len(out)-1])
		if last == "" || promptLineRe.MatchString(last) {
			out = out[:len(out)-1]
			continue
		}
		break
	}

	return strings.Join(out, "\n")
}
