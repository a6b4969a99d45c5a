package util

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Confirm writes question to out and reads one line from in. An empty answer
// selects defaultYes; otherwise answers starting with y or n decide, case
// insensitively. Any other answer is treated as the default. Reaching EOF
// without input also selects the default.
func Confirm(in io.Reader, out io.Writer, question string, defaultYes bool) (bool, error) {
	choices := "[y/N]"
	if defaultYes {
		choices = "[Y/n]"
	}
	if _, err := fmt.Fprintf(out, "%s %s ", question, choices); err != nil {
		return false, err
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	return ParseAnswer(line, defaultYes), nil
}

// ParseAnswer interprets a yes/no answer the way Confirm does
func ParseAnswer(answer string, defaultYes bool) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch {
	case strings.HasPrefix(answer, "n"):
		return false
	case strings.HasPrefix(answer, "y"):
		return true
	default:
		return defaultYes
	}
}

