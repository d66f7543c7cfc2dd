package relay

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// CheckCommand reports a missing upstream runtime before anything is
// started. For "env [OPTIONS] [NAME=VALUE]... PROGRAM" the wrapped program
// is checked too.
func CheckCommand(command string, args []string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}
	if _, err := lookPath(command); err != nil {
		return fmt.Errorf("required runtime %q not found in PATH", command)
	}
	if filepath.Base(command) != "env" {
		return nil
	}
	if wrapped := envProgram(args); wrapped != "" {
		if _, err := lookPath(wrapped); err != nil {
			return fmt.Errorf("required runtime %q not found in PATH", wrapped)
		}
	}
	return nil
}

// envProgram returns the program env(1) would run with args, or "".
func envProgram(args []string) string {
	for i := 0; i < len(args); i++ {
		token := strings.TrimSpace(args[i])
		switch {
		case token == "":
		case token == "--":
			return firstProgram(args[i+1:])
		case token == "-S" || token == "--split-string":
			if i+1 >= len(args) {
				return ""
			}
			i++
			if p := envProgram(strings.Fields(args[i])); p != "" {
				return p
			}
		case strings.HasPrefix(token, "-S="), strings.HasPrefix(token, "--split-string="):
			_, split, _ := strings.Cut(token, "=")
			if p := envProgram(strings.Fields(split)); p != "" {
				return p
			}
		case token == "-u" || token == "--unset" || token == "-C" || token == "--chdir":
			i++
		case strings.HasPrefix(token, "-"):
		case strings.Index(token, "=") > 0:
		default:
			return unquote(token)
		}
	}
	return ""
}

func firstProgram(args []string) string {
	for _, raw := range args {
		token := unquote(strings.TrimSpace(raw))
		if token == "" || strings.Index(token, "=") > 0 {
			continue
		}
		return token
	}
	return ""
}

func unquote(token string) string {
	if len(token) >= 2 {
		if q := token[0]; (q == '\'' || q == '"') && token[len(token)-1] == q {
			return token[1 : len(token)-1]
		}
	}
	return token
}
