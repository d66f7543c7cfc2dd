package relay

import (
	"errors"
	"strings"
	"testing"
)

func stubLookPath(t *testing.T, present ...string) {
	t.Helper()
	old := lookPath
	lookPath = func(file string) (string, error) {
		for _, p := range present {
			if p == file {
				return "/usr/bin/" + file, nil
			}
		}
		return "", errors.New("not found")
	}
	t.Cleanup(func() { lookPath = old })
}

func TestCheckCommandMissingRuntime(t *testing.T) {
	stubLookPath(t)
	err := CheckCommand("node", []string{"server.js"})
	if err == nil || !strings.Contains(err.Error(), `required runtime "node" not found`) {
		t.Fatalf("CheckCommand() error = %v, want missing node", err)
	}
}

func TestCheckCommandChecksEnvWrappedProgram(t *testing.T) {
	stubLookPath(t, "env")
	err := CheckCommand("env", []string{"-u", "DEBUG", "FOO=bar", "npx", "-y", "pkg"})
	if err == nil || !strings.Contains(err.Error(), `"npx"`) {
		t.Fatalf("CheckCommand() error = %v, want missing npx", err)
	}
}

func TestCheckCommandAcceptsPresentRuntimes(t *testing.T) {
	stubLookPath(t, "env", "uvx")
	if err := CheckCommand("env", []string{"-S", "A=1 uvx server"}); err != nil {
		t.Fatalf("CheckCommand() error = %v, want nil", err)
	}
	if err := CheckCommand("", nil); err != nil {
		t.Fatalf("CheckCommand(empty) error = %v, want nil", err)
	}
}

func TestEnvProgram(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--", "A=1", "'python3'", "-m"}, "python3"},
		{[]string{"--split-string=FOO=1 node app.js"}, "node"},
		{[]string{"-C", "/tmp", "--ignore-environment", "deno"}, "deno"},
		{[]string{"-S"}, ""},
		{[]string{"ONLY=vars"}, ""},
	}
	for _, tt := range tests {
		if got := envProgram(tt.args); got != tt.want {
			t.Fatalf("envProgram(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
