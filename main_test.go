package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureOutput(f func()) string {
	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		io.Copy(&buf, r)
		done <- buf.String()
	}()

	f()
	w.Close()
	os.Stdout = oldStdout
	return <-done
}

// run executes RealMain with args and returns the exit code it asked for.
func run(t *testing.T, args ...string) (int, string) {
	oldArgs, oldExit := os.Args, exit
	t.Cleanup(func() { os.Args, exit = oldArgs, oldExit })

	code := 0
	exit = func(c int) { code = c }
	os.Args = append([]string{"murmur"}, args...)
	output := captureOutput(RealMain)
	return code, output
}

// stubCommands records what RealMain hands to the service layer.
func stubCommands(t *testing.T, code int) *[][]string {
	old := handleCommand
	t.Cleanup(func() { handleCommand = old })

	var calls [][]string
	handleCommand = func(args []string) int {
		calls = append(calls, args)
		return code
	}
	return &calls
}

func TestRealMain(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		exit   int
		output string
	}{
		{"no arguments", nil, 1, "Usage: murmur <command>"},
		{"help", []string{"help"}, 0, "Usage: murmur <command> [options]"},
		{"version", []string{"version"}, 0, "murmur version " + CliVersion},
		{"unknown command", []string{"unknown"}, 1, "Unknown command: unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := stubCommands(t, 0)
			code, output := run(t, tt.args...)
			assert.Equal(t, tt.exit, code)
			assert.Contains(t, output, tt.output)
			assert.Empty(t, *calls)
		})
	}
}

func TestServiceCommandsAreForwarded(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"serve", []string{"serve"}, []string{"serve"}},
		{"reap", []string{"reap"}, []string{"reap"}},
		{"db init", []string{"db", "init"}, []string{"db", "init"}},
		{"db restore with file", []string{"db", "restore", "backup_1.db"}, []string{"db", "restore", "backup_1.db"}},
		{"command is case insensitive", []string{"REAP"}, []string{"reap"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := stubCommands(t, 0)
			code, _ := run(t, tt.args...)
			assert.Equal(t, 0, code)
			require.Len(t, *calls, 1)
			assert.Equal(t, tt.want, (*calls)[0])
		})
	}
}

func TestServiceCommandExitCode(t *testing.T) {
	stubCommands(t, 3)
	code, _ := run(t, "reap")
	assert.Equal(t, 3, code)
}

func TestDatabaseCommandsEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MURMUR_DATA_DIR", dir)
	t.Setenv("MURMUR_STORE", "badger")
	t.Setenv("MURMUR_LOG_LEVEL", "error")

	code, output := run(t, "db", "init")
	assert.Equal(t, 0, code)
	assert.Contains(t, output, "Database initialized successfully")
	assert.DirExists(t, filepath.Join(dir, "badger"))

	code, output = run(t, "reap")
	assert.Equal(t, 0, code)
	assert.Contains(t, output, "Sweep finished: 0 candidates")
}

func TestPrintHelp(t *testing.T) {
	output := captureOutput(printHelp)

	assert.Contains(t, output, "Usage: murmur")
	for _, cmd := range []string{"help", "version", "serve", "reap", "init", "clean", "backup", "restore"} {
		assert.Contains(t, output, cmd)
	}
}
