package cmdutil

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRun_Success(t *testing.T) {
	result, err := Run(context.Background(), ExecOptions{}, []string{"echo", "hello"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.ExitCode != 0 {
		t.Errorf("Expected exit code 0, got %d", result.ExitCode)
	}
	if !strings.Contains(string(result.Output), "hello") {
		t.Errorf("Expected output to contain 'hello', got %q", result.Output)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	result, err := Run(context.Background(), ExecOptions{}, []string{"sh", "-c", "exit 3"})
	if err == nil {
		t.Fatal("Expected error for non-zero exit")
	}
	if result.ExitCode != 3 {
		t.Errorf("Expected exit code 3, got %d", result.ExitCode)
	}
}

func TestRun_EmptyCommand(t *testing.T) {
	if _, err := Run(context.Background(), ExecOptions{}, nil); err == nil {
		t.Error("Expected error for empty command")
	}
}

func TestRun_Timeout(t *testing.T) {
	start := time.Now()
	_, err := Run(context.Background(), ExecOptions{Timeout: 100 * time.Millisecond}, []string{"sleep", "5"})
	if err == nil {
		t.Fatal("Expected timeout error")
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Command was not killed by timeout")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("Expected timeout error, got: %v", err)
	}
}

func TestRun_WorkingDir(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := Run(context.Background(), ExecOptions{Dir: tmpDir}, []string{"pwd"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(string(result.Output), tmpDir) {
		t.Errorf("Expected pwd output %q to contain %q", result.Output, tmpDir)
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"simple", "node index.js", []string{"node", "index.js"}, false},
		{"quoted", `node "my server.js" --port 8080`, []string{"node", "my server.js", "--port", "8080"}, false},
		{"single", "uvx", []string{"uvx"}, false},
		{"empty", "", nil, true},
		{"unterminated quote", `node "index.js`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitCommand(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("SplitCommand(%q) failed: %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("SplitCommand(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Part %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
