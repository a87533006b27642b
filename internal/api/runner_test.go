package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/deepviewml/deepview-go/internal/logger"
	"github.com/deepviewml/deepview-go/pkg/deepviewrt"
)

func quietLog() logger.Logger {
	return logger.Text(io.Discard, slog.LevelError)
}

func TestResolveModelPath(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"pico.rtm", "squeeze"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	r := &Runner{cfg: RunnerConfig{ModelsDir: dir}}

	tests := []struct {
		name    string
		model   string
		want    string
		wantErr string
	}{
		{name: "empty", model: "", wantErr: "model is required"},
		{name: "whitespace", model: "  ", wantErr: "model is required"},
		{name: "absolute path", model: "/opt/models/net.rtm", want: "/opt/models/net.rtm"},
		{name: "relative path cleaned", model: "./models/net.rtm", want: "models/net.rtm"},
		{name: "extension implies path", model: "ghost.rtm", want: "ghost.rtm"},
		{name: "bare name", model: "pico", want: filepath.Join(dir, "pico.rtm")},
		{name: "bare name exact file", model: "squeeze", want: filepath.Join(dir, "squeeze")},
		{name: "bare name missing", model: "nope", wantErr: "not found in"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.resolveModelPath(tt.model)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("resolved %q, want error", got)
				}
				if !errors.Is(err, ErrBadInput) {
					t.Errorf("error %v is not ErrBadInput", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("path = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveModelPathNoDir(t *testing.T) {
	t.Setenv(envModelsDir, "")

	r := &Runner{}
	_, err := r.resolveModelPath("pico")
	if err == nil || !strings.Contains(err.Error(), "models directory is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestResolveModelPathEnvDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pico.rtm"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(envModelsDir, dir)

	r := &Runner{}
	got, err := r.resolveModelPath("pico")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if want := filepath.Join(dir, "pico.rtm"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestDiscoverModels(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"alpha.rtm", "BETA.RTM", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.rtm"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := DiscoverModels(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := []string{
		filepath.Join(dir, "BETA.RTM"),
		filepath.Join(dir, "alpha.rtm"),
	}
	if !slices.Equal(got, want) {
		t.Errorf("models = %v, want %v", got, want)
	}

	if _, err := DiscoverModels(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected an error for a missing directory")
	}
	if _, err := DiscoverModels(filepath.Join(dir, "alpha.rtm")); err == nil {
		t.Error("expected an error for a non-directory")
	}
}

func TestNewRunnerStartupModel(t *testing.T) {
	installRuntime(t)

	path := filepath.Join(t.TempDir(), "pico.rtm")
	if err := os.WriteFile(path, fixtureBytes(t), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	runner, err := NewRunner(RunnerConfig{Engine: "cpu.so", Model: path, Log: quietLog()})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	t.Cleanup(func() { _ = runner.Close() })

	if runner.ModelPath() != path {
		t.Errorf("model path = %q, want %q", runner.ModelPath(), path)
	}
	err = runner.With(context.Background(), func(rt *deepviewrt.Context) error {
		m, err := rt.Model()
		if err != nil {
			return err
		}
		name, err := m.Name()
		if err != nil {
			return err
		}
		if name != "mobilenet-ssd" {
			t.Errorf("model name = %q", name)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("with: %v", err)
	}
}

func TestNewRunnerBadEngine(t *testing.T) {
	r := installRuntime(t)

	_, err := NewRunner(RunnerConfig{Engine: "missing.so", Log: quietLog()})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), `engine "missing.so"`) {
		t.Errorf("err = %v", err)
	}
	if r.EngineReleases != 1 {
		t.Errorf("engine releases = %d, want 1", r.EngineReleases)
	}
}

func TestNewRunnerStartupModelFailure(t *testing.T) {
	r := installRuntime(t)

	path := filepath.Join(t.TempDir(), "bad.rtm")
	if err := os.WriteFile(path, []byte("not a model"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewRunner(RunnerConfig{Engine: "cpu.so", Model: path, Log: quietLog()})
	if err == nil {
		t.Fatal("expected an error")
	}
	var ne *deepviewrt.NativeError
	if !errors.As(err, &ne) || ne.Code != deepviewrt.CodeModelInvalid {
		t.Errorf("err = %v, want model invalid", err)
	}
	if r.EngineReleases != 1 || r.ContextReleases != 1 {
		t.Errorf("releases = %d/%d, want 1/1", r.EngineReleases, r.ContextReleases)
	}
}

func TestRunnerClose(t *testing.T) {
	r := installRuntime(t)

	runner, err := NewRunner(RunnerConfig{Engine: "cpu.so", Log: quietLog()})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	if err := runner.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if r.EngineReleases != 1 || r.ContextReleases != 1 {
		t.Errorf("releases = %d/%d, want 1/1", r.EngineReleases, r.ContextReleases)
	}
	if err := runner.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if r.EngineReleases != 1 || r.ContextReleases != 1 {
		t.Errorf("releases after second close = %d/%d", r.EngineReleases, r.ContextReleases)
	}
}

func TestWithCanceledContext(t *testing.T) {
	installRuntime(t)

	runner, err := NewRunner(RunnerConfig{Log: quietLog()})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	t.Cleanup(func() { _ = runner.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err = runner.With(ctx, func(*deepviewrt.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("fn ran despite canceled context")
	}
}
