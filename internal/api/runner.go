package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/deepviewml/deepview-go/internal/logger"
	"github.com/deepviewml/deepview-go/pkg/deepviewrt"
)

const envModelsDir = "DVRT_MODELS_DIR"

// RunnerConfig configures the runtime objects a Runner owns.
type RunnerConfig struct {
	// Library is the runtime shared library. Empty defers to
	// $DEEPVIEWRT_LIBRARY or an already bound runtime.
	Library string
	// Engine is an optional engine plugin to load.
	Engine string
	// Model is a model path or name to load at startup. Empty starts
	// without a model.
	Model string
	// ModelsDir is searched when Model (or a load request) is a bare
	// name. Empty falls back to $DVRT_MODELS_DIR.
	ModelsDir string
	// MemorySize and CacheSize are the context's byte budgets; zero lets
	// the runtime size its arenas dynamically.
	MemorySize int
	CacheSize  int
	Log        logger.Logger
}

// Runner owns one engine and one execution context on behalf of the
// HTTP handlers. The context is single-goroutine; every use goes
// through the runner's lock.
type Runner struct {
	mu        sync.Mutex
	cfg       RunnerConfig
	log       logger.Logger
	engine    *deepviewrt.Engine
	rtctx     *deepviewrt.Context
	modelPath string
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Log == nil {
		cfg.Log = logger.Default()
	}
	if cfg.Library != "" {
		if err := deepviewrt.LoadRuntime(cfg.Library); err != nil {
			return nil, err
		}
	}
	var engine *deepviewrt.Engine
	if cfg.Engine != "" {
		e, err := deepviewrt.NewEngine(cfg.Engine)
		if err != nil {
			return nil, fmt.Errorf("engine %q: %w", cfg.Engine, err)
		}
		engine = e
	}
	rtctx, err := deepviewrt.NewContext(engine, cfg.MemorySize, cfg.CacheSize)
	if err != nil {
		if engine != nil {
			_ = engine.Close()
		}
		return nil, err
	}
	r := &Runner{
		cfg:    cfg,
		log:    cfg.Log,
		engine: engine,
		rtctx:  rtctx,
	}
	if cfg.Model != "" {
		if err := r.LoadModel(cfg.Model); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

// With runs fn with the execution context while holding the runner's
// lock. fn must not retain the context or anything borrowed from it.
func (r *Runner) With(ctx context.Context, fn func(*deepviewrt.Context) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(r.rtctx)
}

// LoadModel resolves model against the configured models directory and
// loads it, replacing any model loaded before.
func (r *Runner) LoadModel(model string) error {
	path, err := r.resolveModelPath(model)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rtctx.LoadModelFile(path); err != nil {
		return err
	}
	r.modelPath = path
	r.log.Info("model loaded", "path", path)
	return nil
}

func (r *Runner) UnloadModel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rtctx.UnloadModel(); err != nil {
		return err
	}
	if r.modelPath != "" {
		r.log.Info("model unloaded", "path", r.modelPath)
		r.modelPath = ""
	}
	return nil
}

// ModelPath reports the path of the currently loaded model, or "".
func (r *Runner) ModelPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modelPath
}

func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	if r.rtctx != nil {
		errs = append(errs, r.rtctx.Close())
	}
	if r.engine != nil {
		errs = append(errs, r.engine.Close())
	}
	return errors.Join(errs...)
}

func (r *Runner) resolveModelPath(model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", badInputf("model is required")
	}
	if looksLikePath(model) {
		return filepath.Clean(model), nil
	}
	dir := r.modelsDir()
	if dir == "" {
		return "", badInputf("models directory is required to resolve model %q", model)
	}
	if resolved := resolveInDir(dir, model); resolved != "" {
		return resolved, nil
	}
	return "", badInputf("model %q not found in %s", model, dir)
}

func (r *Runner) modelsDir() string {
	if dir := strings.TrimSpace(r.cfg.ModelsDir); dir != "" {
		return dir
	}
	return strings.TrimSpace(os.Getenv(envModelsDir))
}

func looksLikePath(v string) bool {
	if strings.Contains(v, string(filepath.Separator)) {
		return true
	}
	return strings.HasSuffix(strings.ToLower(v), ".rtm")
}

func resolveInDir(dir, name string) string {
	if dir == "" {
		return ""
	}
	cand := filepath.Join(dir, name)
	if fileExists(cand) {
		return cand
	}
	if !strings.HasSuffix(strings.ToLower(name), ".rtm") {
		cand = filepath.Join(dir, name+".rtm")
		if fileExists(cand) {
			return cand
		}
	}
	return ""
}

// DiscoverModels lists the .rtm files in dir, sorted by name.
func DiscoverModels(dir string) ([]string, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	models := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".rtm") {
			continue
		}
		models = append(models, filepath.Join(dir, name))
	}
	return models, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
