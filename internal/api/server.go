package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/deepviewml/deepview-go/internal/logger"
	"github.com/deepviewml/deepview-go/internal/version"
	"github.com/deepviewml/deepview-go/pkg/deepviewrt"
)

var timeNow = time.Now

// Server exposes a loaded model over HTTP: metadata, tensor contents,
// and synchronous runs.
type Server struct {
	runner *Runner
	log    logger.Logger
	clock  func() time.Time
}

func NewServer(runner *Runner, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{
		runner: runner,
		log:    log,
		clock:  timeNow,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.Use(requestID)

	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/model", s.handleModel)
	e.GET("/v1/model/layers", s.handleLayers)
	e.GET("/v1/model/layers/:name", s.handleLayer)
	e.GET("/v1/tensors/:name", s.handleTensor)
	e.POST("/v1/run", s.handleRun)
	e.POST("/v1/model/load", s.handleLoadModel)
	e.POST("/v1/model/unload", s.handleUnloadModel)
}

func (s *Server) handleHealth(c *echo.Context) error {
	health := HealthResponse{
		Status:  "ok",
		Version: version.String(),
		Model:   s.runner.ModelPath(),
	}
	// Engine name is best effort; a health probe must not fail on it.
	_ = s.runner.With(c.Request().Context(), func(rt *deepviewrt.Context) error {
		engine, err := rt.Engine()
		if err != nil {
			return err
		}
		name, err := engine.Name()
		if err != nil {
			return err
		}
		health.Engine = name
		return nil
	})
	return writeJSON(c, http.StatusOK, health)
}

func (s *Server) handleModel(c *echo.Context) error {
	var info ModelInfo
	err := s.runner.With(c.Request().Context(), func(rt *deepviewrt.Context) error {
		m, err := rt.Model()
		if err != nil {
			return err
		}
		info, err = modelInfo(m)
		return err
	})
	if err != nil {
		return writeRuntimeError(c, err)
	}
	return writeJSON(c, http.StatusOK, info)
}

func (s *Server) handleLayers(c *echo.Context) error {
	var layers []LayerInfo
	err := s.runner.With(c.Request().Context(), func(rt *deepviewrt.Context) error {
		m, err := rt.Model()
		if err != nil {
			return err
		}
		count, err := m.LayerCount()
		if err != nil {
			return err
		}
		layers = make([]LayerInfo, 0, count)
		for i := 0; i < count; i++ {
			li, err := layerInfo(m, i)
			if err != nil {
				return err
			}
			layers = append(layers, li)
		}
		return nil
	})
	if err != nil {
		return writeRuntimeError(c, err)
	}
	return writeJSON(c, http.StatusOK, LayersResponse{Layers: layers})
}

func (s *Server) handleLayer(c *echo.Context) error {
	name := c.Param("name")
	var li LayerInfo
	err := s.runner.With(c.Request().Context(), func(rt *deepviewrt.Context) error {
		m, err := rt.Model()
		if err != nil {
			return err
		}
		index, err := m.LayerLookup(name)
		if err != nil {
			return err
		}
		li, err = layerInfo(m, index)
		return err
	})
	if err != nil {
		return writeRuntimeError(c, err)
	}
	return writeJSON(c, http.StatusOK, li)
}

func (s *Server) handleTensor(c *echo.Context) error {
	name := c.Param("name")
	var payload TensorPayload
	err := s.runner.With(c.Request().Context(), func(rt *deepviewrt.Context) error {
		m, err := rt.Model()
		if err != nil {
			return err
		}
		if _, err := m.LayerLookup(name); err != nil {
			return err
		}
		t, err := rt.Tensor(name)
		if err != nil {
			return err
		}
		payload, err = tensorPayload(name, t)
		return err
	})
	if err != nil {
		return writeRuntimeError(c, err)
	}
	return writeJSON(c, http.StatusOK, payload)
}

func (s *Server) handleRun(c *echo.Context) error {
	req, err := decodeJSON[RunRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Inputs) == 0 {
		return writeBadRequest(c, "inputs is required")
	}

	started := s.clock()
	var out RunResponse
	err = s.runner.With(c.Request().Context(), func(rt *deepviewrt.Context) error {
		m, err := rt.Model()
		if err != nil {
			return err
		}
		for name, values := range req.Inputs {
			if _, err := m.LayerLookup(name); err != nil {
				return badInputf("unknown input layer %q", name)
			}
			t, err := rt.Tensor(name)
			if err != nil {
				return err
			}
			if err := stageInput(t, values); err != nil {
				return fmt.Errorf("input %q: %w", name, err)
			}
		}
		if err := rt.Run(); err != nil {
			return err
		}
		outputs, err := m.Outputs()
		if err != nil {
			return err
		}
		out.Outputs = make([]TensorPayload, 0, len(outputs))
		for _, index := range outputs {
			name, err := m.LayerName(index)
			if err != nil {
				return err
			}
			t, err := rt.TensorIndex(index)
			if err != nil {
				return err
			}
			payload, err := tensorPayload(name, t)
			if err != nil {
				return err
			}
			out.Outputs = append(out.Outputs, payload)
		}
		return nil
	})
	if err != nil {
		return writeRuntimeError(c, err)
	}
	elapsed := s.clock().Sub(started)
	out.ElapsedMS = float64(elapsed.Microseconds()) / 1000
	s.log.Debug("run complete", "inputs", len(req.Inputs), "elapsed", elapsed)
	return writeJSON(c, http.StatusOK, out)
}

// stageInput writes values into the tensor through a writable view. The
// value count must match the tensor's element count exactly.
func stageInput(t *deepviewrt.Tensor, values []float64) error {
	if want := int(t.Size()); len(values) != want {
		return mismatchf("got %d values, want %d", len(values), want)
	}
	view, err := t.MapReadWrite()
	if err != nil {
		return err
	}
	if err := fillView(view.Data(), values); err != nil {
		_ = view.Close()
		return err
	}
	return view.Close()
}

func (s *Server) handleLoadModel(c *echo.Context) error {
	req, err := decodeJSON[LoadModelRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Path == "" {
		return writeBadRequest(c, "path is required")
	}
	if err := s.runner.LoadModel(req.Path); err != nil {
		return writeRuntimeError(c, err)
	}
	return s.handleModel(c)
}

func (s *Server) handleUnloadModel(c *echo.Context) error {
	if err := s.runner.UnloadModel(); err != nil {
		return writeRuntimeError(c, err)
	}
	return writeJSON(c, http.StatusOK, StatusResponse{Status: "unloaded"})
}
