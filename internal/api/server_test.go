package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/deepviewml/deepview-go/internal/logger"
	"github.com/deepviewml/deepview-go/internal/rttest"
	"github.com/deepviewml/deepview-go/pkg/deepviewrt"
)

// The stub runtime rebinds process-global ABI functions, so none of
// these tests run in parallel.

func installRuntime(t *testing.T) *rttest.Runtime {
	t.Helper()
	r := rttest.New()
	r.RegisterPlugin("cpu.so", rttest.Plugin{Name: "cpu", Version: "2.4.44"})
	t.Cleanup(r.Install())
	return r
}

func fixtureModel() *rttest.Model {
	return &rttest.Model{
		Name:    "mobilenet-ssd",
		Labels:  []string{"background", "cat", "dog"},
		Inputs:  []uint32{0},
		Outputs: []uint32{2},
		Layers: []rttest.Layer{
			{Name: "input", Op: "input", TypeID: 11, Shape: []int32{1, 4}, Data: make([]byte, 16)},
			{
				Name: "conv1", Op: "conv", TypeID: 2, Shape: []int32{2, 4},
				Axis: 0, Zeros: []int32{0, 16}, Scales: []float32{0.5, 0.25},
				Data: []byte{0, 1, 2, 3, 0x10, 0x20, 0x30, 0x40},
			},
			{Name: "output", Op: "softmax", TypeID: 11, Shape: []int32{1, 4}, Data: make([]byte, 16)},
			{Name: "blob", Op: "const", TypeID: 0, Shape: []int32{5}, Data: []byte("hello")},
		},
	}
}

func fixtureBytes(t *testing.T) []byte {
	t.Helper()
	data, err := fixtureModel().Encode()
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return data
}

func newTestServer(t *testing.T) (*echo.Echo, *Runner, *rttest.Runtime) {
	t.Helper()
	r := installRuntime(t)
	runner, err := NewRunner(RunnerConfig{
		Engine: "cpu.so",
		Log:    logger.Text(io.Discard, slog.LevelError),
	})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	t.Cleanup(func() {
		if err := runner.Close(); err != nil {
			t.Fatalf("close runner: %v", err)
		}
	})
	e := echo.New()
	NewServer(runner, logger.Text(io.Discard, slog.LevelError)).Register(e)
	return e, runner, r
}

func loadFixture(t *testing.T, runner *Runner) {
	t.Helper()
	data := fixtureBytes(t)
	err := runner.With(context.Background(), func(rt *deepviewrt.Context) error {
		return rt.LoadModel(data)
	})
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (body=%s)", err, rec.Body.String())
	}
	return env
}

func TestHealth(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var health HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if health.Engine != "cpu" {
		t.Errorf("engine = %q, want cpu", health.Engine)
	}
	if health.Version == "" {
		t.Error("expected a version")
	}
	if health.Model != "" {
		t.Errorf("model = %q, want empty before load", health.Model)
	}
}

func TestModelEndpointNoModel(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodGet, "/v1/model", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Code != "not_found_error" {
		t.Errorf("code = %q, want not_found_error", env.Error.Code)
	}
	if !strings.Contains(env.Error.Message, "no model loaded") {
		t.Errorf("unexpected message: %q", env.Error.Message)
	}
	if env.Error.RequestID == "" {
		t.Error("expected a request id in the envelope")
	}
}

func TestModelEndpoint(t *testing.T) {
	e, runner, _ := newTestServer(t)
	loadFixture(t, runner)

	rec := doJSON(t, e, http.MethodGet, "/v1/model", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var info ModelInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode model info: %v", err)
	}
	if info.Name != "mobilenet-ssd" {
		t.Errorf("name = %q, want mobilenet-ssd", info.Name)
	}
	if info.LayerCount != 4 {
		t.Errorf("layer_count = %d, want 4", info.LayerCount)
	}
	if !slices.Equal(info.Labels, []string{"background", "cat", "dog"}) {
		t.Errorf("labels = %v", info.Labels)
	}
	if !slices.Equal(info.Inputs, []int{0}) || !slices.Equal(info.Outputs, []int{2}) {
		t.Errorf("io = %v / %v, want [0] / [2]", info.Inputs, info.Outputs)
	}
}

func TestLayersEndpoint(t *testing.T) {
	e, runner, _ := newTestServer(t)
	loadFixture(t, runner)

	rec := doJSON(t, e, http.MethodGet, "/v1/model/layers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp LayersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode layers: %v", err)
	}
	if len(resp.Layers) != 4 {
		t.Fatalf("got %d layers, want 4", len(resp.Layers))
	}

	conv := resp.Layers[1]
	if conv.Name != "conv1" || conv.Type != "conv" || conv.Datatype != "int8" {
		t.Errorf("conv1 metadata = %+v", conv)
	}
	if !slices.Equal(conv.Shape, []int32{2, 4}) {
		t.Errorf("conv1 shape = %v, want [2 4]", conv.Shape)
	}
	if !slices.Equal(conv.Scales, []float32{0.5, 0.25}) {
		t.Errorf("conv1 scales = %v", conv.Scales)
	}
	if !slices.Equal(conv.Zeros, []int32{0, 16}) {
		t.Errorf("conv1 zeros = %v", conv.Zeros)
	}
	if conv.Axis == nil || *conv.Axis != 0 {
		t.Errorf("conv1 axis = %v, want 0", conv.Axis)
	}

	input := resp.Layers[0]
	if input.Scales != nil || input.Zeros != nil || input.Axis != nil {
		t.Errorf("input layer should carry no quant params: %+v", input)
	}
}

func TestLayerByName(t *testing.T) {
	e, runner, _ := newTestServer(t)
	loadFixture(t, runner)

	rec := doJSON(t, e, http.MethodGet, "/v1/model/layers/conv1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var li LayerInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &li); err != nil {
		t.Fatalf("decode layer: %v", err)
	}
	if li.Index != 1 || li.Name != "conv1" {
		t.Errorf("layer = %+v, want index 1 conv1", li)
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/model/layers/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing layer status: got %d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Code != "not_found_error" || !strings.Contains(env.Error.Message, "missing") {
		t.Errorf("envelope = %+v", env.Error)
	}
}

func TestTensorEndpoint(t *testing.T) {
	e, runner, _ := newTestServer(t)
	loadFixture(t, runner)

	rec := doJSON(t, e, http.MethodGet, "/v1/tensors/conv1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Name     string    `json:"name"`
		Datatype string    `json:"datatype"`
		Shape    []int32   `json:"shape"`
		Size     int       `json:"size"`
		Data     []float64 `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Name != "conv1" || payload.Datatype != "int8" || payload.Size != 8 {
		t.Errorf("payload = %+v", payload)
	}
	if !slices.Equal(payload.Shape, []int32{2, 4}) {
		t.Errorf("shape = %v, want [2 4]", payload.Shape)
	}
	want := []float64{0, 1, 2, 3, 16, 32, 48, 64}
	if !slices.Equal(payload.Data, want) {
		t.Errorf("data = %v, want %v", payload.Data, want)
	}
}

func TestTensorEndpointRawBase64(t *testing.T) {
	e, runner, _ := newTestServer(t)
	loadFixture(t, runner)

	rec := doJSON(t, e, http.MethodGet, "/v1/tensors/blob", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Datatype string `json:"datatype"`
		Data     []byte `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Datatype != "raw" {
		t.Errorf("datatype = %q, want raw", payload.Datatype)
	}
	if string(payload.Data) != "hello" {
		t.Errorf("data = %q, want hello", payload.Data)
	}
	if !strings.Contains(rec.Body.String(), `"aGVsbG8="`) {
		t.Errorf("raw data should render as base64: %s", rec.Body.String())
	}
}

func TestTensorEndpointUnknown(t *testing.T) {
	e, runner, _ := newTestServer(t)
	loadFixture(t, runner)

	rec := doJSON(t, e, http.MethodGet, "/v1/tensors/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRunEndpoint(t *testing.T) {
	e, runner, r := newTestServer(t)
	loadFixture(t, runner)

	rec := doJSON(t, e, http.MethodPost, "/v1/run", `{"inputs":{"input":[0.5,1.5,-2,3]}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Outputs []struct {
			Name     string    `json:"name"`
			Datatype string    `json:"datatype"`
			Data     []float64 `json:"data"`
		} `json:"outputs"`
		ElapsedMS float64 `json:"elapsed_ms"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode run response: %v", err)
	}
	if len(resp.Outputs) != 1 {
		t.Fatalf("got %d outputs, want 1", len(resp.Outputs))
	}
	out := resp.Outputs[0]
	if out.Name != "output" || out.Datatype != "float32" {
		t.Errorf("output metadata = %+v", out)
	}
	if !slices.Equal(out.Data, []float64{0.5, 1.5, -2, 3}) {
		t.Errorf("output data = %v", out.Data)
	}
	if resp.ElapsedMS < 0 {
		t.Errorf("elapsed_ms = %v", resp.ElapsedMS)
	}
	if r.Runs != 1 {
		t.Errorf("runs = %d, want 1", r.Runs)
	}
	if r.MappedCount() != 0 {
		t.Errorf("%d tensors left mapped", r.MappedCount())
	}
}

func TestRunNoModel(t *testing.T) {
	e, _, _ := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/v1/run", `{"inputs":{"input":[1,2,3,4]}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRunBadBody(t *testing.T) {
	e, runner, _ := newTestServer(t)
	loadFixture(t, runner)

	for name, body := range map[string]string{
		"malformed":    `{"inputs":`,
		"empty inputs": `{"inputs":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, e, http.MethodPost, "/v1/run", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRunUnknownLayer(t *testing.T) {
	e, runner, _ := newTestServer(t)
	loadFixture(t, runner)

	rec := doJSON(t, e, http.MethodPost, "/v1/run", `{"inputs":{"bogus":[1]}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Code != "invalid_request_error" {
		t.Errorf("code = %q", env.Error.Code)
	}
	if !strings.Contains(env.Error.Message, "unknown input layer") {
		t.Errorf("message = %q", env.Error.Message)
	}
}

func TestRunLengthMismatch(t *testing.T) {
	e, runner, _ := newTestServer(t)
	loadFixture(t, runner)

	rec := doJSON(t, e, http.MethodPost, "/v1/run", `{"inputs":{"input":[1]}}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Code != "conflict_error" {
		t.Errorf("code = %q", env.Error.Code)
	}
	if !strings.Contains(env.Error.Message, "got 1 values, want 4") {
		t.Errorf("message = %q", env.Error.Message)
	}
}

func TestRunNonNumericLayer(t *testing.T) {
	e, runner, r := newTestServer(t)
	loadFixture(t, runner)

	rec := doJSON(t, e, http.MethodPost, "/v1/run", `{"inputs":{"blob":[1,2,3,4,5]}}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if !strings.Contains(env.Error.Message, "does not accept numeric input") {
		t.Errorf("message = %q", env.Error.Message)
	}
	if r.MappedCount() != 0 {
		t.Errorf("%d tensors left mapped after rejected input", r.MappedCount())
	}
}

func TestLoadUnloadEndpoints(t *testing.T) {
	e, runner, _ := newTestServer(t)

	path := filepath.Join(t.TempDir(), "fixture.rtm")
	if err := os.WriteFile(path, fixtureBytes(t), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	body, err := json.Marshal(LoadModelRequest{Path: path})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	rec := doJSON(t, e, http.MethodPost, "/v1/model/load", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("load status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var info ModelInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode model info: %v", err)
	}
	if info.Name != "mobilenet-ssd" {
		t.Errorf("name = %q, want mobilenet-ssd", info.Name)
	}
	if runner.ModelPath() != path {
		t.Errorf("model path = %q, want %q", runner.ModelPath(), path)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/model/unload", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unload status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"unloaded"`) {
		t.Errorf("unload body = %s", rec.Body.String())
	}
	if runner.ModelPath() != "" {
		t.Errorf("model path = %q after unload", runner.ModelPath())
	}

	rec = doJSON(t, e, http.MethodGet, "/v1/model", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after unload, got %d", rec.Code)
	}
}

func TestLoadModelByName(t *testing.T) {
	e, _, _ := newTestServer(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pico.rtm"), fixtureBytes(t), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	t.Setenv(envModelsDir, dir)

	rec := doJSON(t, e, http.MethodPost, "/v1/model/load", `{"path":"pico"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("load status: got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLoadModelErrors(t *testing.T) {
	e, _, _ := newTestServer(t)

	t.Run("missing path", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, "/v1/model/load", `{}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
		}
	})

	t.Run("no such file", func(t *testing.T) {
		rec := doJSON(t, e, http.MethodPost, "/v1/model/load", `{"path":"/does/not/exist.rtm"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
		}
	})

	t.Run("corrupt model", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.rtm")
		if err := os.WriteFile(path, []byte("DVTMgarbage"), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
		body, _ := json.Marshal(LoadModelRequest{Path: path})
		rec := doJSON(t, e, http.MethodPost, "/v1/model/load", string(body))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
		}
		env := decodeEnvelope(t, rec)
		if env.Error.Code != "model invalid" {
			t.Errorf("code = %q, want model invalid", env.Error.Code)
		}
	})
}

func TestRequestIDEcho(t *testing.T) {
	e, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/model", nil)
	req.Header.Set(headerRequestID, "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if got := rec.Header().Get(headerRequestID); got != "req-123" {
		t.Errorf("response header id = %q, want req-123", got)
	}
	env := decodeEnvelope(t, rec)
	if env.Error.RequestID != "req-123" {
		t.Errorf("envelope id = %q, want req-123", env.Error.RequestID)
	}
}
