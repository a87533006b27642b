package main

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"github.com/x448/float16"

	"github.com/deepviewml/deepview-go/pkg/deepviewrt"
)

type runOutput struct {
	Name     string  `json:"name"`
	Datatype string  `json:"datatype"`
	Shape    []int32 `json:"shape"`
	Data     any     `json:"data"`
}

type runReport struct {
	Model     string      `json:"model"`
	Runs      int64       `json:"runs"`
	ElapsedMS float64     `json:"elapsed_ms"`
	Outputs   []runOutput `json:"outputs"`
}

func runCmd() *cli.Command {
	var (
		saveDir string
		warmup  int64
		runs    int64
		asJSON  bool
	)

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags, loggingFlags()...)
	flags = append(flags,
		&cli.StringSliceFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "input tensor as layer=file.raw (little-endian, repeatable)",
		},
		&cli.StringFlag{
			Name:        "save",
			Usage:       "directory to save output tensors as .raw files",
			Destination: &saveDir,
		},
		&cli.Int64Flag{
			Name:        "warmup",
			Usage:       "number of warmup runs",
			Value:       0,
			Destination: &warmup,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of timed runs",
			Value:       1,
			Destination: &runs,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "render outputs as JSON",
			Destination: &asJSON,
		},
	)

	return &cli.Command{
		Name:      "run",
		Usage:     "Run a model and print or save its outputs",
		ArgsUsage: "[model]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			applyRuntimeConfig(c, LoadConfig())
			log := newLogger()

			if runs < 1 {
				return cli.Exit("error: --runs must be at least 1", 1)
			}

			path, err := resolveModelPath(modelPath, c.Args().First(), modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve model: %v", err), 1)
			}

			engine, rtctx, err := openContext()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer closeContext(engine, rtctx)

			log.Debug("loading model", "path", path)
			loadStart := time.Now()
			if err := rtctx.LoadModelFile(path); err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}
			log.Debug("model loaded", "path", path, "elapsed", time.Since(loadStart).Round(time.Millisecond))

			m, err := rtctx.Model()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			for _, spec := range c.StringSlice("input") {
				layer, file, err := parseInputSpec(spec)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				if err := stageInputFile(rtctx, m, layer, file); err != nil {
					return cli.Exit(fmt.Sprintf("error: input %q: %v", layer, err), 1)
				}
			}

			for i := int64(0); i < warmup; i++ {
				if err := rtctx.Run(); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run: %v", err), 1)
				}
			}

			start := time.Now()
			for i := int64(0); i < runs; i++ {
				if err := rtctx.Run(); err != nil {
					return cli.Exit(fmt.Sprintf("error: run: %v", err), 1)
				}
			}
			elapsed := time.Since(start)

			outputs, err := collectOutputs(rtctx, m, saveDir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			report := runReport{
				Model:     path,
				Runs:      runs,
				ElapsedMS: float64(elapsed.Microseconds()) / 1000,
				Outputs:   outputs,
			}
			if asJSON {
				out, err := gojson.MarshalIndent(report, "", "  ")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				fmt.Println(string(out))
				return nil
			}
			printRunReport(report, saveDir)
			return nil
		},
	}
}

func parseInputSpec(spec string) (layer, file string, err error) {
	layer, file, ok := strings.Cut(spec, "=")
	layer = strings.TrimSpace(layer)
	file = strings.TrimSpace(file)
	if !ok || layer == "" || file == "" {
		return "", "", fmt.Errorf("invalid input spec %q, want layer=file", spec)
	}
	return layer, file, nil
}

// stageInputFile copies the file's bytes into the named tensor through a
// writable view. The file must hold exactly the tensor's little-endian
// representation.
func stageInputFile(rtctx *deepviewrt.Context, m *deepviewrt.Model, layer, file string) error {
	if _, err := m.LayerLookup(layer); err != nil {
		return err
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	t, err := rtctx.Tensor(layer)
	if err != nil {
		return err
	}
	view, err := t.MapReadWrite()
	if err != nil {
		return err
	}
	if err := stageBytes(view.Data(), raw); err != nil {
		_ = view.Close()
		return err
	}
	return view.Close()
}

func collectOutputs(rtctx *deepviewrt.Context, m *deepviewrt.Model, saveDir string) ([]runOutput, error) {
	indices, err := m.Outputs()
	if err != nil {
		return nil, err
	}
	if saveDir != "" {
		if err := os.MkdirAll(saveDir, 0o755); err != nil {
			return nil, err
		}
	}

	outputs := make([]runOutput, 0, len(indices))
	for _, index := range indices {
		name, err := m.LayerName(index)
		if err != nil {
			return nil, err
		}
		t, err := rtctx.TensorIndex(index)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		tt, err := t.Type()
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		shape, err := t.Shape()
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		out := runOutput{
			Name:     name,
			Datatype: tt.String(),
			Shape:    shape[:t.Dims()],
		}

		view, err := t.MapRead()
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		if saveDir != "" {
			raw, err := viewBytes(view.Data())
			if err != nil {
				_ = view.Close()
				return nil, fmt.Errorf("output %q: %w", name, err)
			}
			target := filepath.Join(saveDir, name+".raw")
			if err := os.WriteFile(target, raw, 0o644); err != nil {
				_ = view.Close()
				return nil, err
			}
			out.Data = target
		} else {
			// Marshal while the view is mapped; the slices go away on Close.
			data, err := gojson.Marshal(valuesAny(view.Data()))
			if err != nil {
				_ = view.Close()
				return nil, fmt.Errorf("output %q: %w", name, err)
			}
			out.Data = gojson.RawMessage(data)
		}
		if err := view.Close(); err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func printRunReport(report runReport, saveDir string) {
	for _, out := range report.Outputs {
		if saveDir != "" {
			fmt.Printf("%-24s %-9s %-12s -> %s\n", out.Name, out.Datatype, formatShape(out.Shape), out.Data)
			continue
		}
		fmt.Printf("%-24s %-9s %-12s %s\n", out.Name, out.Datatype, formatShape(out.Shape), out.Data)
	}
	per := time.Duration(report.ElapsedMS * float64(time.Millisecond))
	if report.Runs > 0 {
		per /= time.Duration(report.Runs)
	}
	fmt.Printf("\nran %d time(s) in %.3f ms (%s each)\n", report.Runs, report.ElapsedMS, per.Round(time.Microsecond))
}

// stageBytes decodes raw little-endian bytes into the mapped elements.
func stageBytes(d deepviewrt.MappedData, raw []byte) error {
	switch dst := d.(type) {
	case deepviewrt.RawData:
		if len(raw) != len(dst) {
			return sizeErr(len(raw), len(dst))
		}
		copy(dst, raw)
	case deepviewrt.Uint8Data:
		if len(raw) != len(dst) {
			return sizeErr(len(raw), len(dst))
		}
		copy(dst, raw)
	case deepviewrt.Int8Data:
		if len(raw) != len(dst) {
			return sizeErr(len(raw), len(dst))
		}
		for i, b := range raw {
			dst[i] = int8(b)
		}
	case deepviewrt.Int16Data:
		if len(raw) != len(dst)*2 {
			return sizeErr(len(raw), len(dst)*2)
		}
		for i := range dst {
			dst[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case deepviewrt.Uint16Data:
		if len(raw) != len(dst)*2 {
			return sizeErr(len(raw), len(dst)*2)
		}
		for i := range dst {
			dst[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}
	case deepviewrt.Int32Data:
		if len(raw) != len(dst)*4 {
			return sizeErr(len(raw), len(dst)*4)
		}
		for i := range dst {
			dst[i] = int32(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case deepviewrt.Uint32Data:
		if len(raw) != len(dst)*4 {
			return sizeErr(len(raw), len(dst)*4)
		}
		for i := range dst {
			dst[i] = binary.LittleEndian.Uint32(raw[i*4:])
		}
	case deepviewrt.Int64Data:
		if len(raw) != len(dst)*8 {
			return sizeErr(len(raw), len(dst)*8)
		}
		for i := range dst {
			dst[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case deepviewrt.Uint64Data:
		if len(raw) != len(dst)*8 {
			return sizeErr(len(raw), len(dst)*8)
		}
		for i := range dst {
			dst[i] = binary.LittleEndian.Uint64(raw[i*8:])
		}
	case deepviewrt.Float16Data:
		if len(raw) != len(dst)*2 {
			return sizeErr(len(raw), len(dst)*2)
		}
		for i := range dst {
			dst[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	case deepviewrt.Float32Data:
		if len(raw) != len(dst)*4 {
			return sizeErr(len(raw), len(dst)*4)
		}
		for i := range dst {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case deepviewrt.Float64Data:
		if len(raw) != len(dst)*8 {
			return sizeErr(len(raw), len(dst)*8)
		}
		for i := range dst {
			dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case deepviewrt.StringData:
		return errors.New("string tensors cannot be staged from raw bytes")
	default:
		return fmt.Errorf("unsupported tensor data %T", d)
	}
	return nil
}

// viewBytes encodes the mapped elements as little-endian bytes.
func viewBytes(d deepviewrt.MappedData) ([]byte, error) {
	switch src := d.(type) {
	case deepviewrt.RawData:
		return append([]byte(nil), src...), nil
	case deepviewrt.StringData:
		return []byte(src), nil
	case deepviewrt.Uint8Data:
		return append([]byte(nil), src...), nil
	case deepviewrt.Int8Data:
		out := make([]byte, len(src))
		for i, v := range src {
			out[i] = byte(v)
		}
		return out, nil
	case deepviewrt.Int16Data:
		out := make([]byte, 0, len(src)*2)
		for _, v := range src {
			out = binary.LittleEndian.AppendUint16(out, uint16(v))
		}
		return out, nil
	case deepviewrt.Uint16Data:
		out := make([]byte, 0, len(src)*2)
		for _, v := range src {
			out = binary.LittleEndian.AppendUint16(out, v)
		}
		return out, nil
	case deepviewrt.Int32Data:
		out := make([]byte, 0, len(src)*4)
		for _, v := range src {
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		}
		return out, nil
	case deepviewrt.Uint32Data:
		out := make([]byte, 0, len(src)*4)
		for _, v := range src {
			out = binary.LittleEndian.AppendUint32(out, v)
		}
		return out, nil
	case deepviewrt.Int64Data:
		out := make([]byte, 0, len(src)*8)
		for _, v := range src {
			out = binary.LittleEndian.AppendUint64(out, uint64(v))
		}
		return out, nil
	case deepviewrt.Uint64Data:
		out := make([]byte, 0, len(src)*8)
		for _, v := range src {
			out = binary.LittleEndian.AppendUint64(out, v)
		}
		return out, nil
	case deepviewrt.Float16Data:
		out := make([]byte, 0, len(src)*2)
		for _, v := range src {
			out = binary.LittleEndian.AppendUint16(out, v.Bits())
		}
		return out, nil
	case deepviewrt.Float32Data:
		out := make([]byte, 0, len(src)*4)
		for _, v := range src {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
		return out, nil
	case deepviewrt.Float64Data:
		out := make([]byte, 0, len(src)*8)
		for _, v := range src {
			out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported tensor data %T", d)
	}
}

// valuesAny adapts mapped elements for JSON rendering. The returned
// slices alias the view; marshal before closing it.
func valuesAny(d deepviewrt.MappedData) any {
	switch v := d.(type) {
	case deepviewrt.RawData:
		return []byte(v)
	case deepviewrt.StringData:
		return string(v)
	case deepviewrt.Int8Data:
		return []int8(v)
	case deepviewrt.Uint8Data:
		out := make([]int, len(v))
		for i, b := range v {
			out[i] = int(b)
		}
		return out
	case deepviewrt.Int16Data:
		return []int16(v)
	case deepviewrt.Uint16Data:
		return []uint16(v)
	case deepviewrt.Int32Data:
		return []int32(v)
	case deepviewrt.Uint32Data:
		return []uint32(v)
	case deepviewrt.Int64Data:
		return []int64(v)
	case deepviewrt.Uint64Data:
		return []uint64(v)
	case deepviewrt.Float16Data:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = f.Float32()
		}
		return out
	case deepviewrt.Float32Data:
		return []float32(v)
	case deepviewrt.Float64Data:
		return []float64(v)
	default:
		return nil
	}
}

func sizeErr(got, want int) error {
	return fmt.Errorf("got %d bytes, want %d", got, want)
}
