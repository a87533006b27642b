package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/deepviewml/deepview-go/pkg/deepviewrt"
)

type modelReport struct {
	Name       string   `json:"name"`
	File       string   `json:"file"`
	FileSize   int64    `json:"file_size"`
	LayerCount int      `json:"layer_count"`
	Labels     []string `json:"labels,omitempty"`
	Inputs     []int    `json:"inputs"`
	Outputs    []int    `json:"outputs"`
}

type layerReport struct {
	Index    int       `json:"index"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Datatype string    `json:"datatype"`
	Shape    []int32   `json:"shape"`
	Axis     *int      `json:"axis,omitempty"`
	Scales   []float32 `json:"scales,omitempty"`
	Zeros    []int32   `json:"zeros,omitempty"`
}

type inspectReport struct {
	Model  modelReport   `json:"model"`
	Layers []layerReport `json:"layers,omitempty"`
}

func inspectCmd() *cli.Command {
	var (
		showLayers bool
		showQuant  bool
		asJSON     bool
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect the contents of an .rtm model",
		ArgsUsage: "[model]",
		Flags: append(commonModelFlags(),
			&cli.BoolFlag{Name: "layers", Usage: "list the layer table", Destination: &showLayers},
			&cli.BoolFlag{Name: "quant", Usage: "include quantization parameters in the layer table", Destination: &showQuant},
			&cli.BoolFlag{Name: "json", Usage: "render as JSON", Destination: &asJSON},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyRuntimeConfig(c, LoadConfig())

			path, err := resolveModelPath(modelPath, c.Args().First(), modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			stat, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat model path %q: %v", path, err), 1)
			}
			if stat.IsDir() {
				return cli.Exit(fmt.Sprintf("error: %q is a directory", path), 1)
			}

			engine, rtctx, err := openContext()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer closeContext(engine, rtctx)

			if err := rtctx.LoadModelFile(path); err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}

			report, err := buildReport(rtctx, path, stat.Size(), showLayers || asJSON)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			if asJSON {
				out, err := gojson.MarshalIndent(report, "", "  ")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				fmt.Println(string(out))
				return nil
			}

			printReport(report, showLayers, showQuant)
			return nil
		},
	}
}

func buildReport(rtctx *deepviewrt.Context, path string, size int64, withLayers bool) (inspectReport, error) {
	m, err := rtctx.Model()
	if err != nil {
		return inspectReport{}, err
	}

	name, err := m.Name()
	if err != nil {
		return inspectReport{}, err
	}
	layerCount, err := m.LayerCount()
	if err != nil {
		return inspectReport{}, err
	}
	inputs, err := m.Inputs()
	if err != nil {
		return inspectReport{}, err
	}
	outputs, err := m.Outputs()
	if err != nil {
		return inspectReport{}, err
	}

	report := inspectReport{Model: modelReport{
		Name:       name,
		File:       filepath.Base(path),
		FileSize:   size,
		LayerCount: layerCount,
		Inputs:     inputs,
		Outputs:    outputs,
	}}

	// Models without labels report an error, not an empty list.
	if n, err := m.LabelCount(); err == nil {
		for i := 0; i < n; i++ {
			label, err := m.Label(i)
			if err != nil {
				return inspectReport{}, err
			}
			report.Model.Labels = append(report.Model.Labels, label)
		}
	}

	if !withLayers {
		return report, nil
	}
	for i := 0; i < layerCount; i++ {
		lr, err := buildLayerReport(m, i)
		if err != nil {
			return inspectReport{}, err
		}
		report.Layers = append(report.Layers, lr)
	}
	return report, nil
}

func buildLayerReport(m *deepviewrt.Model, index int) (layerReport, error) {
	name, err := m.LayerName(index)
	if err != nil {
		return layerReport{}, err
	}
	op, err := m.LayerType(index)
	if err != nil {
		return layerReport{}, err
	}
	datatype, err := m.LayerDatatype(index)
	if err != nil {
		return layerReport{}, err
	}
	shape, err := m.LayerShape(index)
	if err != nil {
		return layerReport{}, err
	}
	lr := layerReport{
		Index:    index,
		Name:     name,
		Type:     op,
		Datatype: datatype,
		Shape:    shape,
	}
	// Quantization parameters exist only on quantized layers.
	if scales, err := m.LayerScales(index); err == nil {
		lr.Scales = scales
		if zeros, err := m.LayerZeros(index); err == nil {
			lr.Zeros = zeros
		}
		if axis, err := m.LayerAxis(index); err == nil {
			lr.Axis = &axis
		}
	}
	return lr, nil
}

func printReport(report inspectReport, showLayers, showQuant bool) {
	fmt.Printf("Model: %s\n", report.Model.Name)
	fmt.Printf("File:  %s (%s)\n", report.Model.File, formatBytes(uint64(report.Model.FileSize)))

	section("Summary")
	rowInt("layers", report.Model.LayerCount)
	rowInt("labels", len(report.Model.Labels))
	row("inputs", formatIndices(report.Model.Inputs))
	row("outputs", formatIndices(report.Model.Outputs))

	if !showLayers {
		return
	}
	section("Layers")
	for _, lr := range report.Layers {
		line := fmt.Sprintf("%-4d %-24s %-12s %-9s %s",
			lr.Index, lr.Name, lr.Type, lr.Datatype, formatShape(lr.Shape))
		if showQuant && len(lr.Scales) > 0 {
			axis := -1
			if lr.Axis != nil {
				axis = *lr.Axis
			}
			line += fmt.Sprintf("  quant axis=%d scales=%v zeros=%v", axis, lr.Scales, lr.Zeros)
		}
		fmt.Println(line)
	}
}

func section(title string) {
	line := strings.Repeat("-", len(title)+8)
	fmt.Printf("\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("%-16s %s\n", label+":", value)
}

func rowInt(label string, v int) {
	if v == 0 {
		return
	}
	row(label, fmt.Sprintf("%d", v))
}

func formatIndices(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	parts := make([]string, len(indices))
	for i, v := range indices {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

func formatShape(shape []int32) string {
	if len(shape) == 0 {
		return "[]"
	}
	parts := make([]string, len(shape))
	for i, v := range shape {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
