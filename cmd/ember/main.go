// Package main provides the ember model compiler CLI.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/born-ml/ember/internal/analyze"
	"github.com/born-ml/ember/internal/compile"
	"github.com/born-ml/ember/internal/model"
	"github.com/born-ml/ember/internal/parallel"
	"github.com/born-ml/ember/internal/target"
	"github.com/born-ml/ember/internal/tensor"
	"github.com/born-ml/ember/internal/validate"
)

const version = "v0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "compile":
		handleCompile(os.Args[2:])
	case "inspect":
		handleInspect(os.Args[2:])
	case "validate":
		handleValidate(os.Args[2:])
	case "targets":
		handleTargets()
	case "version":
		fmt.Printf("ember model compiler %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "ember compiles trained model graphs to standalone C++ for embedded targets.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  ember compile  -model net.embr [-target cortex-m] [-opt 2] [-out dir]")
	fmt.Fprintln(os.Stderr, "  ember inspect  -model net.embr [-full]")
	fmt.Fprintln(os.Stderr, "  ember validate -model net.embr [-embedded]")
	fmt.Fprintln(os.Stderr, "  ember targets")
	fmt.Fprintln(os.Stderr, "  ember version")
}

func handleCompile(args []string) {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	modelPath := fs.String("model", "", "path to the .embr model (required)")
	targetName := fs.String("target", "generic", "target profile: "+strings.Join(target.Names(), ", "))
	opt := fs.Int("opt", 2, "optimization level 0..3")
	mode := fs.String("mode", "int8", "quantization mode: int8, uint8, int16, int32")
	asymmetric := fs.Bool("asymmetric", false, "use asymmetric quantization")
	noQuant := fs.Bool("no-quantize", false, "skip quantization and emit float32 kernels")
	calibPath := fs.String("calibration", "", "path to an .embr file whose tensors are calibration samples")
	outDir := fs.String("out", ".", "output directory")
	name := fs.String("name", "", "override the model name used for C identifiers")
	verbose := fs.Bool("v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	if *modelPath == "" {
		fmt.Fprintln(os.Stderr, "error: -model is required")
		fs.Usage()
		os.Exit(1)
	}

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	g, err := model.LoadFile(*modelPath)
	if err != nil {
		fatal(err)
	}

	cfg := compile.DefaultConfig()
	cfg.Target = *targetName
	cfg.OptimizationLevel = *opt
	cfg.Quantize = !*noQuant
	cfg.QuantizationMode = *mode
	cfg.Symmetric = !*asymmetric
	cfg.ModelName = *name
	cfg.Logger = logger

	var samples []*tensor.Tensor
	if *calibPath != "" {
		if samples, err = loadCalibration(*calibPath); err != nil {
			fatal(err)
		}
	}

	res, err := compile.Compile(g, cfg, samples)
	if err != nil {
		fatal(err)
	}

	base := *name
	if base == "" {
		base = g.Name
	}
	if base == "" {
		base = "model"
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatal(err)
	}
	stem := filepath.Join(*outDir, fileToken(base)+"_"+fileToken(*targetName))
	if err := os.WriteFile(stem+".cpp", res.Source, 0o644); err != nil {
		fatal(err)
	}
	if err := os.WriteFile(stem+".h", res.Header, 0o644); err != nil {
		fatal(err)
	}

	fmt.Printf("compiled %s for %s\n", *modelPath, *targetName)
	fmt.Printf("  nodes:   %d -> %d (%d removed)\n",
		res.Stats.NodesBefore, res.Stats.NodesAfter, res.Stats.NodesRemoved)
	if res.Stats.PoolCount > 0 {
		fmt.Printf("  pools:   %d\n", res.Stats.PoolCount)
	}
	if cfg.Quantize {
		fmt.Printf("  quant:   %s, %d calibration sample(s)\n", *mode, len(samples))
	}
	fmt.Printf("  wrote    %s.cpp\n", stem)
	fmt.Printf("  wrote    %s.h\n", stem)
}

func handleInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	modelPath := fs.String("model", "", "path to the .embr model (required)")
	full := fs.Bool("full", false, "load tensor data and print the analysis report")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	if *modelPath == "" {
		fmt.Fprintln(os.Stderr, "error: -model is required")
		fs.Usage()
		os.Exit(1)
	}

	f, err := os.Open(*modelPath)
	if err != nil {
		fatal(err)
	}
	h, err := model.ReadHeader(f)
	_ = f.Close()
	if err != nil {
		fatal(err)
	}

	fmt.Printf("model:    %s (.embr v%d, ember %s)\n", h.Name, h.FormatVersion, h.EmberVersion)
	if !h.CreatedAt.IsZero() {
		fmt.Printf("created:  %s\n", h.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	for _, in := range h.Inputs {
		fmt.Printf("input:    %s %s %v\n", in.Name, in.DType, in.Shape)
	}
	for _, out := range h.Outputs {
		fmt.Printf("output:   %s %s %v\n", out.Name, out.DType, out.Shape)
	}
	fmt.Printf("nodes:    %d\n", len(h.Nodes))

	var bytes int64
	integer := 0
	for _, tm := range h.Tensors {
		bytes += tm.Size
		if dt, err := tensor.ParseDataType(tm.DType); err == nil && dt.IsInteger() {
			integer++
		}
	}
	if integer > 0 {
		fmt.Printf("tensors:  %d (%s, %d integer)\n", len(h.Tensors), byteSize(bytes), integer)
	} else {
		fmt.Printf("tensors:  %d (%s)\n", len(h.Tensors), byteSize(bytes))
	}

	if q := h.Metadata.Quantization; q != nil {
		scheme := "asymmetric"
		if q.Symmetric {
			scheme = "symmetric"
		}
		fmt.Printf("quant:    %s %s (engine %s, %d sample(s))\n",
			q.Mode, scheme, q.EngineVersion, q.CalibrationSamples)
	}
	if h.Metadata.PoolCount > 0 {
		fmt.Printf("pools:    %d\n", h.Metadata.PoolCount)
	}
	if h.Metadata.Source != "" {
		fmt.Printf("source:   %s\n", h.Metadata.Source)
	}

	if *full {
		g, err := model.LoadFile(*modelPath)
		if err != nil {
			fatal(err)
		}
		fmt.Println()
		fmt.Println(analyze.Analyze(g, parallel.DefaultConfig()).Summary())
	}
}

func handleValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	modelPath := fs.String("model", "", "path to the .embr model (required)")
	embedded := fs.Bool("embedded", false, "additionally check embedded-target suitability")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}
	if *modelPath == "" {
		fmt.Fprintln(os.Stderr, "error: -model is required")
		fs.Usage()
		os.Exit(1)
	}

	g, err := model.LoadFile(*modelPath)
	if err != nil {
		fatal(err)
	}

	res := validate.Validate(g)
	if *embedded {
		res = validate.ValidateEmbedded(g)
	}
	fmt.Println(res.String())
	if !res.Valid() {
		os.Exit(1)
	}
}

func handleTargets() {
	for _, name := range target.Names() {
		cfg, _ := target.Lookup(name)
		fmt.Printf("%-10s %s/%s, %d-bit aligned, %s vector width %d\n",
			name, cfg.InstructionSet, cfg.Architecture,
			cfg.Alignment*8, cfg.MemoryModel, cfg.VectorWidth)
	}
}

// loadCalibration treats every tensor of an .embr file as one
// calibration sample, in name order.
func loadCalibration(path string) ([]*tensor.Tensor, error) {
	g, err := model.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load calibration data: %w", err)
	}
	names := make([]string, 0, len(g.Weights))
	for name := range g.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	samples := make([]*tensor.Tensor, 0, len(names))
	for _, name := range names {
		samples = append(samples, g.Weights[name])
	}
	return samples, nil
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		fatal(err)
	}
	return logger
}

var fileTokenPattern = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// fileToken makes a name safe for use in an output filename.
func fileToken(s string) string {
	return fileTokenPattern.ReplaceAllString(s, "_")
}

func byteSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
