// cmd_run.go - Der run Command: Bilder entrauschen und skalieren
// Hauptfunktionen: RunHandler, runFiles, outputPath, fileList
//
// Drei Verarbeitungswege teilen sich dieselbe Schleife (runFiles):
//   - lokal: Modelle laden und Pipeline ausfuehren
//   - --remote: Bild an einen laufenden Server schicken
//   - --dry-run: nur Stages und Zielgroesse ausgeben
package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/7blacky7/waifu2x-go/api"
	"github.com/7blacky7/waifu2x-go/envconfig"
	"github.com/7blacky7/waifu2x-go/imageproc"
	"github.com/7blacky7/waifu2x-go/logutil"
	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model"
	"github.com/7blacky7/waifu2x-go/model/onnx"
	"github.com/7blacky7/waifu2x-go/reconstruct"
	"github.com/7blacky7/waifu2x-go/upscale"
)

// runOptions - Optionen eines run-Aufrufs
type runOptions struct {
	Input     string
	OutputDir string
	Extension string
	ModelDir  string
	Device    int

	Request model.Request
	Config  upscale.Config

	DryRun    bool
	KeepGoing bool
	Remote    bool
}

// runOptionsFromFlags - Liest und validiert die Flags des run Commands
func runOptionsFromFlags(cmd *cobra.Command) (runOptions, error) {
	flags := cmd.Flags()

	var opts runOptions
	var err error

	strs := map[string]*string{
		"input":      &opts.Input,
		"output_dir": &opts.OutputDir,
		"extension":  &opts.Extension,
		"model_dir":  &opts.ModelDir,
	}
	for name, dst := range strs {
		if *dst, err = flags.GetString(name); err != nil {
			return runOptions{}, err
		}
	}

	bools := map[string]*bool{
		"dry-run":    &opts.DryRun,
		"keep-going": &opts.KeepGoing,
		"remote":     &opts.Remote,
	}
	for name, dst := range bools {
		if *dst, err = flags.GetBool(name); err != nil {
			return runOptions{}, err
		}
	}

	if opts.Device, err = flags.GetInt("gpu"); err != nil {
		return runOptions{}, err
	}

	archName, _ := flags.GetString("arch")
	arch, err := model.LookupArch(archName)
	if err != nil {
		return runOptions{}, err
	}

	colorName, _ := flags.GetString("color")
	methodName, _ := flags.GetString("method")
	noise, _ := flags.GetInt("noise_level")

	opts.Request = model.Request{
		Arch:       arch,
		Color:      model.Color(strings.ToLower(colorName)),
		Method:     model.Method(strings.ToLower(methodName)),
		NoiseLevel: noise,
	}
	if err := opts.Request.Validate(); err != nil {
		return runOptions{}, err
	}

	opts.Extension = strings.ToLower(strings.TrimPrefix(opts.Extension, "."))
	if err := checkExtension(opts.Extension); err != nil {
		return runOptions{}, err
	}

	if opts.ModelDir == "" {
		opts.ModelDir = model.DefaultDir(arch)
	}

	ratio, _ := flags.GetFloat64("scale_ratio")
	tta, _ := flags.GetBool("tta")
	ttaLevel, _ := flags.GetInt("tta_level")
	batch, _ := flags.GetInt("batch_size")
	block, _ := flags.GetInt("block_size")
	width, _ := flags.GetInt("width")
	height, _ := flags.GetInt("height")

	cfgOpts := []upscale.Option{
		upscale.WithScaleRatio(ratio),
		upscale.WithNoiseLevel(noise),
		upscale.WithMethod(opts.Request.Method),
		upscale.WithBatchSize(batch),
		upscale.WithBlockSize(block),
		upscale.WithTargetSize(width, height),
	}
	if tta {
		cfgOpts = append(cfgOpts, upscale.WithTTA(ttaLevel))
	}

	if opts.Config, err = upscale.NewConfig(cfgOpts...); err != nil {
		return runOptions{}, err
	}

	return opts, nil
}

// upscaleRequest - Uebersetzt die Optionen in die Formularfelder des Servers
func (o runOptions) upscaleRequest() api.UpscaleRequest {
	return api.UpscaleRequest{
		Arch:       o.Request.Arch.Name,
		Color:      string(o.Request.Color),
		Method:     string(o.Request.Method),
		NoiseLevel: o.Request.NoiseLevel,
		ScaleRatio: o.Config.ScaleRatio,
		Width:      o.Config.Width,
		Height:     o.Config.Height,
		TTA:        o.Config.TTA,
		TTALevel:   o.Config.TTALevel,
		BlockSize:  o.Config.BlockSize,
		BatchSize:  o.Config.BatchSize,
	}
}

// checkExtension - Nur PNG kann geschrieben werden
func checkExtension(ext string) error {
	switch ext {
	case "png":
		return nil
	case "webp":
		return fmt.Errorf("%w: webp output is not supported, use png", imageproc.ErrUnsupportedFormat)
	default:
		return fmt.Errorf("%w: %q", imageproc.ErrUnsupportedFormat, ext)
	}
}

// fileList - Eine Datei oder alle unterstuetzten Bilder eines Verzeichnisses
func fileList(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return []string{input}, nil
	}

	// os.ReadDir liefert nach Namen sortiert
	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageproc.IsSupported(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(input, e.Name()))
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no supported images in %s", input)
	}
	return files, nil
}

// ============================================================================
// Ausgabe-Namen
// ============================================================================

// outputName - Langer Name mit allen Parametern, z.B.
// "cat_(tta8)(noise1_scale2.0x)(upresnet10_rgb).png". Die Segmente folgen
// den ausgefuehrten Stages, nicht der angefragten Methode.
func outputName(base string, opts runOptions, stages []string, ratio float64) string {
	var sb strings.Builder
	sb.WriteString(base)

	if opts.Config.TTA {
		fmt.Fprintf(&sb, "_(tta%d)", opts.Config.TTALevel)
	} else {
		sb.WriteString("_")
	}

	for _, stage := range stages {
		switch stage {
		case upscale.StageDenoiseScaling.String():
			fmt.Fprintf(&sb, "(noise%d_scale%.1fx)", opts.Request.NoiseLevel, ratio)
		case upscale.StageDenoising.String():
			fmt.Fprintf(&sb, "(noise%d)", opts.Request.NoiseLevel)
		case upscale.StageScaling.String():
			fmt.Fprintf(&sb, "(scale%.1fx)", ratio)
		}
	}

	fmt.Fprintf(&sb, "(%s_%s).%s", strings.ToLower(opts.Request.Arch.Name), opts.Request.Color, opts.Extension)
	return sb.String()
}

// outputPath - "<name>.<ext>" im Ausgabeverzeichnis; existiert die Datei
// schon, wird der lange Name verwendet.
func outputPath(opts runOptions, input string, stages []string, ratio float64) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))

	p := filepath.Join(opts.OutputDir, base+"."+opts.Extension)
	if _, err := os.Stat(p); err == nil {
		p = filepath.Join(opts.OutputDir, outputName(base, opts, stages, ratio))
	}
	return p
}

// ============================================================================
// Verarbeitung
// ============================================================================

// output - Ergebnis eines Bildes. save ist nil beim Dry-Run.
type output struct {
	src    image.Point
	size   image.Point
	stages []string
	save   func(path string) error
}

type processFunc func(ctx context.Context, path string) (*output, error)

func stageNames(stages []upscale.Stage) []string {
	names := make([]string, 0, len(stages))
	for _, st := range stages {
		names = append(names, st.String())
	}
	return names
}

// localProcessor - Verarbeitet Bilder mit einer geladenen Pipeline
func localProcessor(p *upscale.Pipeline) processFunc {
	return func(ctx context.Context, path string) (*output, error) {
		src, err := imageproc.Load(path)
		if err != nil {
			return nil, err
		}

		dst, err := p.Process(ctx, src)
		if err != nil {
			return nil, err
		}

		return &output{
			src:    src.Bounds().Size(),
			size:   dst.Bounds().Size(),
			stages: stageNames(p.Stages()),
			save: func(name string) error {
				return imageproc.Save(name, imageproc.MatchModel(dst, src))
			},
		}, nil
	}
}

// remoteProcessor - Schickt Bilder an einen laufenden Server
func remoteProcessor(client *api.Client, req api.UpscaleRequest) processFunc {
	return func(ctx context.Context, path string) (*output, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		hdr, _, err := image.DecodeConfig(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}

		resp, err := client.Upscale(ctx, filepath.Base(path), f, req)
		if err != nil {
			return nil, err
		}

		out, _, err := image.DecodeConfig(bytes.NewReader(resp.Image))
		if err != nil {
			return nil, fmt.Errorf("server response: %w", err)
		}

		slog.Debug("remote upscale", "input", path, "request_id", resp.RequestID, "stages", resp.Stages)

		return &output{
			src:    image.Pt(hdr.Width, hdr.Height),
			size:   image.Pt(out.Width, out.Height),
			stages: resp.Stages,
			save: func(name string) error {
				return os.WriteFile(name, resp.Image, 0o644)
			},
		}, nil
	}
}

// dryRunProcessor - Liest nur den Bild-Header und berechnet die Zielgroesse
func dryRunProcessor(cfg upscale.Config, stages []upscale.Stage) processFunc {
	return func(ctx context.Context, path string) (*output, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		hdr, _, err := image.DecodeConfig(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}

		size := image.Pt(hdr.Width, hdr.Height)
		if cfg.Method != model.MethodNoise {
			size = upscale.TargetSize(hdr.Width, hdr.Height, cfg.ForImage(hdr.Width, hdr.Height).ScaleRatio)
		}

		return &output{
			src:    image.Pt(hdr.Width, hdr.Height),
			size:   size,
			stages: stageNames(stages),
		}, nil
	}
}

// runFiles - Verarbeitet alle Dateien nacheinander. Ohne KeepGoing bricht
// der erste Fehler ab, sonst werden Fehler gezaehlt und am Ende gemeldet.
func runFiles(ctx context.Context, w io.Writer, opts runOptions, files []string, process processFunc) error {
	var failed int
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := runFile(ctx, w, opts, path, process); err != nil {
			if !opts.KeepGoing || errors.Is(err, context.Canceled) {
				return err
			}
			slog.Error("image failed", "input", path, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(files))
	}
	return nil
}

func runFile(ctx context.Context, w io.Writer, opts runOptions, path string, process processFunc) error {
	if !imageproc.IsSupported(path) {
		slog.Warn("skipping unsupported file", "input", path)
		return nil
	}

	start := time.Now()
	out, err := process(ctx, path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	cfg := opts.Config.ForImage(out.src.X, out.src.Y)
	name := outputPath(opts, path, out.stages, cfg.ScaleRatio)

	if out.save == nil {
		fmt.Fprintf(w, "%s: %dx%d -> %dx%d [%s] passes=%d\n", path, out.src.X, out.src.Y, out.size.X, out.size.Y,
			strings.Join(out.stages, ","), passes(cfg))
		fmt.Fprintf(w, "Would save as '%s'\n", name)
		return nil
	}

	if err := out.save(name); err != nil {
		return err
	}

	fmt.Fprintf(w, "Elapsed time: %.6f sec\n", time.Since(start).Seconds())
	fmt.Fprintf(w, "Saved as '%s'\n", name)
	return nil
}

// passes - Anzahl der 2x-Durchlaeufe; reines Entrauschen skaliert nicht
func passes(cfg upscale.Config) int {
	if cfg.Method == model.MethodNoise {
		return 0
	}
	return upscale.Steps(cfg.ScaleRatio)
}

// ============================================================================
// Handler
// ============================================================================

// RunHandler - Handler fuer den run Command
func RunHandler(cmd *cobra.Command, _ []string) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	opts, err := runOptionsFromFlags(cmd)
	if err != nil {
		return err
	}

	files, err := fileList(opts.Input)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	switch {
	case opts.Remote && opts.DryRun:
		return errors.New("--dry-run and --remote cannot be combined")

	case opts.Remote:
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}
		if err := checkServerHeartbeat(cmd, client); err != nil {
			return err
		}
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return err
		}
		return runFiles(ctx, w, opts, files, remoteProcessor(client, opts.upscaleRequest()))

	case opts.DryRun:
		plan, err := model.NewResolver(os.DirFS(opts.ModelDir)).Plan(opts.Request)
		if err != nil {
			return err
		}
		stages, err := upscale.PlanStages(plan)
		if err != nil {
			return err
		}
		return runFiles(ctx, w, opts, files, dryRunProcessor(opts.Config, stages))
	}

	device, err := ml.SelectDevice(opts.Device)
	if err != nil {
		return err
	}
	defer onnx.DestroyRuntime() //nolint:errcheck

	slog.Info("loading models", "dir", opts.ModelDir, "arch", opts.Request.Arch, "color", opts.Request.Color,
		"method", opts.Request.Method, "device", device)

	set, err := model.NewResolver(os.DirFS(opts.ModelDir), model.WithDevice(device)).Resolve(ctx, opts.Request)
	if err != nil {
		return err
	}
	defer set.Close()

	p, err := upscale.NewPipeline(set, opts.Config, reconstruct.NewEngine(device))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return err
	}

	return runFiles(ctx, w, opts, files, localProcessor(p))
}
