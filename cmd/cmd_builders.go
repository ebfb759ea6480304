// cmd_builders.go - Command-Builder Funktionen
// Hauptfunktionen: newRunCmd, newServeCmd, newModelsCmd, newDevicesCmd
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/7blacky7/waifu2x-go/envconfig"
	"github.com/7blacky7/waifu2x-go/reconstruct"
	"github.com/7blacky7/waifu2x-go/upscale"
)

// newRunCmd - Erstellt den run Command
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Denoise and upscale an image or a directory of images",
		Args:  cobra.ExactArgs(0),
		RunE:  RunHandler,
	}

	defaults := upscale.DefaultConfig()
	params := reconstruct.DefaultParams()

	flags := runCmd.Flags()
	flags.IntP("gpu", "g", envconfig.Device(), "Accelerator device index, -1 for CPU")
	flags.StringP("input", "i", "", "Input image or directory")
	flags.StringP("output_dir", "o", "./", "Output directory (created if missing)")
	flags.StringP("extension", "e", "png", "Output format (png)")
	flags.StringP("arch", "a", "UpResNet10", "Architecture: VGG7 (0), UpConv7 (1), ResNet10 (2), UpResNet10 (3)")
	flags.StringP("model_dir", "d", "", "Model directory (default $WAIFU2X_MODELS/<arch>)")
	flags.StringP("method", "m", string(defaults.Method), "Method: noise, scale, noise_scale")
	flags.Float64P("scale_ratio", "s", defaults.ScaleRatio, "Scale ratio")
	flags.IntP("noise_level", "n", defaults.NoiseLevel, "Noise level: 0, 1, 2, 3")
	flags.StringP("color", "c", "rgb", "Color mode of the models: y, rgb")
	flags.BoolP("tta", "t", false, "Enable test-time augmentation")
	flags.IntP("tta_level", "T", params.TTALevel, "TTA level: 2, 4, 8")
	flags.IntP("batch_size", "b", params.BatchSize, "Tiles per forward call")
	flags.IntP("block_size", "l", params.BlockSize, "Tile size in pixels")
	flags.IntP("width", "W", 0, "Target width (overrides scale ratio)")
	flags.IntP("height", "H", 0, "Target height (overrides scale ratio and width)")
	flags.Bool("dry-run", false, "Print the planned stages and output sizes without running inference")
	flags.Bool("keep-going", false, "Continue with the next image when one fails")
	flags.Bool("remote", false, "Send images to a running waifu2x server (WAIFU2X_HOST)")

	runCmd.MarkFlagRequired("input") //nolint:errcheck

	return runCmd
}

// newServeCmd - Erstellt den serve Command
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the waifu2x HTTP server",
		Args:    cobra.ExactArgs(0),
		RunE:    RunServer,
	}
}

// newModelsCmd - Erstellt den models Command
func newModelsCmd() *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:     "models [PREFIX]",
		Aliases: []string{"list", "ls"},
		Short:   "List model artifacts",
		Args:    cobra.MaximumNArgs(1),
		RunE:    ListHandler,
	}

	modelsCmd.Flags().Bool("remote", false, "List the models of a running server (WAIFU2X_HOST)")
	modelsCmd.Flags().StringP("model_dir", "d", "", "Model root directory (default $WAIFU2X_MODELS)")

	return modelsCmd
}

// newDevicesCmd - Erstellt den devices Command
func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List compute devices",
		Args:  cobra.ExactArgs(0),
		RunE:  DevicesHandler,
	}
}
