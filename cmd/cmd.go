// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/7blacky7/waifu2x-go/envconfig"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		if e.Name == "" {
			continue
		}
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "waifu2x",
		Short:         "Image upscaling and denoising with waifu2x models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	runCmd := newRunCmd()
	serveCmd := newServeCmd()
	modelsCmd := newModelsCmd()
	devicesCmd := newDevicesCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()

	for _, cmd := range []*cobra.Command{runCmd, serveCmd, modelsCmd, devicesCmd} {
		switch cmd {
		case runCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["WAIFU2X_DEBUG"],
				envVars["WAIFU2X_GPU"],
				envVars["WAIFU2X_HOST"],
				envVars["WAIFU2X_MODELS"],
				envVars["WAIFU2X_ORT_LIBRARY"],
				envVars["WAIFU2X_NUM_THREADS"],
			})
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["WAIFU2X_DEBUG"],
				envVars["WAIFU2X_HOST"],
				envVars["WAIFU2X_GPU"],
				envVars["WAIFU2X_MODELS"],
				envVars["WAIFU2X_NUM_PARALLEL"],
				envVars["WAIFU2X_MAX_PIXELS"],
				envVars["WAIFU2X_NOCACHE"],
				envVars["WAIFU2X_ORIGINS"],
				envVars["WAIFU2X_ORT_LIBRARY"],
				envVars["WAIFU2X_NUM_THREADS"],
			})
		case modelsCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["WAIFU2X_HOST"], envVars["WAIFU2X_MODELS"]})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["CUDA_VISIBLE_DEVICES"]})
		}
	}

	rootCmd.AddCommand(
		runCmd,
		serveCmd,
		modelsCmd,
		devicesCmd,
	)

	return rootCmd
}
