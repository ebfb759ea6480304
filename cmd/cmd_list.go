// cmd_list.go - models und devices Commands
// Hauptfunktionen: ListHandler, DevicesHandler
package cmd

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/7blacky7/waifu2x-go/api"
	"github.com/7blacky7/waifu2x-go/envconfig"
	"github.com/7blacky7/waifu2x-go/format"
	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model"
)

// ListHandler - Listet die Modell-Artefakte lokal oder vom Server
func ListHandler(cmd *cobra.Command, args []string) error {
	var models []api.ModelInfo

	if remote, _ := cmd.Flags().GetBool("remote"); remote {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return err
		}

		resp, err := client.List(cmd.Context())
		if err != nil {
			return err
		}
		models = resp.Models
	} else {
		root, _ := cmd.Flags().GetString("model_dir")
		if root == "" {
			root = envconfig.Models()
		}

		entries, err := model.Catalog(os.DirFS(root), model.DefaultExtension)
		if err != nil {
			return err
		}
		models = modelInfos(entries)
	}

	var prefix string
	if len(args) > 0 {
		prefix = args[0]
	}

	renderTable(cmd.OutOrStdout(), []string{"NAME", "ARCH", "COLOR", "PURPOSE", "SIZE"}, modelRows(models, prefix))
	return nil
}

// modelInfos - Katalog-Eintraege in API-Form
func modelInfos(entries []model.Entry) []api.ModelInfo {
	models := make([]api.ModelInfo, 0, len(entries))
	for _, e := range entries {
		models = append(models, api.ModelInfo{
			Name:       e.Key.String(),
			Arch:       e.Arch.Name,
			Color:      string(e.Key.Color),
			Purpose:    e.Key.Purpose,
			NoiseLevel: e.Noise,
			Path:       e.Path,
			Size:       e.Size,
		})
	}
	return models
}

func modelRows(models []api.ModelInfo, prefix string) [][]string {
	var data [][]string
	for _, m := range models {
		if prefix != "" && !strings.HasPrefix(strings.ToLower(m.Name), strings.ToLower(prefix)) {
			continue
		}
		data = append(data, []string{m.Name, m.Arch, m.Color, m.Purpose, format.HumanBytes(m.Size)})
	}
	return data
}

// DevicesHandler - Listet die erkannten Compute-Geraete
func DevicesHandler(cmd *cobra.Command, _ []string) error {
	renderTable(cmd.OutOrStdout(), []string{"ID", "BACKEND", "NAME", "TOTAL", "FREE"}, deviceRows(ml.Devices()))
	return nil
}

func deviceRows(devices []ml.DeviceInfo) [][]string {
	var data [][]string
	for _, d := range devices {
		total, free := "-", "-"
		if d.TotalMemory > 0 {
			total = format.HumanBytes2(d.TotalMemory)
			free = format.HumanBytes2(d.FreeMemory)
		}
		data = append(data, []string{strconv.Itoa(d.ID), string(d.Backend), d.Name, total, free})
	}
	return data
}

func renderTable(w io.Writer, header []string, data [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
