// cmd_serve.go - Server-Start und Versions-Anzeige
// Hauptfunktionen: RunServer, versionHandler, checkServerHeartbeat
package cmd

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/7blacky7/waifu2x-go/api"
	"github.com/7blacky7/waifu2x-go/envconfig"
	"github.com/7blacky7/waifu2x-go/server"
	"github.com/7blacky7/waifu2x-go/version"
)

// RunServer - Startet den waifu2x-Server
func RunServer(_ *cobra.Command, _ []string) error {
	ln, err := net.Listen("tcp", envconfig.Host().Host)
	if err != nil {
		return err
	}

	err = server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// versionHandler - Zeigt die Version an
func versionHandler(cmd *cobra.Command, _ []string) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return
	}

	serverVersion, err := client.Version(cmd.Context())
	if err != nil {
		fmt.Println("Warning: could not connect to a running waifu2x server")
	}

	if serverVersion != "" {
		fmt.Printf("waifu2x server version is %s\n", serverVersion)
	}

	if serverVersion != version.Version {
		fmt.Printf("Warning: client version is %s\n", version.Version)
	}
}

// checkServerHeartbeat - Prueft ob der Server erreichbar ist
func checkServerHeartbeat(cmd *cobra.Command, client *api.Client) error {
	if err := client.Heartbeat(cmd.Context()); err != nil {
		return fmt.Errorf("could not connect to a running waifu2x server at %s: %w", envconfig.Host(), err)
	}
	return nil
}
