// serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - Hauptfunktion zum Starten des HTTP-Servers
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/7blacky7/waifu2x-go/envconfig"
	"github.com/7blacky7/waifu2x-go/logutil"
	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model/onnx"
	"github.com/7blacky7/waifu2x-go/version"
)

const shutdownTimeout = 10 * time.Second

// Serve startet den HTTP-Server auf ln und blockiert bis SIGINT/SIGTERM.
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	// Das Geraet wird einmal gewaehlt, ein fehlender Beschleuniger ist fatal
	device, err := ml.SelectDevice(envconfig.Device())
	if err != nil {
		return err
	}
	for _, d := range ml.Devices() {
		slog.Info("inference compute", "device", d)
	}

	s := NewServer(WithAddr(ln.Addr()), WithDevice(device))
	defer func() {
		if err := s.Close(); err != nil {
			slog.Warn("failed to release models", "error", err)
		}
		if err := onnx.DestroyRuntime(); err != nil {
			slog.Warn("failed to destroy onnx runtime", "error", err)
		}
	}()

	h, err := s.GenerateRoutes()
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version), "device", device)
	srvr := &http.Server{Handler: h}

	// listen for a ctrl+c and stop accepting requests
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srvr.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown", "error", err)
			srvr.Close()
		}
	}()

	err = srvr.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	// laufende Anfragen zu Ende bringen, bevor die Modelle freigegeben werden
	<-done
	return nil
}
