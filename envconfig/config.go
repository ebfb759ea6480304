// config.go - Haupt-Konfigurationsfunktionen fuer waifu2x
//
// Dieses Modul enthaelt:
// - Host: Gibt Scheme und Host zurueck (WAIFU2X_HOST)
// - AllowedOrigins: Gibt erlaubte Origins zurueck (WAIFU2X_ORIGINS)
// - Models: Gibt das Modell-Wurzelverzeichnis zurueck (WAIFU2X_MODELS)
// - Device: Gibt den Geraete-Index zurueck (WAIFU2X_GPU)
// - LogLevel: Gibt Log-Level zurueck (WAIFU2X_DEBUG)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_features.go: Laufzeit- und Server-Limits
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultPort ist der Standard-Port des HTTP-Servers
const DefaultPort = "8812"

// Host gibt Scheme und Host zurueck
// Konfigurierbar via WAIFU2X_HOST
// Default: http://127.0.0.1:8812
func Host() *url.URL {
	defaultPort := DefaultPort

	s := strings.TrimSpace(Var("WAIFU2X_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via WAIFU2X_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("WAIFU2X_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// Models gibt das Modell-Wurzelverzeichnis zurueck
// Konfigurierbar via WAIFU2X_MODELS
// Default: $HOME/.waifu2x/models
// Die Gewichte einer Architektur liegen in <Models>/<arch>, z.B. .../upresnet10
func Models() string {
	if s := Var("WAIFU2X_MODELS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".waifu2x", "models")
}

// Device gibt den Index des Beschleunigers zurueck
// Konfigurierbar via WAIFU2X_GPU
// -1 = kein Beschleuniger (CPU), Default: -1
func Device() int {
	if s := Var("WAIFU2X_GPU"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			slog.Warn("invalid environment variable, using default", "key", "WAIFU2X_GPU", "value", s, "default", -1)
			return -1
		}
		return n
	}
	return -1
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via WAIFU2X_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("WAIFU2X_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
