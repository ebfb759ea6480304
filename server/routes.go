// Package server - HTTP-Router und Server-Setup fuer waifu2x
// Beinhaltet: Server-Struct, Optionen, Router-Registrierung, Middleware
package server

import (
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/7blacky7/waifu2x-go/api"
	"github.com/7blacky7/waifu2x-go/envconfig"
	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model"
	"github.com/7blacky7/waifu2x-go/reconstruct"
)

var mode string = gin.DebugMode

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// maxOutputFactor begrenzt die Zielgroesse auf MaxPixels * maxOutputFactor
const maxOutputFactor = 16

// Server haelt die geteilten Ressourcen aller Anfragen: Geraet, Engine,
// Modell-Cache und das Parallelitaets-Limit.
type Server struct {
	addr      net.Addr
	models    fs.FS
	registry  *model.Registry
	device    ml.Device
	engine    *reconstruct.Engine
	sem       *semaphore.Weighted
	sets      *setCache
	parallel  int64
	maxPixels uint64
	noCache   bool
}

// Option ist eine funktionale Option fuer NewServer.
type Option func(*Server)

// WithAddr setzt die Listen-Adresse fuer die Host-Pruefung.
func WithAddr(addr net.Addr) Option {
	return func(s *Server) { s.addr = addr }
}

// WithModels setzt das Modell-Wurzelverzeichnis (ein Unterverzeichnis je Architektur).
func WithModels(fsys fs.FS) Option {
	return func(s *Server) { s.models = fsys }
}

// WithRegistry setzt die Loader-Registry.
func WithRegistry(r *model.Registry) Option {
	return func(s *Server) { s.registry = r }
}

func WithDevice(d ml.Device) Option {
	return func(s *Server) { s.device = d }
}

// WithParallel setzt die Anzahl gleichzeitig verarbeiteter Bilder.
func WithParallel(n int64) Option {
	return func(s *Server) { s.parallel = n }
}

// WithMaxPixels setzt die maximale Quellbildgroesse (Breite*Hoehe).
func WithMaxPixels(n uint64) Option {
	return func(s *Server) { s.maxPixels = n }
}

// WithNoCache deaktiviert den Modell-Cache; jede Anfrage laedt ihre Modelle selbst.
func WithNoCache(b bool) Option {
	return func(s *Server) { s.noCache = b }
}

// NewServer erstellt einen Server mit Werten aus envconfig als Default.
func NewServer(opts ...Option) *Server {
	s := &Server{
		registry:  model.DefaultRegistry,
		device:    ml.CPU(),
		parallel:  int64(envconfig.NumParallel()),
		maxPixels: envconfig.MaxPixels(),
		noCache:   envconfig.NoCache(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.models == nil {
		s.models = os.DirFS(envconfig.Models())
	}
	s.parallel = max(s.parallel, 1)
	s.engine = reconstruct.NewEngine(s.device)
	s.sem = semaphore.NewWeighted(s.parallel)
	s.sets = newSetCache(!s.noCache)
	return s
}

// Close gibt alle zwischengespeicherten Modelle frei.
func (s *Server) Close() error {
	return s.sets.Close()
}

// ============================================================================
// Middleware
// ============================================================================

// isLocalIP prueft ob die IP-Adresse zu einem lokalen Interface gehoert
func isLocalIP(ip netip.Addr) bool {
	if interfaces, err := net.Interfaces(); err == nil {
		for _, iface := range interfaces {
			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}

			for _, a := range addrs {
				if parsed, _, err := net.ParseCIDR(a.String()); err == nil {
					if parsed.String() == ip.String() {
						return true
					}
				}
			}
		}
	}

	return false
}

// allowedHost prueft ob der Host erlaubt ist
func allowedHost(host string) bool {
	host = strings.ToLower(host)

	if host == "" || host == "localhost" {
		return true
	}

	if hostname, err := os.Hostname(); err == nil && host == strings.ToLower(hostname) {
		return true
	}

	for _, tld := range []string{"localhost", "local", "internal"} {
		if strings.HasSuffix(host, "."+tld) {
			return true
		}
	}

	return false
}

// allowedHostsMiddleware blockiert Anfragen von nicht erlaubten Hosts,
// solange der Server nur auf Loopback lauscht
func allowedHostsMiddleware(addr net.Addr) gin.HandlerFunc {
	return func(c *gin.Context) {
		if addr == nil {
			c.Next()
			return
		}

		if addr, err := netip.ParseAddrPort(addr.String()); err == nil && !addr.Addr().IsLoopback() {
			c.Next()
			return
		}

		host, _, err := net.SplitHostPort(c.Request.Host)
		if err != nil {
			host = c.Request.Host
		}

		if addr, err := netip.ParseAddr(host); err == nil {
			if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || isLocalIP(addr) {
				c.Next()
				return
			}
		}

		if allowedHost(host) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}

			c.Next()
			return
		}

		c.AbortWithStatus(http.StatusForbidden)
	}
}

const (
	requestIDHeader = api.RequestIDHeader
	requestIDKey    = "request_id"
)

// requestIDMiddleware uebernimmt eine gueltige UUID des Clients oder
// erzeugt eine neue und gibt sie im Response-Header zurueck.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// ============================================================================
// Routen
// ============================================================================

// GenerateRoutes erstellt den Gin-Router mit allen Endpoints.
func (s *Server) GenerateRoutes() (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
		requestIDHeader,
	}
	corsConfig.ExposeHeaders = []string{requestIDHeader, api.StagesHeader}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.MaxMultipartMemory = 32 << 20
	r.Use(
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
		requestIDMiddleware(),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "waifu2x is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "waifu2x is running") })
	r.HEAD("/api/version", s.VersionHandler)
	r.GET("/api/version", s.VersionHandler)

	// Models
	r.GET("/api/models", s.ListHandler)

	// Inference
	r.POST("/api/upscale", s.UpscaleHandler)

	slog.Debug("routes registered", "device", s.device, "parallel", s.parallel, "max_pixels", s.maxPixels, "cache", !s.noCache)
	return r, nil
}
