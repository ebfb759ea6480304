// types.go - Basis-Typen der waifu2x HTTP API
// Enthaelt: UpscaleRequest, ListResponse, ModelInfo, VersionResponse, ErrorResponse, StatusError
package api

import (
	"fmt"
	"strconv"
)

// HTTP-Header der Upscale-Antwort
const (
	RequestIDHeader = "X-Request-Id"
	StagesHeader    = "X-Waifu2x-Stages"
)

// UpscaleRequest sind die Formularfelder von POST /api/upscale.
// Das Bild selbst wird als Multipart-Datei "image" uebertragen.
// Fehlende Felder erhalten serverseitig die default-Werte aus den Tags.
type UpscaleRequest struct {
	Arch       string  `form:"arch,default=UpResNet10" json:"arch"`
	Color      string  `form:"color,default=rgb" json:"color"`
	Method     string  `form:"method,default=scale" json:"method"`
	NoiseLevel int     `form:"noise_level,default=1" json:"noise_level"`
	ScaleRatio float64 `form:"scale_ratio,default=2" json:"scale_ratio"`

	// Width und Height ueberschreiben ScaleRatio (Height gewinnt)
	Width  int `form:"width" json:"width,omitempty"`
	Height int `form:"height" json:"height,omitempty"`

	TTA       bool `form:"tta" json:"tta"`
	TTALevel  int  `form:"tta_level,default=8" json:"tta_level"`
	BlockSize int  `form:"block_size,default=128" json:"block_size"`
	BatchSize int  `form:"batch_size,default=16" json:"batch_size"`
}

// DefaultUpscaleRequest gibt einen Request mit den Server-Defaults zurueck.
func DefaultUpscaleRequest() UpscaleRequest {
	return UpscaleRequest{
		Arch:       "UpResNet10",
		Color:      "rgb",
		Method:     "scale",
		NoiseLevel: 1,
		ScaleRatio: 2,
		TTALevel:   8,
		BlockSize:  128,
		BatchSize:  16,
	}
}

// Fields gibt die Formularfelder in Uebertragungsreihenfolge zurueck.
// Leere Strings und eine Zielgroesse von 0 werden weggelassen.
func (r UpscaleRequest) Fields() [][2]string {
	var fields [][2]string
	add := func(k, v string) {
		if v != "" {
			fields = append(fields, [2]string{k, v})
		}
	}

	add("arch", r.Arch)
	add("color", r.Color)
	add("method", r.Method)
	add("noise_level", strconv.Itoa(r.NoiseLevel))
	add("scale_ratio", strconv.FormatFloat(r.ScaleRatio, 'g', -1, 64))
	if r.Width > 0 {
		add("width", strconv.Itoa(r.Width))
	}
	if r.Height > 0 {
		add("height", strconv.Itoa(r.Height))
	}
	add("tta", strconv.FormatBool(r.TTA))
	add("tta_level", strconv.Itoa(r.TTALevel))
	add("block_size", strconv.Itoa(r.BlockSize))
	add("batch_size", strconv.Itoa(r.BatchSize))
	return fields
}

// UpscaleResponse ist das Ergebnis von POST /api/upscale.
type UpscaleResponse struct {
	// Image ist das restaurierte Bild als PNG
	Image []byte

	// Stages sind die ausgefuehrten Stages in Reihenfolge, z.B. ["denoising", "scaling"]
	Stages    []string
	RequestID string
}

// ModelInfo beschreibt ein Artefakt im Modell-Verzeichnis des Servers.
type ModelInfo struct {
	Name    string `json:"name"`
	Arch    string `json:"arch"`
	Color   string `json:"color"`
	Purpose string `json:"purpose"`

	// NoiseLevel ist -1 fuer reine Skalierungsmodelle
	NoiseLevel int    `json:"noise_level"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
}

// ListResponse ist die Antwort von GET /api/models.
type ListResponse struct {
	Models []ModelInfo `json:"models"`
}

// VersionResponse ist die Antwort von GET /api/version.
type VersionResponse struct {
	Version string `json:"version"`
	Device  string `json:"device,omitempty"`
}

// ErrorResponse ist der JSON-Body jeder Fehlerantwort.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusError is an error with an HTTP status code and message.
type StatusError struct {
	StatusCode int
	Status     string
	ErrorResponse
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	case e.Status != "":
		return e.Status
	case e.Message != "":
		return e.Message
	default:
		// this should not happen
		return "something went wrong, please see the waifu2x server logs for details"
	}
}
