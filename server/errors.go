// MODUL: errors
// ZWECK: Fehler-Definitionen und Abbildung auf HTTP-Status und API-Codes
// INPUT: Fehler aus Handler, Pipeline, Resolver
// OUTPUT: JSON-formatierte Fehler-Responses (api.ErrorResponse)
// NEBENEFFEKTE: HTTP-Responses schreiben, Logging
// ABHAENGIGKEITEN: gin, api, model, upscale, imageproc, ml
// HINWEISE: Die Tabelle wird in Reihenfolge durchsucht, der erste Treffer gewinnt

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/7blacky7/waifu2x-go/api"
	"github.com/7blacky7/waifu2x-go/imageproc"
	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model"
	"github.com/7blacky7/waifu2x-go/reconstruct"
	"github.com/7blacky7/waifu2x-go/upscale"
)

// ============================================================================
// Fehler-Definitionen
// ============================================================================

var (
	// ErrMissingImage: die Multipart-Datei "image" fehlt
	ErrMissingImage = errors.New("server: missing image")

	// ErrInvalidImage: die Bilddaten koennen nicht dekodiert werden
	ErrInvalidImage = errors.New("server: invalid image data")

	// ErrInvalidForm: die Formularfelder passen nicht zu UpscaleRequest
	ErrInvalidForm = errors.New("server: invalid form")

	// ErrImageTooLarge: Quell- oder Zielgroesse ueberschreitet WAIFU2X_MAX_PIXELS
	ErrImageTooLarge = errors.New("server: image too large")
)

// ============================================================================
// Fehler-Code Mapping
// ============================================================================

type errorCode struct {
	err    error
	status int
	code   string
}

var errorCodes = []errorCode{
	{ErrMissingImage, http.StatusBadRequest, "MISSING_IMAGE"},
	{ErrInvalidImage, http.StatusBadRequest, "INVALID_IMAGE"},
	{ErrInvalidForm, http.StatusBadRequest, "INVALID_REQUEST"},
	{ErrImageTooLarge, http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE"},
	{model.ErrUnknownArch, http.StatusBadRequest, "UNKNOWN_ARCH"},
	{model.ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
	{upscale.ErrInvalidConfig, http.StatusBadRequest, "INVALID_CONFIG"},
	{reconstruct.ErrInvalidParams, http.StatusBadRequest, "INVALID_CONFIG"},
	{model.ErrMissingArtifact, http.StatusNotFound, "MODEL_NOT_FOUND"},
	{model.ErrLoaderNotRegistered, http.StatusNotImplemented, "LOADER_NOT_REGISTERED"},
	{ml.ErrUnsupportedAccelerator, http.StatusInternalServerError, "UNSUPPORTED_ACCELERATOR"},
	{imageproc.ErrDimensionMismatch, http.StatusInternalServerError, "DIMENSION_MISMATCH"},
	{context.Canceled, http.StatusServiceUnavailable, "CANCELLED"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, "CANCELLED"},
}

// lookupError gibt Status und API-Code fuer einen Fehler zurueck.
func lookupError(err error) (int, string) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.status, ec.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

// ============================================================================
// HTTP Response Helper
// ============================================================================

// abortWithError bricht die Anfrage ab und schreibt den Fehler als JSON.
func abortWithError(c *gin.Context, err error) {
	status, code := lookupError(err)
	id := requestID(c)

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "request_id", id, "path", c.FullPath(), "code", code, "error", err)
	} else {
		slog.Warn("request rejected", "request_id", id, "path", c.FullPath(), "code", code, "error", err)
	}

	c.AbortWithStatusJSON(status, api.ErrorResponse{
		Code:      code,
		Message:   err.Error(),
		RequestID: id,
	})
}
