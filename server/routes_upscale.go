// MODUL: routes_upscale
// ZWECK: POST /api/upscale - Bild hochladen, entrauschen/skalieren, PNG zurueckgeben
// INPUT: Multipart-Formular (Datei "image" + Felder aus api.UpscaleRequest)
// OUTPUT: image/png, Header X-Request-Id und X-Waifu2x-Stages
// NEBENEFFEKTE: Modelle laden (ggf. Cache), Inferenz auf dem Server-Geraet
// ABHAENGIGKEITEN: gin, semaphore (Limit), model, upscale, imageproc
// HINWEISE: Die Groessenpruefung laeuft auf dem Header (DecodeConfig) vor dem Dekodieren

package server

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/7blacky7/waifu2x-go/api"
	"github.com/7blacky7/waifu2x-go/imageproc"
	"github.com/7blacky7/waifu2x-go/model"
	"github.com/7blacky7/waifu2x-go/upscale"
)

// UpscaleHandler verarbeitet ein einzelnes Bild.
func (s *Server) UpscaleHandler(c *gin.Context) {
	start := time.Now()
	id := requestID(c)

	req := api.DefaultUpscaleRequest()
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, fmt.Errorf("%w: %w", ErrInvalidForm, err))
		return
	}

	mreq, cfg, err := parseRequest(req)
	if err != nil {
		abortWithError(c, err)
		return
	}

	data, err := readImage(c)
	if err != nil {
		abortWithError(c, err)
		return
	}

	hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: %w", ErrInvalidImage, err))
		return
	}
	if err := s.checkSize(hdr.Width, hdr.Height, cfg); err != nil {
		abortWithError(c, err)
		return
	}

	src, format, err := imageproc.Decode(bytes.NewReader(data))
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: %w", ErrInvalidImage, err))
		return
	}

	ctx := c.Request.Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		abortWithError(c, err)
		return
	}
	defer s.sem.Release(1)

	set, release, err := s.sets.get(ctx, mreq, s.resolve)
	if err != nil {
		abortWithError(c, err)
		return
	}
	defer release()

	p, err := upscale.NewPipeline(set, cfg, s.engine, upscale.WithObserver(func(st upscale.Stats) {
		slog.Debug("stage finished", "request_id", id, "stage", st.Stage, "passes", st.Passes, "resized", st.Resized, "size", st.Size)
	}))
	if err != nil {
		abortWithError(c, err)
		return
	}

	dst, err := p.Process(ctx, src)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := imageproc.Encode(&buf, imageproc.MatchModel(dst, src), "png"); err != nil {
		abortWithError(c, err)
		return
	}

	stages := make([]string, 0, len(p.Stages()))
	for _, st := range p.Stages() {
		stages = append(stages, st.String())
	}

	slog.Info("upscale", "request_id", id, "format", format, "arch", mreq.Arch.Name, "color", mreq.Color, "method", mreq.Method,
		"input", src.Bounds().Size(), "output", dst.Bounds().Size(), "elapsed", time.Since(start))

	c.Header(api.StagesHeader, strings.Join(stages, ","))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// resolve laedt die Modelle einer Architektur aus ihrem Unterverzeichnis.
func (s *Server) resolve(ctx context.Context, req model.Request) (model.Set, error) {
	sub, err := fs.Sub(s.models, req.Arch.Dir())
	if err != nil {
		return nil, err
	}

	r := model.NewResolver(sub, model.WithRegistry(s.registry), model.WithDevice(s.device))
	return r.Resolve(ctx, req)
}

// checkSize prueft Quell- und Zielgroesse gegen das Pixel-Limit.
func (s *Server) checkSize(w, h int, cfg upscale.Config) error {
	if s.maxPixels == 0 {
		return nil
	}

	if px := uint64(w) * uint64(h); px > s.maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, w, h, s.maxPixels)
	}

	if cfg.Method == model.MethodNoise {
		return nil
	}

	target := upscale.TargetSize(w, h, cfg.ForImage(w, h).ScaleRatio)
	if px := uint64(target.X) * uint64(target.Y); px > s.maxPixels*maxOutputFactor {
		return fmt.Errorf("%w: output %dx%d exceeds %d pixels", ErrImageTooLarge, target.X, target.Y, s.maxPixels*maxOutputFactor)
	}
	return nil
}

func readImage(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingImage, err)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// parseRequest uebersetzt die Formularfelder in Modell-Request und Config.
func parseRequest(req api.UpscaleRequest) (model.Request, upscale.Config, error) {
	arch, err := model.LookupArch(req.Arch)
	if err != nil {
		return model.Request{}, upscale.Config{}, err
	}

	mreq := model.Request{
		Arch:       arch,
		Color:      model.Color(strings.ToLower(req.Color)),
		Method:     model.Method(strings.ToLower(req.Method)),
		NoiseLevel: req.NoiseLevel,
	}
	if err := mreq.Validate(); err != nil {
		return model.Request{}, upscale.Config{}, err
	}

	opts := []upscale.Option{
		upscale.WithScaleRatio(req.ScaleRatio),
		upscale.WithNoiseLevel(req.NoiseLevel),
		upscale.WithMethod(mreq.Method),
		upscale.WithBlockSize(req.BlockSize),
		upscale.WithBatchSize(req.BatchSize),
		upscale.WithTargetSize(req.Width, req.Height),
	}
	if req.TTA {
		opts = append(opts, upscale.WithTTA(req.TTALevel))
	}

	cfg, err := upscale.NewConfig(opts...)
	if err != nil {
		return model.Request{}, upscale.Config{}, err
	}
	return mreq, cfg, nil
}
