// routes_misc.go - Version und Modell-Liste
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/7blacky7/waifu2x-go/api"
	"github.com/7blacky7/waifu2x-go/model"
	"github.com/7blacky7/waifu2x-go/version"
)

// VersionHandler liefert die Server-Version und das Inferenz-Geraet
func (s *Server) VersionHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.VersionResponse{
		Version: version.Version,
		Device:  s.device.String(),
	})
}

// ListHandler listet alle Artefakte unter dem Modell-Verzeichnis
func (s *Server) ListHandler(c *gin.Context) {
	entries, err := model.Catalog(s.models, model.DefaultExtension)
	if err != nil {
		abortWithError(c, err)
		return
	}

	models := []api.ModelInfo{}
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

	c.JSON(http.StatusOK, api.ListResponse{Models: models})
}
