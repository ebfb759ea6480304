package model

import (
	"fmt"
	"regexp"
	"strconv"
)

// Artefakt-Namen ohne Endung. Die Endung kommt vom registrierten Loader.

func combinedName(noise int, c Color) string {
	return fmt.Sprintf("anime_style_noise%d_scale_%s", noise, c)
}

func scaleName(c Color) string {
	return fmt.Sprintf("anime_style_scale_%s", c)
}

func noiseName(noise int, c Color) string {
	return fmt.Sprintf("anime_style_noise%d_%s", noise, c)
}

var artifactPattern = regexp.MustCompile(`^anime_style_(?:noise([0-3])_)?(scale_)?(y|rgb)$`)

// ParseArtifactName zerlegt einen Artefakt-Stamm (ohne Endung) in Zweck,
// Rauschniveau und Farbmodus. noise ist -1 fuer reine Skalierungsmodelle.
func ParseArtifactName(stem string) (purpose string, noise int, c Color, ok bool) {
	m := artifactPattern.FindStringSubmatch(stem)
	if m == nil {
		return "", 0, "", false
	}

	c = Color(m[3])
	noise = -1
	if m[1] != "" {
		noise, _ = strconv.Atoi(m[1])
	}

	switch {
	case noise >= 0 && m[2] != "":
		purpose = fmt.Sprintf("noise%d_scale", noise)
	case noise >= 0:
		purpose = fmt.Sprintf("noise%d", noise)
	case m[2] != "":
		purpose = "scale"
	default:
		return "", 0, "", false
	}
	return purpose, noise, c, true
}
