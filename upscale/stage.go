package upscale

import (
	"fmt"

	"github.com/7blacky7/waifu2x-go/model"
)

// Stage ist ein Zustand der Methodenauswahl. Die Stages eines Laufs werden
// einmal aus den besetzten Rollen des Sets bestimmt.
type Stage int

const (
	StageDenoising Stage = iota
	StageScaling
	StageDenoiseScaling
)

func (s Stage) String() string {
	switch s {
	case StageDenoising:
		return "denoising"
	case StageScaling:
		return "scaling"
	case StageDenoiseScaling:
		return "denoise_scaling"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Roles ist alles, was besetzte Rollen melden kann: ein geladenes
// model.Set oder ein model.Plan vor dem Laden.
type Roles interface {
	Has(model.Role) bool
}

// PlanStages bestimmt die Stages aus den besetzten Rollen:
// noise_scale -> [DenoiseScaling], sonst noise -> Denoising und
// scale -> Scaling in dieser Reihenfolge.
func PlanStages(set Roles) ([]Stage, error) {
	if set.Has(model.RoleNoiseScale) {
		return []Stage{StageDenoiseScaling}, nil
	}

	var stages []Stage
	if set.Has(model.RoleNoise) {
		stages = append(stages, StageDenoising)
	}
	if set.Has(model.RoleScale) {
		stages = append(stages, StageScaling)
	}
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: model set has no noise, scale or noise_scale model", model.ErrMissingArtifact)
	}
	return stages, nil
}
