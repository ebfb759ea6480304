// MODUL: onnx/register
// ZWECK: Registriert den ONNX Loader in der globalen Modell-Registry
// NEBENEFFEKTE: Registriert ".onnx" bei Package-Import
// ABHAENGIGKEITEN: model (DefaultRegistry)
// HINWEISE: Import mit _ "github.com/7blacky7/waifu2x-go/model/onnx"

package onnx

import (
	"github.com/7blacky7/waifu2x-go/model"
)

func init() {
	model.DefaultRegistry.Register(model.DefaultExtension, Load)
}
