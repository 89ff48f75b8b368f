// Package classifier wraps a text-classification backend behind a scoped
// session that guarantees one result per input, in input order.
package classifier

import (
	"context"
	"slices"

	"github.com/sells-group/sentiment-cli/internal/model"
)

// Device names.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
	DeviceMPS  = "mps"
)

// Predictor is a loaded model pipeline.
type Predictor interface {
	// Predict returns the top label for each text.
	Predict(ctx context.Context, texts []string) ([]model.ClassificationResult, error)
	// Device is where the pipeline actually runs.
	Device() string
	Close(ctx context.Context) error
}

// Loader loads pretrained pipelines.
type Loader interface {
	// Accelerators lists the non-CPU devices a pipeline can be placed on.
	Accelerators(ctx context.Context) ([]string, error)
	Load(ctx context.Context, task, modelName, device string) (Predictor, error)
}

// SelectDevice resolves a device preference against the available
// accelerators. fellBack is true when an explicitly requested accelerator is
// missing and cpu was chosen instead.
func SelectDevice(pref string, accelerators []string) (device string, fellBack bool) {
	switch pref {
	case DeviceCPU:
		return DeviceCPU, false
	case DeviceAuto, "":
		for _, d := range []string{DeviceCUDA, DeviceMPS} {
			if slices.Contains(accelerators, d) {
				return d, false
			}
		}
		if len(accelerators) > 0 {
			return accelerators[0], false
		}
		return DeviceCPU, false
	default:
		if slices.Contains(accelerators, pref) {
			return pref, false
		}
		return DeviceCPU, true
	}
}
