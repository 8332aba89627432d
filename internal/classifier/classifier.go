// Package classifier adapts uploaded blood-smear images into the tensor
// shape the pre-trained parasite model expects and converts its scalar
// output into a labeled, confidence-scored result. Classification
// failures never abort a diagnosis; they degrade to an absent result.
package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/medsage/medsage-server/internal/types"
)

// Model is the opaque binary classifier: a preprocessed tensor in, one
// scalar in [0,1] out.
type Model interface {
	Predict(ctx context.Context, tensor Tensor) (float64, error)
}

// Adapter runs the fixed preprocess-predict-label pipeline.
type Adapter struct {
	model Model
}

func NewAdapter(model Model) *Adapter {
	return &Adapter{model: model}
}

// Classify analyzes the image at path. It returns nil on any decode,
// preprocess, or inference failure; the error is logged, never
// propagated as a hard failure.
func (a *Adapter) Classify(ctx context.Context, path string) *types.ImageAnalysis {
	if a == nil || a.model == nil {
		return nil
	}

	tensor, err := PreprocessFile(path)
	if err != nil {
		slog.Error("image preprocessing failed", "path", path, "error", err)
		return nil
	}

	score, err := a.model.Predict(ctx, tensor)
	if err != nil {
		slog.Error("image classification failed", "path", path, "error", err)
		return nil
	}

	return Label(score)
}

// Label converts the model's scalar into a labeled result. Scores below
// 0.5 are Non-Parasitic with confidence 1-score; everything else,
// including exactly 0.5, is Parasitic with confidence score.
func Label(score float64) *types.ImageAnalysis {
	if score < 0.5 {
		return &types.ImageAnalysis{Label: types.LabelNonParasitic, Confidence: 1 - score}
	}
	return &types.ImageAnalysis{Label: types.LabelParasitic, Confidence: score}
}

// FormatResult renders the analysis the way it is appended to the
// diagnosis text and persisted, e.g. "Parasitic (Confidence: 80.0%)".
func FormatResult(a *types.ImageAnalysis) string {
	return fmt.Sprintf("%s (Confidence: %.1f%%)", a.Label, a.Confidence*100)
}
