package diagnosis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medsage/medsage-server/internal/breaker"
	"github.com/medsage/medsage-server/internal/classifier"
	"github.com/medsage/medsage-server/internal/types"
)

// FallbackDiagnosis is served whenever the text-generation collaborator
// fails for any reason. The user always receives some diagnosis text
// once their input validated.
const FallbackDiagnosis = "AI diagnosis temporarily unavailable. Please consult with a healthcare professional."

// Generator is the external text-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Outcome is the tagged result of composing a diagnosis. Degraded means
// the generator failed and Text carries the fixed fallback; the pipeline
// continues to persistence either way.
type Outcome struct {
	Text     string
	Degraded bool
}

// Composer builds the structured prompt and invokes the generator. A
// circuit breaker skips the generator outright while it is known to be
// failing, so degraded responses stay fast.
type Composer struct {
	gen Generator
	br  *breaker.Breaker
}

func NewComposer(gen Generator) *Composer {
	return &Composer{gen: gen, br: breaker.New(5, 30*time.Second)}
}

// BuildPrompt renders the fixed-format natural-language prompt.
func BuildPrompt(req *types.DiagnosisRequest) string {
	return fmt.Sprintf("Age: %d, Weight: %gkg, Height: %gcm, Symptoms: %s",
		req.Age, req.Weight, req.Height, strings.Join(req.Symptoms, ", "))
}

// Compose generates the diagnosis text for a validated request. A
// present image analysis is appended to generated text on its own line.
// Generator failure degrades to the fixed fallback instead of aborting.
func (c *Composer) Compose(ctx context.Context, req *types.DiagnosisRequest, image *types.ImageAnalysis) Outcome {
	if !c.br.Allow() {
		slog.Warn("ai diagnosis skipped, generator circuit open")
		return Outcome{Text: FallbackDiagnosis, Degraded: true}
	}

	prompt := BuildPrompt(req)

	text, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		c.br.RecordFailure()
		slog.Error("ai diagnosis failed", "error", err)
		return Outcome{Text: FallbackDiagnosis, Degraded: true}
	}
	c.br.RecordSuccess()

	if image != nil {
		text += "\n\nImage Analysis Result: " + classifier.FormatResult(image)
	}
	return Outcome{Text: text}
}
