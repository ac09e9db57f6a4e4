package generator

import (
	"context"
	"strconv"
	"strings"

	"github.com/slok/imagegen/internal/model"
)

// Engine is the generation engine, a heavyweight resource (e.g. a loaded model)
// shared by the whole run. It is not reentrant, items are generated one at a time.
type Engine interface {
	// Load acquires the engine resources. It must be called before Generate.
	Load(ctx context.Context) error
	// Generate turns a prompt into an encoded image. Failures of a single item
	// should wrap model.ErrItemGeneration.
	Generate(ctx context.Context, req Request) ([]byte, error)
	// Close releases the engine resources.
	Close() error
}

// Request is a single generation request.
type Request struct {
	Prompt         string
	NegativePrompt string
	Parameters     model.GenerationParameters
}

// RequestFromItem returns the generation request of a work item.
func RequestFromItem(it model.WorkItem) Request {
	return Request{
		Prompt:         it.Prompt,
		NegativePrompt: it.NegativePrompt,
		Parameters:     it.Parameters,
	}
}

// Argument placeholders supported by ExpandArgs.
const (
	ArgPrompt         = "{{prompt}}"
	ArgNegativePrompt = "{{negative_prompt}}"
	ArgWidth          = "{{width}}"
	ArgHeight         = "{{height}}"
	ArgSteps          = "{{steps}}"
	ArgGuidanceScale  = "{{guidance_scale}}"
	ArgOutput         = "{{output}}"
)

// ExpandArgs replaces the request placeholders on external generator arguments.
// Each argument is expanded on its own so prompts never split into more arguments.
func ExpandArgs(args []string, req Request, outputPath string) []string {
	r := strings.NewReplacer(
		ArgPrompt, req.Prompt,
		ArgNegativePrompt, req.NegativePrompt,
		ArgWidth, strconv.Itoa(req.Parameters.Width),
		ArgHeight, strconv.Itoa(req.Parameters.Height),
		ArgSteps, strconv.Itoa(req.Parameters.Steps),
		ArgGuidanceScale, strconv.FormatFloat(req.Parameters.GuidanceScale, 'f', -1, 64),
		ArgOutput, outputPath,
	)

	expanded := make([]string, 0, len(args))
	for _, a := range args {
		expanded = append(expanded, r.Replace(a))
	}
	return expanded
}
