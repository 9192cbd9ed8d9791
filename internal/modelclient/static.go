package modelclient

import (
	"context"
	"time"

	"github.com/starford/ansuz/internal/assembler"
)

// Static is a deterministic model client. It returns fixed responses and
// can simulate latency, which makes it the client of choice in tests and
// in deployments without an API key.
type Static struct {
	Text       string
	TemplateID string
	Err        error
	Delay      time.Duration

	// OnGenerate, when set, is invoked at the start of every call.
	OnGenerate func()
}

// Generate implements assembler.ModelClient.
func (s *Static) Generate(ctx context.Context, req assembler.ModelRequest) (assembler.ModelResponse, error) {
	if s.OnGenerate != nil {
		s.OnGenerate()
	}
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return assembler.ModelResponse{}, ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	if s.Err != nil {
		return assembler.ModelResponse{}, s.Err
	}
	if req.WantTemplateID {
		return assembler.ModelResponse{TemplateID: s.TemplateID}, nil
	}
	return assembler.ModelResponse{Text: s.Text}, nil
}
