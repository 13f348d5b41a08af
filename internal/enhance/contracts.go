// Package enhance asks an LLM provider to clean up regex-extracted artist
// fields and falls back to deterministic formatting when no provider answers.
package enhance

import (
	"context"

	"github.com/joseph-ayodele/artists-registry/internal/normalize"
)

// ProviderDeterministic names results produced without any LLM.
const ProviderDeterministic = "deterministic"

// CallOptions tune one completion call.
type CallOptions struct {
	Temperature float32
	MaxTokens   int
}

// Provider is one LLM backend returning the model's text reply.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, prompt string, opts CallOptions) (string, error)
}

// Enhanced is the merged view handed back to the artist service.
type Enhanced struct {
	Fields      normalize.Fields
	Description *string
	Provider    string
	Model       string
}

// aiFields is the JSON shape requested from the model.
type aiFields struct {
	ArtistName  *string    `json:"artistName"`
	GuruName    *string    `json:"guruName"`
	Gharana     *string    `json:"gharana"`
	Biography   *string    `json:"biography"`
	Description *string    `json:"description"`
	Contact     *aiContact `json:"contact"`
}

type aiContact struct {
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}
