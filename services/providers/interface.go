package providers

import (
	"context"
	"net/url"
)

// Backend family tags. A family names a provider/protocol dialect, not a
// deployment region: every Azure regional mirror shares FamilyAzure.
const (
	FamilyOpenAI = "openai"
	FamilyAzure  = "azure"
)

// Endpoint identifies one concrete backend an attempt can be issued against.
// Endpoints are immutable value objects built once from configuration; the
// router passes them per attempt instead of mutating any client-level state.
type Endpoint struct {
	// BaseURL is the API root, e.g. "https://api.openai.com/v1" or an
	// Azure resource URL.
	BaseURL string

	// APIKey is the credential presented to this endpoint.
	APIKey string

	// APIVersion is the dialect version query parameter (Azure only).
	APIVersion string

	// Family is the protocol dialect, one of the Family* constants.
	Family string
}

// Host returns the endpoint's host for logging. Credentials never appear in
// logs, so this is the only identity an endpoint exposes.
func (e Endpoint) Host() string {
	u, err := url.Parse(e.BaseURL)
	if err != nil || u.Host == "" {
		return e.BaseURL
	}
	return u.Host
}

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest carries the per-call parameters. It is immutable for the
// duration of a call and forwarded unchanged to whichever backend serves it.
type CompletionRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// CompletionClient performs a single chat-completion attempt against one
// endpoint. Implementations return the completion text or a *ProviderError
// describing the transport/auth/quota failure.
type CompletionClient interface {
	Complete(ctx context.Context, endpoint Endpoint, modelID string, req *CompletionRequest) (string, error)
}
