// Package transcribe talks to remote speech-to-text providers. The
// provider set is closed: adding one means adding a constant, a model
// table and a Client implementation here.
package transcribe

import "fmt"

type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
)

var openAIModels = []string{
	"whisper-1",
	"gpt-4o-transcribe",
	"gpt-4o-mini-transcribe",
}

var groqModels = []string{
	"whisper-large-v3-turbo",
	"distil-whisper-large-v3-en",
	"whisper-large-v3",
}

// Providers lists every supported provider identifier, in a stable order.
func Providers() []string {
	return []string{string(ProviderOpenAI), string(ProviderGroq)}
}

// Models lists the transcription models a provider accepts.
func Models(p Provider) ([]string, error) {
	switch p {
	case ProviderOpenAI:
		return append([]string(nil), openAIModels...), nil
	case ProviderGroq:
		return append([]string(nil), groqModels...), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", p)
	}
}

func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderOpenAI:
		return ProviderOpenAI, nil
	case ProviderGroq:
		return ProviderGroq, nil
	default:
		return "", fmt.Errorf("unknown provider %q", s)
	}
}

// ValidModel reports whether model belongs to provider's table.
func ValidModel(p Provider, model string) bool {
	models, err := Models(p)
	if err != nil {
		return false
	}
	for _, m := range models {
		if m == model {
			return true
		}
	}
	return false
}
