package translator

import (
	"context"
	"fmt"
)

// New builds the backend named by kind.
func New(ctx context.Context, kind Kind, cfg ServiceConfig) (Client, error) {
	switch kind {
	case KindGoogle:
		return NewGoogleService(ctx, cfg)
	case KindDeepL:
		return NewDeepLService(cfg)
	case KindOpenAI:
		return NewOpenAIService(cfg)
	case KindOllama:
		return NewOllamaTranslator(cfg), nil
	case KindMyMemory:
		return NewMyMemoryService(cfg), nil
	default:
		return nil, fmt.Errorf("unknown translator %q", kind)
	}
}
