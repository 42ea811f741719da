package resilience

import (
	"context"

	"github.com/MrWong99/speechcord/pkg/provider/tts"
)

// TTSProvider wraps a [tts.Provider] so that synthesis fails fast with
// [ErrCircuitOpen] while the backend is known to be down. ListVoices is
// passed through unguarded.
type TTSProvider struct {
	tts.Provider
	breaker *Breaker
}

var _ tts.Provider = (*TTSProvider)(nil)

// NewTTSProvider guards p with a breaker built from cfg.
func NewTTSProvider(p tts.Provider, cfg BreakerConfig) *TTSProvider {
	return &TTSProvider{Provider: p, breaker: NewBreaker(cfg)}
}

// Synthesize implements [tts.Provider].
func (g *TTSProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var audio []byte
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		audio, err = g.Provider.Synthesize(ctx, text)
		return err
	})
	return audio, err
}

// Breaker exposes the underlying breaker, e.g. for readiness checks.
func (g *TTSProvider) Breaker() *Breaker { return g.breaker }
