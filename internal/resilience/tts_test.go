package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	ttsmock "github.com/MrWong99/speechcord/pkg/provider/tts/mock"
)

func TestTTSProvider_PassesThrough(t *testing.T) {
	inner := &ttsmock.Provider{SynthesizeResult: []byte("mp3")}
	p := NewTTSProvider(inner, BreakerConfig{Name: "elevenlabs"})

	got, err := p.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(got) != "mp3" {
		t.Errorf("audio = %q", got)
	}
	if inner.CallCount() != 1 || inner.SynthesizeCalls[0].Text != "hello" {
		t.Errorf("calls = %+v", inner.SynthesizeCalls)
	}
}

func TestTTSProvider_FailsFastWhenOpen(t *testing.T) {
	inner := &ttsmock.Provider{SynthesizeErr: errors.New("503")}
	p := NewTTSProvider(inner, BreakerConfig{Name: "elevenlabs", MaxFailures: 2, Cooldown: time.Hour})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := p.Synthesize(ctx, "x"); err == nil {
			t.Fatal("expected provider error")
		}
	}
	if _, err := p.Synthesize(ctx, "x"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if inner.CallCount() != 2 {
		t.Errorf("provider called %d times, want 2", inner.CallCount())
	}
	if p.Breaker().State() != StateOpen {
		t.Errorf("state = %v", p.Breaker().State())
	}
}

func TestTTSProvider_ListVoicesUnguarded(t *testing.T) {
	inner := &ttsmock.Provider{SynthesizeErr: errors.New("503")}
	p := NewTTSProvider(inner, BreakerConfig{MaxFailures: 1, Cooldown: time.Hour})
	_, _ = p.Synthesize(context.Background(), "x")

	if _, err := p.ListVoices(context.Background()); err != nil {
		t.Errorf("ListVoices: %v", err)
	}
}

func TestTTSProvider_HungBackendOpensCircuit(t *testing.T) {
	inner := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, _ string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	p := NewTTSProvider(inner, BreakerConfig{Name: "elevenlabs", MaxFailures: 2, Cooldown: time.Hour})

	synth := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := p.Synthesize(ctx, "x")
		return err
	}
	for i := 0; i < 2; i++ {
		if err := synth(); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("call %d: err = %v, want DeadlineExceeded", i, err)
		}
	}
	if err := synth(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if inner.CallCount() != 2 {
		t.Errorf("provider called %d times, want 2", inner.CallCount())
	}
}

func TestTTSProvider_CallerCancelDoesNotOpenCircuit(t *testing.T) {
	inner := &ttsmock.Provider{
		SynthesizeFunc: func(ctx context.Context, _ string) ([]byte, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	p := NewTTSProvider(inner, BreakerConfig{MaxFailures: 1, Cooldown: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Synthesize(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if p.Breaker().State() != StateClosed {
		t.Errorf("state = %v, want closed", p.Breaker().State())
	}
}
