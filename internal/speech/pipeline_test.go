package speech

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/speechcord/internal/observe"
	"github.com/MrWong99/speechcord/internal/resilience"
	"github.com/MrWong99/speechcord/internal/transcode"
	"github.com/MrWong99/speechcord/pkg/audio"
	audiomock "github.com/MrWong99/speechcord/pkg/audio/mock"
	ttsmock "github.com/MrWong99/speechcord/pkg/provider/tts/mock"
)

// ─── test doubles ─────────────────────────────────────────────────────────────

// fakeConverter writes a short silent WAV, or fails with Err.
type fakeConverter struct {
	mu      sync.Mutex
	Err     error
	Samples int
	Calls   []string // input paths
	inputOK []bool   // whether the input existed when Convert was called
}

func (f *fakeConverter) Name() string                { return "fake" }
func (f *fakeConverter) Check(context.Context) error { return nil }

func (f *fakeConverter) Convert(_ context.Context, inPath, outPath string) <-chan transcode.Result {
	out := make(chan transcode.Result, 1)
	f.mu.Lock()
	f.Calls = append(f.Calls, inPath)
	_, statErr := os.Stat(inPath)
	f.inputOK = append(f.inputOK, statErr == nil)
	convErr, samples := f.Err, f.Samples
	f.mu.Unlock()

	go func() {
		defer close(out)
		if convErr != nil {
			out <- transcode.Result{Err: convErr}
			return
		}
		if err := writeSilentWAV(outPath, samples); err != nil {
			out <- transcode.Result{Err: err}
			return
		}
		out <- transcode.Result{Path: outPath}
	}()
	return out
}

func (f *fakeConverter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

func writeSilentWAV(path string, samples int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return wav.Encode(f, beep.Silence(samples), beep.Format{SampleRate: audio.SampleRate, NumChannels: 2, Precision: 2})
}

type fixture struct {
	pipeline  *Pipeline
	provider  *ttsmock.Provider
	converter *fakeConverter
	platform  *audiomock.Platform
	conn      *audiomock.Connection
	workspace *Workspace
	reader    *sdkmetric.ManualReader
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	ws, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	f := &fixture{
		provider:  &ttsmock.Provider{SynthesizeResult: []byte("ID3-fake-mp3")},
		converter: &fakeConverter{Samples: audio.FrameSamples * 5},
		conn:      &audiomock.Connection{ChannelIDResult: "V"},
		workspace: ws,
		reader:    reader,
	}
	f.platform = &audiomock.Platform{ConnectResult: f.conn}

	opts = append([]Option{WithMetrics(metrics)}, opts...)
	f.pipeline = New(f.provider, f.converter, f.platform, ws, opts...)
	t.Cleanup(func() { _ = f.pipeline.Close() })
	return f
}

func (f *fixture) assertWorkspaceEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.workspace.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("workspace not empty: %v", names)
	}
}

func (f *fixture) requests(t *testing.T, status string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := f.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "speechcord.speech.requests" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				if v, ok := dp.Attributes.Value("status"); ok && v.AsString() == status {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func request(text, channel string) Request {
	return Request{GuildID: "guild-1", ChannelID: channel, UserID: "user-1", Text: text}
}

func waitPlayback(t *testing.T, pb *Playback) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := pb.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		t.Fatal("timed out waiting for playback")
	}
	return err
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("error %v is not a *speech.Error", err)
	}
	if se.Kind != kind {
		t.Fatalf("kind = %s, want %s (err: %v)", se.Kind, kind, err)
	}
}

// ─── scenarios ────────────────────────────────────────────────────────────────

func TestSpeak_HelloWorld(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	pb, err := f.pipeline.Speak(context.Background(), request("Hello world", "V"))
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if pb.Request.ID == "" {
		t.Error("request ID was not generated")
	}
	if err := waitPlayback(t, pb); err != nil {
		t.Fatalf("playback: %v", err)
	}

	if f.provider.CallCount() != 1 || f.provider.SynthesizeCalls[0].Text != "Hello world" {
		t.Errorf("provider calls = %+v", f.provider.SynthesizeCalls)
	}
	if f.platform.Connects() != 1 {
		t.Fatalf("connects = %d, want 1", f.platform.Connects())
	}
	if got := f.platform.ConnectCalls[0]; got.GuildID != "guild-1" || got.ChannelID != "V" {
		t.Errorf("joined %+v, want guild-1/V", got)
	}
	if f.conn.Frames() != 5 {
		t.Errorf("frames played = %d, want 5", f.conn.Frames())
	}
	if f.conn.Disconnects() != 1 {
		t.Errorf("disconnects = %d, want 1", f.conn.Disconnects())
	}
	if pb.State() != StateIdle || f.pipeline.State("guild-1") != StateIdle {
		t.Errorf("state after playback = %s / %s, want idle", pb.State(), f.pipeline.State("guild-1"))
	}
	if pb.Duration() <= 0 {
		t.Error("duration not recorded")
	}
	f.assertWorkspaceEmpty(t)
	if got := f.requests(t, observe.StatusOK); got != 1 {
		t.Errorf("ok requests = %d, want 1", got)
	}
}

func TestSpeak_NotInVoiceChannel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	pb, err := f.pipeline.Speak(context.Background(), request("Hello world", ""))
	if pb != nil {
		t.Error("expected no playback")
	}
	wantKind(t, err, KindPrecondition)
	if !errors.Is(err, ErrNotInVoiceChannel) {
		t.Errorf("err = %v, want ErrNotInVoiceChannel", err)
	}
	if UserMessage(err) != MsgNotInVoiceChannel {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
	if f.provider.CallCount() != 0 {
		t.Error("synthesis must not be called for an invalid request")
	}
	if f.platform.Connects() != 0 {
		t.Error("no connection may be created")
	}
	f.assertWorkspaceEmpty(t)
	if got := f.requests(t, observe.StatusPrecondition); got != 1 {
		t.Errorf("precondition requests = %d, want 1", got)
	}
}

func TestSpeak_EmptyText(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, text := range []string{"", "   \n\t"} {
		_, err := f.pipeline.Speak(context.Background(), request(text, "V"))
		wantKind(t, err, KindPrecondition)
		if !errors.Is(err, ErrEmptyText) {
			t.Errorf("err = %v, want ErrEmptyText", err)
		}
	}
	if f.provider.CallCount() != 0 {
		t.Error("synthesis must not be called for empty text")
	}
}

func TestSpeak_SynthesisFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result []byte
		err    error
	}{
		{name: "provider error", err: errors.New("elevenlabs: synthesize: unexpected status 401")},
		{name: "empty audio", result: []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.provider.SynthesizeResult = tt.result
			f.provider.SynthesizeErr = tt.err

			_, err := f.pipeline.Speak(context.Background(), request("Hello world", "V"))
			wantKind(t, err, KindSynthesis)
			if tt.err != nil && !errors.Is(err, tt.err) {
				t.Errorf("cause not wrapped: %v", err)
			}
			if UserMessage(err) != MsgGeneration {
				t.Errorf("UserMessage = %q", UserMessage(err))
			}
			if f.converter.callCount() != 0 {
				t.Error("conversion must not run after a synthesis failure")
			}
			if f.platform.Connects() != 0 {
				t.Error("no connection may be created after a synthesis failure")
			}
			f.assertWorkspaceEmpty(t)
			if f.pipeline.State("guild-1") != StateIdle {
				t.Error("guild slot not released")
			}
		})
	}
}

func TestSpeak_ConversionFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.converter.Err = errors.New("transcode: ffmpeg: exit status 1: Invalid data")

	_, err := f.pipeline.Speak(context.Background(), request("Hello world", "V"))
	wantKind(t, err, KindConversion)
	if UserMessage(err) != MsgGeneration {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
	if len(f.converter.inputOK) != 1 || !f.converter.inputOK[0] {
		t.Error("converter should have been handed the persisted mp3")
	}
	if f.platform.Connects() != 0 {
		t.Error("no connection may be created after a conversion failure")
	}
	f.assertWorkspaceEmpty(t)
}

func TestSpeak_ConnectFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.platform.ConnectError = errors.New("missing permissions")

	_, err := f.pipeline.Speak(context.Background(), request("Hello world", "V"))
	wantKind(t, err, KindPlayback)
	if UserMessage(err) != MsgPlayback {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
	f.assertWorkspaceEmpty(t)
	if f.pipeline.State("guild-1") != StateIdle {
		t.Error("guild slot not released")
	}
}

func TestSpeak_UnreadableWAV(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.pipeline.converter = convertFunc(func(_ context.Context, _, out string) error {
		return os.WriteFile(out, []byte("not a wav"), 0o600)
	})

	_, err := f.pipeline.Speak(context.Background(), request("Hello world", "V"))
	wantKind(t, err, KindPlayback)
	if f.conn.Disconnects() != 1 {
		t.Errorf("disconnects = %d, want 1", f.conn.Disconnects())
	}
	f.assertWorkspaceEmpty(t)
}

func TestSpeak_PlaybackErrorStillCleansUp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.conn.PlayError = errors.New("udp: connection reset")

	pb, err := f.pipeline.Speak(context.Background(), request("Hello world", "V"))
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	perr := waitPlayback(t, pb)
	wantKind(t, perr, KindPlayback)
	if !errors.Is(perr, f.conn.PlayError) {
		t.Errorf("cause not wrapped: %v", perr)
	}
	if pb.Err() != perr {
		t.Errorf("Err() = %v, want %v", pb.Err(), perr)
	}
	if f.conn.Disconnects() != 1 {
		t.Errorf("disconnects = %d, want 1", f.conn.Disconnects())
	}
	f.assertWorkspaceEmpty(t)
	if got := f.requests(t, observe.StatusPlayback); got != 1 {
		t.Errorf("playback_error requests = %d, want 1", got)
	}
}

func TestSpeak_BusyGuildIsRejected(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	hold := make(chan struct{})
	f.conn.Hold = hold

	first, err := f.pipeline.Speak(context.Background(), request("first", "V"))
	if err != nil {
		t.Fatalf("first Speak: %v", err)
	}
	if first.State() != StatePlaying || f.pipeline.State("guild-1") != StatePlaying {
		t.Errorf("state = %s, want playing", first.State())
	}

	_, err = f.pipeline.Speak(context.Background(), request("second", "V"))
	wantKind(t, err, KindBusy)
	if !errors.Is(err, ErrGuildBusy) {
		t.Errorf("err = %v, want ErrGuildBusy", err)
	}
	if UserMessage(err) != MsgBusy {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
	if f.provider.CallCount() != 1 {
		t.Errorf("busy request must not synthesize, calls = %d", f.provider.CallCount())
	}

	close(hold)
	if err := waitPlayback(t, first); err != nil {
		t.Fatalf("first playback: %v", err)
	}

	// The guild is free again.
	third, err := f.pipeline.Speak(context.Background(), request("third", "V"))
	if err != nil {
		t.Fatalf("third Speak: %v", err)
	}
	if err := waitPlayback(t, third); err != nil {
		t.Fatalf("third playback: %v", err)
	}
}

func TestSpeak_SequentialRequestsAreIndependent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	var ids []string
	for range 2 {
		pb, err := f.pipeline.Speak(context.Background(), request("Hello world", "V"))
		if err != nil {
			t.Fatalf("Speak: %v", err)
		}
		if err := waitPlayback(t, pb); err != nil {
			t.Fatalf("playback: %v", err)
		}
		f.assertWorkspaceEmpty(t)
		ids = append(ids, pb.Request.ID)
	}
	if ids[0] == ids[1] {
		t.Errorf("requests shared ID %q", ids[0])
	}
	if f.platform.Connects() != 2 || f.conn.Disconnects() != 2 {
		t.Errorf("connects=%d disconnects=%d, want 2/2", f.platform.Connects(), f.conn.Disconnects())
	}
	// Each request used its own temp paths.
	if len(f.converter.Calls) != 2 || f.converter.Calls[0] == f.converter.Calls[1] {
		t.Errorf("converter inputs = %v", f.converter.Calls)
	}
	for _, in := range f.converter.Calls {
		if !strings.Contains(in, ids[0]) && !strings.Contains(in, ids[1]) {
			t.Errorf("temp path %q does not embed a request ID", in)
		}
	}
}

func TestSpeak_RateLimited(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithRateLimit(1))

	pb, err := f.pipeline.Speak(context.Background(), request("one", "V"))
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if err := waitPlayback(t, pb); err != nil {
		t.Fatalf("playback: %v", err)
	}

	_, err = f.pipeline.Speak(context.Background(), request("two", "V"))
	wantKind(t, err, KindRateLimited)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want ErrRateLimited", err)
	}
	if f.provider.CallCount() != 1 {
		t.Errorf("rate-limited request must not synthesize, calls = %d", f.provider.CallCount())
	}
	if f.pipeline.State("guild-1") != StateIdle {
		t.Error("guild slot not released after rate limit")
	}

	// Another user is not affected.
	req := request("three", "V")
	req.UserID = "user-2"
	pb, err = f.pipeline.Speak(context.Background(), req)
	if err != nil {
		t.Fatalf("other user Speak: %v", err)
	}
	_ = waitPlayback(t, pb)
}

func TestSpeak_PlaybackCap(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithPlaybackTimeout(50*time.Millisecond))
	f.conn.Hold = make(chan struct{}) // never released

	pb, err := f.pipeline.Speak(context.Background(), request("long", "V"))
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	perr := waitPlayback(t, pb)
	wantKind(t, perr, KindPlayback)
	if !errors.Is(perr, errPlaybackCap) {
		t.Errorf("err = %v, want playback cap", perr)
	}
	if f.conn.Disconnects() != 1 {
		t.Errorf("disconnects = %d, want 1", f.conn.Disconnects())
	}
	f.assertWorkspaceEmpty(t)
}

func TestSpeak_HandlerContextDoesNotStopPlayback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	hold := make(chan struct{})
	f.conn.Hold = hold

	ctx, cancel := context.WithCancel(context.Background())
	pb, err := f.pipeline.Speak(ctx, request("Hello world", "V"))
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	cancel()

	select {
	case <-pb.Done():
		t.Fatal("playback ended when the request context was cancelled")
	case <-time.After(50 * time.Millisecond):
	}
	close(hold)
	if err := waitPlayback(t, pb); err != nil {
		t.Fatalf("playback: %v", err)
	}
}

func TestClose_StopsPlaybackAndCleansUp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.conn.Hold = make(chan struct{}) // never released

	pb, err := f.pipeline.Speak(context.Background(), request("Hello world", "V"))
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if err := f.pipeline.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Close returns after cleanup; the future resolves right behind it.
	if f.conn.Disconnects() != 1 {
		t.Errorf("disconnects = %d, want 1", f.conn.Disconnects())
	}
	f.assertWorkspaceEmpty(t)
	perr := waitPlayback(t, pb)
	wantKind(t, perr, KindPlayback)
	if !errors.Is(perr, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", perr)
	}
	_, err = f.pipeline.Speak(context.Background(), request("again", "V"))
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Speak after Close = %v, want ErrClosed", err)
	}
	if UserMessage(err) != MsgShuttingDown {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
}

// convertFunc adapts a blocking function to transcode.Converter.
type convertFunc func(ctx context.Context, in, out string) error

func (f convertFunc) Name() string                { return "func" }
func (f convertFunc) Check(context.Context) error { return nil }
func (f convertFunc) Convert(ctx context.Context, in, out string) <-chan transcode.Result {
	ch := make(chan transcode.Result, 1)
	if err := f(ctx, in, out); err != nil {
		ch <- transcode.Result{Err: err}
	} else {
		ch <- transcode.Result{Path: out}
	}
	close(ch)
	return ch
}

// ─── stage timeouts ───────────────────────────────────────────────────────────

// stallingConverter never finishes on its own; it reports once ctx ends.
type stallingConverter struct{ calls chan string }

func (c stallingConverter) Name() string                { return "stalling" }
func (c stallingConverter) Check(context.Context) error { return nil }
func (c stallingConverter) Convert(ctx context.Context, in, _ string) <-chan transcode.Result {
	c.calls <- in
	out := make(chan transcode.Result, 1)
	go func() {
		defer close(out)
		<-ctx.Done()
		out <- transcode.Result{Err: ctx.Err()}
	}()
	return out
}

func blockUntilDone(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// speakWithin fails the test if Speak does not return inside limit.
func speakWithin(t *testing.T, p *Pipeline, req Request, limit time.Duration) error {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := p.Speak(context.Background(), req)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(limit):
		t.Fatalf("Speak still blocked after %s", limit)
		return nil
	}
}

func (f *fixture) assertSlotReleased(t *testing.T) {
	t.Helper()
	if got := f.pipeline.State("guild-1"); got != StateIdle {
		t.Errorf("guild state = %s, want idle", got)
	}
	f.pipeline.mu.Lock()
	held := len(f.pipeline.guilds)
	f.pipeline.mu.Unlock()
	if held != 0 {
		t.Errorf("%d guild slots still held", held)
	}
}

func TestSpeak_SynthesisTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithSynthesisTimeout(20*time.Millisecond))
	f.provider.SynthesizeFunc = blockUntilDone

	err := speakWithin(t, f.pipeline, request("Hello world", "V"), 5*time.Second)
	wantKind(t, err, KindSynthesis)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if f.converter.callCount() != 0 {
		t.Error("conversion must not run after a synthesis timeout")
	}
	if f.platform.Connects() != 0 {
		t.Errorf("connects = %d, want 0", f.platform.Connects())
	}
	f.assertWorkspaceEmpty(t)
	f.assertSlotReleased(t)
}

func TestSpeak_ConversionTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithConversionTimeout(20*time.Millisecond))
	conv := stallingConverter{calls: make(chan string, 1)}
	f.pipeline.converter = conv

	err := speakWithin(t, f.pipeline, request("Hello world", "V"), 5*time.Second)
	wantKind(t, err, KindConversion)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	select {
	case in := <-conv.calls:
		if !strings.HasSuffix(in, ".mp3") {
			t.Errorf("converter input = %q, want the mp3", in)
		}
	default:
		t.Error("converter was never called")
	}
	if f.platform.Connects() != 0 {
		t.Errorf("connects = %d, want 0", f.platform.Connects())
	}
	f.assertWorkspaceEmpty(t)
	f.assertSlotReleased(t)
}

func TestSpeak_ConnectTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, WithConnectTimeout(20*time.Millisecond))
	f.platform.ConnectFunc = func(ctx context.Context, _, _ string) (audio.Connection, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	err := speakWithin(t, f.pipeline, request("Hello world", "V"), 5*time.Second)
	wantKind(t, err, KindPlayback)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if UserMessage(err) != MsgPlayback {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
	if f.platform.Connects() != 1 {
		t.Errorf("connects = %d, want 1", f.platform.Connects())
	}
	if f.conn.Frames() != 0 {
		t.Error("nothing may be played when the join times out")
	}
	f.assertWorkspaceEmpty(t)
	f.assertSlotReleased(t)

	// The guild is usable again once the gateway answers.
	f.platform.ConnectFunc = nil
	pb, err := f.pipeline.Speak(context.Background(), request("again", "V"))
	if err != nil {
		t.Fatalf("Speak after timeout: %v", err)
	}
	if err := waitPlayback(t, pb); err != nil {
		t.Fatalf("playback: %v", err)
	}
}

func TestSpeak_HungProviderTripsBreaker(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.provider.SynthesizeFunc = blockUntilDone
	guarded := resilience.NewTTSProvider(f.provider, resilience.BreakerConfig{
		Name:        "elevenlabs",
		MaxFailures: 2,
		Cooldown:    time.Minute,
	})
	p := New(guarded, f.converter, f.platform, f.workspace, WithSynthesisTimeout(10*time.Millisecond))
	t.Cleanup(func() { _ = p.Close() })

	for range 2 {
		err := speakWithin(t, p, request("Hello world", "V"), 5*time.Second)
		wantKind(t, err, KindSynthesis)
	}
	if got := guarded.Breaker().State(); got != resilience.StateOpen {
		t.Fatalf("breaker state = %s, want open", got)
	}

	err := speakWithin(t, p, request("Hello world", "V"), time.Second)
	wantKind(t, err, KindSynthesis)
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if f.provider.CallCount() != 2 {
		t.Errorf("backend calls = %d, want 2", f.provider.CallCount())
	}
	f.assertWorkspaceEmpty(t)
}
