// Package speech implements the /speech playback pipeline: synthesize the
// caller's text, convert the MP3 to WAV, join the caller's voice channel,
// play the clip and clean everything up again.
//
// A request moves through Idle → Joining → Playing → Idle. Whatever happens
// along the way, the terminal transition disconnects the voice connection,
// deletes both temp files and frees the guild exactly once.
package speech

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/speechcord/internal/observe"
	"github.com/MrWong99/speechcord/internal/transcode"
	"github.com/MrWong99/speechcord/pkg/audio"
	"github.com/MrWong99/speechcord/pkg/provider/tts"
)

const (
	defaultSynthesisTimeout  = 30 * time.Second
	defaultConversionTimeout = 30 * time.Second
	defaultConnectTimeout    = 15 * time.Second
	defaultPlaybackTimeout   = 10 * time.Minute
)

// ErrClosed is returned by [Pipeline.Speak] after [Pipeline.Close].
var ErrClosed = errors.New("speech: pipeline closed")

// errPlaybackCap marks a clip that was cut off at the maximum playback time.
var errPlaybackCap = errors.New("speech: playback exceeded the maximum duration")

// Request is one /speech invocation.
type Request struct {
	// ID names the request's temp files. Generated by Speak when empty.
	ID string
	// GuildID is the Discord server the command was issued in.
	GuildID string
	// ChannelID is the voice channel the caller occupies. Empty when the
	// caller is not in a voice channel.
	ChannelID string
	// UserID is the caller.
	UserID string
	// Text is what should be spoken.
	Text string
}

// guildSlot is held by the single in-flight request of a guild.
type guildSlot struct {
	guildID string
	state   atomic.Int32
}

// Option is a functional option for [New].
type Option func(*Pipeline)

// WithSynthesisTimeout bounds the provider call.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.synthesisTimeout = d
		}
	}
}

// WithConversionTimeout bounds the MP3 → WAV conversion.
func WithConversionTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.conversionTimeout = d
		}
	}
}

// WithConnectTimeout bounds joining the voice channel.
func WithConnectTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.connectTimeout = d
		}
	}
}

// WithPlaybackTimeout caps how long a single clip may hold the voice connection.
func WithPlaybackTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.playbackTimeout = d
		}
	}
}

// WithRateLimit allows each user perMinute requests per minute. Zero disables it.
func WithRateLimit(perMinute int) Option {
	return func(p *Pipeline) {
		p.limiter = newUserLimiter(perMinute)
	}
}

// WithMetrics records to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithProviderName sets the provider label on provider request metrics.
func WithProviderName(name string) Option {
	return func(p *Pipeline) {
		p.providerName = name
	}
}

// Pipeline runs speech requests. It is safe for concurrent use; at most one
// request per guild is in flight and further requests for that guild are
// rejected with [KindBusy].
type Pipeline struct {
	provider  tts.Provider
	converter transcode.Converter
	platform  audio.Platform
	workspace *Workspace
	metrics   *observe.Metrics
	limiter   *userLimiter

	providerName      string
	synthesisTimeout  time.Duration
	conversionTimeout time.Duration
	connectTimeout    time.Duration
	playbackTimeout   time.Duration

	mu     sync.Mutex
	guilds map[string]*guildSlot
	closed bool

	// inflight counts held guild slots; Close waits for it to drain.
	inflight sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

// New creates a Pipeline. All collaborators are required.
func New(provider tts.Provider, converter transcode.Converter, platform audio.Platform, workspace *Workspace, opts ...Option) *Pipeline {
	baseCtx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		provider:          provider,
		converter:         converter,
		platform:          platform,
		workspace:         workspace,
		providerName:      "elevenlabs",
		synthesisTimeout:  defaultSynthesisTimeout,
		conversionTimeout: defaultConversionTimeout,
		connectTimeout:    defaultConnectTimeout,
		playbackTimeout:   defaultPlaybackTimeout,
		guilds:            make(map[string]*guildSlot),
		baseCtx:           baseCtx,
		cancel:            cancel,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// State reports the session state of guildID.
func (p *Pipeline) State(guildID string) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.guilds[guildID]; ok {
		return State(s.state.Load())
	}
	return StateIdle
}

// Speak validates req, synthesizes and converts the clip, joins the voice
// channel and starts playback. It returns once the clip is playing; the
// returned [Playback] resolves after the terminal cleanup.
//
// Every error is a [*Error]. On error nothing is left behind: no voice
// connection, no temp files, no held guild slot.
func (p *Pipeline) Speak(ctx context.Context, req Request) (*Playback, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	ctx = observe.WithRequest(ctx, req.ID, req.GuildID, req.ChannelID)
	log := observe.Logger(ctx)

	if err := Validate(req); err != nil {
		return nil, p.reject(ctx, newError(KindPrecondition, err))
	}

	slot, busyErr := p.acquire(req.GuildID)
	if busyErr != nil {
		return nil, p.reject(ctx, busyErr)
	}
	handedOff := false
	defer func() {
		if !handedOff {
			p.release(slot)
		}
	}()

	if !p.limiter.Allow(req.UserID) {
		return nil, p.reject(ctx, newError(KindRateLimited, ErrRateLimited))
	}

	// Shutdown aborts requests still synthesizing or converting.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopOnClose := context.AfterFunc(p.baseCtx, cancel)
	defer stopOnClose()

	mp3Path, wavPath := p.workspace.Paths(req.ID)
	cleanup := func() {
		if err := p.workspace.Remove(mp3Path, wavPath); err != nil {
			log.Warn("speech: failed to remove temp files", "error", err)
		}
	}

	log.Debug("speech: synthesizing", "chars", len(req.Text))
	if err := p.synthesize(ctx, req.Text, mp3Path); err != nil {
		cleanup()
		return nil, p.reject(ctx, newError(KindSynthesis, err))
	}

	err := p.convert(ctx, mp3Path, wavPath)
	// The MP3 is no longer needed whether or not conversion worked.
	if rmErr := p.workspace.Remove(mp3Path); rmErr != nil {
		log.Warn("speech: failed to remove mp3", "error", rmErr)
	}
	if err != nil {
		cleanup()
		return nil, p.reject(ctx, newError(KindConversion, err))
	}

	slot.state.Store(int32(StateJoining))
	joinStart := time.Now()
	conn, err := p.connect(ctx, req)
	if err != nil {
		cleanup()
		return nil, p.reject(ctx, newError(KindPlayback, err))
	}
	p.metrics.SessionStarted(ctx)

	src, err := audio.OpenWAV(wavPath)
	if err != nil {
		p.disconnect(ctx, conn)
		p.metrics.SessionEnded(ctx)
		cleanup()
		return nil, p.reject(ctx, newError(KindPlayback, err))
	}

	// Playback outlives the command handler's context but not the pipeline.
	playCtx, playCancel := context.WithTimeoutCause(context.WithoutCancel(ctx), p.playbackTimeout, errPlaybackCap)
	stopPlayOnClose := context.AfterFunc(p.baseCtx, playCancel)
	playCtx, span := observe.StartSpan(playCtx, "speech.play")

	slot.state.Store(int32(StatePlaying))
	done := conn.Play(playCtx, src.Frames(playCtx))
	log.Info("speech: playing", "duration", src.Duration())

	pb := newPlayback(req, &slot.state)
	handedOff = true
	go func() {
		var playErr error
		select {
		case playErr = <-done:
		case <-playCtx.Done():
		}
		if playCtx.Err() != nil {
			playErr = context.Cause(playCtx)
		}
		stopPlayOnClose()
		playCancel()
		if playErr == nil {
			playErr = src.Err()
		}
		if err := src.Close(); err != nil {
			log.Debug("speech: close wav source", "error", err)
		}
		p.finish(playCtx, span, slot, pb, conn, joinStart, playErr, cleanup)
	}()
	return pb, nil
}

// finish is the terminal transition of a request that reached Playing.
func (p *Pipeline) finish(ctx context.Context, span trace.Span, slot *guildSlot, pb *Playback, conn audio.Connection, joinStart time.Time, playErr error, cleanup func()) {
	defer span.End()
	log := observe.Logger(ctx)

	p.disconnect(ctx, conn)
	p.metrics.SessionEnded(ctx)
	cleanup()

	held := time.Since(joinStart)
	p.metrics.PlaybackDuration.Record(ctx, held.Seconds())

	var err error
	status := observe.StatusOK
	if playErr != nil {
		err = newError(KindPlayback, playErr)
		status = KindPlayback.status()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("speech: playback ended with error", "error", playErr, "held", held)
	} else {
		log.Info("speech: playback finished", "held", held)
	}
	p.metrics.RecordSpeechRequest(ctx, status)

	slot.state.Store(int32(StateIdle))
	p.release(slot)
	pb.resolve(err, held)
}

// Validate checks the request preconditions Speak enforces before doing any
// remote work.
func Validate(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	if req.ChannelID == "" {
		return ErrNotInVoiceChannel
	}
	return nil
}

// reject records a request that ended before playback and returns err.
func (p *Pipeline) reject(ctx context.Context, err *Error) error {
	p.metrics.RecordSpeechRequest(ctx, err.Kind.status())
	log := observe.Logger(ctx)
	switch err.Kind {
	case KindPrecondition, KindBusy, KindRateLimited:
		log.Info("speech: request rejected", "kind", err.Kind.String(), "reason", err.Err)
	default:
		log.Error("speech: request failed", "kind", err.Kind.String(), "error", err.Err)
	}
	return err
}

// acquire claims the guild for one request.
func (p *Pipeline) acquire(guildID string) (*guildSlot, *Error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, newError(KindBusy, ErrClosed)
	}
	if _, busy := p.guilds[guildID]; busy {
		return nil, newError(KindBusy, ErrGuildBusy)
	}
	s := &guildSlot{guildID: guildID}
	p.guilds[guildID] = s
	p.inflight.Add(1)
	return s, nil
}

func (p *Pipeline) release(s *guildSlot) {
	p.mu.Lock()
	if p.guilds[s.guildID] == s {
		delete(p.guilds, s.guildID)
	}
	p.mu.Unlock()
	p.inflight.Done()
}

func (p *Pipeline) synthesize(ctx context.Context, text, mp3Path string) error {
	ctx, span := observe.StartSpan(ctx, "speech.synthesize")
	defer span.End()

	sctx, cancel := context.WithTimeout(ctx, p.synthesisTimeout)
	defer cancel()

	start := time.Now()
	data, err := p.provider.Synthesize(sctx, text)
	p.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	if err == nil && len(data) == 0 {
		err = errors.New("provider returned no audio")
	}
	if err != nil {
		p.metrics.RecordProviderRequest(ctx, p.providerName, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	p.metrics.RecordProviderRequest(ctx, p.providerName, "ok")

	if err := os.WriteFile(mp3Path, data, 0o600); err != nil {
		return fmt.Errorf("write mp3: %w", err)
	}
	return nil
}

func (p *Pipeline) convert(ctx context.Context, mp3Path, wavPath string) error {
	ctx, span := observe.StartSpan(ctx, "speech.convert")
	defer span.End()

	cctx, cancel := context.WithTimeout(ctx, p.conversionTimeout)
	defer cancel()

	start := time.Now()
	var res transcode.Result
	select {
	case res = <-p.converter.Convert(cctx, mp3Path, wavPath):
	case <-cctx.Done():
		res.Err = cctx.Err()
	}
	p.metrics.ConversionDuration.Record(ctx, time.Since(start).Seconds())
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		return res.Err
	}
	return nil
}

func (p *Pipeline) connect(ctx context.Context, req Request) (audio.Connection, error) {
	cctx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()
	return p.platform.Connect(cctx, req.GuildID, req.ChannelID)
}

func (p *Pipeline) disconnect(ctx context.Context, conn audio.Connection) {
	if err := conn.Disconnect(); err != nil {
		observe.Logger(ctx).Warn("speech: voice disconnect failed", "error", err)
	}
}

// Close cancels in-flight requests and playbacks and waits until each of them
// has disconnected and removed its files. Speak fails with [ErrClosed]
// afterwards.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
	p.inflight.Wait()
	return nil
}
