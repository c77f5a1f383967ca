package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultCallTimeout bounds each outbound service call.
const DefaultCallTimeout = 5 * time.Second

// Pipeline classifies images. It holds no per-run state and may be used by
// concurrent callers.
type Pipeline struct {
	extractor   ObservationExtractor
	generator   TextGenerator
	encoder     Encoder
	category    string
	callTimeout time.Duration
	observer    Observer
	logger      *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithCallTimeout sets the per-call timeout. Zero or negative disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.callTimeout = d }
}

// WithMaxDimension sets the largest width or height sent to the vision service.
func WithMaxDimension(px int) Option {
	return func(p *Pipeline) { p.encoder.MaxDimension = px }
}

// WithCategory overrides the category attached to results.
func WithCategory(category string) Option {
	return func(p *Pipeline) {
		if category != "" {
			p.category = category
		}
	}
}

// WithObserver registers an observer for stage and run outcomes.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		if o != nil {
			p.observer = o
		}
	}
}

// NewPipeline builds a pipeline over the given service capabilities. Both
// extractor and generator are required; NewPipeline panics if either is nil.
func NewPipeline(extractor ObservationExtractor, generator TextGenerator, logger *zap.Logger, opts ...Option) *Pipeline {
	if extractor == nil {
		panic("classifier: NewPipeline called with nil ObservationExtractor")
	}
	if generator == nil {
		panic("classifier: NewPipeline called with nil TextGenerator")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		extractor:   extractor,
		generator:   generator,
		encoder:     Encoder{MaxDimension: DefaultMaxDimension},
		category:    DefaultCategory,
		callTimeout: DefaultCallTimeout,
		observer:    nopObserver{},
		logger:      logger.Named("classification_pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Classify runs the full chain for one image. It returns either a complete
// result or a *ClassificationError; intermediate outputs are never returned.
// Nothing is retried.
func (p *Pipeline) Classify(ctx context.Context, image ImageHandle) (*DisposalResult, error) {
	r := &run{observer: p.observer, logger: p.logger, started: time.Now()}

	if err := r.enter(ctx, StageEncoding); err != nil {
		return nil, err
	}
	encoded, err := p.encoder.Encode(image)
	if err != nil {
		return nil, r.fail(KindImageReadFailed, err)
	}

	if err := r.enter(ctx, StageExtractingObservations); err != nil {
		return nil, err
	}
	var obs *VisionObservation
	err = p.call(ctx, func(callCtx context.Context) error {
		var callErr error
		obs, callErr = p.extractor.ExtractObservations(callCtx, encoded)
		if callErr == nil && obs == nil {
			callErr = fmt.Errorf("%w: no observation returned", ErrMalformedResponse)
		}
		return callErr
	})
	if err != nil {
		return nil, r.fail(failureKind(ctx, err, KindVisionServiceFailed), err)
	}
	r.logger.Debug("observations extracted",
		zap.Strings("labels", obs.Labels),
		zap.Int("text_length", len(obs.Text)),
	)

	if err := r.enter(ctx, StageRequestingAdvice); err != nil {
		return nil, err
	}
	adviceText, err := p.generate(ctx, advicePrompt(obs))
	if err != nil {
		return nil, r.fail(failureKind(ctx, err, KindAdviceServiceFailed), err)
	}
	advice := DisposalAdvice(adviceText)

	if err := r.enter(ctx, StageCondensingAdvice); err != nil {
		return nil, err
	}
	condensed, err := p.generate(ctx, condensePrompt(advice))
	if err == nil {
		if condensed = cleanCondensed(condensed); condensed == "" {
			err = fmt.Errorf("%w: condensed text empty after cleanup", ErrMalformedResponse)
		}
	}
	if err != nil {
		return nil, r.fail(failureKind(ctx, err, KindCondenseServiceFailed), err)
	}

	r.done()
	return &DisposalResult{
		Item:     obs.Item(),
		Reason:   condensed,
		Category: p.category,
	}, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	var text string
	err := p.call(ctx, func(callCtx context.Context) error {
		var callErr error
		text, callErr = p.generator.GenerateText(callCtx, prompt)
		if callErr == nil && strings.TrimSpace(text) == "" {
			callErr = fmt.Errorf("%w: empty completion", ErrMalformedResponse)
		}
		return callErr
	})
	return text, err
}

func (p *Pipeline) call(ctx context.Context, fn func(context.Context) error) error {
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if p.callTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, p.callTimeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	err := fn(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

// failureKind separates caller cancellation and timeouts from service failures.
func failureKind(ctx context.Context, err error, fallback ErrorKind) ErrorKind {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return fallback
	}
}

// run carries the state of a single Classify call.
type run struct {
	stage        Stage
	started      time.Time
	stageStarted time.Time
	observer     Observer
	logger       *zap.Logger
}

// enter finishes the current stage and moves to next. The caller's context
// is checked on every transition.
func (r *run) enter(ctx context.Context, next Stage) error {
	r.transition(next)
	if err := ctx.Err(); err != nil {
		kind := KindCanceled
		if errors.Is(err, context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return r.fail(kind, err)
	}
	return nil
}

func (r *run) fail(kind ErrorKind, err error) error {
	failed := r.stage
	r.observer.StageFinished(failed, time.Since(r.stageStarted), err)
	r.transition(StageFailed)
	elapsed := time.Since(r.started)
	r.observer.RunFinished(StageFailed, kind, elapsed)
	r.logger.Warn("classification failed",
		zap.String("stage", failed.String()),
		zap.String("kind", string(kind)),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
	)
	return &ClassificationError{Kind: kind, Stage: failed, Err: err}
}

func (r *run) done() {
	r.transition(StageDone)
	elapsed := time.Since(r.started)
	r.observer.RunFinished(StageDone, "", elapsed)
	r.logger.Debug("classification finished", zap.Duration("elapsed", elapsed))
}

func (r *run) transition(next Stage) {
	if !CanTransition(r.stage, next) {
		panic(fmt.Sprintf("classifier: invalid transition %s -> %s", r.stage, next))
	}
	now := time.Now()
	if r.stage.Working() && next != StageFailed {
		r.observer.StageFinished(r.stage, now.Sub(r.stageStarted), nil)
	}
	r.stage = next
	r.stageStarted = now
}
