/*
Package quiz owns quiz content resolution and answer scoring.

The Orchestrator produces exactly count questions for a (topic, count)
pair: generation first when a generator is configured, bounded by a hard
deadline, with strict validation of the output; the static bank otherwise.
It never fails: every degradation path lands on the bank.
*/
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sediba/edubot/internal/domain"
	"github.com/sediba/edubot/internal/logging"
	"github.com/sediba/edubot/internal/metrics"
	"github.com/sediba/edubot/internal/ports"
)

// ErrInsufficient is returned by output validation when the generator
// produced fewer well-formed questions than requested.
var ErrInsufficient = errors.New("generator returned too few usable questions")

const defaultTimeout = 10 * time.Second

// Orchestrator resolves quiz content with a generation-first, static-fallback
// policy. It is invoked exactly once per quiz, at the count-selection
// transition; the caller freezes the result into the session.
type Orchestrator struct {
	bank       ports.QuestionBank
	generator  ports.QuestionGenerator
	timeout    time.Duration
	difficulty string
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithGenerator enables content generation. Without one the Orchestrator
// serves the static bank only.
func WithGenerator(g ports.QuestionGenerator) Option {
	return func(o *Orchestrator) {
		o.generator = g
	}
}

// WithTimeout bounds each generator call. The bound must stay well inside
// the gateway's response budget; the default is 10s against a 15s budget.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithDifficulty sets the difficulty hint passed to the generator.
func WithDifficulty(difficulty string) Option {
	return func(o *Orchestrator) {
		if difficulty != "" {
			o.difficulty = difficulty
		}
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator creates an Orchestrator over the given static bank.
func NewOrchestrator(bank ports.QuestionBank, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bank:       bank,
		timeout:    defaultTimeout,
		difficulty: "easy",
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type genResult struct {
	questions []domain.QuizQuestion
	err       error
}

// Questions returns exactly count questions for the topic, tagged with
// their provenance. Generation failures of any kind (timeout, transport
// error, malformed or insufficient output) fall through to the bank and
// are never surfaced to the caller.
func (o *Orchestrator) Questions(ctx context.Context, topic domain.Topic, count int) ([]domain.QuizQuestion, domain.QuestionSource) {
	if o.generator == nil {
		o.countGeneration(metrics.GenerationDisabled)
		return o.bank.Draw(topic, count), domain.SourceStatic
	}

	genCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	// Race the generator against the deadline. A generator that overruns
	// its context is abandoned, not awaited: the buffered channel lets the
	// goroutine finish on its own while the caller moves on.
	ch := make(chan genResult, 1)
	start := time.Now()
	go func() {
		questions, err := o.generator.Generate(genCtx, topic, count, o.difficulty)
		ch <- genResult{questions: questions, err: err}
	}()

	var res genResult
	select {
	case <-genCtx.Done():
		res.err = genCtx.Err()
	case res = <-ch:
	}
	elapsed := time.Since(start)
	if o.metrics != nil {
		o.metrics.GenerationSeconds.Observe(elapsed.Seconds())
	}

	questions := res.questions
	err := res.err
	if err == nil {
		questions, err = validateGenerated(questions, count)
	}
	if err != nil {
		o.countGeneration(fallbackReason(err))
		o.logger.Warn("question generation failed, using static bank",
			"topic", topic,
			"count", count,
			"elapsed", elapsed,
			"err", err,
		)
		return o.bank.Draw(topic, count), domain.SourceStatic
	}

	o.countGeneration(metrics.GenerationGenerated)
	o.logger.Info("generated quiz questions",
		"topic", topic,
		"count", count,
		"elapsed", elapsed,
	)
	return questions, domain.SourceGenerated
}

func (o *Orchestrator) countGeneration(result string) {
	if o.metrics != nil {
		o.metrics.Generation.WithLabelValues(result).Inc()
	}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return metrics.GenerationTimeout
	case errors.Is(err, ErrInsufficient):
		return metrics.GenerationInsufficient
	default:
		return metrics.GenerationFailed
	}
}

// validateGenerated keeps only well-formed questions (non-empty text, a
// numeric answer) and truncates to exactly count.
func validateGenerated(questions []domain.QuizQuestion, count int) ([]domain.QuizQuestion, error) {
	valid := make([]domain.QuizQuestion, 0, count)
	for _, q := range questions {
		if !wellFormed(q) {
			continue
		}
		valid = append(valid, q)
		if len(valid) == count {
			return valid, nil
		}
	}
	return nil, fmt.Errorf("%w: %d of %d", ErrInsufficient, len(valid), count)
}

func wellFormed(q domain.QuizQuestion) bool {
	if strings.TrimSpace(q.Question) == "" {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(q.Answer), 64)
	return err == nil
}
