/*
Package ussd implements the menu state machine at the heart of the service.

Every gateway request carries the full choice path since the dial began
("2*1*5" means quiz, first topic, five questions). The machine replays
that path against the stored session to re-derive the logical state,
applies the newest choices, persists the session, and answers with the
next screen. Two things cannot be re-derived from the path and therefore
live in the session: quiz content, which may come from a nondeterministic
generator and is frozen exactly once at count selection, and the restart
offset left behind when an expired dialog resumes under a deep path.
*/
package ussd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sediba/edubot/internal/content"
	"github.com/sediba/edubot/internal/domain"
	"github.com/sediba/edubot/internal/logging"
	"github.com/sediba/edubot/internal/metrics"
	"github.com/sediba/edubot/internal/quiz"
	"github.com/sediba/edubot/internal/session"
)

// Response is the outcome of one gateway round trip.
type Response struct {
	// Continue keeps the dialog open when true. False means the dialog is
	// over and the session has already been deleted.
	Continue bool
	// Text is the screen body, without gateway framing.
	Text string
	// Deliveries are the background sends this transition scheduled. The
	// transport hands them off after writing the response; the dialog never
	// waits on them.
	Deliveries []domain.DeliveryRequest
}

// Machine drives the dialog. All collaborators are fixed at construction;
// Handle is safe for concurrent use across session ids.
type Machine struct {
	sessions *session.Manager
	quizzes  *quiz.Orchestrator
	catalog  *content.Catalog

	counts       []int
	defaultCount int
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures the Machine.
type Option func(*Machine)

// WithCounts sets the allowed question counts and the fallback used when
// the subscriber types anything else.
func WithCounts(allowed []int, fallback int) Option {
	return func(m *Machine) {
		if len(allowed) > 0 {
			m.counts = allowed
		}
		if fallback > 0 {
			m.defaultCount = fallback
		}
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics enables instrumentation.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Machine) {
		m.metrics = mx
	}
}

// NewMachine creates a Machine over its collaborators.
func NewMachine(sessions *session.Manager, quizzes *quiz.Orchestrator, catalog *content.Catalog, opts ...Option) *Machine {
	m := &Machine{
		sessions:     sessions,
		quizzes:      quizzes,
		catalog:      catalog,
		counts:       []int{3, 5, 10},
		defaultCount: 5,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle processes one gateway round trip. Requests for the same session
// id serialize; requests for different ids run in parallel.
func (m *Machine) Handle(ctx context.Context, sessionID, origin, path string) (*Response, error) {
	var resp *Response
	err := m.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		resp, err = m.handleLocked(ctx, sessionID, origin, path)
		return err
	})
	m.countRequest(resp, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *Machine) handleLocked(ctx context.Context, sessionID, origin, path string) (*Response, error) {
	store := m.sessions.Store()
	toks := tokens(path)

	sess, err := store.Load(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		sess = domain.NewSession(sessionID, origin)
		if len(toks) > 1 {
			// The dialog expired mid-flight. The stale tokens cannot be
			// trusted (they may answer quiz content that died with the
			// session), so the dialog restarts at the main menu and only
			// choices made from here on count.
			sess.PathOffset = len(toks)
			m.countRestart()
			m.logger.Info("session expired under deep path, dialog restarted",
				"session_id", sessionID,
				"depth", len(toks),
			)
		}
	case err != nil:
		return nil, fmt.Errorf("load session: %w", err)
	}

	resp, err := m.route(ctx, sess, toks)
	if err != nil {
		return nil, err
	}

	if resp.Continue {
		sess.Touch()
		if err := store.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	} else if err := store.Delete(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}

	m.logger.Debug("handled request",
		"session_id", sessionID,
		"depth", len(toks),
		"continue", resp.Continue,
		"deliveries", len(resp.Deliveries),
	)
	return resp, nil
}

// navState is a fold position during path replay.
type navState int

const (
	navMain navState = iota
	navLearnTopic
	navQuizTopic
	navQuizCount
)

// route replays the choice path from the session's offset and returns the
// screen for wherever it lands. A session with frozen quiz content skips
// the replay entirely: its navigation prefix was consumed when the quiz
// started, and everything after it is answers.
func (m *Machine) route(ctx context.Context, sess *domain.Session, toks []string) (*Response, error) {
	if sess.Phase == domain.PhaseQuiz && sess.Quiz != nil && sess.Quiz.Started() {
		return m.advanceQuiz(sess, toks), nil
	}

	state := navMain
	invalid := false
	var topic content.TopicInfo

	// The fold re-derives everything derivable from the path, the
	// visited trail included. Clearing it first keeps replay idempotent:
	// tokens already folded on earlier round trips would otherwise
	// re-append their branch labels on every request.
	sess.Visited = nil

	i := sess.PathOffset
	if i > len(toks) {
		i = len(toks)
	}

	for ; i < len(toks); i++ {
		tok := strings.TrimSpace(toks[i])
		invalid = false

		switch state {
		case navMain:
			switch tok {
			case "1":
				state = navLearnTopic
				sess.SetPhase(domain.PhaseLearn)
				sess.Visit(domain.BranchLearn)
			case "2":
				state = navQuizTopic
				sess.EnterQuiz()
				sess.Visit(domain.BranchQuiz)
			case "3":
				return m.exit(sess), nil
			default:
				invalid = true
			}

		case navLearnTopic:
			if tok == "0" {
				state = navMain
				sess.SetPhase(domain.PhaseMain)
				continue
			}
			info, ok := m.catalog.ByChoice(tok)
			if !ok {
				invalid = true
				continue
			}
			return m.lesson(sess, info)

		case navQuizTopic:
			if tok == "0" {
				state = navMain
				sess.SetPhase(domain.PhaseMain)
				continue
			}
			info, ok := m.catalog.ByChoice(tok)
			if !ok {
				invalid = true
				continue
			}
			topic = info
			sess.Quiz.Topic = info.Key
			state = navQuizCount

		case navQuizCount:
			m.startQuiz(ctx, sess, topic, tok, i+1)
			return m.advanceQuiz(sess, toks), nil
		}
	}

	return m.render(state, topic, invalid), nil
}

// render picks the screen for the state the replay landed on. An invalid
// final token re-prompts the same state; the quiz topic menu re-shows
// itself without a complaint line.
func (m *Machine) render(state navState, topic content.TopicInfo, invalid bool) *Response {
	switch state {
	case navLearnTopic:
		if invalid {
			return respond(invalidTopicScreen(m.catalog.Topics()))
		}
		return respond(topicMenuScreen(m.catalog.Topics(), actionLearn))
	case navQuizTopic:
		return respond(topicMenuScreen(m.catalog.Topics(), actionQuiz))
	case navQuizCount:
		return respond(countPromptScreen(topic.Name, m.counts))
	}
	if invalid {
		return respond(invalidMainScreen)
	}
	return respond(mainMenuScreen)
}

// startQuiz freezes quiz content into the session. This is the single
// point where the orchestrator runs; every request after it is an
// in-memory lookup. depth is the number of path tokens consumed up to and
// including the count choice, so tokens beyond it are answers.
func (m *Machine) startQuiz(ctx context.Context, sess *domain.Session, topic content.TopicInfo, countToken string, depth int) {
	count := m.parseCount(countToken)
	questions, source := m.quizzes.Questions(ctx, topic.Key, count)

	sess.EnterQuiz()
	sess.Quiz.Topic = topic.Key
	sess.Quiz.Questions = questions
	sess.Quiz.Source = source
	sess.Quiz.StartDepth = depth

	m.logger.Info("quiz started",
		"session_id", sess.ID,
		"topic", topic.Key,
		"count", len(questions),
		"source", source,
	)
}

// advanceQuiz scores the path tokens beyond the already-scored prefix and
// renders the next screen. A replayed path contributes no new tokens and
// re-presents the current question instead of scoring it twice.
func (m *Machine) advanceQuiz(sess *domain.Session, toks []string) *Response {
	q := sess.Quiz

	next := q.StartDepth + q.Index
	if next > len(toks) {
		next = len(toks)
	}

	feedback := ""
	for _, answer := range toks[next:] {
		current, ok := q.Current()
		if !ok {
			break
		}
		correct := quiz.IsCorrect(answer, current.Answer)
		q.Record(answer, correct)
		feedback = answerFeedback(correct, current.Answer)
	}

	if q.Complete() {
		results := q.Results()
		return &Response{
			Text: quizCompleteScreen(feedback, results),
			Deliveries: []domain.DeliveryRequest{{
				To:      sess.Origin,
				Kind:    domain.DeliveryQuizResults,
				Results: results,
			}},
		}
	}

	current, _ := q.Current()
	return &Response{
		Continue: true,
		Text:     questionScreen(feedback, q.Index+1, q.Total(), current.Question),
	}
}

func (m *Machine) lesson(sess *domain.Session, topic content.TopicInfo) (*Response, error) {
	lessonContent, err := m.catalog.Lesson(topic.Key)
	if err != nil {
		return nil, fmt.Errorf("lesson for %s: %w", topic.Key, err)
	}
	return &Response{
		Text: lessonSentScreen(topic.Name),
		Deliveries: []domain.DeliveryRequest{{
			To:     sess.Origin,
			Kind:   domain.DeliveryLesson,
			Lesson: &lessonContent,
		}},
	}, nil
}

// exit closes the dialog. The summary always goes out; the screen only
// advertises it when the session saw some activity.
func (m *Machine) exit(sess *domain.Session) *Response {
	summary := &domain.SessionSummary{
		Visited: append([]string(nil), sess.Visited...),
	}
	if q := sess.Quiz; q != nil {
		summary.QuizTopic = q.Topic
		summary.Answered = q.Index
		summary.Score = q.Score
		summary.Total = q.Total()
	}

	text := exitQuietScreen
	if len(sess.Visited) > 0 || sess.Quiz != nil {
		text = exitWithSummaryScreen
	}

	return &Response{
		Text: text,
		Deliveries: []domain.DeliveryRequest{{
			To:      sess.Origin,
			Kind:    domain.DeliverySummary,
			Summary: summary,
		}},
	}
}

// parseCount is deliberately permissive: anything outside the allowed set
// falls back to the default rather than re-prompting.
func (m *Machine) parseCount(tok string) int {
	n, err := strconv.Atoi(tok)
	if err != nil {
		return m.defaultCount
	}
	for _, allowed := range m.counts {
		if n == allowed {
			return n
		}
	}
	return m.defaultCount
}

// tokens splits the cumulative choice path. An empty path means the dial
// just started.
func tokens(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "*")
}

func respond(text string) *Response {
	return &Response{Continue: true, Text: text}
}

func (m *Machine) countRequest(resp *Response, err error) {
	if m.metrics == nil {
		return
	}
	switch {
	case err != nil:
		m.metrics.Requests.WithLabelValues(metrics.RequestError).Inc()
	case resp.Continue:
		m.metrics.Requests.WithLabelValues(metrics.RequestContinue).Inc()
	default:
		m.metrics.Requests.WithLabelValues(metrics.RequestEnd).Inc()
	}
}

func (m *Machine) countRestart() {
	if m.metrics == nil {
		return
	}
	m.metrics.Restarts.Inc()
}
