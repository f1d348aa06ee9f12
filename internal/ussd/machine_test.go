package ussd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sediba/edubot/internal/adapters/memory"
	"github.com/sediba/edubot/internal/content"
	"github.com/sediba/edubot/internal/domain"
	"github.com/sediba/edubot/internal/metrics"
	"github.com/sediba/edubot/internal/quiz"
	"github.com/sediba/edubot/internal/session"
)

const testOrigin = "+26771000001"

func newTestMachine(t *testing.T, machineOpts []Option, quizOpts ...quiz.Option) (*Machine, *memory.Store) {
	t.Helper()

	catalog, err := content.Load()
	require.NoError(t, err)

	store := memory.NewStore()
	manager := session.NewManager(store)
	orchestrator := quiz.NewOrchestrator(catalog, quizOpts...)
	return NewMachine(manager, orchestrator, catalog, machineOpts...), store
}

func handle(t *testing.T, m *Machine, sessionID, path string) *Response {
	t.Helper()
	resp, err := m.Handle(context.Background(), sessionID, testOrigin, path)
	require.NoError(t, err)
	return resp
}

// dial walks the cumulative path one request at a time, the way a
// gateway does: "", "2", "2*1", ... It returns the last response.
func dial(t *testing.T, m *Machine, sessionID, path string) *Response {
	t.Helper()
	resp := handle(t, m, sessionID, "")
	if path == "" {
		return resp
	}
	toks := strings.Split(path, "*")
	for i := range toks {
		resp = handle(t, m, sessionID, strings.Join(toks[:i+1], "*"))
	}
	return resp
}

func loadSession(t *testing.T, store *memory.Store, sessionID string) *domain.Session {
	t.Helper()
	sess, err := store.Load(context.Background(), sessionID)
	require.NoError(t, err)
	return sess
}

func TestEmptyPathShowsMainMenu(t *testing.T) {
	m, _ := newTestMachine(t, nil)

	resp := handle(t, m, "ATUid_1", "")
	assert.True(t, resp.Continue)
	assert.Equal(t, "📚 Welcome to EduBot!\nPrimary School Maths\n\n1. Learn a Topic\n2. Take a Quiz\n3. Exit", resp.Text)
	assert.Empty(t, resp.Deliveries)
}

func TestMainMenuRoutesToTopicMenus(t *testing.T) {
	m, store := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "")

	resp := handle(t, m, "ATUid_1", "1")
	assert.True(t, resp.Continue)
	assert.Equal(t, "Select topic to learn:\n\n1. Addition\n2. Subtraction\n3. Multiplication\n4. Division\n0. Back", resp.Text)
	assert.Equal(t, domain.PhaseLearn, loadSession(t, store, "ATUid_1").Phase)

	resp = handle(t, m, "ATUid_2", "2")
	assert.True(t, resp.Continue)
	assert.Equal(t, "Select topic to quiz on:\n\n1. Addition\n2. Subtraction\n3. Multiplication\n4. Division\n0. Back", resp.Text)
	assert.Equal(t, domain.PhaseQuiz, loadSession(t, store, "ATUid_2").Phase)
}

func TestInvalidMainChoiceReprompts(t *testing.T) {
	m, store := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "")
	resp := handle(t, m, "ATUid_1", "9")

	assert.True(t, resp.Continue)
	assert.Equal(t, "Invalid choice.\n\n1. Learn a Topic\n2. Take a Quiz\n3. Exit", resp.Text)
	assert.Equal(t, domain.PhaseMain, loadSession(t, store, "ATUid_1").Phase)
}

func TestLearnSelectionDeliversLesson(t *testing.T) {
	m, store := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "")
	handle(t, m, "ATUid_1", "1")
	resp := handle(t, m, "ATUid_1", "1*1")

	assert.False(t, resp.Continue)
	assert.Contains(t, resp.Text, "📚 Addition Lesson")
	assert.Contains(t, resp.Text, "Your lesson is being sent")

	require.Len(t, resp.Deliveries, 1)
	d := resp.Deliveries[0]
	assert.Equal(t, testOrigin, d.To)
	assert.Equal(t, domain.DeliveryLesson, d.Kind)
	require.NotNil(t, d.Lesson)
	assert.Equal(t, domain.TopicAddition, d.Lesson.Topic)
	assert.NotEmpty(t, d.Lesson.Body)

	_, err := store.Load(context.Background(), "ATUid_1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "terminal transitions delete the session")
}

func TestLearnInvalidTopicReprompts(t *testing.T) {
	m, _ := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "1")
	resp := handle(t, m, "ATUid_1", "1*7")
	assert.True(t, resp.Continue)
	assert.Equal(t, "Invalid topic.\n\n1. Addition\n2. Subtraction\n3. Multiplication\n4. Division\n0. Back", resp.Text)
}

func TestTrailingEmptyTokenIsInvalid(t *testing.T) {
	m, _ := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "1")
	resp := handle(t, m, "ATUid_1", "1*")
	assert.True(t, resp.Continue)
	assert.Contains(t, resp.Text, "Invalid topic.")
}

func TestBackReturnsToMainAndKeepsNavigating(t *testing.T) {
	m, store := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "1")
	resp := handle(t, m, "ATUid_1", "1*0")
	assert.True(t, resp.Continue)
	assert.Contains(t, resp.Text, "Welcome to EduBot!")
	assert.Equal(t, domain.PhaseMain, loadSession(t, store, "ATUid_1").Phase)

	// Choices made after going back keep working on the replayed path.
	resp = handle(t, m, "ATUid_1", "1*0*2")
	assert.True(t, resp.Continue)
	assert.Contains(t, resp.Text, "Select topic to quiz on:")
}

func TestBackFromQuizTopicDiscardsQuizState(t *testing.T) {
	m, store := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "2")
	require.NotNil(t, loadSession(t, store, "ATUid_1").Quiz)

	resp := handle(t, m, "ATUid_1", "2*0")
	assert.Contains(t, resp.Text, "Welcome to EduBot!")
	sess := loadSession(t, store, "ATUid_1")
	assert.Equal(t, domain.PhaseMain, sess.Phase)
	assert.Nil(t, sess.Quiz)

	// Exiting after backing out still works: the replay interprets the
	// tokens after "0" from the main menu.
	resp = handle(t, m, "ATUid_1", "2*0*3")
	assert.False(t, resp.Continue)
	require.Len(t, resp.Deliveries, 1)
	assert.Equal(t, domain.DeliverySummary, resp.Deliveries[0].Kind)
}

func TestQuizCountPromptListsAllowedCounts(t *testing.T) {
	m, _ := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "2")
	resp := handle(t, m, "ATUid_1", "2*1")
	assert.True(t, resp.Continue)
	assert.Equal(t, "Addition Quiz\n\nHow many questions?\nEnter: 3, 5, or 10", resp.Text)
}

func TestQuizStartFreezesQuestions(t *testing.T) {
	m, store := newTestMachine(t, nil)

	resp := dial(t, m, "ATUid_1", "2*1*5")

	assert.True(t, resp.Continue)
	assert.Equal(t, "Q1 of 5\n\nWhat is 2 + 3?\n\nEnter your answer:", resp.Text)

	sess := loadSession(t, store, "ATUid_1")
	require.NotNil(t, sess.Quiz)
	assert.Equal(t, domain.TopicAddition, sess.Quiz.Topic)
	assert.Len(t, sess.Quiz.Questions, 5)
	assert.Equal(t, domain.SourceStatic, sess.Quiz.Source)
	assert.Equal(t, 3, sess.Quiz.StartDepth)
	assert.Equal(t, 0, sess.Quiz.Index)
}

func TestQuizCountDefaultsWhenUnrecognized(t *testing.T) {
	m, store := newTestMachine(t, nil)

	for i, countToken := range []string{"7", "abc", "0", "-3"} {
		sessionID := fmt.Sprintf("ATUid_count_%d", i)
		dial(t, m, sessionID, "2*1*"+countToken)
		sess := loadSession(t, store, sessionID)
		require.NotNil(t, sess.Quiz)
		assert.Len(t, sess.Quiz.Questions, 5, "count token %q", countToken)
	}
}

func TestQuizInvalidTopicRepromptsMenu(t *testing.T) {
	m, _ := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "2")
	resp := handle(t, m, "ATUid_1", "2*9")
	assert.True(t, resp.Continue)
	assert.Equal(t, "Select topic to quiz on:\n\n1. Addition\n2. Subtraction\n3. Multiplication\n4. Division\n0. Back", resp.Text)
}

func TestQuizAnswerProgressionAndCompletion(t *testing.T) {
	m, store := newTestMachine(t, nil)

	dial(t, m, "ATUid_1", "2*1*3")

	// Q1: "What is 2 + 3?" -> 5, correct.
	resp := handle(t, m, "ATUid_1", "2*1*3*5")
	assert.True(t, resp.Continue)
	assert.Equal(t, "✓ Correct!\n\nQ2 of 3\nWhat is 4 + 5?\n\nEnter your answer:", resp.Text)
	sess := loadSession(t, store, "ATUid_1")
	assert.Equal(t, 1, sess.Quiz.Index)
	assert.Equal(t, 1, sess.Quiz.Score)

	// Q2: "What is 4 + 5?" -> 9; answer 1 is wrong.
	resp = handle(t, m, "ATUid_1", "2*1*3*5*1")
	assert.True(t, resp.Continue)
	assert.Equal(t, "✗ Wrong. Answer: 9\n\nQ3 of 3\nWhat is 7 + 2?\n\nEnter your answer:", resp.Text)
	sess = loadSession(t, store, "ATUid_1")
	assert.Equal(t, 2, sess.Quiz.Index)
	assert.Equal(t, 1, sess.Quiz.Score)
	assert.Len(t, sess.Quiz.Answers, 2)

	// Q3: "What is 7 + 2?" -> 9, correct; quiz completes.
	resp = handle(t, m, "ATUid_1", "2*1*3*5*1*9")
	assert.False(t, resp.Continue)
	assert.Equal(t, "✓ Correct!\n\nQuiz Complete! 👍\nScore: 2/3 (67%)\n\nFull results sent via SMS!", resp.Text)

	require.Len(t, resp.Deliveries, 1)
	d := resp.Deliveries[0]
	assert.Equal(t, domain.DeliveryQuizResults, d.Kind)
	require.NotNil(t, d.Results)
	assert.Equal(t, domain.TopicAddition, d.Results.Topic)
	assert.Equal(t, 2, d.Results.Score)
	assert.Equal(t, 3, d.Results.Total)
	assert.Equal(t, 67, d.Results.Percent)
	require.Len(t, d.Results.Answers, 3)
	assert.False(t, d.Results.Answers[1].Correct)

	_, err := store.Load(context.Background(), "ATUid_1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestNumericAnswersCompareNumerically(t *testing.T) {
	m, _ := newTestMachine(t, nil)

	dial(t, m, "ATUid_1", "2*1*3")
	resp := handle(t, m, "ATUid_1", "2*1*3* 5.0 ")
	assert.Equal(t, "✓ Correct!\n\nQ2 of 3\nWhat is 4 + 5?\n\nEnter your answer:", resp.Text)
}

func TestReplayedPathDoesNotScoreTwice(t *testing.T) {
	m, store := newTestMachine(t, nil)

	dial(t, m, "ATUid_1", "2*1*3")
	handle(t, m, "ATUid_1", "2*1*3*5")

	// A gateway retry resends the same cumulative path. No new tokens
	// beyond the scored prefix means nothing to score: the current
	// question is re-presented and the tally is untouched.
	resp := handle(t, m, "ATUid_1", "2*1*3*5")
	assert.True(t, resp.Continue)
	assert.Equal(t, "Q2 of 3\n\nWhat is 4 + 5?\n\nEnter your answer:", resp.Text)

	sess := loadSession(t, store, "ATUid_1")
	assert.Equal(t, 1, sess.Quiz.Index)
	assert.Equal(t, 1, sess.Quiz.Score)
}

func TestMultiplePendingAnswersScoreInOrder(t *testing.T) {
	m, _ := newTestMachine(t, nil)

	dial(t, m, "ATUid_1", "2*1*3")

	// Three answers arrive in one request; they score sequentially and
	// the quiz completes on the last.
	resp := handle(t, m, "ATUid_1", "2*1*3*5*9*9")
	assert.False(t, resp.Continue)
	assert.Contains(t, resp.Text, "Score: 3/3 (100%)")
	assert.Contains(t, resp.Text, "⭐")
}

func TestExitWithoutActivity(t *testing.T) {
	m, store := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "")
	resp := handle(t, m, "ATUid_1", "3")

	assert.False(t, resp.Continue)
	assert.Equal(t, "Thanks for using EduBot!\n\nDial back anytime\nto learn more! 📚", resp.Text)

	require.Len(t, resp.Deliveries, 1)
	d := resp.Deliveries[0]
	assert.Equal(t, domain.DeliverySummary, d.Kind)
	require.NotNil(t, d.Summary)
	assert.Empty(t, d.Summary.Visited)

	_, err := store.Load(context.Background(), "ATUid_1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestExitAfterBrowsingAdvertisesSummary(t *testing.T) {
	m, _ := newTestMachine(t, nil)

	handle(t, m, "ATUid_1", "1")
	handle(t, m, "ATUid_1", "1*0")
	resp := handle(t, m, "ATUid_1", "1*0*3")

	assert.False(t, resp.Continue)
	assert.Equal(t, "Thanks for using EduBot!\n\nSession summary sent\nto your phone via SMS.\n\nDial back anytime! 📚", resp.Text)
	require.Len(t, resp.Deliveries, 1)
	require.NotNil(t, resp.Deliveries[0].Summary)
	assert.Equal(t, []string{domain.BranchLearn}, resp.Deliveries[0].Summary.Visited)
}

func TestVisitedTrailStaysExactAcrossRoundTrips(t *testing.T) {
	m, store := newTestMachine(t, nil)

	// Back-and-forth browsing over five round trips: learn, back, quiz,
	// back, learn. Every request replays the full path, so the trail
	// must come out as the three visits, not grow by one per request.
	for _, path := range []string{"1", "1*0", "1*0*2", "1*0*2*0", "1*0*2*0*1"} {
		handle(t, m, "ATUid_1", path)
	}

	sess := loadSession(t, store, "ATUid_1")
	assert.Equal(t, []string{domain.BranchLearn, domain.BranchQuiz, domain.BranchLearn}, sess.Visited)

	// The exit summary reports the same trail.
	resp := handle(t, m, "ATUid_1", "1*0*2*0*1*0*3")
	assert.False(t, resp.Continue)
	require.Len(t, resp.Deliveries, 1)
	require.NotNil(t, resp.Deliveries[0].Summary)
	assert.Equal(t, []string{domain.BranchLearn, domain.BranchQuiz, domain.BranchLearn}, resp.Deliveries[0].Summary.Visited)
}

func TestExpiredDeepPathRestartsAtMain(t *testing.T) {
	reg := prometheus.NewRegistry()
	mx := metrics.New(reg)
	m, store := newTestMachine(t, []Option{WithMetrics(mx)})

	// No session exists for this id, yet the path is deep: the dialog
	// expired mid-quiz. The response is exactly the fresh-dial one.
	resp := handle(t, m, "ATUid_old", "2*1*5*7")
	assert.True(t, resp.Continue)
	assert.Equal(t, "📚 Welcome to EduBot!\nPrimary School Maths\n\n1. Learn a Topic\n2. Take a Quiz\n3. Exit", resp.Text)
	assert.Empty(t, resp.Deliveries)
	assert.Equal(t, float64(1), testutil.ToFloat64(mx.Restarts))

	sess := loadSession(t, store, "ATUid_old")
	assert.Equal(t, 4, sess.PathOffset)
	assert.Nil(t, sess.Quiz)

	// The stale prefix stays dead: the next choice is interpreted from
	// the main menu, not appended to the expired quiz navigation.
	resp = handle(t, m, "ATUid_old", "2*1*5*7*1")
	assert.True(t, resp.Continue)
	assert.Contains(t, resp.Text, "Select topic to learn:")
}

func TestAbsentSessionAtDepthOneNavigatesNormally(t *testing.T) {
	m, _ := newTestMachine(t, nil)

	resp := handle(t, m, "ATUid_new", "1")
	assert.True(t, resp.Continue)
	assert.Contains(t, resp.Text, "Select topic to learn:")
}

func TestHandleIsDeterministicAcrossSessions(t *testing.T) {
	m, _ := newTestMachine(t, nil)

	first := dial(t, m, "ATUid_a", "2*3*5")
	second := dial(t, m, "ATUid_b", "2*3*5")
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Continue, second.Continue)
}

type stubGenerator struct {
	mu        sync.Mutex
	calls     int
	questions []domain.QuizQuestion
}

func (g *stubGenerator) Generate(ctx context.Context, topic domain.Topic, count int, difficulty string) ([]domain.QuizQuestion, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.questions, nil
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestGeneratedQuestionsFreezeOnce(t *testing.T) {
	gen := &stubGenerator{questions: []domain.QuizQuestion{
		{Question: "What is 11 + 3?", Answer: "14"},
		{Question: "What is 12 + 6?", Answer: "18"},
		{Question: "What is 9 + 9?", Answer: "18"},
	}}
	m, store := newTestMachine(t, nil, quiz.WithGenerator(gen))

	resp := dial(t, m, "ATUid_1", "2*1*3")
	assert.Equal(t, "Q1 of 3\n\nWhat is 11 + 3?\n\nEnter your answer:", resp.Text)

	sess := loadSession(t, store, "ATUid_1")
	assert.Equal(t, domain.SourceGenerated, sess.Quiz.Source)

	// Answering runs against the frozen set; the generator is never
	// consulted again for this session.
	resp = handle(t, m, "ATUid_1", "2*1*3*14")
	assert.Contains(t, resp.Text, "✓ Correct!")
	assert.Equal(t, 1, gen.callCount())
}

type failStore struct{ err error }

func (f *failStore) Save(context.Context, *domain.Session) error { return f.err }
func (f *failStore) Load(context.Context, string) (*domain.Session, error) {
	return nil, f.err
}
func (f *failStore) Delete(context.Context, string) error   { return f.err }
func (f *failStore) List(context.Context) ([]string, error) { return nil, f.err }

func TestStoreFailureSurfacesAsError(t *testing.T) {
	catalog, err := content.Load()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	mx := metrics.New(reg)
	boom := errors.New("redis: connection refused")
	manager := session.NewManager(&failStore{err: boom})
	m := NewMachine(manager, quiz.NewOrchestrator(catalog), catalog, WithMetrics(mx))

	_, err = m.Handle(context.Background(), "ATUid_1", testOrigin, "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	errored := mx.Requests.WithLabelValues(metrics.RequestError)
	assert.Equal(t, float64(1), testutil.ToFloat64(errored))
}

func TestRequestOutcomesAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	mx := metrics.New(reg)
	m, _ := newTestMachine(t, []Option{WithMetrics(mx)})

	handle(t, m, "ATUid_1", "")
	handle(t, m, "ATUid_1", "3")

	continued := mx.Requests.WithLabelValues(metrics.RequestContinue)
	ended := mx.Requests.WithLabelValues(metrics.RequestEnd)
	assert.Equal(t, float64(1), testutil.ToFloat64(continued))
	assert.Equal(t, float64(1), testutil.ToFloat64(ended))
}
