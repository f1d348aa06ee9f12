package domain

import (
	"math"
	"time"
)

// Phase identifies the logical dialog state a session last landed on.
type Phase string

const (
	// PhaseMain is the root menu.
	PhaseMain Phase = "main"
	// PhaseLearn is the lesson topic menu.
	PhaseLearn Phase = "learn"
	// PhaseQuiz covers the quiz branch: topic selection, count selection
	// and question answering. Quiz is non-nil exactly while this phase holds.
	PhaseQuiz Phase = "quiz"
)

// Session is the per-dialog state persisted between gateway round trips.
// One USSD dial maps to one session ID; the gateway issues a fresh ID per dial.
type Session struct {
	ID     string `json:"id"`
	Origin string `json:"origin"`
	Phase  Phase  `json:"phase"`

	// Quiz holds the frozen quiz progress. It exists iff Phase == PhaseQuiz.
	Quiz *QuizState `json:"quiz,omitempty"`

	// Visited records menu branches entered during this dialog, in order,
	// without consecutive duplicates. Feeds the exit summary.
	Visited []string `json:"visited,omitempty"`

	// PathOffset is the number of leading choice-path tokens that belong
	// to an expired life of this dialog. When a session goes missing under
	// a deep path the dialog restarts at the main menu, but the gateway
	// keeps resending the old tokens; navigation resumes after them.
	PathOffset int `json:"path_offset,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// NewSession creates a fresh session parked on the main menu.
func NewSession(id, origin string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:           id,
		Origin:       origin,
		Phase:        PhaseMain,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// SetPhase moves the session to a new phase. Leaving the quiz branch
// drops any quiz state so the phase/quiz invariant holds.
func (s *Session) SetPhase(p Phase) {
	s.Phase = p
	if p != PhaseQuiz {
		s.Quiz = nil
	}
}

// EnterQuiz moves the session into the quiz branch, allocating empty
// quiz state if none exists yet.
func (s *Session) EnterQuiz() {
	s.Phase = PhaseQuiz
	if s.Quiz == nil {
		s.Quiz = &QuizState{}
	}
}

// Branch labels recorded by Visit.
const (
	BranchLearn = "learn"
	BranchQuiz  = "quiz"
)

// Visit appends a branch label to the visited trail, skipping
// consecutive repeats.
func (s *Session) Visit(label string) {
	if n := len(s.Visited); n > 0 && s.Visited[n-1] == label {
		return
	}
	s.Visited = append(s.Visited, label)
}

// Touch refreshes the activity timestamp.
func (s *Session) Touch() {
	s.LastActivity = time.Now().UTC()
}

// Clone returns a deep copy. Stores hand out clones so callers cannot
// mutate persisted state through shared pointers.
func (s *Session) Clone() *Session {
	clone := *s
	if s.Quiz != nil {
		clone.Quiz = s.Quiz.Clone()
	}
	if s.Visited != nil {
		clone.Visited = make([]string, len(s.Visited))
		copy(clone.Visited, s.Visited)
	}
	return &clone
}

// QuestionSource tags where a quiz's questions came from.
type QuestionSource string

const (
	// SourceGenerated marks questions produced by the LLM generator.
	SourceGenerated QuestionSource = "generated"
	// SourceStatic marks questions drawn from the built-in bank.
	SourceStatic QuestionSource = "static"
)

// QuizState is the progress of one quiz. Questions are frozen exactly once,
// at count selection, and never regenerated for the session's lifetime.
type QuizState struct {
	Topic     Topic          `json:"topic,omitempty"`
	Questions []QuizQuestion `json:"questions,omitempty"`
	Source    QuestionSource `json:"source,omitempty"`

	// StartDepth is the choice-path depth at which Questions were frozen.
	// Path tokens beyond StartDepth are answers; tokens up to it are the
	// navigation that led here. Replaying an already-scored path therefore
	// re-presents the current question instead of scoring twice.
	StartDepth int `json:"start_depth,omitempty"`

	// Index counts scored answers. 0 <= Score <= Index <= len(Questions).
	Index   int            `json:"index"`
	Score   int            `json:"score"`
	Answers []AnswerRecord `json:"answers,omitempty"`
}

// Total returns the quiz length.
func (q *QuizState) Total() int {
	return len(q.Questions)
}

// Started reports whether questions have been frozen.
func (q *QuizState) Started() bool {
	return len(q.Questions) > 0
}

// Complete reports whether every question has been answered.
func (q *QuizState) Complete() bool {
	return q.Started() && q.Index >= len(q.Questions)
}

// Current returns the question awaiting an answer.
func (q *QuizState) Current() (QuizQuestion, bool) {
	if !q.Started() || q.Index >= len(q.Questions) {
		return QuizQuestion{}, false
	}
	return q.Questions[q.Index], true
}

// Record scores one answer against the current question and advances.
func (q *QuizState) Record(given string, correct bool) {
	question, ok := q.Current()
	if !ok {
		return
	}
	q.Answers = append(q.Answers, AnswerRecord{
		Question: question.Question,
		Given:    given,
		Answer:   question.Answer,
		Correct:  correct,
	})
	if correct {
		q.Score++
	}
	q.Index++
}

// Clone returns a deep copy of the quiz state.
func (q *QuizState) Clone() *QuizState {
	clone := *q
	if q.Questions != nil {
		clone.Questions = make([]QuizQuestion, len(q.Questions))
		copy(clone.Questions, q.Questions)
	}
	if q.Answers != nil {
		clone.Answers = make([]AnswerRecord, len(q.Answers))
		copy(clone.Answers, q.Answers)
	}
	return &clone
}

// Percent returns the score as a whole percentage, rounded.
func (q *QuizState) Percent() int {
	total := q.Total()
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(q.Score) * 100 / float64(total)))
}

// Results builds the aggregation view handed to delivery.
func (q *QuizState) Results() *QuizResults {
	answers := make([]AnswerRecord, len(q.Answers))
	copy(answers, q.Answers)
	return &QuizResults{
		Topic:   q.Topic,
		Score:   q.Score,
		Total:   q.Total(),
		Percent: q.Percent(),
		Answers: answers,
	}
}

// QuizQuestion is a single prompt with its canonical answer, always a string
// even when the answer is numeric.
type QuizQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AnswerRecord is the scored outcome of one question.
type AnswerRecord struct {
	Question string `json:"question"`
	Given    string `json:"given"`
	Answer   string `json:"answer"`
	Correct  bool   `json:"correct"`
}
