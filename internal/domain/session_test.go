package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPhaseQuizInvariant(t *testing.T) {
	s := NewSession("sess-1", "+26771000001")
	assert.Equal(t, PhaseMain, s.Phase)
	assert.Nil(t, s.Quiz)

	s.EnterQuiz()
	assert.Equal(t, PhaseQuiz, s.Phase)
	require.NotNil(t, s.Quiz)

	// Leaving the quiz branch must drop quiz state.
	s.SetPhase(PhaseMain)
	assert.Nil(t, s.Quiz)
}

func TestSessionVisitSkipsConsecutiveRepeats(t *testing.T) {
	s := NewSession("sess-1", "+26771000001")
	s.Visit("learn")
	s.Visit("learn")
	s.Visit("quiz")
	s.Visit("learn")
	assert.Equal(t, []string{"learn", "quiz", "learn"}, s.Visited)
}

func TestQuizStateRecord(t *testing.T) {
	q := &QuizState{
		Topic: TopicAddition,
		Questions: []QuizQuestion{
			{Question: "What is 2 + 3?", Answer: "5"},
			{Question: "What is 1 + 1?", Answer: "2"},
		},
	}

	assert.False(t, q.Complete())
	current, ok := q.Current()
	require.True(t, ok)
	assert.Equal(t, "What is 2 + 3?", current.Question)

	q.Record("5", true)
	assert.Equal(t, 1, q.Index)
	assert.Equal(t, 1, q.Score)
	assert.False(t, q.Complete())

	q.Record("3", false)
	assert.Equal(t, 2, q.Index)
	assert.Equal(t, 1, q.Score)
	assert.True(t, q.Complete())

	// Recording past the end is a no-op.
	q.Record("9", true)
	assert.Equal(t, 2, q.Index)
	assert.Equal(t, 1, q.Score)
	assert.Len(t, q.Answers, 2)
}

func TestQuizStateResults(t *testing.T) {
	q := &QuizState{
		Topic: TopicDivision,
		Questions: []QuizQuestion{
			{Question: "What is 6 / 2?", Answer: "3"},
			{Question: "What is 8 / 4?", Answer: "2"},
			{Question: "What is 9 / 3?", Answer: "3"},
		},
	}
	q.Record("3", true)
	q.Record("5", false)
	q.Record("3", true)

	results := q.Results()
	assert.Equal(t, TopicDivision, results.Topic)
	assert.Equal(t, 2, results.Score)
	assert.Equal(t, 3, results.Total)
	assert.Equal(t, 67, results.Percent)
	require.Len(t, results.Answers, 3)
	assert.Equal(t, "5", results.Answers[1].Given)
	assert.False(t, results.Answers[1].Correct)
}

func TestQuizStatePercentRounds(t *testing.T) {
	cases := []struct {
		score, total, want int
	}{
		{0, 0, 0},
		{0, 5, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 5, 60},
		{10, 10, 100},
	}
	for _, tc := range cases {
		q := &QuizState{Questions: make([]QuizQuestion, tc.total), Score: tc.score}
		assert.Equal(t, tc.want, q.Percent(), "%d/%d", tc.score, tc.total)
	}
}

func TestSessionClone(t *testing.T) {
	s := NewSession("sess-1", "+26771000001")
	s.EnterQuiz()
	s.Quiz.Topic = TopicSubtraction
	s.Quiz.Questions = []QuizQuestion{{Question: "What is 5 - 2?", Answer: "3"}}
	s.Visit("quiz")

	clone := s.Clone()
	clone.Quiz.Questions[0].Answer = "changed"
	clone.Quiz.Record("3", true)
	clone.Visited[0] = "changed"

	assert.Equal(t, "3", s.Quiz.Questions[0].Answer)
	assert.Equal(t, 0, s.Quiz.Index)
	assert.Equal(t, []string{"quiz"}, s.Visited)
}
