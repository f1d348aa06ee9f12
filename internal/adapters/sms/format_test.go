package sms

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sediba/edubot/internal/domain"
)

func TestFormatLessonPassesBodyThrough(t *testing.T) {
	got, err := Format(domain.DeliveryRequest{
		Kind: domain.DeliveryLesson,
		Lesson: &domain.LessonContent{
			Topic: domain.TopicDivision,
			Title: "Division Basics",
			Body:  "DIVISION BASICS\n\nDivision means sharing equally.",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "DIVISION BASICS\n\nDivision means sharing equally.", got)
}

func TestFormatQuizResults(t *testing.T) {
	got, err := Format(domain.DeliveryRequest{
		Kind: domain.DeliveryQuizResults,
		Results: &domain.QuizResults{
			Topic:   domain.TopicAddition,
			Score:   2,
			Total:   3,
			Percent: 67,
			Answers: []domain.AnswerRecord{
				{Question: "What is 2 + 3?", Given: "5", Answer: "5", Correct: true},
				{Question: "What is 9 + 6?", Given: "14", Answer: "15", Correct: false},
				{Question: "What is 1 + 1?", Given: "2", Answer: "2", Correct: true},
			},
		},
	})
	require.NoError(t, err)

	want := strings.Join([]string{
		"📝 QUIZ RESULTS",
		"",
		"Topic: Addition",
		"Score: 2/3 (67%)",
		"",
		"👍 Good job!",
		"",
		"Q1: What is 2 + 3?",
		"Your answer: 5 ✓",
		"",
		"Q2: What is 9 + 6?",
		"Your answer: 14 ✗",
		"Correct: 15",
		"",
		"Q3: What is 1 + 1?",
		"Your answer: 2 ✓",
		"",
		"Dial back to learn more!",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestPerformanceLineTiers(t *testing.T) {
	assert.Equal(t, "⭐ Excellent work!", performanceLine(100))
	assert.Equal(t, "⭐ Excellent work!", performanceLine(80))
	assert.Equal(t, "👍 Good job!", performanceLine(79))
	assert.Equal(t, "👍 Good job!", performanceLine(60))
	assert.Equal(t, "📚 Keep practicing!", performanceLine(59))
	assert.Equal(t, "📚 Keep practicing!", performanceLine(0))
}

func TestFormatSummaryListsVisitedBranches(t *testing.T) {
	got, err := Format(domain.DeliveryRequest{
		Kind: domain.DeliverySummary,
		Summary: &domain.SessionSummary{
			Visited: []string{domain.BranchLearn, domain.BranchQuiz, domain.BranchLearn},
		},
	})
	require.NoError(t, err)

	want := "📱 EDUBOT SESSION SUMMARY\n\n" +
		"📚 Browsed lesson topics\n\n" +
		"📝 Browsed quiz topics\n\n" +
		"Thanks for learning with EduBot!\nDial back anytime to continue."
	assert.Equal(t, want, got)
}

func TestFormatSummaryIncludesQuizScore(t *testing.T) {
	got, err := Format(domain.DeliveryRequest{
		Kind: domain.DeliverySummary,
		Summary: &domain.SessionSummary{
			Visited:   []string{domain.BranchQuiz},
			QuizTopic: domain.TopicDivision,
			Answered:  5,
			Score:     1,
			Total:     5,
		},
	})
	require.NoError(t, err)
	assert.Contains(t, got, "📝 Quiz (Division): 1/5 (20%)")
}

func TestFormatSummaryBareSessionStillGreets(t *testing.T) {
	got, err := Format(domain.DeliveryRequest{
		Kind:    domain.DeliverySummary,
		Summary: &domain.SessionSummary{},
	})
	require.NoError(t, err)
	assert.Equal(t, "📱 EDUBOT SESSION SUMMARY\n\nThanks for learning with EduBot!\nDial back anytime to continue.", got)
}

func TestFormatRejectsMissingPayloads(t *testing.T) {
	for _, kind := range []domain.DeliveryKind{
		domain.DeliveryLesson,
		domain.DeliveryQuizResults,
		domain.DeliverySummary,
		domain.DeliveryKind("carrier_pigeon"),
	} {
		_, err := Format(domain.DeliveryRequest{Kind: kind})
		assert.Error(t, err, "kind %q", kind)
	}
}
