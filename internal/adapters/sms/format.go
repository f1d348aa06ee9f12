package sms

import (
	"fmt"
	"math"
	"strings"

	"github.com/sediba/edubot/internal/domain"
)

// Format renders a delivery request into message text. The payload field
// must match the request kind.
func Format(req domain.DeliveryRequest) (string, error) {
	switch req.Kind {
	case domain.DeliveryLesson:
		if req.Lesson == nil {
			return "", fmt.Errorf("lesson delivery without lesson payload")
		}
		return req.Lesson.Body, nil
	case domain.DeliveryQuizResults:
		if req.Results == nil {
			return "", fmt.Errorf("quiz results delivery without results payload")
		}
		return formatResults(req.Results), nil
	case domain.DeliverySummary:
		if req.Summary == nil {
			return "", fmt.Errorf("summary delivery without summary payload")
		}
		return formatSummary(req.Summary), nil
	default:
		return "", fmt.Errorf("unknown delivery kind %q", req.Kind)
	}
}

func formatResults(r *domain.QuizResults) string {
	var b strings.Builder
	b.WriteString("📝 QUIZ RESULTS\n\n")
	fmt.Fprintf(&b, "Topic: %s\n", titleCase(string(r.Topic)))
	fmt.Fprintf(&b, "Score: %d/%d (%d%%)\n\n", r.Score, r.Total, r.Percent)
	b.WriteString(performanceLine(r.Percent))
	b.WriteString("\n\n")

	for i, ans := range r.Answers {
		mark := "✓"
		if !ans.Correct {
			mark = "✗"
		}
		fmt.Fprintf(&b, "Q%d: %s\n", i+1, ans.Question)
		fmt.Fprintf(&b, "Your answer: %s %s\n", ans.Given, mark)
		if !ans.Correct {
			fmt.Fprintf(&b, "Correct: %s\n", ans.Answer)
		}
		b.WriteString("\n")
	}

	b.WriteString("Dial back to learn more!")
	return b.String()
}

func formatSummary(s *domain.SessionSummary) string {
	var b strings.Builder
	b.WriteString("📱 EDUBOT SESSION SUMMARY\n\n")

	for _, branch := range dedupe(s.Visited) {
		switch branch {
		case domain.BranchLearn:
			b.WriteString("📚 Browsed lesson topics\n\n")
		case domain.BranchQuiz:
			b.WriteString("📝 Browsed quiz topics\n\n")
		}
	}
	if s.Total > 0 {
		percent := int(math.Round(float64(s.Score) * 100 / float64(s.Total)))
		fmt.Fprintf(&b, "📝 Quiz (%s): %d/%d (%d%%)\n\n",
			titleCase(string(s.QuizTopic)), s.Score, s.Total, percent)
	}

	b.WriteString("Thanks for learning with EduBot!\nDial back anytime to continue.")
	return b.String()
}

func performanceLine(percent int) string {
	switch {
	case percent >= 80:
		return "⭐ Excellent work!"
	case percent >= 60:
		return "👍 Good job!"
	default:
		return "📚 Keep practicing!"
	}
}

// titleCase upper-cases the first letter. Topic keys are single lowercase
// ASCII words, so no locale handling is needed.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func dedupe(labels []string) []string {
	var out []string
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
