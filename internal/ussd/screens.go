package ussd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sediba/edubot/internal/content"
	"github.com/sediba/edubot/internal/domain"
)

// Screen bodies are sized for a single USSD display page. The gateway
// framing ("CON "/"END ") belongs to the transport, not to these texts.
const (
	mainMenuScreen = "📚 Welcome to EduBot!\n" +
		"Primary School Maths\n\n" +
		"1. Learn a Topic\n" +
		"2. Take a Quiz\n" +
		"3. Exit"

	invalidMainScreen = "Invalid choice.\n\n" +
		"1. Learn a Topic\n" +
		"2. Take a Quiz\n" +
		"3. Exit"

	exitWithSummaryScreen = "Thanks for using EduBot!\n\n" +
		"Session summary sent\n" +
		"to your phone via SMS.\n\n" +
		"Dial back anytime! 📚"

	exitQuietScreen = "Thanks for using EduBot!\n\n" +
		"Dial back anytime\n" +
		"to learn more! 📚"
)

// Verbs for the topic menu header.
const (
	actionLearn = "learn"
	actionQuiz  = "quiz on"
)

func topicMenuScreen(topics []content.TopicInfo, action string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Select topic to %s:\n\n", action)
	writeTopicList(&b, topics)
	return b.String()
}

func invalidTopicScreen(topics []content.TopicInfo) string {
	var b strings.Builder
	b.WriteString("Invalid topic.\n\n")
	writeTopicList(&b, topics)
	return b.String()
}

func writeTopicList(b *strings.Builder, topics []content.TopicInfo) {
	for _, t := range topics {
		fmt.Fprintf(b, "%s. %s\n", t.Choice, t.Name)
	}
	b.WriteString("0. Back")
}

func countPromptScreen(topicName string, counts []int) string {
	return fmt.Sprintf("%s Quiz\n\nHow many questions?\nEnter: %s", topicName, orList(counts))
}

// orList renders the allowed counts as "3, 5, or 10".
func orList(counts []int) string {
	parts := make([]string, len(counts))
	for i, n := range counts {
		parts[i] = strconv.Itoa(n)
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " or " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", or " + parts[len(parts)-1]
	}
}

func questionScreen(feedback string, number, total int, question string) string {
	if feedback == "" {
		return fmt.Sprintf("Q%d of %d\n\n%s\n\nEnter your answer:", number, total, question)
	}
	return fmt.Sprintf("%s\n\nQ%d of %d\n%s\n\nEnter your answer:", feedback, number, total, question)
}

func answerFeedback(correct bool, canonical string) string {
	if correct {
		return "✓ Correct!"
	}
	return "✗ Wrong. Answer: " + canonical
}

func quizCompleteScreen(feedback string, results *domain.QuizResults) string {
	return fmt.Sprintf("%s\n\nQuiz Complete! %s\nScore: %d/%d (%d%%)\n\nFull results sent via SMS!",
		feedback, performanceEmoji(results.Percent), results.Score, results.Total, results.Percent)
}

func performanceEmoji(percent int) string {
	switch {
	case percent >= 80:
		return "⭐"
	case percent >= 60:
		return "👍"
	default:
		return "📚"
	}
}

func lessonSentScreen(topicName string) string {
	return fmt.Sprintf("📚 %s Lesson\n\n"+
		"Your lesson is being sent\n"+
		"via SMS right now!\n\n"+
		"Check your messages.\n"+
		"Dial back for a quiz!", topicName)
}
