package ports

import (
	"context"

	"github.com/sediba/edubot/internal/domain"
)

// QuestionGenerator produces quiz questions for a topic, typically by
// calling a remote model. Implementations must respect the context
// deadline: a call past its deadline returns an error rather than a late
// result. Answers are canonicalized to strings at this boundary.
type QuestionGenerator interface {
	Generate(ctx context.Context, topic domain.Topic, count int, difficulty string) ([]domain.QuizQuestion, error)
}

// QuestionBank serves pre-authored questions. Draws are pure: same topic
// and count, same questions, no I/O and no randomness.
type QuestionBank interface {
	Draw(topic domain.Topic, count int) []domain.QuizQuestion
}
