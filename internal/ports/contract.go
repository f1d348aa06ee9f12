package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sediba/edubot/internal/domain"
)

// RunSessionStoreContract runs a suite of tests verifying that a
// SessionStore implementation adheres to the interface contract.
// TTL behavior is implementation specific and tested per adapter.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		session := domain.NewSession(sessionID, "+26771000001")
		session.EnterQuiz()
		session.Quiz.Topic = domain.TopicAddition
		session.Quiz.Questions = []domain.QuizQuestion{
			{Question: "What is 2 + 3?", Answer: "5"},
			{Question: "What is 4 + 4?", Answer: "8"},
		}
		session.Quiz.StartDepth = 3
		session.Visit("quiz")

		err := store.Save(ctx, session)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, session.ID, loaded.ID)
		assert.Equal(t, session.Origin, loaded.Origin)
		assert.Equal(t, domain.PhaseQuiz, loaded.Phase)
		require.NotNil(t, loaded.Quiz)
		assert.Equal(t, domain.TopicAddition, loaded.Quiz.Topic)
		assert.Equal(t, session.Quiz.Questions, loaded.Quiz.Questions)
		assert.Equal(t, 3, loaded.Quiz.StartDepth)
		assert.Equal(t, []string{"quiz"}, loaded.Visited)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		session := domain.NewSession(sessionID, "+26771000001")
		session.EnterQuiz()
		session.Quiz.Topic = domain.TopicDivision
		session.Quiz.Questions = []domain.QuizQuestion{{Question: "What is 6 / 2?", Answer: "3"}}
		require.NoError(t, store.Save(ctx, session))

		session.Quiz.Record("3", true)
		require.NoError(t, store.Save(ctx, session))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		require.NotNil(t, loaded.Quiz)
		assert.Equal(t, 1, loaded.Quiz.Index)
		assert.Equal(t, 1, loaded.Quiz.Score)
		require.Len(t, loaded.Quiz.Answers, 1)
		assert.True(t, loaded.Quiz.Answers[0].Correct)
	})

	t.Run("Load Isolation", func(t *testing.T) {
		// Mutating a loaded session must not leak back into the store.
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Phase = domain.PhaseLearn
		loaded.Quiz = nil

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseQuiz, again.Phase)
		assert.NotNil(t, again.Quiz)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewSession(sessionID, "+26771000001")))

		err := store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("Delete Non-Existent", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "non-existent-"+sessionID))
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, domain.NewSession(id1, "+26771000001"))
		_ = store.Save(ctx, domain.NewSession(id2, "+26771000002"))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
