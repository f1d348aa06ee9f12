package domain

// DeliveryKind identifies the payload carried by a DeliveryRequest.
type DeliveryKind string

const (
	// DeliveryLesson carries lesson content after a Learn selection.
	DeliveryLesson DeliveryKind = "lesson"
	// DeliveryQuizResults carries the full result breakdown after a quiz.
	DeliveryQuizResults DeliveryKind = "quiz_results"
	// DeliverySummary carries the session recap scheduled at exit.
	DeliverySummary DeliveryKind = "summary"
)

// DeliveryRequest asks the delivery collaborator to push content to the
// dialog's originating address out-of-band. Exactly one payload field is
// set, matching Kind. The core never formats message text; rendering
// belongs to the channel adapter.
type DeliveryRequest struct {
	To   string       `json:"to"`
	Kind DeliveryKind `json:"kind"`

	Lesson  *LessonContent  `json:"lesson,omitempty"`
	Results *QuizResults    `json:"results,omitempty"`
	Summary *SessionSummary `json:"summary,omitempty"`
}

// LessonContent is the teachable unit for one topic.
type LessonContent struct {
	Topic Topic  `json:"topic"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// QuizResults is the aggregation view of a finished quiz.
type QuizResults struct {
	Topic   Topic          `json:"topic"`
	Score   int            `json:"score"`
	Total   int            `json:"total"`
	Percent int            `json:"percent"`
	Answers []AnswerRecord `json:"answers"`
}

// SessionSummary recaps one dialog at exit: which branches were visited
// and, if a quiz topic was chosen, how far it got.
type SessionSummary struct {
	Visited   []string `json:"visited,omitempty"`
	QuizTopic Topic    `json:"quiz_topic,omitempty"`
	Answered  int      `json:"answered,omitempty"`
	Score     int      `json:"score,omitempty"`
	Total     int      `json:"total,omitempty"`
}
