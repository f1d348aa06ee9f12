// Package groq generates quiz questions through Groq's OpenAI-compatible
// chat completions API. The model's output is parsed into a strict typed
// result at this boundary: answers arrive as JSON strings or numbers and
// leave as canonical strings, and anything that is not the demanded JSON
// shape is an error for the orchestrator's fallback to absorb.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sediba/edubot/internal/domain"
	"github.com/sediba/edubot/internal/logging"
	"github.com/sediba/edubot/internal/ports"
)

const defaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"

// Client implements ports.QuestionGenerator against the Groq API.
type Client struct {
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.QuestionGenerator = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithModel selects the model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens caps the completion size.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithBaseURL overrides the API endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient overrides the HTTP client. The default has no timeout of
// its own; callers bound requests through the context.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Groq client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      "llama-3.1-8b-instant",
		maxTokens:  1024,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// flexAnswer accepts a JSON string or number and keeps the literal token
// as its canonical string form.
type flexAnswer string

func (a *flexAnswer) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = flexAnswer(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*a = flexAnswer(n.String())
		return nil
	}
	return fmt.Errorf("answer must be a string or a number")
}

type generatedQuiz struct {
	Questions []struct {
		Question string     `json:"question"`
		Answer   flexAnswer `json:"answer"`
	} `json:"questions"`
}

// Generate asks the model for count questions on the topic. The context
// deadline bounds the whole call; on expiry the request is cancelled and
// the context error returned.
func (c *Client) Generate(ctx context.Context, topic domain.Topic, count int, difficulty string) ([]domain.QuizQuestion, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful maths teacher. Always respond with valid JSON only."},
			{Role: "user", Content: buildPrompt(topic, count, difficulty)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: 0.7, // some variety between quizzes
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("chat request status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}

	var payload chatResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return nil, fmt.Errorf("chat response has no choices")
	}

	content := strings.TrimSpace(payload.Choices[0].Message.Content)
	questions, err := parseQuiz(content)
	if err != nil {
		c.logger.Warn("generated content failed validation",
			"topic", topic,
			"err", err,
			"content_prefix", prefix(content, 120),
		)
		return nil, err
	}
	return questions, nil
}

// parseQuiz turns the model's text into questions. Models wrap JSON in
// markdown fences often enough that stripping them is part of the contract.
func parseQuiz(content string) ([]domain.QuizQuestion, error) {
	cleaned := stripFences(content)

	var quiz generatedQuiz
	if err := json.Unmarshal([]byte(cleaned), &quiz); err != nil {
		return nil, fmt.Errorf("parse generated quiz: %w", err)
	}
	if len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("generated quiz has no questions")
	}

	out := make([]domain.QuizQuestion, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		out = append(out, domain.QuizQuestion{
			Question: strings.TrimSpace(q.Question),
			Answer:   strings.TrimSpace(string(q.Answer)),
		})
	}
	return out, nil
}

func stripFences(content string) string {
	cleaned := strings.TrimSpace(content)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	lines := strings.Split(cleaned, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// topicGuidance keeps generated questions inside primary-school bounds.
var topicGuidance = map[domain.Topic]string{
	domain.TopicAddition:       "Use numbers between 1-20. Answers should be under 30.",
	domain.TopicSubtraction:    "Use numbers between 1-20. No negative answers.",
	domain.TopicMultiplication: "Use times tables 1-10. Keep it simple.",
	domain.TopicDivision:       "Use numbers that divide evenly. No remainders.",
}

func buildPrompt(topic domain.Topic, count int, difficulty string) string {
	guidance, ok := topicGuidance[topic]
	if !ok {
		guidance = "Keep questions simple."
	}

	return fmt.Sprintf(`You are a primary school maths teacher in Botswana creating a quiz.

Generate exactly %d %s questions for primary school students.

RULES:
- Difficulty: %s
- %s
- Answers must be single numbers (no fractions, no words)
- Questions should be clear and simple
- Vary the numbers used

OUTPUT FORMAT:
Return ONLY a valid JSON object with this exact structure:
{"questions": [{"question": "What is 2 + 3?", "answer": "5"}, {"question": "What is 4 + 1?", "answer": "5"}]}

IMPORTANT:
- Output ONLY the JSON object
- No markdown, no explanation, no extra text
- Ensure valid JSON syntax (proper quotes, commas)

Generate %d %s questions now:`, count, topic, difficulty, guidance, count, topic)
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
