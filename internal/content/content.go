/*
Package content holds the built-in curriculum: the closed topic set, one
lesson per topic, and the static question banks the quiz orchestrator
falls back to when generation is unavailable.

The catalog is embedded at build time and parsed once at startup. Draws
from the banks are pure and deterministic, which keeps the fallback path
free of I/O and randomness.
*/
package content

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sediba/edubot/internal/domain"
	"github.com/sediba/edubot/internal/ports"
)

//go:embed content.yaml
var catalogYAML []byte

// TopicInfo is the display metadata for one topic: the digit that selects
// it on the menus, its stable key, and its human-readable name.
type TopicInfo struct {
	Choice string
	Key    domain.Topic
	Name   string
}

type topicEntry struct {
	Choice string `yaml:"choice"`
	Key    string `yaml:"key"`
	Name   string `yaml:"name"`
	Lesson struct {
		Title string `yaml:"title"`
		Body  string `yaml:"body"`
	} `yaml:"lesson"`
	Questions []struct {
		Question string `yaml:"question"`
		Answer   string `yaml:"answer"`
	} `yaml:"questions"`
}

type catalogFile struct {
	Topics []topicEntry `yaml:"topics"`
}

// Catalog is the parsed curriculum. Immutable after Load.
type Catalog struct {
	topics   []TopicInfo
	byChoice map[string]TopicInfo
	lessons  map[domain.Topic]domain.LessonContent
	banks    map[domain.Topic][]domain.QuizQuestion
}

var _ ports.QuestionBank = (*Catalog)(nil)

// Load parses and validates the embedded catalog.
func Load() (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(catalogYAML, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Topics) == 0 {
		return nil, fmt.Errorf("catalog has no topics")
	}

	c := &Catalog{
		byChoice: make(map[string]TopicInfo, len(file.Topics)),
		lessons:  make(map[domain.Topic]domain.LessonContent, len(file.Topics)),
		banks:    make(map[domain.Topic][]domain.QuizQuestion, len(file.Topics)),
	}

	for _, entry := range file.Topics {
		key := domain.Topic(strings.TrimSpace(entry.Key))
		if key == "" {
			return nil, fmt.Errorf("catalog topic %q: missing key", entry.Name)
		}
		if entry.Choice == "" || entry.Name == "" {
			return nil, fmt.Errorf("catalog topic %q: missing choice or name", key)
		}
		if _, dup := c.byChoice[entry.Choice]; dup {
			return nil, fmt.Errorf("catalog topic %q: duplicate choice %q", key, entry.Choice)
		}
		if _, dup := c.banks[key]; dup {
			return nil, fmt.Errorf("catalog topic %q: duplicate key", key)
		}
		if entry.Lesson.Title == "" || entry.Lesson.Body == "" {
			return nil, fmt.Errorf("catalog topic %q: incomplete lesson", key)
		}
		if len(entry.Questions) == 0 {
			return nil, fmt.Errorf("catalog topic %q: empty question bank", key)
		}

		bank := make([]domain.QuizQuestion, 0, len(entry.Questions))
		for i, q := range entry.Questions {
			if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
				return nil, fmt.Errorf("catalog topic %q: question %d is incomplete", key, i+1)
			}
			bank = append(bank, domain.QuizQuestion{
				Question: strings.TrimSpace(q.Question),
				Answer:   strings.TrimSpace(q.Answer),
			})
		}

		info := TopicInfo{Choice: entry.Choice, Key: key, Name: entry.Name}
		c.topics = append(c.topics, info)
		c.byChoice[entry.Choice] = info
		c.lessons[key] = domain.LessonContent{
			Topic: key,
			Title: entry.Lesson.Title,
			Body:  entry.Lesson.Body,
		}
		c.banks[key] = bank
	}

	return c, nil
}

// Topics returns the topic set in menu order.
func (c *Catalog) Topics() []TopicInfo {
	out := make([]TopicInfo, len(c.topics))
	copy(out, c.topics)
	return out
}

// ByChoice resolves a menu digit to its topic.
func (c *Catalog) ByChoice(choice string) (TopicInfo, bool) {
	info, ok := c.byChoice[choice]
	return info, ok
}

// Name returns the display name for a topic, or the key itself when the
// topic is not in the catalog.
func (c *Catalog) Name(topic domain.Topic) string {
	for _, info := range c.topics {
		if info.Key == topic {
			return info.Name
		}
	}
	return string(topic)
}

// Lesson returns the lesson content for a topic.
func (c *Catalog) Lesson(topic domain.Topic) (domain.LessonContent, error) {
	lesson, ok := c.lessons[topic]
	if !ok {
		return domain.LessonContent{}, fmt.Errorf("%w: %s", domain.ErrUnknownTopic, topic)
	}
	return lesson, nil
}

// Draw returns the first count questions from the topic's bank. Same topic
// and count, same questions. Returns fewer than count only when the bank is
// smaller than the request, and nil for topics outside the catalog.
func (c *Catalog) Draw(topic domain.Topic, count int) []domain.QuizQuestion {
	bank, ok := c.banks[topic]
	if !ok || count <= 0 {
		return nil
	}
	if count > len(bank) {
		count = len(bank)
	}
	out := make([]domain.QuizQuestion, count)
	copy(out, bank[:count])
	return out
}

// MinQuestions returns the size of the smallest per-topic bank. Startup
// validation uses it to reject question counts the banks cannot serve.
func (c *Catalog) MinQuestions() int {
	min := 0
	for _, bank := range c.banks {
		if min == 0 || len(bank) < min {
			min = len(bank)
		}
	}
	return min
}
