package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Observation is a single classroom observation fed into report generation.
type Observation struct {
	ValueTag       string
	AssessmentType string
	Note           string
	RecordedAt     time.Time
}

// Request carries everything the generator needs to compose a report.
type Request struct {
	StudentName  string
	Observations []Observation
}

// Generator produces a narrative report from classroom observations.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config defines options for the OpenAI-backed generator.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      *zap.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewOpenAIGenerator builds a generator using the provided configuration.
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 800
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &OpenAIGenerator{
		client: openai.NewClient(cfg.APIKey),
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// Generate sends the observations to OpenAI and returns the report text.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if len(req.Observations) == 0 {
		return "", fmt.Errorf("no observations provided")
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(req),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from openai")
	}

	report := strings.TrimSpace(resp.Choices[0].Message.Content)
	if report == "" {
		return "", fmt.Errorf("empty report returned from openai")
	}

	g.logger.Sugar().Infow("report generated",
		"model", g.cfg.Model,
		"observations", len(req.Observations),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

const systemPrompt = "You are an experienced elementary school teacher writing professional Learning Journey reports for parents."

func buildPrompt(req Request) string {
	lines := make([]string, 0, len(req.Observations))
	for _, obs := range req.Observations {
		lines = append(lines, fmt.Sprintf(
			"Skill: %s\nAssessment Type: %s\nObservation: %s\nDate: %s",
			obs.ValueTag, obs.AssessmentType, obs.Note, obs.RecordedAt.Format("2006-01-02"),
		))
	}
	observations := strings.Join(lines, "\n\n")

	return fmt.Sprintf(`You are an educational professional writing a Learning Journey report for a student named %s.

Based on the following classroom observations, create a comprehensive and positive Learning Journey report that:
1. Highlights the student's growth and development
2. Identifies key strengths and areas of progress
3. Provides specific examples from the observations
4. Uses professional, encouraging language appropriate for parents
5. Suggests areas for continued growth and support

Observations:
%s

Please write a well-structured Learning Journey report (approximately 300-500 words) that celebrates this student's learning and development.`, req.StudentName, observations)
}
