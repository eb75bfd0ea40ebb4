package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	openaiclientx "github.com/dhrits/job-hopper/pkg/openaiclient"
)

// Purpose selects which completion role a client is built for. Each purpose
// may override the default model and temperature.
type Purpose string

const (
	// PurposeCoach drives the tool-calling agent steps.
	PurposeCoach Purpose = "coach"
	// PurposeSummarizer compresses conversation memory.
	PurposeSummarizer Purpose = "summarizer"
	// PurposeWriter backs the resume/cover-letter/consultant sub-completions.
	PurposeWriter Purpose = "writer"
)

type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.openai.com/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" default:"gpt-4o"`
	MaxCompletionToken int64         `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float64       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"60s"`

	CoachModel            string  `envconfig:"COACH_MODEL" split_words:"true"`
	SummarizerModel       string  `envconfig:"SUMMARIZER_MODEL" split_words:"true"`
	WriterModel           string  `envconfig:"WRITER_MODEL" split_words:"true"`
	CoachTemperature      float64 `envconfig:"COACH_TEMPERATURE" split_words:"true" default:"-1"`
	SummarizerTemperature float64 `envconfig:"SUMMARIZER_TEMPERATURE" split_words:"true" default:"-1"`
	WriterTemperature     float64 `envconfig:"WRITER_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openai api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// ClientFor maps the purpose to a concrete endpoint config, applying the
// per-purpose model and temperature overrides.
func (c Config) ClientFor(purpose Purpose) openaiclientx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch purpose {
	case PurposeCoach:
		if v := strings.TrimSpace(c.CoachModel); v != "" {
			modelName = v
		}
		if c.CoachTemperature >= 0 {
			temp = c.CoachTemperature
		}
	case PurposeSummarizer:
		if v := strings.TrimSpace(c.SummarizerModel); v != "" {
			modelName = v
		}
		if c.SummarizerTemperature >= 0 {
			temp = c.SummarizerTemperature
		}
	case PurposeWriter:
		if v := strings.TrimSpace(c.WriterModel); v != "" {
			modelName = v
		}
		if c.WriterTemperature >= 0 {
			temp = c.WriterTemperature
		}
	}

	return openaiclientx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: c.MaxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
	}
}
