package llm

import (
	"context"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/dhrits/job-hopper/agent/contract"
	openaiclientx "github.com/dhrits/job-hopper/pkg/openaiclient"
)

// Client implements contract.Completer on top of the OpenAI chat completions
// API. One Client is bound to one model/temperature pair; build one per
// Purpose via Config.ClientFor.
type Client struct {
	api         *openaisdk.Client
	model       string
	temperature float64
	maxTokens   int64
}

var _ contractx.Completer = (*Client)(nil)

func NewClient(cfg openaiclientx.Config) (*Client, error) {
	api := openaiclientx.NewClient(cfg)
	if api == nil {
		return nil, fmt.Errorf("%w: openai api key is required", contractx.ErrValidation)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model is required", contractx.ErrValidation)
	}
	return &Client{
		api:         api,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxCompletionToken,
	}, nil
}

func (c *Client) Complete(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolDescriptor) (contractx.Message, error) {
	params, err := c.buildParams(msgs, tools)
	if err != nil {
		return contractx.Message{}, err
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return contractx.Message{}, fmt.Errorf("%w: %v", completionErr(err), err)
	}
	if len(resp.Choices) == 0 {
		return contractx.Message{}, fmt.Errorf("%w: completion returned no choices", contractx.ErrModelInvoke)
	}

	return fromCompletion(resp.Choices[0].Message)
}

func (c *Client) CompleteStream(ctx context.Context, msgs []contractx.Message, tools []contractx.ToolDescriptor, onDelta func(string)) (contractx.Message, error) {
	params, err := c.buildParams(msgs, tools)
	if err != nil {
		return contractx.Message{}, err
	}

	stream := c.api.Chat.Completions.NewStreaming(ctx, params)
	acc := openaisdk.ChatCompletionAccumulator{}

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" && onDelta != nil {
			onDelta(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return contractx.Message{}, fmt.Errorf("%w: %v", completionErr(err), err)
	}
	if len(acc.Choices) == 0 {
		return contractx.Message{}, fmt.Errorf("%w: stream produced no choices", contractx.ErrModelInvoke)
	}

	return fromCompletion(acc.Choices[0].Message)
}

func (c *Client) buildParams(msgs []contractx.Message, tools []contractx.ToolDescriptor) (openaisdk.ChatCompletionNewParams, error) {
	converted, err := toOpenAIMessages(msgs)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Messages: converted,
		Model:    openaisdk.ChatModel(c.model),
	}
	if c.temperature >= 0 {
		params.Temperature = openaisdk.Float(c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(c.maxTokens)
	}
	if converted := toOpenAITools(tools); len(converted) > 0 {
		params.Tools = converted
	}
	return params, nil
}

func fromCompletion(msg openaisdk.ChatCompletionMessage) (contractx.Message, error) {
	calls, err := fromToolCalls(msg.ToolCalls)
	if err != nil {
		return contractx.Message{}, err
	}
	return contractx.NewAssistantMessage(msg.Content, calls), nil
}

func completionErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return contractx.ErrTurnTimeout
	}
	return contractx.ErrModelInvoke
}
