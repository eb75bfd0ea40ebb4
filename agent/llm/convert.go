package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/dhrits/job-hopper/agent/contract"
)

func toOpenAIMessages(msgs []contractx.Message) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case contractx.RoleSystem:
			out = append(out, openaisdk.SystemMessage(msg.Content))
		case contractx.RoleUser:
			out = append(out, openaisdk.UserMessage(msg.Content))
		case contractx.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openaisdk.AssistantMessage(msg.Content))
				continue
			}
			assistant, err := toAssistantWithCalls(msg)
			if err != nil {
				return nil, err
			}
			out = append(out, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case contractx.RoleTool:
			out = append(out, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			return nil, fmt.Errorf("%w: unsupported message role %q", contractx.ErrValidation, msg.Role)
		}
	}
	return out, nil
}

func toAssistantWithCalls(msg contractx.Message) (openaisdk.ChatCompletionAssistantMessageParam, error) {
	calls := make([]openaisdk.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		args, err := json.Marshal(call.Arguments)
		if err != nil {
			return openaisdk.ChatCompletionAssistantMessageParam{}, fmt.Errorf("%w: marshal args for tool %s: %v", contractx.ErrValidation, call.Name, err)
		}
		calls = append(calls, openaisdk.ChatCompletionMessageToolCallParam{
			ID: call.CallID,
			Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: string(args),
			},
		})
	}

	assistant := openaisdk.ChatCompletionAssistantMessageParam{
		ToolCalls: calls,
	}
	if msg.Content != "" {
		assistant.Content.OfString = openaisdk.String(msg.Content)
	}
	return assistant, nil
}

func toOpenAITools(tools []contractx.ToolDescriptor) []openaisdk.ChatCompletionToolParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object"}
		}
		out = append(out, openaisdk.ChatCompletionToolParam{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openaisdk.String(t.Description),
				Parameters:  openaisdk.FunctionParameters(params),
			},
		})
	}
	return out
}

func fromToolCalls(calls []openaisdk.ChatCompletionMessageToolCall) ([]contractx.ToolCallRequest, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	out := make([]contractx.ToolCallRequest, 0, len(calls))
	for _, call := range calls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool call %s has no name", contractx.ErrModelInvoke, call.ID)
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid arguments for tool %s: %v", contractx.ErrModelInvoke, name, err)
			}
		}

		out = append(out, contractx.ToolCallRequest{
			CallID:    call.ID,
			Name:      name,
			Arguments: args,
		})
	}
	return out, nil
}
