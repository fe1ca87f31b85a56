package llm

import (
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// ToolCall is a decoded function call. Arguments holds each argument's raw
// JSON value keyed by name.
type ToolCall struct {
	Name      string
	Arguments map[string]json.RawMessage
}

// Response wraps a chat completion response.
type Response struct {
	raw openai.ChatCompletionResponse
}

// NewResponse wraps a provider response.
func NewResponse(raw openai.ChatCompletionResponse) *Response {
	return &Response{raw: raw}
}

// TextResponse builds a response whose first choice is a plain message.
func TextResponse(content string) *Response {
	return NewResponse(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
		}},
	})
}

// ToolCallResponse builds a response whose first choice carries the given
// function calls. Arguments are passed through as the provider's JSON strings.
func ToolCallResponse(calls ...openai.FunctionCall) *Response {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
	for i, c := range calls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:       fmt.Sprintf("call_%d", i),
			Type:     openai.ToolTypeFunction,
			Function: c,
		})
	}
	return NewResponse(openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: msg}},
	})
}

func (r *Response) first() (openai.ChatCompletionMessage, error) {
	if len(r.raw.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("%w: response has no choices", ErrDecode)
	}
	return r.raw.Choices[0].Message, nil
}

// AsMessage returns the text content of the first choice.
func (r *Response) AsMessage() (string, error) {
	msg, err := r.first()
	if err != nil {
		return "", err
	}
	if msg.Content == "" {
		return "", fmt.Errorf("%w: choices[0].message.content is missing", ErrDecode)
	}
	return msg.Content, nil
}

// MaybeToolCalls returns nil when the first choice has no tool calls and the
// decoded calls otherwise.
func (r *Response) MaybeToolCalls() ([]ToolCall, error) {
	msg, err := r.first()
	if err != nil {
		return nil, err
	}
	if len(msg.ToolCalls) == 0 {
		return nil, nil
	}
	return decodeToolCalls(msg.ToolCalls)
}

// AsToolCalls returns the decoded tool calls of the first choice and fails
// when there are none.
func (r *Response) AsToolCalls() ([]ToolCall, error) {
	calls, err := r.MaybeToolCalls()
	if err != nil {
		return nil, err
	}
	if len(calls) == 0 {
		return nil, fmt.Errorf("%w: choices[0].message.tool_calls is missing", ErrDecode)
	}
	return calls, nil
}

func decodeToolCalls(raw []openai.ToolCall) ([]ToolCall, error) {
	calls := make([]ToolCall, 0, len(raw))
	for i, tc := range raw {
		if tc.Function.Name == "" {
			return nil, fmt.Errorf("%w: tool_calls[%d] has no function name", ErrDecode, i)
		}
		args := map[string]json.RawMessage{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%w: tool_calls[%d] %s arguments: %v", ErrDecode, i, tc.Function.Name, err)
			}
		}
		calls = append(calls, ToolCall{Name: tc.Function.Name, Arguments: args})
	}
	return calls, nil
}
