package reaction

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rcliao/personae/internal/llm"
)

// IdleDurationMS is how long an Idle action waits.
const IdleDurationMS int64 = 4 * 60 * 1000

// Action is something a person decided to do. It is one of SayInScene, Wait
// or Idle.
type Action interface {
	action()
}

// SayInScene speaks to everyone in the person's current scene. Recipients is
// what the model asked for; delivery ignores it.
type SayInScene struct {
	Comment    string
	Recipients []string
}

// Wait pauses the person for DurationMS milliseconds.
type Wait struct {
	DurationMS int64
}

// Idle is a Wait of IdleDurationMS.
type Idle struct{}

func (SayInScene) action() {}
func (Wait) action()       {}
func (Idle) action()       {}

// DurationMS returns IdleDurationMS.
func (Idle) DurationMS() int64 { return IdleDurationMS }

// ErrNoActionReturned means the model answered without calling any tool.
var ErrNoActionReturned = errors.New("no action returned")

// ActionError reports a tool call that could not be turned into an Action.
type ActionError struct {
	Tool string
	Arg  string
	Err  error
}

func (e *ActionError) Error() string {
	if e.Arg != "" {
		return fmt.Sprintf("person action %s: argument %s: %v", e.Tool, e.Arg, e.Err)
	}
	return fmt.Sprintf("person action %s: %v", e.Tool, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

var (
	errUnknownTool = errors.New("unknown tool")
	errMissingArg  = errors.New("missing required argument")
)

const (
	toolSay  = "say"
	toolWait = "wait"
	toolIdle = "idle"
)

// Tools is the catalogue of actions offered to the model.
var Tools = []llm.Tool{
	{
		Name:        toolSay,
		Description: "Make the person say something to specified recipients.",
		Params: []llm.Param{
			{Name: "comment", Description: "What the person says.", Type: llm.ParamString, Required: true},
			{Name: "recipients", Description: "Names of the people being addressed.", Type: llm.ParamStringArray, Required: true},
		},
	},
	{
		Name:        toolWait,
		Description: "Make the person wait for a while before doing anything else.",
		Params: []llm.Param{
			{Name: "duration_ms", Description: "How long to wait, in milliseconds.", Type: llm.ParamInteger, Required: true},
		},
	},
	{
		Name:        toolIdle,
		Description: "Make the person do nothing for now.",
	},
}

// DecodeAction turns one tool call into an Action.
func DecodeAction(call llm.ToolCall) (Action, error) {
	switch call.Name {
	case toolSay:
		var say SayInScene
		if err := requireArg(call, "comment", &say.Comment); err != nil {
			return nil, err
		}
		if err := requireArg(call, "recipients", &say.Recipients); err != nil {
			return nil, err
		}
		return say, nil
	case toolWait:
		var w Wait
		if err := requireArg(call, "duration_ms", &w.DurationMS); err != nil {
			return nil, err
		}
		return w, nil
	case toolIdle:
		return Idle{}, nil
	}
	return nil, &ActionError{Tool: call.Name, Err: errUnknownTool}
}

func requireArg(call llm.ToolCall, name string, dst any) error {
	raw, ok := call.Arguments[name]
	if !ok || string(raw) == "null" {
		return &ActionError{Tool: call.Name, Arg: name, Err: errMissingArg}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &ActionError{Tool: call.Name, Arg: name, Err: err}
	}
	return nil
}
