package llm

import (
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ParamType is the JSON type of a tool parameter.
type ParamType int

const (
	ParamString ParamType = iota
	ParamEnum
	ParamInteger
	ParamStringArray
)

// Param declares one tool parameter.
type Param struct {
	Name        string
	Description string
	Type        ParamType
	// Enum lists the allowed values when Type is ParamEnum.
	Enum     []string
	Required bool
}

// Tool declares a function the model may call.
type Tool struct {
	Name        string
	Description string
	Params      []Param
}

func (p Param) schema() jsonschema.Definition {
	def := jsonschema.Definition{Description: p.Description}
	switch p.Type {
	case ParamEnum:
		def.Type = jsonschema.String
		def.Enum = p.Enum
	case ParamInteger:
		def.Type = jsonschema.Integer
	case ParamStringArray:
		def.Type = jsonschema.Array
		def.Items = &jsonschema.Definition{Type: jsonschema.String}
	default:
		def.Type = jsonschema.String
	}
	return def
}

func (t Tool) openAI() openai.Tool {
	params := jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: make(map[string]jsonschema.Definition, len(t.Params)),
		Required:   []string{},
	}
	for _, p := range t.Params {
		params.Properties[p.Name] = p.schema()
		if p.Required {
			params.Required = append(params.Required, p.Name)
		}
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  params,
		},
	}
}
