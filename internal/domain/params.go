package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Defaults applied to transformation parameters before validation. They match
// the provider model's documented defaults.
const (
	DefaultInferenceSteps = 30
	DefaultStrength       = 0.85
	DefaultAspectRatio    = "16:9"
	DefaultResolution     = "720p"
	DefaultNumFrames      = 129
)

var parametersSchema = map[string]any{
	"type":     "object",
	"required": []any{"prompt"},
	"properties": map[string]any{
		"prompt":                map[string]any{"type": "string", "minLength": 1},
		"num_inference_steps":   map[string]any{"type": "integer", "minimum": 1, "maximum": 50},
		"seed":                  map[string]any{"type": "integer"},
		"strength":              map[string]any{"type": "number", "minimum": 0, "maximum": 1},
		"aspect_ratio":          map[string]any{"enum": []any{"16:9", "9:16"}},
		"resolution":            map[string]any{"enum": []any{"480p", "580p", "720p"}},
		"num_frames":            map[string]any{"enum": []any{85, 129}},
		"pro_mode":              map[string]any{"type": "boolean"},
		"enable_safety_checker": map[string]any{"type": "boolean"},
	},
}

var compiledParametersSchema = mustCompileParametersSchema()

func mustCompileParametersSchema() *jsonschema.Schema {
	raw, err := json.Marshal(parametersSchema)
	if err != nil {
		panic(fmt.Sprintf("marshal parameters schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("parameters.json", bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("add parameters schema: %v", err))
	}
	schema, err := compiler.Compile("parameters.json")
	if err != nil {
		panic(fmt.Sprintf("compile parameters schema: %v", err))
	}
	return schema
}

// ValidateParameters applies defaults to the caller-supplied parameter bag and
// validates the result against the provider contract. The returned map is the
// canonical bag to persist and forward; the input is not mutated.
func ValidateParameters(params map[string]any) (map[string]any, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: parameters are required", ErrValidation)
	}
	merged := make(map[string]any, len(params)+5)
	for k, v := range params {
		merged[k] = v
	}
	setDefault(merged, "num_inference_steps", DefaultInferenceSteps)
	setDefault(merged, "strength", DefaultStrength)
	setDefault(merged, "aspect_ratio", DefaultAspectRatio)
	setDefault(merged, "resolution", DefaultResolution)
	setDefault(merged, "num_frames", DefaultNumFrames)
	setDefault(merged, "enable_safety_checker", true)

	// Round-trip through JSON so the validator sees canonical value types
	// regardless of how the caller built the map.
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: parameters are not serializable: %v", ErrValidation, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := compiledParametersSchema.Validate(decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return merged, nil
}

func setDefault(params map[string]any, key string, value any) {
	if _, ok := params[key]; !ok {
		params[key] = value
	}
}
