package llmclient

// Action is the Analyzer Loop's per-step dispatch verb, requested from the
// vision model alongside its text_sections.
type Action string

const (
	ActionClosePopup    Action = "close_popup"
	ActionLoadMore      Action = "load_more"
	ActionSkipToContent Action = "skip_to_content"
	ActionNone          Action = "none"
)

// Direction is the scroll-fallback axis.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Point is a normalized on-screen click target, in [0,1] x [0,1] relative
// to the current viewport.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StepResult is the structured output the vision model returns for a
// single Analyzer Loop iteration.
type StepResult struct {
	TextSections []string  `json:"text_sections"`
	Action       Action    `json:"action"`
	ClickPoint   *Point    `json:"click_point,omitempty"`
	Direction    Direction `json:"direction"`
}

// StepResultSchema is the JSON-Schema constraint passed to the provider's
// structured-output mode when requesting a StepResult.
var StepResultSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"text_sections": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"action": map[string]interface{}{
			"type": "string",
			"enum": []string{"close_popup", "load_more", "skip_to_content", "none"},
		},
		"click_point": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"x": map[string]interface{}{"type": "number"},
				"y": map[string]interface{}{"type": "number"},
			},
		},
		"direction": map[string]interface{}{
			"type": "string",
			"enum": []string{"up", "down"},
		},
	},
	"required": []string{"text_sections", "action", "direction"},
}

// PaginationRole is the classification the pagination-detection step asks
// the LLM to assign to a candidate query/post-body parameter name.
type PaginationRole string

const (
	RolePage   PaginationRole = "page"
	RoleLimit  PaginationRole = "limit"
	RoleOffset PaginationRole = "offset"
	RoleCursor PaginationRole = "cursor"
	RoleNone   PaginationRole = "none"
)

// ParameterClassification is the LLM's verdict for one candidate
// parameter name.
type ParameterClassification struct {
	Name string         `json:"name"`
	Role PaginationRole `json:"role"`
}

// ClassificationResult is the structured output for a pagination-role
// classification call: one verdict per candidate name submitted.
type ClassificationResult struct {
	Parameters []ParameterClassification `json:"parameters"`
}

// ClassificationSchema constrains ClassificationResult; candidateNames is
// embedded into the prompt text (not the schema) so the model knows the
// closed set of valid Name values. ClassifyParameters then validates the
// response against that same set: if any reported name is not in the
// candidate set, the whole result is rejected with ErrMalformedOutput.
var ClassificationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"parameters": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"name": map[string]interface{}{"type": "string"},
					"role": map[string]interface{}{
						"type": "string",
						"enum": []string{"page", "limit", "offset", "cursor", "none"},
					},
				},
				"required": []string{"name", "role"},
			},
		},
	},
	"required": []string{"parameters"},
}

// ExtractionProgram is the LLM's synthesized gojq query: a pure function
// over the preprocessed response body, expressed as a jq program rather
// than free code (see internal/extract for the sandboxed evaluator that
// executes it).
type ExtractionProgram struct {
	Query string `json:"query"`
}

// ExtractionProgramSchema constrains ExtractionProgram responses.
var ExtractionProgramSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"query": map[string]interface{}{"type": "string"},
	},
	"required": []string{"query"},
}
