package review

import (
	"github.com/xeipuuv/gojsonschema"
)

const payloadSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "suggested_prompt": { "type": "string" },
    "questions": { "type": "array", "items": { "type": "string" } },
    "refinements": { "type": "array", "items": { "type": "string" } },
    "feedback": { "type": "string" },
    "ratings": {
      "type": "object",
      "properties": {
        "length": { "$ref": "#/definitions/rating" },
        "complexity": { "$ref": "#/definitions/rating" },
        "specificity": { "$ref": "#/definitions/rating" },
        "clarity": { "$ref": "#/definitions/rating" },
        "creativity": { "$ref": "#/definitions/rating" },
        "context": { "$ref": "#/definitions/rating" }
      }
    }
  },
  "definitions": {
    "rating": { "type": "number", "minimum": 0, "maximum": 10 }
  }
}`

var payloadSchemaLoader = gojsonschema.NewStringLoader(payloadSchemaJSON)

// ValidatePayload checks the decoded provider object against the response
// contract and returns one line per violation. Violations are informational;
// processing repairs them either way.
func ValidatePayload(payload map[string]any) []string {
	result, err := gojsonschema.Validate(payloadSchemaLoader, gojsonschema.NewGoLoader(payload))
	if err != nil {
		return []string{"schema: " + err.Error()}
	}
	if result.Valid() {
		return nil
	}
	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, "schema: "+desc.String())
	}
	return issues
}
