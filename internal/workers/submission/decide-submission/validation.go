package decidesubmission

import "dynamic-forms/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"submissionId", "decision"},
		Properties: map[string]validation.Property{
			"submissionId": {
				Type:        "string",
				Description: "Submission to decide",
				MinLength:   intPtr(1),
			},
			"decision": {
				Type:        "string",
				Description: "Terminal review status",
				Enum:        []string{"approved", "rejected"},
			},
			"reviewer": {
				Type:        "string",
				Description: "Who made the decision",
				MaxLength:   intPtr(200),
			},
		},
	}
}

func intPtr(i int) *int {
	return &i
}
