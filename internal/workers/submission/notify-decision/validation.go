package notifydecision

import "dynamic-forms/internal/common/validation"

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"submissionId"},
		Properties: map[string]validation.Property{
			"submissionId": {
				Type:        "string",
				Description: "Decided submission",
				MinLength:   intPtr(1),
			},
			"recipientEmail": {
				Type:        "string",
				Description: "Overrides the email field of the submission",
				MaxLength:   intPtr(255),
			},
		},
	}
}

func intPtr(i int) *int {
	return &i
}
