package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmission_MarshalJSON_DataKeyedByLabelInFieldOrder(t *testing.T) {
	sub := Submission{
		ID:       "sub-1",
		FormID:   "form-1",
		FormName: "Clinic Intake",
		Entries: []Entry{
			{FieldID: "f3", Label: "Zip", Value: StringValue("560001")},
			{FieldID: "f1", Label: "Age", Value: NumberValue(42)},
			{FieldID: "f2", Label: "Symptoms", Value: StringsValue([]string{"fever", "cough"})},
			{FieldID: "f4", Label: "Report", Value: FileValue(&FileReference{
				OriginalName: "scan.pdf",
				StoredName:   "1700000000000-ab12cd34-scan.pdf",
				URL:          "/uploads/1700000000000-ab12cd34-scan.pdf",
				MimeType:     "application/pdf",
				SizeBytes:    2048,
			})},
		},
		SubmittedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Status:      StatusPending,
	}

	raw, err := json.Marshal(sub)
	require.NoError(t, err)

	body := string(raw)
	assert.Contains(t, body, `"data":{"Zip":"560001","Age":42,"Symptoms":["fever","cough"],"Report":{`)
	assert.Contains(t, body, `"status":"pending"`)
	assert.Contains(t, body, `"formName":"Clinic Intake"`)

	var decoded struct {
		Data map[string]Value `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, ValueString, decoded.Data["Zip"].Kind)
	assert.Equal(t, ValueNumber, decoded.Data["Age"].Kind)
	assert.Equal(t, ValueStrings, decoded.Data["Symptoms"].Kind)
	require.Equal(t, ValueFile, decoded.Data["Report"].Kind)
	assert.Equal(t, "scan.pdf", decoded.Data["Report"].File.OriginalName)
}

func TestValue_IsEmpty(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  bool
	}{
		{"empty string", StringValue(""), true},
		{"string", StringValue("x"), false},
		{"zero number", NumberValue(0), false},
		{"empty set", StringsValue(nil), true},
		{"set", StringsValue([]string{"a"}), false},
		{"nil file", FileValue(nil), true},
		{"zero value", Value{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.IsEmpty())
		})
	}
}

func TestSubmissionStatus(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusApproved.IsTerminal())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, SubmissionStatus("archived").Valid())
}

func TestSubmissionFilter_Matches(t *testing.T) {
	sub := &Submission{FormID: "f1", FormName: "Survey", Status: StatusApproved}

	assert.True(t, SubmissionFilter{}.Matches(sub))
	assert.True(t, SubmissionFilter{FormID: "f1", Status: StatusApproved}.Matches(sub))
	assert.False(t, SubmissionFilter{FormID: "f2"}.Matches(sub))
	assert.False(t, SubmissionFilter{Status: StatusPending}.Matches(sub))
	assert.False(t, SubmissionFilter{FormName: "Other"}.Matches(sub))
}

func TestFieldKind(t *testing.T) {
	for _, k := range FieldKinds {
		assert.True(t, k.Valid(), k)
	}
	assert.False(t, FieldKind("color").Valid())
	assert.True(t, KindCheckbox.IsChoice())
	assert.False(t, KindPAN.IsChoice())
}
