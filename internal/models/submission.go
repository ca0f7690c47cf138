package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// SubmissionStatus is the review state of a submission.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

func (s SubmissionStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// IsTerminal reports whether no transition leaves s.
func (s SubmissionStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Entry is one normalized field value. FieldID pins the value to the field
// it was validated against; Label is the key the submitter used.
type Entry struct {
	FieldID string `json:"fieldId"`
	Label   string `json:"label"`
	Value   Value  `json:"value"`
}

// Submission is the canonical, validated record of one form submission.
// Only Status changes after creation.
type Submission struct {
	ID          string
	FormID      string
	FormName    string
	Entries     []Entry
	SubmittedAt time.Time
	Status      SubmissionStatus
}

// Data projects the entries to the label→value mapping.
func (s *Submission) Data() map[string]Value {
	out := make(map[string]Value, len(s.Entries))
	for _, e := range s.Entries {
		out[e.Label] = e.Value
	}
	return out
}

// Lookup returns the value stored under label.
func (s *Submission) Lookup(label string) (Value, bool) {
	for _, e := range s.Entries {
		if e.Label == label {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Files returns the file references held by the submission.
func (s *Submission) Files() []*FileReference {
	var refs []*FileReference
	for _, e := range s.Entries {
		if e.Value.Kind == ValueFile && e.Value.File != nil {
			refs = append(refs, e.Value.File)
		}
	}
	return refs
}

type submissionJSON struct {
	ID          string           `json:"id"`
	FormID      string           `json:"formId"`
	FormName    string           `json:"formName"`
	Data        orderedData      `json:"data"`
	SubmittedAt time.Time        `json:"submittedAt"`
	Status      SubmissionStatus `json:"status"`
}

// MarshalJSON renders data keyed by label, in declared field order.
func (s Submission) MarshalJSON() ([]byte, error) {
	return json.Marshal(submissionJSON{
		ID:          s.ID,
		FormID:      s.FormID,
		FormName:    s.FormName,
		Data:        orderedData(s.Entries),
		SubmittedAt: s.SubmittedAt,
		Status:      s.Status,
	})
}

type orderedData []Entry

func (d orderedData) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// SubmissionFilter narrows a submission listing. Zero values match all.
type SubmissionFilter struct {
	FormID   string
	FormName string
	Status   SubmissionStatus
	Limit    int
	Offset   int
}

// Matches reports whether s passes the filter's predicates.
func (f SubmissionFilter) Matches(s *Submission) bool {
	if f.FormID != "" && s.FormID != f.FormID {
		return false
	}
	if f.FormName != "" && s.FormName != f.FormName {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

// FormCount is the number of submissions recorded for one form.
type FormCount struct {
	FormID   string `json:"formId"`
	FormName string `json:"formName"`
	Count    int    `json:"count"`
}

// SubmissionStats aggregates submission counts for the dashboard.
type SubmissionStats struct {
	Total    int                      `json:"total"`
	ByStatus map[SubmissionStatus]int `json:"byStatus"`
	ByForm   []FormCount              `json:"byForm"`
}
