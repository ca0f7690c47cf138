package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FileReference describes a stored attachment. Only the attachment binder
// creates these.
type FileReference struct {
	OriginalName string `json:"originalName"`
	StoredName   string `json:"storedName"`
	URL          string `json:"url"`
	MimeType     string `json:"mimeType"`
	SizeBytes    int64  `json:"sizeBytes"`
}

// ValueKind tags which member of Value is populated.
type ValueKind string

const (
	ValueString  ValueKind = "string"
	ValueNumber  ValueKind = "number"
	ValueStrings ValueKind = "strings"
	ValueFile    ValueKind = "file"
)

// Value is a normalized submission value: a string, a number, an ordered
// list of strings or a file reference.
type Value struct {
	Kind    ValueKind
	Str     string
	Num     float64
	Strings []string
	File    *FileReference
}

func StringValue(s string) Value         { return Value{Kind: ValueString, Str: s} }
func NumberValue(n float64) Value        { return Value{Kind: ValueNumber, Num: n} }
func StringsValue(s []string) Value      { return Value{Kind: ValueStrings, Strings: s} }
func FileValue(ref *FileReference) Value { return Value{Kind: ValueFile, File: ref} }

// IsEmpty reports whether the value would fail a required check.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case ValueString:
		return v.Str == ""
	case ValueStrings:
		return len(v.Strings) == 0
	case ValueFile:
		return v.File == nil
	case ValueNumber:
		return false
	default:
		return true
	}
}

// Interface returns the plain Go value, as used in job variables and
// search documents.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueNumber:
		return v.Num
	case ValueStrings:
		return v.Strings
	case ValueFile:
		return v.File
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueString:
		return json.Marshal(v.Str)
	case ValueNumber:
		return json.Marshal(v.Num)
	case ValueStrings:
		if v.Strings == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Strings)
	case ValueFile:
		return json.Marshal(v.File)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON infers the kind from the JSON token type.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Value{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case '[':
		var ss []string
		if err := json.Unmarshal(data, &ss); err != nil {
			return err
		}
		*v = StringsValue(ss)
	case '{':
		var ref FileReference
		if err := json.Unmarshal(data, &ref); err != nil {
			return err
		}
		*v = FileValue(&ref)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("unsupported value %s: %w", data, err)
		}
		*v = NumberValue(n)
	}
	return nil
}
