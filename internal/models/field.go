package models

// FieldKind is the closed set of input types a form field can declare.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindEmail    FieldKind = "email"
	KindNumber   FieldKind = "number"
	KindTextarea FieldKind = "textarea"
	KindSelect   FieldKind = "select"
	KindCheckbox FieldKind = "checkbox"
	KindRadio    FieldKind = "radio"
	KindDate     FieldKind = "date"
	KindFile     FieldKind = "file"
	KindPAN      FieldKind = "pan"
)

// FieldKinds lists every supported kind in display order.
var FieldKinds = []FieldKind{
	KindText, KindEmail, KindNumber, KindTextarea, KindSelect,
	KindCheckbox, KindRadio, KindDate, KindFile, KindPAN,
}

func (k FieldKind) Valid() bool {
	for _, kind := range FieldKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// IsChoice reports whether the kind draws its values from Options.
func (k FieldKind) IsChoice() bool {
	return k == KindSelect || k == KindRadio || k == KindCheckbox
}

// ValueShape is the normalized value form a kind produces.
type ValueShape string

const (
	ShapeString          ValueShape = "string"
	ShapeFormattedString ValueShape = "formatted-string"
	ShapeNumber          ValueShape = "number"
	ShapeStringSet       ValueShape = "string-set"
	ShapeOption          ValueShape = "option"
	ShapeFile            ValueShape = "file-reference"
)

// FieldDefinition is one entry of a form's ordered field list.
type FieldDefinition struct {
	ID          string    `json:"id"`
	Type        FieldKind `json:"type"`
	Label       string    `json:"label"`
	Placeholder string    `json:"placeholder,omitempty"`
	Required    bool      `json:"required"`
	Options     []string  `json:"options,omitempty"`
}

// Allows reports whether option is one of the field's declared options.
func (f FieldDefinition) Allows(option string) bool {
	for _, o := range f.Options {
		if o == option {
			return true
		}
	}
	return false
}
