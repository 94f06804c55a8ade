// Package index holds the document model and the in-memory segment buffer
// shared by the segment writer and the engine.
package index

import "strconv"

// FieldType classifies how a field's value is analyzed.
type FieldType int

const (
	// TypeText is tokenized through the analysis chain.
	TypeText FieldType = iota
	// TypeKeyword is indexed as a single atomic term.
	TypeKeyword
	// TypeNumeric is indexed as its decimal string representation.
	TypeNumeric
)

// Field is a named document value with its storage mode and type. A field may
// be indexed-only (searchable, not retrievable), stored-only (retrievable,
// not searchable), or both.
type Field struct {
	Name    string
	Value   string
	Type    FieldType
	Indexed bool
	Stored  bool
}

// Document is an ordered set of named fields.
type Document struct {
	Fields []Field
}

// Add appends a field. Field order is preserved in the stored record.
func (d *Document) Add(f Field) {
	d.Fields = append(d.Fields, f)
}

// Get returns the value of the first field with the given name, or "".
func (d *Document) Get(name string) string {
	for _, f := range d.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// NewTextField returns a tokenized, indexed field, optionally stored.
func NewTextField(name, value string, stored bool) Field {
	return Field{Name: name, Value: value, Type: TypeText, Indexed: true, Stored: stored}
}

// NewKeywordField returns an atomic indexed field, optionally stored.
func NewKeywordField(name, value string, stored bool) Field {
	return Field{Name: name, Value: value, Type: TypeKeyword, Indexed: true, Stored: stored}
}

// NewNumericField returns an indexed-only numeric field.
func NewNumericField(name string, value int64) Field {
	return Field{Name: name, Value: strconv.FormatInt(value, 10), Type: TypeNumeric, Indexed: true}
}

// NewStoredField returns a stored-only field.
func NewStoredField(name, value string) Field {
	return Field{Name: name, Value: value, Stored: true}
}
