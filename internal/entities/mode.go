package entities

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Mode is a transportation mode. The zero value is Unlabeled, which is a
// distinct variant rather than a magic string; at every store boundary it is
// written as the empty string.
type Mode struct {
	label string
}

// Unlabeled is the mode of an activity without an exactly matching label.
var Unlabeled = Mode{}

// Labeled returns the mode for a label such as "walk". Blank input yields Unlabeled.
func Labeled(label string) Mode {
	return Mode{label: strings.TrimSpace(label)}
}

// IsLabeled reports whether m carries a transportation mode.
func (m Mode) IsLabeled() bool {
	return m.label != ""
}

// Label returns the mode name and whether the mode is labeled.
func (m Mode) Label() (string, bool) {
	return m.label, m.label != ""
}

// String returns the wire form: the label, or "" when unlabeled.
func (m Mode) String() string {
	return m.label
}

// Value implements driver.Valuer. Unlabeled is stored as '' and never NULL.
func (m Mode) Value() (driver.Value, error) {
	return m.label, nil
}

// Scan implements sql.Scanner. NULL and '' both read back as Unlabeled.
func (m *Mode) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Unlabeled
	case string:
		*m = Labeled(v)
	case []byte:
		*m = Labeled(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Mode", src)
	}
	return nil
}

// MarshalBSONValue writes the mode as a BSON string.
func (m Mode) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(m.label)
}

// UnmarshalBSONValue reads a BSON string (or null) into the mode.
func (m *Mode) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeNull, bson.TypeUndefined:
		*m = Unlabeled
		return nil
	case bson.TypeString:
		*m = Labeled(raw.StringValue())
		return nil
	default:
		return fmt.Errorf("cannot decode BSON %s into Mode", t)
	}
}
