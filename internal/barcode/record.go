package barcode

import (
	"encoding/hex"
	"encoding/json"
	"unicode/utf8"
)

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

// Box returns the symbol's bounding box as origin and size.
func (s Symbol) Box() Box {
	return Box{X: s.BBox.Min.X, Y: s.BBox.Min.Y, W: s.BBox.Dx(), H: s.BBox.Dy()}
}

// symbolRecord is the serialized form of a Symbol.
type symbolRecord struct {
	Format Format  `json:"format" yaml:"format"`
	Text   string  `json:"text" yaml:"text"`
	Hex    string  `json:"payload_hex,omitempty" yaml:"payload_hex,omitempty"`
	Box    Box     `json:"box" yaml:"box"`
	Points []Point `json:"points" yaml:"points"`
}

func (s Symbol) record() symbolRecord {
	r := symbolRecord{Format: s.Format, Text: s.Text, Box: s.Box(), Points: s.Points}
	if !utf8.Valid(s.Payload) || string(s.Payload) != s.Text {
		r.Hex = hex.EncodeToString(s.Payload)
	}
	if r.Points == nil {
		r.Points = []Point{}
	}
	return r
}

// MarshalJSON writes the format name, text, box and points. Payloads that
// differ from the text are added as hex.
func (s Symbol) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.record())
}

// MarshalYAML implements yaml.Marshaler with the same layout as MarshalJSON.
func (s Symbol) MarshalYAML() (interface{}, error) {
	return s.record(), nil
}
