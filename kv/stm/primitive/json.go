package primitive

import (
	"bytes"
	"encoding/json"

	"github.com/pingcap/errors"
)

// The JSON form is externally tagged: {"U24": 7}, {"Tup": [...]} and "Empty".

const emptyJSON = `"Empty"`

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(map[string]uint32{KindScalar.String(): v.scalar})
	case KindTuple:
		elems := v.elems
		if elems == nil {
			elems = []Value{}
		}
		return json.Marshal(map[string][]Value{KindTuple.String(): elems})
	default:
		return []byte(emptyJSON), nil
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte(emptyJSON)) || bytes.Equal(data, []byte("null")) {
		*v = Empty()
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return errors.Annotatef(err, "decode primitive %s", data)
	}
	if len(tagged) != 1 {
		return errors.Errorf("primitive must have exactly one tag, got %d", len(tagged))
	}
	for tag, raw := range tagged {
		switch tag {
		case KindScalar.String():
			var n uint32
			if err := json.Unmarshal(raw, &n); err != nil {
				return errors.Annotatef(err, "decode %s", tag)
			}
			s, err := NewScalar(n)
			if err != nil {
				return err
			}
			*v = s
		case KindTuple.String():
			var elems []Value
			if err := json.Unmarshal(raw, &elems); err != nil {
				return errors.Annotatef(err, "decode %s", tag)
			}
			*v = Value{kind: KindTuple, elems: elems}
			if elems == nil {
				v.elems = []Value{}
			}
		default:
			return errors.Errorf("unknown primitive tag %q", tag)
		}
	}
	return nil
}
