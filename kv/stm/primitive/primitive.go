package primitive

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pingcap/errors"
)

// Kind identifies which variant of the Value union is set.
type Kind byte

const (
	KindEmpty Kind = iota
	KindScalar
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "Empty"
	case KindScalar:
		return "U24"
	case KindTuple:
		return "Tup"
	}
	return fmt.Sprintf("Kind(%d)", byte(k))
}

// MaxScalar is the largest value an unsigned 24-bit scalar can hold.
const MaxScalar uint32 = 1<<24 - 1

// Value is the only value shape transactions exchange with the code executor: an unsigned 24-bit scalar,
// an ordered tuple of values, or empty. A Value is immutable once built, so it can be shared between the store,
// attempts and callers without copying. The zero Value is Empty.
type Value struct {
	kind   Kind
	scalar uint32
	elems  []Value
}

// Empty returns the empty value.
func Empty() Value {
	return Value{}
}

// Scalar returns a scalar value. It panics if v does not fit in 24 bits; use NewScalar for untrusted input.
func Scalar(v uint32) Value {
	s, err := NewScalar(v)
	if err != nil {
		panic(err)
	}
	return s
}

// NewScalar returns a scalar value, or an error if v does not fit in 24 bits.
func NewScalar(v uint32) (Value, error) {
	if v > MaxScalar {
		return Value{}, errors.Errorf("scalar %d overflows 24 bits", v)
	}
	return Value{kind: KindScalar, scalar: v}, nil
}

// Tuple returns a tuple holding elems. The slice is copied.
func Tuple(elems ...Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindTuple, elems: cp}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsEmpty() bool {
	return v.kind == KindEmpty
}

// AsScalar returns the scalar held by v, ok is false if v is not a scalar.
func (v Value) AsScalar() (uint32, bool) {
	if v.kind != KindScalar {
		return 0, false
	}
	return v.scalar, true
}

// Len returns the number of elements of a tuple, and 0 for other kinds.
func (v Value) Len() int {
	return len(v.elems)
}

// At returns the i-th element of a tuple. It panics if v is not a tuple or i is out of range.
func (v Value) At(i int) Value {
	if v.kind != KindTuple {
		panic(fmt.Sprintf("primitive: At on %s", v.kind))
	}
	return v.elems[i]
}

// Elems returns a copy of the elements of a tuple, nil for other kinds.
func (v Value) Elems() []Value {
	if v.kind != KindTuple {
		return nil
	}
	cp := make([]Value, len(v.elems))
	copy(cp, v.elems)
	return cp
}

// Equal reports whether v and o are structurally equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return v.scalar == o.scalar
	case KindTuple:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
	}
	return true
}

func (v Value) String() string {
	var buf bytes.Buffer
	v.format(&buf)
	return buf.String()
}

func (v Value) format(buf *bytes.Buffer) {
	switch v.kind {
	case KindEmpty:
		buf.WriteString("Empty")
	case KindScalar:
		fmt.Fprintf(buf, "U24(%d)", v.scalar)
	case KindTuple:
		buf.WriteByte('(')
		for i, e := range v.elems {
			if i > 0 {
				buf.WriteString(", ")
			}
			e.format(buf)
		}
		buf.WriteByte(')')
	}
}

// Scalars is a shorthand for a flat tuple of scalars.
func Scalars(vs ...uint32) Value {
	elems := make([]Value, 0, len(vs))
	for _, v := range vs {
		elems = append(elems, Scalar(v))
	}
	return Value{kind: KindTuple, elems: elems}
}

// Join formats a list of values separated by sep. Used in log lines.
func Join(vs []Value, sep string) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, sep)
}
