package executor

import (
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
	"github.com/pingcap/errors"
)

// Code ids of the builtin programs.
const (
	AddCodeID      = "add"
	SubCodeID      = "sub"
	TransferCodeID = "0xtransfer"
)

// Every builtin returns a tuple holding one element per object it was given, in order, so its result can be
// written back to those objects.

// add(a, b) returns (a + b) wrapping at 24 bits.
func add(args []primitive.Value) (primitive.Value, error) {
	s, err := scalarArgs(args, 2)
	if err != nil {
		return primitive.Value{}, err
	}
	return primitive.Scalars((s[0] + s[1]) & primitive.MaxScalar), nil
}

// sub(a, b) returns (a - b) wrapping at 24 bits.
func sub(args []primitive.Value) (primitive.Value, error) {
	s, err := scalarArgs(args, 2)
	if err != nil {
		return primitive.Value{}, err
	}
	return primitive.Scalars((s[0] - s[1]) & primitive.MaxScalar), nil
}

// transfer(from, to, amount) moves amount from the first balance to the second and returns both.
func transfer(args []primitive.Value) (primitive.Value, error) {
	s, err := scalarArgs(args, 3)
	if err != nil {
		return primitive.Value{}, err
	}
	from, to, amount := s[0], s[1], s[2]
	if from < amount {
		return primitive.Value{}, errors.Errorf("insufficient balance %d < %d", from, amount)
	}
	if to+amount > primitive.MaxScalar {
		return primitive.Value{}, errors.Errorf("balance overflow %d + %d", to, amount)
	}
	return primitive.Scalars(from-amount, to+amount), nil
}

func scalarArgs(args []primitive.Value, n int) ([]uint32, error) {
	if len(args) != n {
		return nil, errors.Errorf("expected %d arguments, got %d", n, len(args))
	}
	s := make([]uint32, n)
	for i, arg := range args {
		v, ok := arg.AsScalar()
		if !ok {
			return nil, errors.Errorf("argument %d is %s, not a scalar", i, arg.Kind())
		}
		s[i] = v
	}
	return s, nil
}
