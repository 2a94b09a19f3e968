package executor

import (
	"testing"

	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins(t *testing.T) {
	r := NewBuiltinRegistry()
	assert.Equal(t, []string{TransferCodeID, AddCodeID, SubCodeID}, r.CodeIDs())

	tests := []struct {
		code string
		args []primitive.Value
		want primitive.Value
	}{
		{AddCodeID, []primitive.Value{primitive.Scalar(2), primitive.Scalar(3)}, primitive.Scalars(5)},
		{AddCodeID, []primitive.Value{primitive.Scalar(primitive.MaxScalar), primitive.Scalar(2)}, primitive.Scalars(1)},
		{SubCodeID, []primitive.Value{primitive.Scalar(5), primitive.Scalar(3)}, primitive.Scalars(2)},
		{SubCodeID, []primitive.Value{primitive.Scalar(0), primitive.Scalar(1)}, primitive.Scalars(primitive.MaxScalar)},
		{TransferCodeID, []primitive.Value{primitive.Scalar(10), primitive.Scalar(0), primitive.Scalar(4)}, primitive.Scalars(6, 4)},
	}
	for _, tt := range tests {
		got, err := r.Execute(tt.code, tt.args)
		require.Nil(t, err, tt.code)
		assert.True(t, tt.want.Equal(got), "%s(%s) = %s", tt.code, primitive.Join(tt.args, ", "), got)
	}
}

func TestExecutionErrors(t *testing.T) {
	r := NewBuiltinRegistry()

	_, err := r.Execute(TransferCodeID, []primitive.Value{primitive.Scalar(1), primitive.Scalar(0), primitive.Scalar(4)})
	require.NotNil(t, err)
	assert.True(t, IsExecution(err))
	assert.Contains(t, err.Error(), "insufficient balance")

	_, err = r.Execute(TransferCodeID, []primitive.Value{primitive.Scalar(5), primitive.Scalar(primitive.MaxScalar), primitive.Scalar(1)})
	assert.True(t, IsExecution(err))

	_, err = r.Execute(AddCodeID, []primitive.Value{primitive.Scalar(1)})
	assert.True(t, IsExecution(err))

	_, err = r.Execute(AddCodeID, []primitive.Value{primitive.Scalar(1), primitive.Scalars(1)})
	assert.True(t, IsExecution(err))
	assert.Contains(t, err.Error(), "not a scalar")

	_, err = r.Execute("0xmissing", nil)
	assert.True(t, IsUnknownCode(err))
	assert.False(t, IsExecution(err))
	assert.True(t, IsUnknownCode(errors.Trace(err)))
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.CodeIDs())
	r.Register("echo", func(args []primitive.Value) (primitive.Value, error) {
		return primitive.Tuple(args...), nil
	})
	got, err := r.Execute("echo", []primitive.Value{primitive.Empty()})
	require.Nil(t, err)
	assert.True(t, primitive.Tuple(primitive.Empty()).Equal(got))
}
