package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pingcap-incubator/tinystm/kv/executor"
	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv(t *testing.T, engine string) *Env {
	store, err := stm.NewStore(engine, 16)
	require.Nil(t, err)
	return &Env{
		Driver:   stm.NewDriver(store, stm.DefaultOptions()),
		Executor: executor.NewBuiltinRegistry(),
		Alloc:    AllocRange{Start: 0, End: 99, Concurrency: 8},
	}
}

func run(t *testing.T, env *Env, cmd Command) interface{} {
	resp, err := RunCommand(context.Background(), cmd, env)
	require.Nil(t, err)
	return resp
}

func TestAlloc(t *testing.T) {
	env := newTestEnv(t, stm.EngineSharded)
	n, err := Alloc(context.Background(), env.Driver, env.Alloc)
	require.Nil(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, 100, env.Driver.Store().Len())

	sv, ok := env.Driver.Store().Get(AddrKey(42))
	require.True(t, ok)
	assert.Equal(t, stm.Version(1), sv.Version)
	assert.True(t, sv.Value.Equal(primitive.Scalar(42)))
	assert.Equal(t, "0x42", Addr(42))

	// Reallocating bumps every version.
	resp := run(t, env, &ReallocateMemory{})
	assert.Equal(t, AllocResult{Start: 0, End: 99, Allocated: 100}, resp)
	sv, _ = env.Driver.Store().Get(AddrKey(42))
	assert.Equal(t, stm.Version(2), sv.Version)
}

func TestAllocInvalidRange(t *testing.T) {
	env := newTestEnv(t, stm.EngineSharded)
	_, err := Alloc(context.Background(), env.Driver, AllocRange{Start: 5, End: 4})
	assert.NotNil(t, err)
	_, err = Alloc(context.Background(), env.Driver, AllocRange{End: primitive.MaxScalar + 1})
	assert.NotNil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := Alloc(ctx, env.Driver, AllocRange{End: 10})
	assert.NotNil(t, err)
	assert.Equal(t, 0, n)
}

func TestProcessTxTransfer(t *testing.T) {
	for _, engine := range []string{stm.EngineSharded, stm.EngineBTree} {
		env := newTestEnv(t, engine)
		_, err := Alloc(context.Background(), env.Driver, env.Alloc)
		require.Nil(t, err)

		body := TxBody{
			CodeHash: executor.TransferCodeID,
			Objs:     []string{"0x10", "0x3"},
			Args:     []primitive.Value{primitive.Scalar(4)},
		}
		ret, err := ProcessTx(env.Driver, env.Executor, body)
		require.Nil(t, err)
		assert.True(t, primitive.Scalars(6, 7).Equal(ret))

		v, version, err := GetValue(env.Driver, "0x10")
		require.Nil(t, err)
		assert.True(t, v.Equal(primitive.Scalar(6)))
		assert.Equal(t, stm.Version(2), version)
		v, _, err = GetValue(env.Driver, "0x3")
		require.Nil(t, err)
		assert.True(t, v.Equal(primitive.Scalar(7)))
	}
}

func TestProcessTxErrors(t *testing.T) {
	env := newTestEnv(t, stm.EngineSharded)
	env.Driver.Store().Set([]byte("0x1"), primitive.Scalar(1), 1)

	_, err := ProcessTx(env.Driver, env.Executor, TxBody{CodeHash: executor.AddCodeID, Objs: []string{"0xmissing"}})
	assert.True(t, stm.IsNotFound(err))
	assert.Equal(t, "key=0xmissing does not exist", err.Error())

	_, err = ProcessTx(env.Driver, env.Executor, TxBody{CodeHash: "0xnope", Objs: []string{"0x1"}})
	assert.True(t, executor.IsUnknownCode(err))

	_, err = ProcessTx(env.Driver, env.Executor, TxBody{
		CodeHash: executor.TransferCodeID,
		Objs:     []string{"0x1"},
		Args:     []primitive.Value{primitive.Scalar(0), primitive.Scalar(5)},
	})
	assert.True(t, executor.IsExecution(err))

	_, err = ProcessTx(env.Driver, env.Executor, TxBody{})
	assert.NotNil(t, err)

	// Nothing was written by the failed transactions.
	sv, _ := env.Driver.Store().Get([]byte("0x1"))
	assert.Equal(t, stm.Version(1), sv.Version)
}

func TestProcessTxShortResult(t *testing.T) {
	env := newTestEnv(t, stm.EngineSharded)
	env.Driver.Store().Set([]byte("a"), primitive.Scalar(1), 1)
	env.Driver.Store().Set([]byte("b"), primitive.Scalar(2), 1)

	// add returns a single element but two objects were given.
	_, err := ProcessTx(env.Driver, env.Executor, TxBody{CodeHash: executor.AddCodeID, Objs: []string{"a", "b"}})
	require.NotNil(t, err)
	assert.True(t, executor.IsExecution(err))
	assert.Contains(t, err.Error(), "unexpected type of result")

	registry := executor.NewRegistry()
	registry.Register("scalar", func(args []primitive.Value) (primitive.Value, error) {
		return primitive.Scalar(1), nil
	})
	_, err = ProcessTx(env.Driver, registry, TxBody{CodeHash: "scalar", Objs: []string{"a"}})
	assert.True(t, executor.IsExecution(err))
}

func TestProcessTxTimed(t *testing.T) {
	env := newTestEnv(t, stm.EngineSharded)
	env.Driver.Store().Set([]byte("c"), primitive.Scalar(1), 1)
	ret, timings, err := ProcessTxTimed(env.Driver, env.Executor, TxBody{
		CodeHash: executor.AddCodeID,
		Objs:     []string{"c"},
		Args:     []primitive.Value{primitive.Scalar(2)},
	})
	require.Nil(t, err)
	assert.True(t, primitive.Scalars(3).Equal(ret))
	assert.Equal(t, 1, timings.Attempts)
}

func TestConcurrentTransfers(t *testing.T) {
	const n = 20
	env := newTestEnv(t, stm.EngineSharded)
	env.Driver = stm.NewDriver(env.Driver.Store(), stm.Options{SerializeCommits: true})
	env.Alloc = AllocRange{Start: 0, End: n}
	_, err := Alloc(context.Background(), env.Driver, env.Alloc)
	require.Nil(t, err)

	// Every account above zero pays 1 to every account below it.
	var wg sync.WaitGroup
	for i := uint32(1); i <= n; i++ {
		for j := uint32(0); j < i; j++ {
			wg.Add(1)
			go func(i, j uint32) {
				defer wg.Done()
				_, err := ProcessTx(env.Driver, env.Executor, TxBody{
					CodeHash: executor.TransferCodeID,
					Objs:     []string{Addr(i), Addr(j)},
					Args:     []primitive.Value{primitive.Scalar(1)},
				})
				assert.Nil(t, err)
			}(i, j)
		}
	}
	wg.Wait()

	var total uint32
	for i := uint32(0); i <= n; i++ {
		v, _, err := GetValue(env.Driver, Addr(i))
		require.Nil(t, err)
		s, ok := v.AsScalar()
		require.True(t, ok)
		// Account i paid i and received n - i.
		assert.Equal(t, n-i, s, "account %d", i)
		total += s
	}
	assert.Equal(t, uint32(n*(n+1)/2), total)
}

func TestSubmitTx(t *testing.T) {
	env := newTestEnv(t, stm.EngineSharded)
	env.Driver.Store().Set([]byte("0x1"), primitive.Scalar(5), 1)

	resp := run(t, env, &SubmitTx{TxBody: TxBody{
		TxHash:   "0xabc",
		CodeHash: executor.SubCodeID,
		Objs:     []string{"0x1"},
		Args:     []primitive.Value{primitive.Scalar(2)},
	}})
	result := resp.(TxResult)
	assert.True(t, result.Status)
	assert.Equal(t, "0xabc", result.TxHash)
	require.NotNil(t, result.RetValue)
	assert.True(t, primitive.Scalars(3).Equal(*result.RetValue))
	assert.Nil(t, result.Errs)

	resp = run(t, env, &SubmitTx{TxBody: TxBody{CodeHash: executor.SubCodeID, Objs: []string{"0x2"}}})
	result = resp.(TxResult)
	assert.False(t, result.Status)
	assert.True(t, strings.HasPrefix(result.TxHash, "0x"))
	assert.Len(t, result.TxHash, 34)
	assert.Nil(t, result.RetValue)
	require.NotNil(t, result.Errs)
	assert.Equal(t, "key=0x2 does not exist", *result.Errs)
}

func TestGetValueAt(t *testing.T) {
	env := newTestEnv(t, stm.EngineSharded)
	env.Driver.Store().Set([]byte("0x7"), primitive.Scalar(7), 3)

	resp := run(t, env, &GetValueAt{Addr: "0x7"}).(ValueAt)
	assert.Equal(t, "0x7", resp.Addr)
	require.NotNil(t, resp.Value)
	assert.True(t, primitive.Scalar(7).Equal(*resp.Value))
	assert.Equal(t, stm.Version(3), resp.Version)

	resp = run(t, env, &GetValueAt{Addr: "0x8"}).(ValueAt)
	assert.Nil(t, resp.Value)
}

func TestScan(t *testing.T) {
	env := newTestEnv(t, stm.EngineBTree)
	for i := uint32(0); i < 5; i++ {
		env.Driver.Store().Set(AddrKey(i), primitive.Scalar(i), 1)
	}
	pairs := run(t, env, &Scan{Start: "0x1", Limit: 3}).([]ValueAt)
	require.Len(t, pairs, 3)
	for i, p := range pairs {
		assert.Equal(t, fmt.Sprintf("0x%d", i+1), p.Addr)
	}

	pairs = run(t, env, &Scan{}).([]ValueAt)
	assert.Len(t, pairs, 5)

	sharded := newTestEnv(t, stm.EngineSharded)
	_, err := RunCommand(context.Background(), &Scan{}, sharded)
	assert.Equal(t, ErrScanUnsupported, err)
}

func TestScanLimitIsClamped(t *testing.T) {
	env := newTestEnv(t, stm.EngineBTree)
	for i := uint32(0); i < 5; i++ {
		env.Driver.Store().Set(AddrKey(i), primitive.Scalar(i), 1)
	}
	pairs := run(t, env, &Scan{Limit: 1 << 62}).([]ValueAt)
	assert.Len(t, pairs, 5)

	for i := uint32(5); i < MaxScanLimit+5; i++ {
		env.Driver.Store().Set(AddrKey(i), primitive.Scalar(i), 1)
	}
	pairs = run(t, env, &Scan{Limit: MaxScanLimit + 1}).([]ValueAt)
	assert.Len(t, pairs, MaxScanLimit)
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t, stm.EngineSharded)
	run(t, env, &ReallocateMemory{})
	status := run(t, env, &GetStatus{}).(Status)
	assert.Equal(t, 100, status.Keys)
	assert.Equal(t, uint64(100), status.Stats.Commits)
	assert.Equal(t, []string{executor.TransferCodeID, executor.AddCodeID, executor.SubCodeID}, status.Codes)
}
