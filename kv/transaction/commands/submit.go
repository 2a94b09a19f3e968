package commands

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pingcap-incubator/tinystm/kv/executor"
	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
	"github.com/pingcap/errors"
)

// TxBody asks to run the program CodeHash on the current values of Objs followed by Args, and to store the
// program's outputs back into Objs.
type TxBody struct {
	TxHash   string            `json:"tx_hash"`
	CodeHash string            `json:"code_hash"`
	Objs     []string          `json:"objs"`
	Args     []primitive.Value `json:"args"`
}

// TxResult reports the outcome of a TxBody. RetValue is set when Status is true, Errs otherwise.
type TxResult struct {
	TxHash   string           `json:"tx_hash"`
	CodeHash string           `json:"code_hash"`
	Status   bool             `json:"status"`
	RetValue *primitive.Value `json:"ret_value"`
	Errs     *string          `json:"errs"`
}

// NewTxResult builds the result of body from the outcome of ProcessTx.
func NewTxResult(body TxBody, ret primitive.Value, err error) TxResult {
	result := TxResult{TxHash: body.TxHash, CodeHash: body.CodeHash}
	if err != nil {
		msg := err.Error()
		result.Errs = &msg
		return result
	}
	result.Status = true
	result.RetValue = &ret
	return result
}

// NewTxHash returns a random transaction hash.
func NewTxHash() string {
	return "0x" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// ProcessTx runs body as a transaction until it commits. The result is the tuple returned by the program.
func ProcessTx(d *stm.Driver, exec executor.Executor, body TxBody) (primitive.Value, error) {
	if err := validateTxBody(body); err != nil {
		return primitive.Value{}, err
	}
	return stm.Run(d, txnBody(exec, body))
}

// ProcessTxTimed is ProcessTx which also reports where the time went.
func ProcessTxTimed(d *stm.Driver, exec executor.Executor, body TxBody) (primitive.Value, stm.Timings, error) {
	if err := validateTxBody(body); err != nil {
		return primitive.Value{}, stm.Timings{}, err
	}
	return stm.RunTimed(d, txnBody(exec, body))
}

func validateTxBody(body TxBody) error {
	if len(body.CodeHash) == 0 {
		return errors.New("code_hash is required")
	}
	return nil
}

func txnBody(exec executor.Executor, body TxBody) func(txn *stm.Attempt) (primitive.Value, error) {
	keys := make([][]byte, len(body.Objs))
	for i, obj := range body.Objs {
		keys[i] = stm.Key(obj)
	}

	return func(txn *stm.Attempt) (primitive.Value, error) {
		args := make([]primitive.Value, 0, len(keys)+len(body.Args))
		for _, key := range keys {
			v, ok := txn.Read(key)
			if !ok {
				return primitive.Value{}, stm.NewErrNotFound(key)
			}
			args = append(args, v)
		}
		args = append(args, body.Args...)

		result, err := exec.Execute(body.CodeHash, args)
		if err != nil {
			return primitive.Value{}, err
		}
		// Programs return the (maybe modified) objects in the order they were given.
		if result.Kind() != primitive.KindTuple || result.Len() < len(keys) {
			return primitive.Value{}, &executor.ErrExecution{
				CodeID: body.CodeHash,
				Err:    errors.Errorf("unexpected type of result %s", result),
			}
		}
		for i, key := range keys {
			txn.Write(key, result.At(i))
		}
		return result, nil
	}
}

// SubmitTx runs a transaction. It never fails: a transaction which cannot commit is reported in the TxResult.
type SubmitTx struct {
	TxBody TxBody `json:"tx_body"`
}

func (c *SubmitTx) Name() string {
	return "submit_tx"
}

func (c *SubmitTx) Execute(ctx context.Context, env *Env) (interface{}, error) {
	body := c.TxBody
	if len(body.TxHash) == 0 {
		body.TxHash = NewTxHash()
	}
	ret, err := ProcessTx(env.Driver, env.Executor, body)
	return NewTxResult(body, ret, err), nil
}
