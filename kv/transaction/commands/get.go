package commands

import (
	"context"

	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
)

// ValueAt is the value held at an address. Value is nil if nothing was ever written there.
type ValueAt struct {
	Addr    string           `json:"addr"`
	Value   *primitive.Value `json:"value"`
	Version stm.Version      `json:"version,omitempty"`
}

// GetValue reads addr in a transaction of its own.
func GetValue(d *stm.Driver, addr string) (primitive.Value, stm.Version, error) {
	key := stm.Key(addr)
	var version stm.Version
	v, err := stm.Run(d, func(txn *stm.Attempt) (primitive.Value, error) {
		v, ok := txn.Read(key)
		if !ok {
			return primitive.Value{}, stm.NewErrNotFound(key)
		}
		version, _ = txn.ReadVersion(key)
		return v, nil
	})
	return v, version, err
}

type GetValueAt struct {
	Addr string `json:"addr"`
}

func (c *GetValueAt) Name() string {
	return "get_value_at"
}

func (c *GetValueAt) Execute(ctx context.Context, env *Env) (interface{}, error) {
	resp := ValueAt{Addr: c.Addr}
	v, version, err := GetValue(env.Driver, c.Addr)
	if err != nil {
		if stm.IsNotFound(err) {
			return resp, nil
		}
		return nil, err
	}
	resp.Value = &v
	resp.Version = version
	return resp, nil
}
