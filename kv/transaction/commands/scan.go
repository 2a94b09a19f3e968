package commands

import (
	"context"

	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap/errors"
)

// ErrScanUnsupported is returned by Scan when the store keeps no key order.
var ErrScanUnsupported = errors.New("scan needs an ordered storage engine")

const (
	// DefaultScanLimit bounds a scan which gives no limit.
	DefaultScanLimit = 100
	// MaxScanLimit is the largest limit a scan honours, larger limits are clamped to it.
	MaxScanLimit = 10000
)

// scanner is implemented by stores which iterate their keys in order.
type scanner interface {
	Ascend(start []byte, fn func(key []byte, sv stm.StoredValue) bool)
}

// Scan lists up to Limit addresses starting at Start, in byte order. Each entry is read on its own, so the result is
// not a snapshot of the store.
type Scan struct {
	Start string `json:"start"`
	Limit int    `json:"limit"`
}

func (c *Scan) Name() string {
	return "scan"
}

func (c *Scan) Execute(ctx context.Context, env *Env) (interface{}, error) {
	s, ok := env.Driver.Store().(scanner)
	if !ok {
		return nil, ErrScanUnsupported
	}
	limit := c.Limit
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	if limit > MaxScanLimit {
		limit = MaxScanLimit
	}

	pairs := make([]ValueAt, 0, minInt(limit, DefaultScanLimit))
	s.Ascend(stm.Key(c.Start), func(key []byte, sv stm.StoredValue) bool {
		v := sv.Value
		pairs = append(pairs, ValueAt{Addr: string(key), Value: &v, Version: sv.Version})
		return len(pairs) < limit && ctx.Err() == nil
	})
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	return pairs, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
