package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
	"github.com/pingcap-incubator/tinystm/log"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Addr returns the address of the i-th allocated object.
func Addr(i uint32) string {
	return fmt.Sprintf("0x%d", i)
}

// AddrKey returns the store key of the i-th allocated object.
func AddrKey(i uint32) []byte {
	return stm.Key(Addr(i))
}

// Alloc writes Scalar(i) to address i for every i in r, each in a write-only transaction of its own. It returns the
// number of addresses written. The first failure cancels the allocations not started yet.
func Alloc(parent context.Context, d *stm.Driver, r AllocRange) (int, error) {
	if r.Start > r.End {
		return 0, errors.Errorf("invalid alloc range [%d, %d]", r.Start, r.End)
	}
	if r.End > primitive.MaxScalar {
		return 0, errors.Errorf("alloc range end %d overflows a scalar", r.End)
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(parent)
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}
	var allocated atomic.Int64
	for i := uint64(r.Start); i <= uint64(r.End); i++ {
		if ctx.Err() != nil {
			break
		}
		key := AddrKey(uint32(i))
		value := primitive.Scalar(uint32(i))
		g.Go(func() error {
			_, err := stm.Run(d, func(txn *stm.Attempt) (struct{}, error) {
				txn.Write(key, value)
				return struct{}{}, nil
			})
			if err != nil {
				log.Errorf("key=%s err=%v", key, err)
				return errors.Annotatef(err, "alloc key=%s", key)
			}
			allocated.Inc()
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = errors.Trace(parent.Err())
	}
	log.Infof("finish allocation start=%d end=%d allocated=%d elapsed=%v", r.Start, r.End, allocated.Load(), time.Since(start))
	return int(allocated.Load()), err
}

// AllocResult is the response of ReallocateMemory.
type AllocResult struct {
	Start     uint32 `json:"start"`
	End       uint32 `json:"end"`
	Allocated int    `json:"allocated"`
}

// ReallocateMemory resets every address of the configured range to its initial value.
type ReallocateMemory struct{}

func (c *ReallocateMemory) Name() string {
	return "reallocate_memory"
}

func (c *ReallocateMemory) Execute(ctx context.Context, env *Env) (interface{}, error) {
	n, err := Alloc(ctx, env.Driver, env.Alloc)
	if err != nil {
		return nil, err
	}
	log.Infof("reallocated memory")
	return AllocResult{Start: env.Alloc.Start, End: env.Alloc.End, Allocated: n}, nil
}
