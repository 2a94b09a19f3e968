package bench

import (
	"context"
	"time"

	"github.com/pingcap-incubator/tinystm/kv/executor"
	"github.com/pingcap-incubator/tinystm/kv/stm/primitive"
	"github.com/pingcap-incubator/tinystm/kv/transaction/commands"
	"github.com/pingcap-incubator/tinystm/log"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// Pair is one transfer of a single unit from address From to address To.
type Pair struct {
	From uint32
	To   uint32
}

// ReverseTransferPairs returns, for every i in (a, b] from the highest down, a transfer from i to each j in [a, i).
func ReverseTransferPairs(a, b uint32) []Pair {
	if b <= a {
		return nil
	}
	n := uint64(b-a) * uint64(b-a+1) / 2
	pairs := make([]Pair, 0, n)
	for i := b; i > a; i-- {
		for j := a; j < i; j++ {
			pairs = append(pairs, Pair{From: i, To: j})
		}
	}
	return pairs
}

// ChainPairs returns a transfer from i to i-1 for every i in (a, b], from the highest down.
func ChainPairs(a, b uint32) []Pair {
	if b <= a {
		return nil
	}
	pairs := make([]Pair, 0, b-a)
	for i := b; i > a; i-- {
		pairs = append(pairs, Pair{From: i, To: i - 1})
	}
	return pairs
}

// Runner submits transfers against env and records their timings.
type Runner struct {
	env         *commands.Env
	recorder    *Recorder
	concurrency int
}

// NewRunner creates a runner. concurrency bounds the transfers in flight, 0 runs all of them at once.
func NewRunner(env *commands.Env, recorder *Recorder, concurrency int) *Runner {
	return &Runner{
		env:         env,
		recorder:    recorder,
		concurrency: concurrency,
	}
}

// Transfer runs every pair as its own transaction, concurrently. A failed transfer is logged and counted, it does
// not stop the others. The returned error is only set if ctx ends before all transfers were started.
func (r *Runner) Transfer(ctx context.Context, pairs []Pair) (failed int, err error) {
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	var failures atomic.Int64
	for _, p := range pairs {
		if ctx.Err() != nil {
			err = errors.Trace(ctx.Err())
			break
		}
		p := p
		g.Go(func() error {
			body := commands.TxBody{
				TxHash:   txHash(p),
				CodeHash: executor.TransferCodeID,
				Objs:     []string{commands.Addr(p.From), commands.Addr(p.To)},
				Args:     []primitive.Value{primitive.Scalar(1)},
			}
			_, timings, txErr := commands.ProcessTxTimed(r.env.Driver, r.env.Executor, body)
			if txErr != nil {
				failures.Inc()
				log.Errorf("process tx failed tx_hash=%s objs=%v err=%v", body.TxHash, body.Objs, txErr)
				return nil
			}
			r.recorder.Record(p, timings)
			return nil
		})
	}
	_ = g.Wait()
	log.Infof("finish transferring total_txs=%d failed=%d elapsed=%v", len(pairs), failures.Load(), time.Since(start))
	return int(failures.Load()), err
}

// Query reads every address in [a, b], one transaction each.
func Query(env *commands.Env, a, b uint32) []commands.ValueAt {
	values := make([]commands.ValueAt, 0, b-a+1)
	for i := uint64(a); i <= uint64(b); i++ {
		addr := commands.Addr(uint32(i))
		resp := commands.ValueAt{Addr: addr}
		v, version, err := commands.GetValue(env.Driver, addr)
		if err != nil {
			log.Warnf("query addr=%s err=%v", addr, err)
		} else {
			resp.Value = &v
			resp.Version = version
		}
		values = append(values, resp)
	}
	return values
}

func txHash(p Pair) string {
	return commands.Addr(p.From) + "-" + commands.Addr(p.To)
}
