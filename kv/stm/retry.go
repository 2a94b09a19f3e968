package stm

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pingcap-incubator/tinystm/kv/stm/latches"
	"github.com/pingcap-incubator/tinystm/log"
	"go.uber.org/atomic"
)

// DefaultBackoff is the delay between a conflicting commit and the next attempt.
const DefaultBackoff = 10 * time.Microsecond

// CommitListener is told about the writes of every successful commit. It is called on the committing goroutine
// after the writes are visible, so it must not block; failures are the listener's own business and never affect
// the commit.
type CommitListener interface {
	OnCommit(writes []KeyValue)
}

// Options configures a Driver.
type Options struct {
	// Backoff is the fixed delay between a conflict and the next attempt.
	Backoff time.Duration
	// NewBackOff, if set, replaces the fixed delay. It is called once per transaction, on its first conflict. A
	// policy returning backoff.Stop ends the transaction with ErrRetryStopped.
	NewBackOff func() backoff.BackOff
	// SerializeCommits latches the keys of each commit so validate and apply of overlapping commits do not
	// interleave.
	SerializeCommits bool
	// Listener, if set, receives the writes of every successful commit.
	Listener CommitListener
}

// DefaultOptions returns the options RetryTransaction uses.
func DefaultOptions() Options {
	return Options{Backoff: DefaultBackoff}
}

// Stats are counters kept by a Driver since it was created.
type Stats struct {
	Commits   uint64 `json:"commits"`
	Conflicts uint64 `json:"conflicts"`
	Errors    uint64 `json:"errors"`
}

// Timings break down where a transaction spent its time, summed over all its attempts.
type Timings struct {
	// Exec is the time spent in the transaction body, excluding store reads.
	Exec time.Duration
	// Read is the time spent reading from the store.
	Read time.Duration
	// Backoff is the time spent sleeping between attempts.
	Backoff time.Duration
	// Attempts is the number of attempts made, 1 if the first one committed.
	Attempts int
}

// Total is the sum of the three phases.
func (t Timings) Total() time.Duration {
	return t.Exec + t.Read + t.Backoff
}

// Driver runs transaction bodies against a Store until they commit. Retries are unbounded: the only retryable
// condition is a commit conflict, and nothing stops a long attempt from losing validation forever to shorter ones
// touching the same keys.
type Driver struct {
	store      Store
	newBackOff func() backoff.BackOff
	latches    *latches.Latches
	listener   CommitListener

	commits   atomic.Uint64
	conflicts atomic.Uint64
	errors    atomic.Uint64
}

// NewDriver creates a driver over store.
func NewDriver(store Store, opts Options) *Driver {
	d := &Driver{
		store:      store,
		newBackOff: opts.NewBackOff,
		listener:   opts.Listener,
	}
	if d.newBackOff == nil {
		interval := opts.Backoff
		if interval <= 0 {
			interval = DefaultBackoff
		}
		d.newBackOff = func() backoff.BackOff {
			return backoff.NewConstantBackOff(interval)
		}
	}
	if opts.SerializeCommits {
		d.latches = latches.NewLatches()
	}
	return d
}

// Store returns the store the driver commits to.
func (d *Driver) Store() Store {
	return d.store
}

// Latches returns the commit latches, nil unless SerializeCommits was set.
func (d *Driver) Latches() *latches.Latches {
	return d.latches
}

func (d *Driver) Stats() Stats {
	return Stats{
		Commits:   d.commits.Load(),
		Conflicts: d.conflicts.Load(),
		Errors:    d.errors.Load(),
	}
}

// NewAttempt creates an attempt bound to the driver's store and commit latches.
func (d *Driver) NewAttempt() *Attempt {
	txn := NewAttempt(d.store)
	txn.latches = d.latches
	return txn
}

// Run executes body until its attempt commits and returns body's result. An error returned by body is returned
// immediately, on the first attempt that produced it, without committing anything and without retrying. body must
// not have side effects outside of Read and Write, since it may run any number of times.
func Run[R any](d *Driver, body func(txn *Attempt) (R, error)) (R, error) {
	return run(d, body, nil)
}

// RunTimed is Run which also reports where the transaction spent its time.
func RunTimed[R any](d *Driver, body func(txn *Attempt) (R, error)) (R, Timings, error) {
	var timings Timings
	r, err := run(d, body, &timings)
	return r, timings, err
}

// RetryTransaction runs body against store with the default options.
func RetryTransaction[R any](store Store, body func(txn *Attempt) (R, error)) (R, error) {
	return Run(NewDriver(store, DefaultOptions()), body)
}

func run[R any](d *Driver, body func(txn *Attempt) (R, error), timings *Timings) (R, error) {
	var (
		zero     R
		policy   backoff.BackOff
		attempts int
		start    = time.Now()
	)
	for {
		attempts++
		txn := d.NewAttempt()

		execStart := time.Now()
		result, err := body(txn)
		if timings != nil {
			timings.Attempts = attempts
			timings.Read += txn.ReadTime()
			timings.Exec += time.Since(execStart) - txn.ReadTime()
		}
		if err != nil {
			d.errors.Inc()
			d.observe(resultError, attempts, start)
			return zero, err
		}

		err = txn.Commit()
		if err == nil {
			d.commits.Inc()
			d.observe(resultCommit, attempts, start)
			if d.listener != nil && !txn.ReadOnly() {
				d.listener.OnCommit(txn.Writes())
			}
			return result, nil
		}
		if !IsConflict(err) {
			d.errors.Inc()
			d.observe(resultError, attempts, start)
			return zero, err
		}

		d.conflicts.Inc()
		conflictCounter.Inc()
		log.Debugf("commit conflict, retrying attempt=%d", attempts)

		if policy == nil {
			policy = d.newBackOff()
		}
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			d.observe(resultStopped, attempts, start)
			return zero, ErrRetryStopped
		}
		backoffStart := time.Now()
		time.Sleep(wait)
		if timings != nil {
			timings.Backoff += time.Since(backoffStart)
		}
	}
}

func (d *Driver) observe(result string, attempts int, start time.Time) {
	txnCounter.WithLabelValues(result).Inc()
	attemptsHistogram.Observe(float64(attempts))
	txnDuration.Observe(time.Since(start).Seconds())
}
