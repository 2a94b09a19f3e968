package stm

import (
	"github.com/pingcap/errors"
)

var errAttemptFinished = errors.New("stm: attempt already committed")

// Commit tries to make the buffered writes of txn visible. It runs in two phases:
//
// Validate: every key in the read set must still exist at the version it was read at, otherwise ErrConflict is
// returned and nothing is written. An attempt which read nothing always validates.
//
// Apply: every buffered write is stored at the key's current version plus one with Store.Bump, so the versions of
// a key strictly increase. Each key is applied on its own, so with overlapping concurrent commits the write set as
// a whole is not applied atomically. Setting latches on the attempt (see Options.SerializeCommits) makes validate and apply
// exclusive among commits touching the same keys.
//
// Commit may only be called once per attempt.
func (txn *Attempt) Commit() error {
	if txn.finished {
		return errAttemptFinished
	}
	txn.finished = true

	if txn.latches != nil {
		keys := txn.keys()
		txn.latches.WaitForLatches(keys)
		defer txn.latches.ReleaseLatches(keys)
		txn.latches.Validate(keys)
	}

	if !txn.validate() {
		return ErrConflict
	}
	txn.apply()
	return nil
}

func (txn *Attempt) validate() bool {
	for k, observed := range txn.readSet {
		current, ok := txn.store.Get([]byte(k))
		if !ok || current.Version != observed.Version {
			return false
		}
	}
	return true
}

func (txn *Attempt) apply() {
	for k, v := range txn.writeSet {
		txn.store.Bump([]byte(k), v)
	}
}
