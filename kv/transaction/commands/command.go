package commands

import (
	"context"
	"time"

	"github.com/pingcap-incubator/tinystm/kv/executor"
	"github.com/pingcap-incubator/tinystm/kv/stm"
	"github.com/pingcap-incubator/tinystm/log"
)

// Command is an abstraction which covers the process from receiving a request from the HTTP layer to returning a
// response. Transaction failures which the client should see (a missing object, a failing program) are part of the
// response; an error returned by Execute means the request itself could not be served.
type Command interface {
	// Name identifies the command in logs.
	Name() string
	Execute(ctx context.Context, env *Env) (interface{}, error)
}

// Env is the state shared by every command.
type Env struct {
	Driver   *stm.Driver
	Executor executor.Executor
	// Alloc is the address range written by ReallocateMemory.
	Alloc AllocRange
}

// AllocRange is an inclusive range of addresses to allocate, and how many allocations may run at once.
type AllocRange struct {
	Start       uint32
	End         uint32
	Concurrency int
}

// RunCommand runs a command against env.
func RunCommand(ctx context.Context, cmd Command, env *Env) (interface{}, error) {
	start := time.Now()
	resp, err := cmd.Execute(ctx, env)
	if err != nil {
		log.Warnf("command failed name=%s elapsed=%v err=%v", cmd.Name(), time.Since(start), err)
		return nil, err
	}
	log.Debugf("command finished name=%s elapsed=%v", cmd.Name(), time.Since(start))
	return resp, nil
}
