package commands

import (
	"context"

	"github.com/pingcap-incubator/tinystm/kv/stm"
)

type Status struct {
	Keys  int       `json:"keys"`
	Stats stm.Stats `json:"stats"`
	Codes []string  `json:"codes,omitempty"`
}

// GetStatus reports the size of the store and the driver counters.
type GetStatus struct{}

func (c *GetStatus) Name() string {
	return "get_status"
}

func (c *GetStatus) Execute(ctx context.Context, env *Env) (interface{}, error) {
	status := Status{
		Keys:  env.Driver.Store().Len(),
		Stats: env.Driver.Stats(),
	}
	if lister, ok := env.Executor.(interface{ CodeIDs() []string }); ok {
		status.Codes = lister.CodeIDs()
	}
	return status, nil
}
