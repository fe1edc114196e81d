package scenario

import (
	"context"

	"github.com/torosent/sagent/internal/agent"
)

// IdleAgent performs no work.
type IdleAgent struct {
	agent.Base
}

func (*IdleAgent) Perform(context.Context) error { return nil }
