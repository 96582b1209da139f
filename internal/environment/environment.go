// Package environment creates the execution environment an agent runs its
// commands in.
package environment

import (
	"context"
	"fmt"

	"github.com/spachava753/coderun/internal/agent"
	"github.com/spachava753/coderun/internal/environment/docker"
	"github.com/spachava753/coderun/internal/environment/local"
	"github.com/spachava753/coderun/internal/environment/modal"
	"github.com/spachava753/coderun/internal/models"
)

const (
	ClassLocal  = "local"
	ClassDocker = "docker"
	ClassModal  = "modal"
)

// Cleaner is implemented by environments that hold resources, such as a
// container, which must be released when the run is over.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// New creates the environment named by cfg.EnvironmentClass. An empty class
// is the local host.
func New(ctx context.Context, cfg models.EnvironmentConfig) (agent.Environment, error) {
	switch cfg.EnvironmentClass {
	case "", ClassLocal:
		return local.New(cfg), nil
	case ClassDocker:
		env, err := docker.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return env, nil
	case ClassModal:
		env, err := modal.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return env, nil
	default:
		return nil, fmt.Errorf("unsupported environment class: %s", cfg.EnvironmentClass)
	}
}
