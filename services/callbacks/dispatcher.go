// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package callbacks

import (
	"context"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
)

var LogTag = log.Service("callback-dispatcher")

type Dispatcher struct {
	registry *Registry
	logger   log.Logger
}

func NewDispatcher(registry *Registry, parent log.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		logger:   parent.WithTags(LogTag),
	}
}

// Dispatch runs the named callbacks of a facet in declared order. It must only be called once the
// facet's cut is confirmed. The first missing or failing callback stops the facet's sequence; the
// returned error is a remediation item and never implies a rollback.
func (d *Dispatcher) Dispatch(ctx context.Context, facet string, names []string, args *Args) (executed []string, err error) {
	logger := d.logger.WithTags(logfields.Facet(facet))
	if args.Logger == nil {
		args.Logger = logger
	}

	for _, name := range names {
		cb, found := d.registry.Lookup(facet, name)
		if !found {
			logger.Info("callback not registered", log.String("callback", name))
			return executed, notFound(facet, name)
		}

		if err := invoke(ctx, cb, args); err != nil {
			logger.Info("callback failed", log.String("callback", name), log.Error(err))
			return executed, diamond.NewError(diamond.CallbackExecutionFailed, errors.Wrapf(err, "callback %s", name)).ForFacet(facet)
		}

		logger.Info("callback executed", log.String("callback", name))
		executed = append(executed, name)
	}
	return executed, nil
}

func invoke(ctx context.Context, cb Callback, args *Args) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("callback panicked: %v", p)
		}
	}()
	return cb(ctx, args)
}
