// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package trace

import (
	"context"
	"fmt"
	"github.com/orbs-network/scribe/log"
	"time"
)

type entryPointKeyType string

const entryPointKey entryPointKeyType = "ep"
const RunId = "run-id"

// Context identifies one entry into the deployer (a CLI command or a Run call)
type Context struct {
	created time.Time
	name    string
	runId   string
}

func NewContext(parent context.Context, name string) context.Context {
	now := time.Now()
	ep := &Context{
		name:    name,
		created: now,
		runId:   fmt.Sprintf("%s-%d", name, now.UnixNano()),
	}
	return context.WithValue(parent, entryPointKey, ep)
}

func FromContext(ctx context.Context) (e *Context, ok bool) {
	e, ok = ctx.Value(entryPointKey).(*Context)
	return
}

func (c *Context) RunId() string {
	return c.runId
}

func (c *Context) Elapsed() time.Duration {
	return time.Since(c.created)
}

func LogFieldFrom(ctx context.Context) *log.Field {
	if trace, ok := FromContext(ctx); ok {
		return log.String(RunId, trace.runId)
	}
	return log.String(RunId, "NO-CONTEXT")
}
