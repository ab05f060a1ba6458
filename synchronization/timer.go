// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package synchronization

import "time"

// Timer wraps time.Timer so Stop and Reset also drain a fired channel: https://github.com/golang/go/issues/11513
type Timer struct {
	timer *time.Timer
	C     <-chan time.Time
}

func NewTimer(d time.Duration) *Timer {
	timer := time.NewTimer(d)
	return &Timer{timer: timer, C: timer.C}
}

func (t *Timer) Reset(d time.Duration) bool {
	active := t.Stop()
	t.timer.Reset(d)
	return active
}

func (t *Timer) Stop() bool {
	active := t.timer.Stop()
	if !active {
		select {
		case <-t.C:
		default:
		}
	}
	return active
}
