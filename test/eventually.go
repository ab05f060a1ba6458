// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package test

import (
	"github.com/orbs-network/go-mock"
	"time"
)

const iterationsEventually = 100
const interval = 5 * time.Millisecond

func Eventually(f func() bool) bool {
	for i := 0; i < iterationsEventually; i++ {
		if f() {
			return true
		}
		time.Sleep(interval)
	}
	return false
}

// EventuallyVerify returns nil once every mock verifies, or the last verification error
func EventuallyVerify(mocks ...mock.HasVerify) error {
	verified := make([]bool, len(mocks))
	numVerified := 0
	var errExample error
	Eventually(func() bool {
		for i, m := range mocks {
			if !verified[i] {
				ok, err := m.Verify()
				if ok {
					verified[i] = true
					numVerified++
				} else {
					errExample = err
				}
			}
		}
		return numVerified == len(mocks)
	})
	if numVerified == len(mocks) {
		return nil
	}
	return errExample
}
