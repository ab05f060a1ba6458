// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"context"
	"github.com/orbs-network/go-mock"
)

type MockApprovalService struct {
	mock.Mock
}

func (m *MockApprovalService) CreateProposal(ctx context.Context, proposal *Proposal) (string, error) {
	ret := m.Called(ctx, proposal)
	return ret.Get(0).(string), ret.Error(1)
}

func (m *MockApprovalService) GetProposal(ctx context.Context, id string) (*ProposalStatus, error) {
	ret := m.Called(ctx, id)
	if out := ret.Get(0); out != nil {
		return out.(*ProposalStatus), ret.Error(1)
	} else {
		return nil, ret.Error(1)
	}
}

func (m *MockApprovalService) ExecuteProposal(ctx context.Context, id string) error {
	ret := m.Called(ctx, id)
	return ret.Error(0)
}
