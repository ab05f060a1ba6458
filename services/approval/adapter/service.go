// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"context"
	"github.com/pkg/errors"
)

type ProposalState string

const (
	ProposalPending  ProposalState = "pending"
	ProposalApproved ProposalState = "approved"
	ProposalExecuted ProposalState = "executed"
	ProposalRejected ProposalState = "rejected"
	ProposalFailed   ProposalState = "failed"
)

// Proposal describes one chain mutation awaiting external approval. An empty To deploys Data as contract code.
type Proposal struct {
	DeploymentId string `json:"deploymentId"`
	Step         string `json:"step"`
	Description  string `json:"description,omitempty"`
	To           string `json:"to,omitempty"`
	Data         string `json:"data"`
}

type ProposalStatus struct {
	Id              string        `json:"id"`
	State           ProposalState `json:"state"`
	TxHash          string        `json:"txHash,omitempty"`
	ContractAddress string        `json:"contractAddress,omitempty"`
	Reason          string        `json:"reason,omitempty"`
}

func (s *ProposalStatus) IsFinal() bool {
	switch s.State {
	case ProposalExecuted, ProposalRejected, ProposalFailed:
		return true
	}
	return false
}

// Service is the external multi-party approval system (multisig, governance) mutations are routed through
type Service interface {
	CreateProposal(ctx context.Context, proposal *Proposal) (string, error)
	GetProposal(ctx context.Context, id string) (*ProposalStatus, error)
	ExecuteProposal(ctx context.Context, id string) error
}

var ErrProposalNotFound = errors.New("proposal not found")
