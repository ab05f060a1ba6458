// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"context"
	"fmt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"sort"
	"sync"
)

// Executor carries out an approved proposal on chain
type Executor func(ctx context.Context, proposal *Proposal) (txHash string, contractAddress string, err error)

type memoryProposal struct {
	proposal *Proposal
	status   ProposalStatus
	executes int
}

// InMemoryApprovalService keeps proposals in memory. Approvals are given by calling Approve, or
// immediately when auto approval is on.
type InMemoryApprovalService struct {
	executor Executor

	mu struct {
		sync.Mutex
		autoApprove bool
		nextId      int
		proposals   map[string]*memoryProposal
	}
}

func NewInMemoryApprovalService(executor Executor) *InMemoryApprovalService {
	s := &InMemoryApprovalService{executor: executor}
	s.mu.proposals = make(map[string]*memoryProposal)
	return s
}

func (s *InMemoryApprovalService) WithAutoApprove() *InMemoryApprovalService {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mu.autoApprove = true
	return s
}

func (s *InMemoryApprovalService) CreateProposal(ctx context.Context, proposal *Proposal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mu.nextId++
	id := fmt.Sprintf("proposal-%d", s.mu.nextId)
	p := *proposal
	state := ProposalPending
	if s.mu.autoApprove {
		state = ProposalApproved
	}
	s.mu.proposals[id] = &memoryProposal{proposal: &p, status: ProposalStatus{Id: id, State: state}}
	return id, nil
}

func (s *InMemoryApprovalService) GetProposal(ctx context.Context, id string) (*ProposalStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.mu.proposals[id]
	if !found {
		return nil, ErrProposalNotFound
	}
	status := p.status
	return &status, nil
}

func (s *InMemoryApprovalService) ExecuteProposal(ctx context.Context, id string) error {
	s.mu.Lock()
	p, found := s.mu.proposals[id]
	if !found {
		s.mu.Unlock()
		return ErrProposalNotFound
	}
	switch p.status.State {
	case ProposalExecuted:
		s.mu.Unlock()
		return nil
	case ProposalApproved:
	default:
		s.mu.Unlock()
		return errors.Errorf("proposal %s is %s and cannot be executed", id, p.status.State)
	}
	p.executes++
	proposal := *p.proposal
	s.mu.Unlock()

	txHash, contractAddress, err := s.execute(ctx, &proposal)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		p.status.State = ProposalFailed
		p.status.Reason = err.Error()
		return nil
	}
	p.status.State = ProposalExecuted
	p.status.TxHash = txHash
	p.status.ContractAddress = contractAddress
	return nil
}

func (s *InMemoryApprovalService) execute(ctx context.Context, proposal *Proposal) (string, string, error) {
	if s.executor != nil {
		return s.executor(ctx, proposal)
	}
	// no chain behind this service, derive stable values from the proposal
	txHash := crypto.Keccak256Hash([]byte(proposal.DeploymentId), []byte(proposal.Step), []byte(proposal.Data))
	contractAddress := ""
	if proposal.To == "" {
		contractAddress = common.BytesToAddress(txHash.Bytes()).Hex()
	}
	return txHash.Hex(), contractAddress, nil
}

func (s *InMemoryApprovalService) Approve(id string) error {
	return s.transition(id, ProposalApproved, "")
}

func (s *InMemoryApprovalService) Reject(id string, reason string) error {
	return s.transition(id, ProposalRejected, reason)
}

func (s *InMemoryApprovalService) transition(id string, state ProposalState, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.mu.proposals[id]
	if !found {
		return ErrProposalNotFound
	}
	if p.status.State != ProposalPending {
		return errors.Errorf("proposal %s is already %s", id, p.status.State)
	}
	p.status.State = state
	p.status.Reason = reason
	return nil
}

// ApproveAll approves every pending proposal and returns their ids
func (s *InMemoryApprovalService) ApproveAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, p := range s.mu.proposals {
		if p.status.State == ProposalPending {
			p.status.State = ProposalApproved
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *InMemoryApprovalService) Proposal(id string) (*Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, found := s.mu.proposals[id]
	if !found {
		return nil, false
	}
	clone := *p.proposal
	return &clone, true
}

// ProposalsForStep lists the ids of every proposal created for the named step
func (s *InMemoryApprovalService) ProposalsForStep(step string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, p := range s.mu.proposals {
		if p.proposal.Step == step {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *InMemoryApprovalService) ProposalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mu.proposals)
}

func (s *InMemoryApprovalService) ExecuteCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, found := s.mu.proposals[id]; found {
		return p.executes
	}
	return 0
}
