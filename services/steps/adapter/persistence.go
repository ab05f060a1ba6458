// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import "time"

type Status string

const (
	Pending  Status = "pending"
	Approved Status = "approved"
	Executed Status = "executed"
	Failed   Status = "failed"
)

type StepRecord struct {
	StepName        string    `json:"stepName"`
	Status          Status    `json:"status"`
	ProposalId      string    `json:"proposalId,omitempty"`
	TxHash          string    `json:"txHash,omitempty"`
	ContractAddress string    `json:"contractAddress,omitempty"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp,omitempty"`
}

// StepDocument is the persisted registry of one deployment id
type StepDocument struct {
	DiamondName  string        `json:"diamondName"`
	Network      string        `json:"network"`
	DeploymentId string        `json:"deploymentId"`
	ConfigHash   string        `json:"configHash,omitempty"`
	Steps        []*StepRecord `json:"steps"`
}

type StepPersistence interface {
	// Read returns nil without error when nothing was persisted for the id
	Read(deploymentId string) (*StepDocument, error)
	Write(doc *StepDocument) error
	Delete(deploymentId string) error
}

func (d *StepDocument) Clone() *StepDocument {
	clone := *d
	clone.Steps = make([]*StepRecord, len(d.Steps))
	for i, s := range d.Steps {
		r := *s
		clone.Steps[i] = &r
	}
	return &clone
}
