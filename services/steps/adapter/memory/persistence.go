// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package memory

import (
	"github.com/orbs-network/diamond-deployer/services/steps/adapter"
	"sync"
)

type InMemoryStepPersistence struct {
	mu struct {
		sync.Mutex
		docs   map[string]*adapter.StepDocument
		writes int
	}
}

func NewStepPersistence() *InMemoryStepPersistence {
	p := &InMemoryStepPersistence{}
	p.mu.docs = make(map[string]*adapter.StepDocument)
	return p
}

func (p *InMemoryStepPersistence) Read(deploymentId string) (*adapter.StepDocument, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, found := p.mu.docs[deploymentId]
	if !found {
		return nil, nil
	}
	return doc.Clone(), nil
}

func (p *InMemoryStepPersistence) Write(doc *adapter.StepDocument) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mu.docs[doc.DeploymentId] = doc.Clone()
	p.mu.writes++
	return nil
}

func (p *InMemoryStepPersistence) Delete(deploymentId string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.mu.docs, deploymentId)
	return nil
}

func (p *InMemoryStepPersistence) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mu.writes
}
