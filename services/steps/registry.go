// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package steps

import (
	"encoding/hex"
	"fmt"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/diamond-deployer/services/steps/adapter"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"
	"strings"
	"sync"
	"time"
)

var LogTag = log.Service("step-registry")

func DeploymentId(diamondName string, network string, chainId uint64) string {
	return fmt.Sprintf("%s-%s-%d", strings.ToLower(diamondName), strings.ToLower(network), chainId)
}

// ConfigHash fingerprints the exact configuration document a run was started with
func ConfigHash(raw []byte) string {
	sum := sha3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Registry tracks the StepRecords of one deployment id. Every Put is persisted before it returns,
// writes are last-writer-wins per step name.
type Registry struct {
	persistence adapter.StepPersistence
	logger      log.Logger
	now         func() time.Time

	mu struct {
		sync.Mutex
		doc *adapter.StepDocument
	}
}

func Open(persistence adapter.StepPersistence, diamondName string, network string, chainId uint64, configHash string, parent log.Logger) (*Registry, error) {
	id := DeploymentId(diamondName, network, chainId)
	logger := parent.WithTags(LogTag, logfields.DeploymentId(id))

	doc, err := persistence.Read(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed reading step registry of %s", id)
	}

	if doc == nil {
		doc = &adapter.StepDocument{
			DiamondName:  diamondName,
			Network:      network,
			DeploymentId: id,
			ConfigHash:   configHash,
		}
	} else {
		logger.Info("resuming from persisted steps", log.Int("steps", len(doc.Steps)))
		if configHash != "" && doc.ConfigHash != "" && doc.ConfigHash != configHash {
			logger.Info("configuration changed since the persisted steps were recorded, completed steps are kept", log.String("previous-config-hash", doc.ConfigHash), log.String("config-hash", configHash))
		}
		if configHash != "" {
			doc.ConfigHash = configHash
		}
	}

	r := &Registry{
		persistence: persistence,
		logger:      logger,
		now:         time.Now,
	}
	r.mu.doc = doc
	return r, nil
}

func (r *Registry) DeploymentId() string {
	return r.mu.doc.DeploymentId
}

func (r *Registry) Get(stepName string) (*adapter.StepRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.mu.doc.Steps {
		if s.StepName == stepName {
			clone := *s
			return &clone, true
		}
	}
	return nil, false
}

func (r *Registry) Put(record *adapter.StepRecord) error {
	if record.StepName == "" {
		return errors.New("step record requires a step name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *record
	if stored.Timestamp.IsZero() {
		stored.Timestamp = r.now().UTC()
	}

	replaced := false
	for i, s := range r.mu.doc.Steps {
		if s.StepName == stored.StepName {
			r.mu.doc.Steps[i] = &stored
			replaced = true
			break
		}
	}
	if !replaced {
		r.mu.doc.Steps = append(r.mu.doc.Steps, &stored)
	}

	if err := r.persistence.Write(r.mu.doc); err != nil {
		return errors.Wrapf(err, "failed persisting step %s", stored.StepName)
	}

	r.logger.Info("step recorded", logfields.Step(stored.StepName), log.String("status", string(stored.Status)), logfields.ProposalId(stored.ProposalId))
	return nil
}

func (r *Registry) Records() []*adapter.StepRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*adapter.StepRecord, len(r.mu.doc.Steps))
	for i, s := range r.mu.doc.Steps {
		clone := *s
		out[i] = &clone
	}
	return out
}

// Clear forgets all steps of the deployment, used once a run completed
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.persistence.Delete(r.mu.doc.DeploymentId); err != nil {
		return err
	}
	r.mu.doc.Steps = nil
	return nil
}
