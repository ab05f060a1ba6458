// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package filesystem

import (
	"github.com/orbs-network/diamond-deployer/services/steps/adapter"
	"github.com/orbs-network/diamond-deployer/state"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"strings"
)

type config interface {
	StepRegistryDir() string
}

// FilesystemStepPersistence keeps one json document per deployment id
type FilesystemStepPersistence struct {
	dir    string
	logger log.Logger
}

func NewStepPersistence(conf config, parent log.Logger) (*FilesystemStepPersistence, error) {
	dir := conf.StepRegistryDir()
	if dir == "" {
		return nil, errors.New("step registry directory is not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed creating step registry directory %s", dir)
	}
	return &FilesystemStepPersistence{
		dir:    dir,
		logger: parent.WithTags(log.String("adapter", "step-persistence"), log.String("dir", dir)),
	}, nil
}

func (f *FilesystemStepPersistence) pathOf(deploymentId string) string {
	safe := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, deploymentId)
	return filepath.Join(f.dir, safe+".json")
}

func (f *FilesystemStepPersistence) Read(deploymentId string) (*adapter.StepDocument, error) {
	path := f.pathOf(deploymentId)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	var doc adapter.StepDocument
	if _, err := state.ReadDocument(path, &doc); err != nil {
		return nil, err
	}
	if doc.DeploymentId != deploymentId {
		return nil, errors.Errorf("step document %s belongs to deployment %s", path, doc.DeploymentId)
	}
	return &doc, nil
}

func (f *FilesystemStepPersistence) Write(doc *adapter.StepDocument) error {
	return state.WriteDocument(f.pathOf(doc.DeploymentId), doc)
}

func (f *FilesystemStepPersistence) Delete(deploymentId string) error {
	err := os.Remove(f.pathOf(deploymentId))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed deleting step document of %s", deploymentId)
	}
	f.logger.Info("step document cleared", log.String("deployment-id", deploymentId))
	return nil
}
