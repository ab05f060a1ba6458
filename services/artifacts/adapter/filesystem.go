// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
)

type filesystemStoreConfig interface {
	ArtifactsPath() string
}

// FilesystemArtifactStore reads <dir>/<name>.json, falling back to the hardhat layout <dir>/**/<name>.sol/<name>.json
type FilesystemArtifactStore struct {
	dir    string
	logger log.Logger

	mu struct {
		sync.Mutex
		cache map[string]*Artifact
	}
}

func NewFilesystemArtifactStore(config filesystemStoreConfig, logger log.Logger) *FilesystemArtifactStore {
	s := &FilesystemArtifactStore{
		dir:    config.ArtifactsPath(),
		logger: logger.WithTags(log.String("adapter", "artifacts"), log.String("dir", config.ArtifactsPath())),
	}
	s.mu.cache = make(map[string]*Artifact)
	return s
}

func (s *FilesystemArtifactStore) ABI(contractName string) ([]byte, error) {
	a, err := s.artifact(contractName)
	if err != nil {
		return nil, err
	}
	return a.ABI, nil
}

func (s *FilesystemArtifactStore) Bytecode(contractName string, libraries map[string]common.Address) ([]byte, error) {
	a, err := s.artifact(contractName)
	if err != nil {
		return nil, err
	}
	return a.Link(libraries)
}

func (s *FilesystemArtifactStore) Libraries(contractName string) ([]string, error) {
	a, err := s.artifact(contractName)
	if err != nil {
		return nil, err
	}
	return a.Libraries(), nil
}

func (s *FilesystemArtifactStore) artifact(contractName string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, found := s.mu.cache[contractName]; found {
		return a, nil
	}

	path, err := s.find(contractName)
	if err != nil {
		return nil, err
	}

	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read artifact %s", path)
	}

	a, err := parseArtifact(contractName, raw)
	if err != nil {
		return nil, err
	}

	s.logger.Info("loaded artifact", log.String("contract", contractName), log.String("path", path))
	s.mu.cache[contractName] = a
	return a, nil
}

func (s *FilesystemArtifactStore) find(contractName string) (string, error) {
	direct := filepath.Join(s.dir, contractName+".json")
	if _, err := os.Stat(direct); err == nil {
		return direct, nil
	}

	var found string
	errFound := errors.New("found")
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && info.Name() == "build-info" {
			return filepath.SkipDir
		}
		if !info.IsDir() && info.Name() == contractName+".json" && filepath.Base(filepath.Dir(path)) == contractName+".sol" {
			found = path
			return errFound
		}
		return nil
	})
	if found != "" {
		return found, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "failed searching artifacts in %s", s.dir)
	}
	return "", &ErrArtifactNotFound{ContractName: contractName}
}
