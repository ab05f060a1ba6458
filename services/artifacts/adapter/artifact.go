// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"encoding/hex"
	"encoding/json"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"sort"
	"strings"
)

type LinkReference struct {
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Artifact is a compiled contract in the hardhat artifact layout
type Artifact struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName,omitempty"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
	// source file -> library name -> placeholder positions, offsets in bytes of the creation code
	LinkReferences map[string]map[string][]LinkReference `json:"linkReferences,omitempty"`
}

// Store is the artifact collaborator: contract interfaces and creation code by contract name
type Store interface {
	ABI(contractName string) ([]byte, error)
	Bytecode(contractName string, libraries map[string]common.Address) ([]byte, error)
	Libraries(contractName string) ([]string, error)
}

type ErrArtifactNotFound struct {
	ContractName string
}

func (e *ErrArtifactNotFound) Error() string {
	return "artifact not found for contract " + e.ContractName
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*ErrArtifactNotFound)
	return ok
}

func (a *Artifact) Libraries() []string {
	var names []string
	seen := make(map[string]bool)
	for _, libs := range a.LinkReferences {
		for name := range libs {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// Link returns the creation code with every library placeholder replaced by its deployed address
func (a *Artifact) Link(libraries map[string]common.Address) ([]byte, error) {
	code := strings.TrimPrefix(a.Bytecode, "0x")
	if code == "" {
		return nil, errors.Errorf("contract %s has no creation code (abstract contract or interface?)", a.ContractName)
	}

	linked := []byte(code)
	for _, libs := range a.LinkReferences {
		for name, refs := range libs {
			address, found := libraries[name]
			if !found {
				return nil, errors.Errorf("contract %s requires library %s which is not deployed", a.ContractName, name)
			}
			addressHex := hex.EncodeToString(address.Bytes())
			for _, ref := range refs {
				from, to := ref.Start*2, (ref.Start+ref.Length)*2
				if ref.Length != common.AddressLength || to > len(linked) {
					return nil, errors.Errorf("contract %s has an invalid link reference for %s at %d", a.ContractName, name, ref.Start)
				}
				copy(linked[from:to], addressHex)
			}
		}
	}

	bytecode, err := hex.DecodeString(string(linked))
	if err != nil {
		return nil, errors.Wrapf(err, "contract %s bytecode is not valid hex (unlinked library?)", a.ContractName)
	}
	return bytecode, nil
}

func parseArtifact(contractName string, raw []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, errors.Wrapf(err, "failed to parse artifact of %s", contractName)
	}
	if len(a.ABI) == 0 {
		return nil, errors.Errorf("artifact of %s has no abi", contractName)
	}
	if a.ContractName == "" {
		a.ContractName = contractName
	}
	return &a, nil
}
