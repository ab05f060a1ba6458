// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package builders

import (
	"encoding/hex"
	"encoding/json"
	"github.com/orbs-network/diamond-deployer/diamond"
	artifactsadapter "github.com/orbs-network/diamond-deployer/services/artifacts/adapter"
	"strings"
)

type abiArgument struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type abiEntry struct {
	Type            string        `json:"type"`
	Name            string        `json:"name,omitempty"`
	StateMutability string        `json:"stateMutability"`
	Inputs          []abiArgument `json:"inputs"`
	Outputs         []abiArgument `json:"outputs,omitempty"`
}

// ABI builds an abi json document declaring a function per signature, e.g. "transfer(address,uint256)".
// Only elementary parameter types are supported.
func ABI(signatures ...string) string {
	return abiWith(nil, signatures...)
}

// ConstructorABI is ABI with a constructor taking the given parameter types
func ConstructorABI(constructorTypes []string, signatures ...string) string {
	return abiWith(constructorTypes, signatures...)
}

func abiWith(constructorTypes []string, signatures ...string) string {
	entries := make([]abiEntry, 0, len(signatures)+1)
	if constructorTypes != nil {
		entries = append(entries, abiEntry{Type: "constructor", StateMutability: "nonpayable", Inputs: arguments(constructorTypes)})
	}
	for _, signature := range signatures {
		name := diamond.FunctionName(signature)
		params := strings.TrimSuffix(strings.TrimPrefix(signature, name+"("), ")")
		var types []string
		if params != "" {
			types = strings.Split(params, ",")
		}
		entries = append(entries, abiEntry{Type: "function", Name: name, StateMutability: "nonpayable", Inputs: arguments(types), Outputs: []abiArgument{}})
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

func arguments(types []string) []abiArgument {
	args := make([]abiArgument, len(types))
	for i, t := range types {
		args[i] = abiArgument{Type: t}
	}
	return args
}

// Bytecode is recognizable fake creation code, distinct per seed
func Bytecode(seed byte) []byte {
	return []byte{0x60, 0x80, 0x60, 0x40, seed}
}

// LinkedArtifact is a contract whose creation code carries one placeholder for library
func LinkedArtifact(contractName string, abiJSON string, library string, seed byte) *artifactsadapter.Artifact {
	placeholder := "__$" + strings.Repeat("0", 34) + "$__"
	code := hex.EncodeToString(Bytecode(seed)) + placeholder + "00"
	return &artifactsadapter.Artifact{
		ContractName: contractName,
		ABI:          json.RawMessage(abiJSON),
		Bytecode:     "0x" + code,
		LinkReferences: map[string]map[string][]artifactsadapter.LinkReference{
			"contracts/" + library + ".sol": {library: {{Start: len(Bytecode(seed)), Length: 20}}},
		},
	}
}
