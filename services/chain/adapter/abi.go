// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"bytes"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/pkg/errors"
)

const LoupeABIJSON = `[
{"type":"function","name":"facetAddresses","stateMutability":"view","inputs":[],"outputs":[{"name":"facetAddresses_","type":"address[]"}]},
{"type":"function","name":"facetFunctionSelectors","stateMutability":"view","inputs":[{"name":"_facet","type":"address"}],"outputs":[{"name":"_facetFunctionSelectors","type":"bytes4[]"}]}
]`

const DiamondCutABIJSON = `[
{"type":"function","name":"diamondCut","stateMutability":"nonpayable","inputs":[
 {"name":"_diamondCut","type":"tuple[]","components":[
  {"name":"facetAddress","type":"address"},
  {"name":"action","type":"uint8"},
  {"name":"functionSelectors","type":"bytes4[]"}]},
 {"name":"_init","type":"address"},
 {"name":"_calldata","type":"bytes"}],
 "outputs":[]}
]`

var loupeABI = mustParseABI(LoupeABIJSON)
var diamondCutABI = mustParseABI(DiamondCutABIJSON)

// FacetCut mirrors the IDiamondCut.FacetCut tuple, field order matters for abi packing
type FacetCut struct {
	FacetAddress      common.Address
	Action            uint8
	FunctionSelectors [][4]byte
}

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(bytes.NewReader([]byte(raw)))
	if err != nil {
		panic(err)
	}
	return parsed
}

// PackDiamondCut encodes a call to diamondCut. Remove operations are sent with the zero address
// as the standard requires.
func PackDiamondCut(plan diamond.Plan, init common.Address, initCalldata []byte) ([]byte, error) {
	cuts := make([]FacetCut, 0, len(plan))
	for _, op := range plan {
		cut := FacetCut{
			Action:            uint8(op.Action),
			FunctionSelectors: make([][4]byte, len(op.Selectors)),
		}
		if op.Action != diamond.Remove {
			cut.FacetAddress = op.Target
		}
		for i, s := range op.Selectors {
			cut.FunctionSelectors[i] = s
		}
		cuts = append(cuts, cut)
	}

	if initCalldata == nil {
		initCalldata = []byte{}
	}

	data, err := diamondCutABI.Pack("diamondCut", cuts, init, initCalldata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode diamondCut")
	}
	return data, nil
}

// PackInitializer encodes a call to an argument-less initializer, given by name or full signature
func PackInitializer(initializer string) ([]byte, error) {
	signature := initializer
	switch diamond.ClassifyEntry(initializer) {
	case diamond.NameEntry:
		signature = initializer + "()"
	case diamond.SignatureEntry:
	default:
		return nil, errors.Errorf("initializer %s is neither a function name nor a signature", initializer)
	}
	if signature[len(signature)-2:] != "()" {
		return nil, errors.Errorf("initializer %s takes arguments, only argument-less initializers are supported", initializer)
	}
	selector := diamond.SelectorFromSignature(signature)
	return selector[:], nil
}

// PackConstructor appends the abi-encoded constructor arguments to a contract's creation code
func PackConstructor(rawABI []byte, bytecode []byte, args ...interface{}) ([]byte, error) {
	parsed, err := abi.JSON(bytes.NewReader(rawABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse contract abi")
	}
	if len(parsed.Constructor.Inputs) != len(args) {
		return nil, errors.Errorf("constructor expects %d arguments, got %d", len(parsed.Constructor.Inputs), len(args))
	}
	if len(args) == 0 {
		return bytecode, nil
	}
	packed, err := parsed.Pack("", args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack constructor arguments")
	}
	return append(append([]byte{}, bytecode...), packed...), nil
}

// ConstructorArity reports how many arguments a contract's constructor takes
func ConstructorArity(rawABI []byte) (int, error) {
	parsed, err := abi.JSON(bytes.NewReader(rawABI))
	if err != nil {
		return 0, errors.Wrap(err, "failed to parse contract abi")
	}
	return len(parsed.Constructor.Inputs), nil
}
