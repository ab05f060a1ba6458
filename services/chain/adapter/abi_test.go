// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package adapter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/test/builders"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestPackDiamondCut_StartsWithTheDiamondCutSelector(t *testing.T) {
	plan := diamond.Plan{
		{Action: diamond.Add, Facet: "A", Target: builders.AddressForTests(1), Selectors: builders.SelectorList("f1()", "f2()")},
	}

	data, err := PackDiamondCut(plan, common.Address{}, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0x1f, 0x93, 0x1c, 0x1c}, data[:4])
	require.Equal(t, 0, (len(data)-4)%32, "arguments are padded to words")
}

func TestPackDiamondCut_RemoveIgnoresTheTarget(t *testing.T) {
	selectors := builders.SelectorList("f1()")
	withTarget, err := PackDiamondCut(diamond.Plan{
		{Action: diamond.Remove, Facet: "A", Target: builders.AddressForTests(1), Selectors: selectors},
	}, common.Address{}, nil)
	require.NoError(t, err)

	withoutTarget, err := PackDiamondCut(diamond.Plan{
		{Action: diamond.Remove, Facet: "A", Selectors: selectors},
	}, common.Address{}, nil)
	require.NoError(t, err)

	require.Equal(t, withoutTarget, withTarget)
}

func TestPackDiamondCut_IsDeterministicAndCarriesTheInitializer(t *testing.T) {
	plan := diamond.Plan{
		{Action: diamond.Replace, Facet: "A", Target: builders.AddressForTests(1), Selectors: builders.SelectorList("f1()")},
	}
	init := builders.AddressForTests(9)
	initCalldata, err := PackInitializer("initialize")
	require.NoError(t, err)

	first, err := PackDiamondCut(plan, init, initCalldata)
	require.NoError(t, err)
	second, err := PackDiamondCut(plan, init, initCalldata)
	require.NoError(t, err)
	require.Equal(t, first, second)

	withoutInit, err := PackDiamondCut(plan, common.Address{}, nil)
	require.NoError(t, err)
	require.NotEqual(t, first, withoutInit)
}

func TestPackDiamondCut_EmptyPlanWithInitializerIsValid(t *testing.T) {
	data, err := PackDiamondCut(nil, builders.AddressForTests(9), []byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, []byte{0x1f, 0x93, 0x1c, 0x1c}, data[:4])
}

func TestPackInitializer(t *testing.T) {
	byName, err := PackInitializer("initialize")
	require.NoError(t, err)
	expected := diamond.SelectorFromSignature("initialize()")
	require.Equal(t, expected[:], byName)

	bySignature, err := PackInitializer("initialize()")
	require.NoError(t, err)
	require.Equal(t, byName, bySignature)

	_, err = PackInitializer("initialize(uint256)")
	require.Error(t, err, "only argument-less initializers are supported")

	_, err = PackInitializer("0x12345678")
	require.Error(t, err)

	_, err = PackInitializer("not valid")
	require.Error(t, err)
}

func TestPackConstructor_AppendsEncodedArguments(t *testing.T) {
	rawABI := []byte(builders.ConstructorABI([]string{"address", "address"}))
	owner := builders.AddressForTests(1)
	cutFacet := builders.AddressForTests(2)

	arity, err := ConstructorArity(rawABI)
	require.NoError(t, err)
	require.Equal(t, 2, arity)

	code, err := PackConstructor(rawABI, builders.Bytecode(7), owner, cutFacet)
	require.NoError(t, err)
	require.Len(t, code, len(builders.Bytecode(7))+64)
	require.Equal(t, builders.Bytecode(7), code[:len(builders.Bytecode(7))])
	require.Equal(t, owner.Bytes(), code[len(code)-52:len(code)-32])
	require.Equal(t, cutFacet.Bytes(), code[len(code)-20:])

	_, err = PackConstructor(rawABI, builders.Bytecode(7), owner)
	require.Error(t, err, "wrong number of arguments")
}

func TestPackConstructor_WithoutConstructorLeavesBytecodeAlone(t *testing.T) {
	rawABI := []byte(builders.ABI("f()"))

	arity, err := ConstructorArity(rawABI)
	require.NoError(t, err)
	require.Zero(t, arity)

	code, err := PackConstructor(rawABI, builders.Bytecode(3))
	require.NoError(t, err)
	require.Equal(t, builders.Bytecode(3), code)
}

func TestConstructorArity_RejectsBrokenAbi(t *testing.T) {
	_, err := ConstructorArity([]byte("{not json"))
	require.Error(t, err)
}
