// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package selectors

import (
	"bytes"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"sort"
)

var LogTag = log.Service("selector-resolver")

type InterfaceProvider interface {
	ABI(contractName string) ([]byte, error)
}

// Function is one exposed function of a facet interface
type Function struct {
	Name      string
	Signature string
	Selector  diamond.Selector
}

type Resolver struct {
	provider InterfaceProvider
	logger   log.Logger
}

func NewResolver(provider InterfaceProvider, parent log.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		logger:   parent.WithTags(LogTag),
	}
}

// Resolve returns the selectors the facet exposes once include/exclude filtering is applied
func (r *Resolver) Resolve(facet string, include []string, exclude []string) (diamond.SelectorSet, error) {
	raw, err := r.provider.ABI(facet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load interface of %s", facet)
	}

	functions, err := ParseFunctions(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse interface of %s", facet)
	}

	resolved := Filter(functions, include, exclude)
	r.logger.Info("resolved facet selectors", logfields.Facet(facet), log.Int("abi-functions", len(functions)), log.Int("selectors", resolved.Len()))
	return resolved, nil
}

// ParseFunctions lists the functions of an ABI json document in signature order
func ParseFunctions(rawABI []byte) ([]Function, error) {
	parsed, err := abi.JSON(bytes.NewReader(rawABI))
	if err != nil {
		return nil, err
	}

	functions := make([]Function, 0, len(parsed.Methods))
	for _, method := range parsed.Methods {
		signature := method.Sig()
		name := diamond.FunctionName(signature)
		if name == "" {
			continue
		}
		functions = append(functions, Function{
			Name:      name,
			Signature: signature,
			Selector:  diamond.SelectorFromSignature(signature),
		})
	}
	sortFunctions(functions)
	return functions, nil
}

// Filter applies the include list (restricting to the named entries) and then the exclude list.
// Entries that match nothing in the interface are not an error: a signature or selector literal
// still yields its selector, an unknown bare name yields nothing.
func Filter(functions []Function, include []string, exclude []string) diamond.SelectorSet {
	result := diamond.NewSelectorSet()
	if len(include) == 0 {
		for _, f := range functions {
			result.Add(f.Selector)
		}
	} else {
		for _, entry := range include {
			for _, s := range selectorsOf(functions, entry) {
				result.Add(s)
			}
		}
	}

	for _, entry := range exclude {
		for _, s := range selectorsOf(functions, entry) {
			result.Remove(s)
		}
	}
	return result
}

func selectorsOf(functions []Function, entry string) []diamond.Selector {
	switch diamond.ClassifyEntry(entry) {
	case diamond.SelectorEntry:
		s, _ := diamond.SelectorFromHex(entry)
		return []diamond.Selector{s}
	case diamond.SignatureEntry:
		return []diamond.Selector{diamond.SelectorFromSignature(entry)}
	case diamond.NameEntry:
		var matched []diamond.Selector
		for _, f := range functions {
			if f.Name == entry {
				matched = append(matched, f.Selector)
			}
		}
		return matched
	}
	return nil
}

func sortFunctions(functions []Function) {
	sort.Slice(functions, func(i, j int) bool {
		return functions[i].Signature < functions[j].Signature
	})
}
