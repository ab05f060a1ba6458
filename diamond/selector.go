// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package diamond

import (
	"bytes"
	"encoding/hex"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"sort"
	"strings"
)

const SelectorLength = 4

// Selector is the 4 byte dispatch key of a function, keccak256(signature)[:4]
type Selector [SelectorLength]byte

func SelectorFromSignature(signature string) Selector {
	var s Selector
	copy(s[:], crypto.Keccak256([]byte(signature))[:SelectorLength])
	return s
}

func SelectorFromHex(value string) (Selector, error) {
	var s Selector
	raw := strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
	if len(raw) != SelectorLength*2 {
		return s, errors.Errorf("selector %s must be %d hex characters", value, SelectorLength*2)
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return s, errors.Wrapf(err, "selector %s is not valid hex", value)
	}
	copy(s[:], decoded)
	return s, nil
}

func IsSelectorLiteral(value string) bool {
	_, err := SelectorFromHex(value)
	return err == nil && strings.HasPrefix(strings.ToLower(value), "0x")
}

func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Selector) UnmarshalText(text []byte) error {
	parsed, err := SelectorFromHex(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SelectorSet is an unordered set of selectors; Sorted() gives the canonical order
type SelectorSet map[Selector]struct{}

func NewSelectorSet(selectors ...Selector) SelectorSet {
	set := make(SelectorSet, len(selectors))
	for _, s := range selectors {
		set.Add(s)
	}
	return set
}

func (set SelectorSet) Add(s Selector) {
	set[s] = struct{}{}
}

func (set SelectorSet) Remove(s Selector) {
	delete(set, s)
}

func (set SelectorSet) Contains(s Selector) bool {
	_, found := set[s]
	return found
}

func (set SelectorSet) Len() int {
	return len(set)
}

func (set SelectorSet) Sorted() []Selector {
	sorted := make([]Selector, 0, len(set))
	for s := range set {
		sorted = append(sorted, s)
	}
	SortSelectors(sorted)
	return sorted
}

func (set SelectorSet) Strings() []string {
	sorted := set.Sorted()
	out := make([]string, len(sorted))
	for i, s := range sorted {
		out[i] = s.String()
	}
	return out
}

func SortSelectors(selectors []Selector) {
	sort.Slice(selectors, func(i, j int) bool {
		return bytes.Compare(selectors[i][:], selectors[j][:]) < 0
	})
}

func ParseSelectorStrings(values []string) (SelectorSet, error) {
	set := NewSelectorSet()
	for _, v := range values {
		s, err := SelectorFromHex(v)
		if err != nil {
			return nil, err
		}
		set.Add(s)
	}
	return set, nil
}

// EntryKind classifies an include/exclude or initializer entry of the configuration document
type EntryKind int

const (
	InvalidEntry EntryKind = iota
	SelectorEntry
	SignatureEntry
	NameEntry
)

func ClassifyEntry(entry string) EntryKind {
	switch {
	case IsSelectorLiteral(entry):
		return SelectorEntry
	case isSignature(entry):
		return SignatureEntry
	case isIdentifier(entry):
		return NameEntry
	}
	return InvalidEntry
}

// FunctionName strips the parameter list of a signature
func FunctionName(entry string) string {
	if open := strings.Index(entry, "("); open > 0 {
		return entry[:open]
	}
	return entry
}

func isSignature(entry string) bool {
	open := strings.Index(entry, "(")
	return open > 0 && strings.HasSuffix(entry, ")") && isIdentifier(entry[:open]) && !strings.ContainsAny(entry, " \t")
}

func isIdentifier(entry string) bool {
	if entry == "" {
		return false
	}
	for i, r := range entry {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
