// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package state

import (
	"github.com/orbs-network/diamond-deployer/diamond"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DesiredConfiguration is the declared target of a run. It is not mutated once loaded.
type DesiredConfiguration struct {
	ProtocolVersion   float64                 `json:"protocolVersion" yaml:"protocolVersion" toml:"protocolVersion"`
	ProtocolInitFacet string                  `json:"protocolInitFacet,omitempty" yaml:"protocolInitFacet,omitempty" toml:"protocolInitFacet,omitempty"`
	ProtocolCallback  string                  `json:"protocolCallback,omitempty" yaml:"protocolCallback,omitempty" toml:"protocolCallback,omitempty"`
	ProtocolLockstep  bool                    `json:"protocolLockstep,omitempty" yaml:"protocolLockstep,omitempty" toml:"protocolLockstep,omitempty"`
	Facets            map[string]*FacetConfig `json:"facets" yaml:"facets" toml:"facets"`
}

type FacetConfig struct {
	Priority  *int                     `json:"priority,omitempty" yaml:"priority,omitempty" toml:"priority,omitempty"`
	Libraries []string                 `json:"libraries,omitempty" yaml:"libraries,omitempty" toml:"libraries,omitempty"`
	Versions  map[string]*FacetVersion `json:"versions" yaml:"versions" toml:"versions"`
}

type FacetVersion struct {
	DeployInit    string    `json:"deployInit,omitempty" yaml:"deployInit,omitempty" toml:"deployInit,omitempty"`
	UpgradeInit   string    `json:"upgradeInit,omitempty" yaml:"upgradeInit,omitempty" toml:"upgradeInit,omitempty"`
	FromVersions  []float64 `json:"fromVersions,omitempty" yaml:"fromVersions,omitempty" toml:"fromVersions,omitempty"`
	Callbacks     []string  `json:"callbacks,omitempty" yaml:"callbacks,omitempty" toml:"callbacks,omitempty"`
	DeployInclude []string  `json:"deployInclude,omitempty" yaml:"deployInclude,omitempty" toml:"deployInclude,omitempty"`
	DeployExclude []string  `json:"deployExclude,omitempty" yaml:"deployExclude,omitempty" toml:"deployExclude,omitempty"`
}

// DeclaredVersion is one row of a facet's version table with its key parsed
type DeclaredVersion struct {
	Number float64
	*FacetVersion
}

func (v DeclaredVersion) UpgradesFrom(version float64) bool {
	for _, from := range v.FromVersions {
		if from == version {
			return true
		}
	}
	return false
}

func ParseVersion(key string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, strconv.ErrRange
	}
	return v, nil
}

func FormatVersion(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// VersionTable returns the declared versions in ascending order. Keys that do not parse are skipped,
// Validate reports them.
func (f *FacetConfig) VersionTable() []DeclaredVersion {
	table := make([]DeclaredVersion, 0, len(f.Versions))
	for key, row := range f.Versions {
		number, err := ParseVersion(key)
		if err != nil {
			continue
		}
		if row == nil {
			row = &FacetVersion{}
		}
		table = append(table, DeclaredVersion{Number: number, FacetVersion: row})
	}
	sort.Slice(table, func(i, j int) bool {
		return table[i].Number < table[j].Number
	})
	return table
}

func (f *FacetConfig) HasPriority() bool {
	return f != nil && f.Priority != nil
}

// FacetNames returns the configured facet names sorted by name
func (c *DesiredConfiguration) FacetNames() []string {
	names := make([]string, 0, len(c.Facets))
	for name := range c.Facets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *DesiredConfiguration) Facet(name string) (*FacetConfig, bool) {
	f, found := c.Facets[name]
	return f, found && f != nil
}

// Validate reports every structural problem in the document as one ConfigurationInvalid error
func (c *DesiredConfiguration) Validate() error {
	var problems diamond.Problems

	if c.ProtocolVersion < 0 || math.IsNaN(c.ProtocolVersion) {
		problems.Addf("protocolVersion must be a non-negative number")
	}

	if len(c.Facets) == 0 {
		problems.Addf("at least one facet is required")
	}

	if c.ProtocolInitFacet != "" {
		if _, found := c.Facet(c.ProtocolInitFacet); !found {
			problems.Addf("protocolInitFacet '%s' is not a declared facet", c.ProtocolInitFacet)
		}
	}

	for _, name := range c.FacetNames() {
		facet := c.Facets[name]
		prefix := "facet '" + name + "'"

		if strings.TrimSpace(name) == "" {
			problems.Addf("facet names must not be empty")
			continue
		}
		if facet == nil {
			problems.Addf("%s: definition is empty", prefix)
			continue
		}
		if facet.Priority != nil && *facet.Priority < 0 {
			problems.Addf("%s: priority must not be negative", prefix)
		}
		for _, lib := range facet.Libraries {
			if strings.TrimSpace(lib) == "" {
				problems.Addf("%s: library names must not be empty", prefix)
			}
		}
		if len(facet.Versions) == 0 {
			problems.Addf("%s: at least one version is required", prefix)
			continue
		}

		declared := make(map[float64]string)
		for key := range facet.Versions {
			number, err := ParseVersion(key)
			if err != nil {
				problems.Addf("%s: version key '%s' is not a non-negative number", prefix, key)
				continue
			}
			if other, dup := declared[number]; dup {
				problems.Addf("%s: version keys '%s' and '%s' declare the same version", prefix, other, key)
				continue
			}
			declared[number] = key
		}

		for _, version := range facet.VersionTable() {
			vprefix := prefix + " version " + FormatVersion(version.Number)
			for _, from := range version.FromVersions {
				if from >= version.Number {
					problems.Addf("%s: fromVersions entry %s must be lower than the version itself", vprefix, FormatVersion(from))
				}
			}
			for _, entry := range append(append([]string{}, version.DeployInclude...), version.DeployExclude...) {
				if diamond.ClassifyEntry(entry) == diamond.InvalidEntry {
					problems.Addf("%s: '%s' is neither a function name, a signature nor a 4 byte selector", vprefix, entry)
				}
			}
			for _, init := range []string{version.DeployInit, version.UpgradeInit} {
				if kind := diamond.ClassifyEntry(init); init != "" && kind != diamond.NameEntry && kind != diamond.SignatureEntry {
					problems.Addf("%s: initializer '%s' must be a function name or signature", vprefix, init)
				}
			}
			for _, cb := range version.Callbacks {
				if strings.TrimSpace(cb) == "" {
					problems.Addf("%s: callback names must not be empty", vprefix)
				}
			}
		}
	}

	return problems.Err("desired configuration")
}
