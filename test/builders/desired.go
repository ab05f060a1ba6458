// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package builders

import (
	"github.com/orbs-network/diamond-deployer/state"
)

type DesiredConfigurationBuilder struct {
	cfg *state.DesiredConfiguration
}

func DesiredConfiguration() *DesiredConfigurationBuilder {
	return &DesiredConfigurationBuilder{cfg: &state.DesiredConfiguration{
		ProtocolVersion: 1,
		Facets:          make(map[string]*state.FacetConfig),
	}}
}

func (d *DesiredConfigurationBuilder) WithProtocolVersion(version float64) *DesiredConfigurationBuilder {
	d.cfg.ProtocolVersion = version
	return d
}

func (d *DesiredConfigurationBuilder) WithProtocolInit(facet string, callback string) *DesiredConfigurationBuilder {
	d.cfg.ProtocolInitFacet = facet
	d.cfg.ProtocolCallback = callback
	return d
}

func (d *DesiredConfigurationBuilder) WithLockstep() *DesiredConfigurationBuilder {
	d.cfg.ProtocolLockstep = true
	return d
}

func (d *DesiredConfigurationBuilder) WithFacet(name string, facet *FacetConfigBuilder) *DesiredConfigurationBuilder {
	d.cfg.Facets[name] = facet.Build()
	return d
}

func (d *DesiredConfigurationBuilder) Build() *state.DesiredConfiguration {
	return d.cfg
}

type FacetConfigBuilder struct {
	cfg *state.FacetConfig
}

func Facet() *FacetConfigBuilder {
	return &FacetConfigBuilder{cfg: &state.FacetConfig{Versions: make(map[string]*state.FacetVersion)}}
}

func (f *FacetConfigBuilder) WithPriority(priority int) *FacetConfigBuilder {
	p := priority
	f.cfg.Priority = &p
	return f
}

func (f *FacetConfigBuilder) WithLibraries(names ...string) *FacetConfigBuilder {
	f.cfg.Libraries = append(f.cfg.Libraries, names...)
	return f
}

func (f *FacetConfigBuilder) WithVersion(key string, version *FacetVersionBuilder) *FacetConfigBuilder {
	f.cfg.Versions[key] = version.Build()
	return f
}

func (f *FacetConfigBuilder) Build() *state.FacetConfig {
	return f.cfg
}

type FacetVersionBuilder struct {
	v *state.FacetVersion
}

func Version() *FacetVersionBuilder {
	return &FacetVersionBuilder{v: &state.FacetVersion{}}
}

func (v *FacetVersionBuilder) DeployInit(initializer string) *FacetVersionBuilder {
	v.v.DeployInit = initializer
	return v
}

func (v *FacetVersionBuilder) UpgradeInit(initializer string) *FacetVersionBuilder {
	v.v.UpgradeInit = initializer
	return v
}

func (v *FacetVersionBuilder) From(versions ...float64) *FacetVersionBuilder {
	v.v.FromVersions = append(v.v.FromVersions, versions...)
	return v
}

func (v *FacetVersionBuilder) Callbacks(names ...string) *FacetVersionBuilder {
	v.v.Callbacks = append(v.v.Callbacks, names...)
	return v
}

func (v *FacetVersionBuilder) Include(entries ...string) *FacetVersionBuilder {
	v.v.DeployInclude = append(v.v.DeployInclude, entries...)
	return v
}

func (v *FacetVersionBuilder) Exclude(entries ...string) *FacetVersionBuilder {
	v.v.DeployExclude = append(v.v.DeployExclude, entries...)
	return v
}

func (v *FacetVersionBuilder) Build() *state.FacetVersion {
	return v.v
}
