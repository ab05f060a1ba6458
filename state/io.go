// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package state

import (
	"bytes"
	"encoding/json"
	"github.com/BurntSushi/toml"
	"github.com/orbs-network/diamond-deployer/diamond"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	TOML Format = "toml"
)

func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	case ".toml":
		return TOML
	}
	return JSON
}

func Decode(format Format, data []byte, v interface{}) error {
	switch format {
	case YAML:
		return yaml.Unmarshal(data, v)
	case TOML:
		_, err := toml.Decode(string(data), v)
		return err
	}
	return json.Unmarshal(data, v)
}

func Encode(format Format, v interface{}) ([]byte, error) {
	switch format {
	case YAML:
		return yaml.Marshal(v)
	case TOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func ReadDocument(path string, v interface{}) ([]byte, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	if err := Decode(FormatOf(path), data, v); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return data, nil
}

// WriteDocument writes atomically using a temp file and rename
func WriteDocument(path string, v interface{}) error {
	data, err := Encode(FormatOf(path), v)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating directory %s", dir)
		}
	}

	tmp := path + ".tmp"
	if err := ioutil.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "writing temp file %s", tmp)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "renaming temp file to %s", path)
	}

	return nil
}

// LoadDesiredConfiguration reads and validates the configuration document. The raw bytes are
// returned as well so callers can fingerprint the exact input of a run.
func LoadDesiredConfiguration(path string) (*DesiredConfiguration, []byte, error) {
	var cfg DesiredConfiguration
	raw, err := ReadDocument(path, &cfg)
	if err != nil {
		return nil, nil, diamond.NewError(diamond.ConfigurationInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return &cfg, raw, nil
}

func ParseDesiredConfiguration(format Format, data []byte) (*DesiredConfiguration, error) {
	var cfg DesiredConfiguration
	if err := Decode(format, data, &cfg); err != nil {
		return nil, diamond.NewError(diamond.ConfigurationInvalid, errors.Wrap(err, "parsing desired configuration"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Store persists the deployed state between runs
type Store interface {
	Load() (*DeployedState, error)
	Save(state *DeployedState) error
}

type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

// Load returns an empty state when the file does not exist yet
func (f *FileStore) Load() (*DeployedState, error) {
	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		return NewDeployedState(), nil
	}
	var s DeployedState
	if _, err := ReadDocument(f.path, &s); err != nil {
		return nil, err
	}
	s.normalize()
	if _, err := s.SelectorOwners(); err != nil {
		return nil, errors.Wrapf(err, "deployed state %s is inconsistent", f.path)
	}
	return &s, nil
}

func (f *FileStore) Save(s *DeployedState) error {
	return WriteDocument(f.path, s)
}
