// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config is an adapter which allows a host process embedding
// this runtime to describe its Store's backend and connection settings
// in a YAML file, instead of wiring Go literals by hand. It is
// deliberately narrow: registering computations, CLI wrappers, and any
// REST surface are out of scope for this module (see SPEC_FULL.md), so
// this package only carries what a Store needs to come up.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/orco-run/orco/pkg/adapter/codec"
	"gopkg.in/yaml.v3"
)

// Config contains the settings required to open a Store and choose
// the codec used for its opaque result/config payloads. Kept as
// primitive fields and structs local to this package (not core model
// types) so the configuration shape may evolve independently of the
// core layer, the same discipline the teacher's Config struct follows.
type Config struct {
	Database Database
	Codec    CodecChoice `yaml:"codec"`
}

// Database contains the database related configuration settings.
// Backend selects which Store adapter is constructed from these
// settings: "postgres", "sqlite", or "memory".
type Database struct {
	Backend  string // "postgres", "sqlite", or "memory"
	Host     string // domain name or IP address of the DBMS server
	Port     int    // port number of the DBMS server
	Name     string // database name, or file path for sqlite
	Role     string // role/username for connecting to the database
	PassFile string `yaml:"pass-file"` // path of the password file
}

// URL builds a postgresql:// connection string from d, reading the
// role's password from PassFile. Only meaningful when Backend is
// "postgres".
func (d Database) URL() (string, error) {
	pass, err := os.ReadFile(d.PassFile)
	if err != nil {
		return "", fmt.Errorf("reading pass-file: %w", err)
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(d.Role, string(pass)),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	return u.String(), nil
}

// CodecChoice names which codec.Codec implementation should serialize
// the opaque result/config byte payloads. Currently only "cbor" is
// implemented; the field exists so a future codec may be selected
// without changing the Store adapters.
type CodecChoice string

// These constants enumerate the supported codec choices.
const (
	CodecCBOR CodecChoice = "cbor"
)

// New instantiates the codec.Codec named by cc.
func (cc CodecChoice) New() (codec.Codec, error) {
	switch cc {
	case "", CodecCBOR:
		return codec.CBOR(), nil
	default:
		return nil, fmt.Errorf("unknown codec choice %q", cc)
	}
}

// Load function loads, validates, and normalizes the configuration
// file and returns its settings as an instance of the Config struct.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	c := &Config{}
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("unmarshalling yaml: %w", err)
	}
	if err = c.ValidateAndNormalize(); err != nil {
		return nil, fmt.Errorf("validating configs: %w", err)
	}
	return c, nil
}

// ValidateAndNormalize validates the configuration settings and
// returns an error if they were not acceptable. It also replaces a
// zero Codec with the default CBOR choice.
func (c *Config) ValidateAndNormalize() error {
	switch c.Database.Backend {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unsupported database backend %q", c.Database.Backend)
	}
	if c.Codec == "" {
		c.Codec = CodecCBOR
	}
	return nil
}
