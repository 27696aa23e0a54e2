// Copyright (c) 2026 The ORCO Authors
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/orco-run/orco/pkg/adapter/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	passFile := filepath.Join(dir, "pass")
	require.NoError(t, os.WriteFile(passFile, []byte("secret"), 0o600))

	cfgPath := filepath.Join(dir, "config.yaml")
	yamlDoc := "database:\n" +
		"  backend: postgres\n" +
		"  host: 127.0.0.1\n" +
		"  port: 5432\n" +
		"  name: orco\n" +
		"  role: orco\n" +
		"  pass-file: " + passFile + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yamlDoc), 0o600))

	c, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Database.Backend)
	assert.Equal(t, config.CodecCBOR, c.Codec)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("database:\n  backend: mysql\n"), 0o600))

	_, err := config.Load(cfgPath)
	require.Error(t, err)
}

func TestDatabaseURLReadsPassFile(t *testing.T) {
	dir := t.TempDir()
	passFile := filepath.Join(dir, "pass")
	require.NoError(t, os.WriteFile(passFile, []byte("hunter2"), 0o600))

	d := config.Database{
		Host: "db.internal", Port: 5432, Name: "orco",
		Role: "orco", PassFile: passFile,
	}
	u, err := d.URL()
	require.NoError(t, err)
	assert.Contains(t, u, "db.internal:5432")
	assert.Contains(t, u, "orco")
}

func TestCodecChoiceNewDefaultsToCBOR(t *testing.T) {
	c, err := config.CodecChoice("").New()
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestCodecChoiceNewRejectsUnknown(t *testing.T) {
	_, err := config.CodecChoice("json").New()
	require.Error(t, err)
}
