// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.
//
// This file is derived from gxp/config.go's DefaultConfig/init pattern
// (2018/06/04): a package-level default struct, a home-directory resolution
// step run once at init, and a TOML-marshaled Config type a node loads and
// persists.

// Package config resolves node configuration with flag > config.toml >
// default precedence; no environment variable is consulted (HOME only
// locates the default data directory). The resolved value is persisted to
// a TOML file under the data directory so a later run (or a
// dumpconfig-style inspection) can see exactly what was in force.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/naoina/toml"
)

// DefaultConfig mirrors gxp.DefaultConfig: a package-level value naming
// every default, resolved once at init for the home-directory-dependent
// fields.
var DefaultConfig = Config{
	P2PPort:       9000,
	RPCPort:       9001,
	P2PBindAddr:   "0.0.0.0",
	RPCBindAddr:   "127.0.0.1",
	LocalTest:     false,
	BootstrapSeeds: []string{
		"seed1.knotcoin.network:9000",
		"seed2.knotcoin.network:9000",
	},
}

func init() {
	home := os.Getenv("HOME")
	if home == "" {
		if u, err := user.Current(); err == nil {
			home = u.HomeDir
		}
	}
	if runtime.GOOS == "windows" {
		DefaultConfig.DataDir = filepath.Join(home, "AppData", "Knotcoin", "mainnet")
	} else {
		DefaultConfig.DataDir = filepath.Join(home, ".knotcoin", "mainnet")
	}
}

// Config is the full resolved node configuration (spec.md §6's
// "Configuration" list).
type Config struct {
	DataDir        string   `toml:",omitempty"`
	P2PBindAddr    string
	P2PPort        int
	RPCBindAddr    string `toml:"-"` // always 127.0.0.1; never externally configurable (spec.md §6)
	RPCPort        int
	BootstrapSeeds []string
	LocalTest      bool `toml:",omitempty"`
}

// ChainDataDir is the badger store's on-disk location under DataDir.
func (c *Config) ChainDataDir() string { return filepath.Join(c.DataDir, "chaindata") }

// PeersFile is the address book's on-disk location under DataDir.
func (c *Config) PeersFile() string { return filepath.Join(c.DataDir, "peers.json") }

// CookieFile is the RPC bearer-token file's on-disk location under DataDir.
func (c *Config) CookieFile() string { return filepath.Join(c.DataDir, ".cookie") }

// ConfigFile is where Load/Save read and write the resolved TOML document.
func (c *Config) ConfigFile() string { return filepath.Join(c.DataDir, "config.toml") }

// Load reads a previously-saved config.toml under dataDir, if any, layering
// it over DefaultConfig. A missing file is not an error: the caller then
// applies command-line flags on top of the (possibly still-default) result.
func Load(dataDir string) (*Config, error) {
	cfg := DefaultConfig
	cfg.DataDir = dataDir
	path := cfg.ConfigFile()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.DataDir = dataDir // dataDir is set by the caller, never by the file itself
	return &cfg, nil
}

// Save persists cfg as TOML under its own DataDir, creating the directory
// if necessary.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(c.ConfigFile(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

// EnsureCookie loads the RPC bearer token from CookieFile, generating a
// fresh 64-hex-char token on first run (spec.md §6: ".cookie (64 hex chars,
// mode 0600)"). Every later invocation against the same data_dir reuses the
// same token until the file is removed.
func (c *Config) EnsureCookie() (string, error) {
	path := c.CookieFile()
	if b, err := os.ReadFile(path); err == nil {
		return string(b), nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return "", err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return "", err
	}
	return token, nil
}
