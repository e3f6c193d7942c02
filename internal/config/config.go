// Package config loads the deployment configuration: defaults, then an
// optional YAML file, then environment overrides. Command-line flags are
// applied last by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"SatVault/internal/ledger"
	"SatVault/internal/movebin"
	"SatVault/internal/publish"
	"SatVault/internal/resolve"
	"SatVault/internal/template"
)

// Environment variables read by Load.
const (
	EnvMnemonic     = "MNEMONICS"
	EnvNetwork      = "NETWORK"
	EnvAccountIndex = "ACCOUNT_INDEX"
	EnvRPCURL       = "SATVAULT_RPC_URL"
)

// ErrNoMnemonic is returned when signing is needed but no mnemonic is set.
var ErrNoMnemonic = errors.New("no mnemonic configured (set " + EnvMnemonic + ")")

// Slot configures one template constant.
type Slot struct {
	Index int    `yaml:"index"` // Index is the constant-pool position
	Name  string `yaml:"name"`  // Name is the advisory current value
	Type  string `yaml:"type"`  // Type is the constant type, e.g. "string" or "u8"
}

// Layout configures where the template keeps its parameters.
// Omitted slots keep the built-in layout.
type Layout struct {
	Symbol      *Slot  `yaml:"symbol,omitempty"`
	Name        *Slot  `yaml:"name,omitempty"`
	Description *Slot  `yaml:"description,omitempty"`
	IconURL     *Slot  `yaml:"icon_url,omitempty"`
	Decimals    *Slot  `yaml:"decimals,omitempty"`
	Placeholder string `yaml:"placeholder,omitempty"`
}

// Checker configures the optional verifier gate.
type Checker struct {
	Path     string `yaml:"path"`      // Path is the verifier WASM file; empty disables the gate
	GasLimit uint64 `yaml:"gas_limit"` // GasLimit bounds one verification
}

// Config is the full deployment configuration.
type Config struct {
	Network      string               `yaml:"network"`       // Network selects a public fullnode
	RPCURL       string               `yaml:"rpc_url"`       // RPCURL overrides the network endpoint
	Mnemonic     string               `yaml:"-"`             // Mnemonic is only read from the environment
	AccountIndex uint32               `yaml:"account_index"` // AccountIndex selects the derivation account
	Template     string               `yaml:"template"`      // Template is the compiled coin template
	PackageInfo  string               `yaml:"package_info"`  // PackageInfo is the definitions file
	Registry     string               `yaml:"registry"`      // Registry is the deployment history directory
	LogLevel     string               `yaml:"log_level"`     // LogLevel is debug, info, warn or error
	Layout       Layout               `yaml:"layout"`        // Layout overrides template slots
	Publish      publish.Config       `yaml:"publish"`       // Publish bounds gas and polling
	Expectations resolve.Expectations `yaml:"expectations"`  // Expectations are the objects to resolve
	Checker      Checker              `yaml:"checker"`       // Checker configures the verifier gate
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Network:      "testnet",
		Template:     "template.mv",
		PackageInfo:  filepath.Join("scripts", "utils", "packageInfo.ts"),
		Registry:     ".satvault",
		LogLevel:     "info",
		Publish:      publish.DefaultConfig(),
		Expectations: resolve.CoinExpectations(),
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config:\n%w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s:\n%w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvMnemonic); v != "" {
		c.Mnemonic = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvNetwork); v != "" {
		c.Network = v
	}

	if v := os.Getenv(EnvRPCURL); v != "" {
		c.RPCURL = v
	}

	if v := os.Getenv(EnvAccountIndex); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%s=%q:\n%w", EnvAccountIndex, v, err)
		}
		c.AccountIndex = uint32(n)
	}

	return nil
}

// Validate checks the values that every command relies on.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		if _, err := ledger.FullnodeURL(c.Network); err != nil {
			return err
		}
	}

	if c.Publish.GasBudget == 0 {
		return errors.New("publish.gas_budget must be positive")
	}

	if c.Publish.PollAttempts <= 0 {
		return errors.New("publish.poll_attempts must be positive")
	}

	if len(c.Expectations) == 0 {
		return errors.New("no expectations configured")
	}

	if _, err := c.TemplateLayout(); err != nil {
		return err
	}

	return nil
}

// Endpoint returns the JSON-RPC URL: RPCURL when set, else the network's fullnode.
func (c *Config) Endpoint() (string, error) {
	if c.RPCURL != "" {
		return c.RPCURL, nil
	}

	return ledger.FullnodeURL(c.Network)
}

// Keypair derives the signing key from the mnemonic.
func (c *Config) Keypair() (*ledger.Keypair, error) {
	if c.Mnemonic == "" {
		return nil, ErrNoMnemonic
	}

	return ledger.DeriveKeypair(c.Mnemonic, c.AccountIndex)
}

// TemplateLayout merges the configured slots over the built-in layout.
func (c *Config) TemplateLayout() (template.Layout, error) {
	l := template.DefaultLayout()

	slots := []struct {
		name string
		cfg  *Slot
		dst  *template.Slot
	}{
		{"symbol", c.Layout.Symbol, &l.Symbol},
		{"name", c.Layout.Name, &l.Name},
		{"description", c.Layout.Description, &l.Description},
		{"icon_url", c.Layout.IconURL, &l.IconURL},
		{"decimals", c.Layout.Decimals, &l.Decimals},
	}

	for _, s := range slots {
		if s.cfg == nil {
			continue
		}

		kind, err := movebin.ParseKind(s.cfg.Type)
		if err != nil {
			return template.Layout{}, fmt.Errorf("layout.%s:\n%w", s.name, err)
		}

		if s.cfg.Index < 0 {
			return template.Layout{}, fmt.Errorf("layout.%s: negative index %d", s.name, s.cfg.Index)
		}

		*s.dst = template.Slot{Index: s.cfg.Index, Name: s.cfg.Name, Type: kind}
	}

	if c.Layout.Placeholder != "" {
		if !template.ValidIdentifier(c.Layout.Placeholder) {
			return template.Layout{}, fmt.Errorf("layout.placeholder: %w: %q", template.ErrInvalidIdentifier, c.Layout.Placeholder)
		}
		l.Placeholder = c.Layout.Placeholder
	}

	return l, nil
}
