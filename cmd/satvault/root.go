package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"SatVault/internal/checker"
	"SatVault/internal/config"
	"SatVault/internal/deploy"
	"SatVault/internal/ledger"
	"SatVault/internal/logger"
	"SatVault/internal/pkginfo"
	"SatVault/internal/publish"
	"SatVault/internal/registry"
)

// rootOptions holds the global flags.
type rootOptions struct {
	configPath  string
	network     string
	rpcURL      string
	account     uint32
	template    string
	packageInfo string
	registry    string
	logLevel    string

	cfg *config.Config // cfg is loaded before every command
}

// newRootCommand creates the satvault command tree.
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "satvault",
		Short:         "Instantiate and publish SatVault coin modules on Sui",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "satvault.yaml", "configuration file")
	f.StringVar(&opts.network, "network", "", "network: mainnet, testnet, devnet or localnet")
	f.StringVar(&opts.rpcURL, "rpc-url", "", "JSON-RPC endpoint, overrides --network")
	f.Uint32Var(&opts.account, "account", 0, "mnemonic derivation account index")
	f.StringVar(&opts.template, "template", "", "compiled coin template (raw or hex)")
	f.StringVar(&opts.packageInfo, "package-info", "", "definitions file to update")
	f.StringVar(&opts.registry, "registry", "", "deployment history directory")
	f.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(
		newDeployAssetCommand(opts),
		newDeployBatchCommand(opts),
		newPublishPackageCommand(opts),
		newResolveCommand(opts),
		newInspectCommand(opts),
		newSetCommand(opts),
		newGetCommand(opts),
		newHistoryCommand(opts),
	)

	return cmd
}

// load reads the configuration and applies the flags that were set.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("network") {
		cfg.Network = o.network
	}
	if flags.Changed("rpc-url") {
		cfg.RPCURL = o.rpcURL
	}
	if flags.Changed("account") {
		cfg.AccountIndex = o.account
	}
	if flags.Changed("template") {
		cfg.Template = o.template
	}
	if flags.Changed("package-info") {
		cfg.PackageInfo = o.packageInfo
	}
	if flags.Changed("registry") {
		cfg.Registry = o.registry
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Setup(os.Stderr, level)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	o.cfg = cfg

	return nil
}

// stores opens the registry and a persister writing to the definitions
// file and the registry. The caller closes the registry.
func (o *rootOptions) stores() (*registry.Registry, *pkginfo.Persister, error) {
	reg, err := registry.Open(o.cfg.Registry)
	if err != nil {
		return nil, nil, err
	}

	return reg, pkginfo.NewPersister(pkginfo.NewFile(o.cfg.PackageInfo), reg), nil
}

// session is everything a publishing command needs.
type session struct {
	pipeline *deploy.Pipeline
	registry *registry.Registry
	checker  *checker.Checker
	signer   *ledger.Keypair
}

// openSession wires a pipeline to the configured ledger. The coin template
// is loaded only when withTemplate is set.
func (o *rootOptions) openSession(ctx context.Context, withTemplate bool) (*session, error) {
	cfg := o.cfg

	signer, err := cfg.Keypair()
	if err != nil {
		return nil, err
	}

	url, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}

	layout, err := cfg.TemplateLayout()
	if err != nil {
		return nil, err
	}

	var tmpl []byte
	if withTemplate {
		if tmpl, err = deploy.ReadTemplate(cfg.Template); err != nil {
			return nil, err
		}
	}

	reg, persister, err := o.stores()
	if err != nil {
		return nil, err
	}

	s := &session{registry: reg, signer: signer}

	opts := deploy.Options{
		Template:     tmpl,
		Layout:       layout,
		Submitter:    publish.NewSubmitter(ledger.NewClient(url), signer, cfg.Publish),
		Expectations: cfg.Expectations,
		Persister:    persister,
		History:      reg,
	}

	if withTemplate && cfg.Checker.Path != "" {
		s.checker, err = checker.Open(ctx, cfg.Checker.Path, cfg.Checker.GasLimit)
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		opts.Verifier = s.checker
	}

	s.pipeline, err = deploy.New(opts)
	if err != nil {
		s.close(ctx)
		return nil, err
	}

	logger.Info("session ready", "endpoint", url, "signer", signer.Address(), "registry", cfg.Registry)

	return s, nil
}

// close releases the checker and the registry.
func (s *session) close(ctx context.Context) {
	if s.checker != nil {
		if err := s.checker.Close(ctx); err != nil {
			logger.Warn("close checker", "error", err)
		}
	}

	if err := s.registry.Close(); err != nil {
		logger.Warn("close registry", "error", err)
	}
}
