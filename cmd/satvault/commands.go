package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"SatVault/internal/deploy"
	"SatVault/internal/movebin"
	"SatVault/internal/registry"
)

// bindRequest registers the coin request flags on cmd.
func bindRequest(cmd *cobra.Command, req *deploy.Request) {
	f := cmd.Flags()
	f.StringVar(&req.Module, "module", "", "module name, e.g. satxbtc")
	f.StringVar(&req.Name, "name", "", "coin display name")
	f.StringVar(&req.Symbol, "symbol", "", "coin ticker symbol")
	f.StringVar(&req.Description, "description", "", "coin description")
	f.StringVar(&req.IconURL, "icon-url", "", "icon URL or data URL")
	f.Uint8Var(&req.Decimals, "decimals", 9, "decimal precision")
}

// newDeployAssetCommand publishes one coin.
func newDeployAssetCommand(opts *rootOptions) *cobra.Command {
	var req deploy.Request

	cmd := &cobra.Command{
		Use:   "deploy-asset",
		Short: "Instantiate the coin template and publish it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			s, err := opts.openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			res, err := s.pipeline.Deploy(ctx, req)
			if res != nil {
				printResult(cmd.OutOrStdout(), res)
			}

			return recoveryHint(err)
		},
	}

	bindRequest(cmd, &req)

	return cmd
}

// newDeployBatchCommand publishes every coin of a manifest.
func newDeployBatchCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-batch <manifest.yaml>",
		Short: "Publish every coin listed in a manifest, one after another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			manifest, err := deploy.LoadManifest(args[0])
			if err != nil {
				return err
			}

			s, err := opts.openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			results, err := s.pipeline.DeployAll(ctx, manifest.Assets)
			for _, res := range results {
				printResult(cmd.OutOrStdout(), res)
			}

			return recoveryHint(err)
		},
	}
}

// newPublishPackageCommand publishes a prebuilt package.
func newPublishPackageCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "publish-package <dump.json>",
		Short: "Publish the output of `sui move build --dump-bytecode-as-base64`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			modules, deps, err := deploy.LoadDump(args[0])
			if err != nil {
				return err
			}

			s, err := opts.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			res, err := s.pipeline.PublishPackage(ctx, modules, deps, opts.cfg.Expectations)
			if res != nil {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "digest\t%s\n", res.Digest)
				fmt.Fprintf(w, "packageId\t%s\n", res.PackageID)
				for _, e := range opts.cfg.Expectations {
					id, _ := res.Objects.Get(e.Name)
					fmt.Fprintf(w, "%s\t%s\n", e.Name, id)
				}
				w.Flush()
			}

			return recoveryHint(err)
		},
	}
}

// newResolveCommand finishes a deployment from its digest.
func newResolveCommand(opts *rootOptions) *cobra.Command {
	var req deploy.Request

	cmd := &cobra.Command{
		Use:   "resolve <digest>",
		Short: "Re-poll a submitted digest and finish its deployment",
		Long: `Re-poll a submitted digest and finish its deployment.

Use after a finality timeout. The transaction is never resubmitted. When
--module is omitted the request fields are taken from the deployment
history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			digest := args[0]

			s, err := opts.openSession(ctx, true)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			if req.Module == "" {
				d, err := s.registry.Deployment(digest)
				if err != nil {
					return fmt.Errorf("no --module given:\n%w", err)
				}

				req.Module, req.Name, req.Symbol = d.Module, d.Name, d.Symbol
				if !cmd.Flags().Changed("decimals") {
					req.Decimals = d.Decimals
				}
			}

			res, err := s.pipeline.Recover(ctx, digest, req)
			if res != nil {
				printResult(cmd.OutOrStdout(), res)
			}

			return recoveryHint(err)
		},
	}

	bindRequest(cmd, &req)

	return cmd
}

// newInspectCommand prints the editable tables of a compiled module.
func newInspectCommand(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <module.mv>",
		Short: "Print the constants and identifiers of a compiled module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := deploy.ReadTemplate(args[0])
			if err != nil {
				return err
			}

			m, err := movebin.Decode(data)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), m.Describe())

			return nil
		},
	}
}

// newSetCommand upserts one definition.
func newSetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Write one definition to the definitions file and the registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			reg, persister, err := opts.stores()
			if err != nil {
				return err
			}
			defer reg.Close()

			return persister.Set(args[0], args[1])
		},
	}
}

// newGetCommand prints one definition.
func newGetCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print one definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, persister, err := opts.stores()
			if err != nil {
				return err
			}
			defer reg.Close()

			v, ok, err := persister.Lookup(args[0])
			if err != nil {
				return err
			}

			if !ok {
				return fmt.Errorf("%s is not defined", args[0])
			}

			fmt.Fprintln(cmd.OutOrStdout(), v)

			return nil
		},
	}
}

// newHistoryCommand lists recorded deployments.
func newHistoryCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded deployments, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := registry.Open(opts.cfg.Registry)
			if err != nil {
				return err
			}
			defer reg.Close()

			all, err := reg.Deployments()
			if err != nil {
				return err
			}

			printHistory(cmd.OutOrStdout(), all)

			return nil
		},
	}
}

// printResult writes a deployment result as aligned name/value pairs.
func printResult(out io.Writer, res *deploy.Result) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintf(w, "digest\t%s\n", res.Digest)
	fmt.Fprintf(w, "packageId\t%s\n", res.PackageID)
	fmt.Fprintf(w, "CoinMetadata\t%s\n", res.MetadataID)
	fmt.Fprintf(w, "TreasuryCap\t%s\n", res.TreasuryCapID)
	fmt.Fprintf(w, "UpgradeCap\t%s\n", res.UpgradeCapID)
	fmt.Fprintf(w, "typename\t%s\n", res.TypeName)

	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "warning\t%s\n", warning)
	}

	w.Flush()
}

// printHistory writes one line per deployment.
func printHistory(out io.Writer, all []*registry.Deployment) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "TIME\tSTATUS\tMODULE\tDIGEST\tPACKAGE\tSTAGE")
	for _, d := range all {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.PublishedAt.UTC().Format(time.RFC3339),
			d.Status,
			d.Module,
			d.Digest,
			d.PackageID,
			d.Stage,
		)
	}

	w.Flush()
}

// recoveryHint adds the follow-up command to errors that carry a digest.
func recoveryHint(err error) error {
	var stageErr *deploy.StageError
	if !errors.As(err, &stageErr) || stageErr.Digest == "" {
		return err
	}

	return fmt.Errorf("%w\nrun `satvault resolve %s` once the transaction is visible", err, stageErr.Digest)
}
