// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package main

import (
	"context"
	"fmt"
	"github.com/orbs-network/diamond-deployer/bootstrap"
	"github.com/orbs-network/diamond-deployer/config"
	"github.com/orbs-network/diamond-deployer/instrumentation"
	"github.com/orbs-network/diamond-deployer/instrumentation/logfields"
	"github.com/orbs-network/diamond-deployer/services/deployment"
	"github.com/orbs-network/govnr"
	"github.com/orbs-network/scribe/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"syscall"
)

var (
	configFiles config.FilesPaths
	workDir     string
	pathToLog   string
	silentLog   bool
)

func main() {
	logger := instrumentation.GetBootstrapCrashLogger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("unexpected error in main goroutine", log.Error(errors.Errorf("unknown error: %v", r)))
			os.Exit(2)
		}
	}()

	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "diamond-deployer",
		Short:         "Deploys and upgrades diamond (EIP-2535) contracts from a configuration document",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().VarP(&configFiles, "config", "c", "path/to/config.json, may be repeated; later files override earlier ones")
	root.PersistentFlags().StringVar(&workDir, "workdir", ".", "directory holding diamond.json, artifacts/ and deployments/")
	root.PersistentFlags().StringVar(&pathToLog, "log", "", "path/to/deployer.log")
	root.PersistentFlags().BoolVar(&silentLog, "silent", false, "disable log output to stdout")

	root.AddCommand(
		runCommand(deployment.ModeDeploy, "Deploy the diamond and every configured facet, resuming an interrupted run"),
		runCommand(deployment.ModeUpgrade, "Upgrade the facets of an existing diamond to the configured versions"),
		&cobra.Command{
			Use:   "plan",
			Short: "Show the diamond cut the next run would perform, without touching the chain",
			RunE: withDeployer(func(ctx context.Context, o *deployment.Orchestrator) error {
				report, err := o.Plan(ctx)
				if err != nil {
					return err
				}
				bootstrap.WritePlan(os.Stdout, report)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show deployed facet versions and open approval steps",
			RunE: withDeployer(func(ctx context.Context, o *deployment.Orchestrator) error {
				report, err := o.Status(ctx)
				if err != nil {
					return err
				}
				bootstrap.WriteStatus(os.Stdout, report)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println(config.GetVersion())
			},
		},
	)

	return root
}

func runCommand(mode deployment.Mode, description string) *cobra.Command {
	return &cobra.Command{
		Use:   mode.String(),
		Short: description,
		RunE: withDeployer(func(ctx context.Context, o *deployment.Orchestrator) error {
			result, err := o.Run(ctx, mode)
			if result != nil {
				bootstrap.WriteResult(os.Stdout, result)
			}
			return err
		}),
	}
}

// withDeployer loads the configuration, wires a deployer and cancels the command on SIGINT/SIGTERM
func withDeployer(f func(ctx context.Context, o *deployment.Orchestrator) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.GetDeployerConfigFromFiles(configFiles, workDir)
		if err != nil {
			return errors.Wrap(err, "error reading configuration")
		}

		logger := instrumentation.GetLogger(pathToLog, silentLog, cfg)

		deployer, err := bootstrap.NewDeployer(cfg, nil, logger)
		if err != nil {
			logger.Error("failed to start deployer", log.Error(err))
			return err
		}
		defer deployer.Shutdown()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(signals)
		govnr.Once(logfields.GovnrErrorer(logger), func() {
			select {
			case <-signals:
				logger.Info("interrupted, stopping after the current step")
				cancel()
			case <-ctx.Done():
			}
		})

		return f(ctx, deployer.Orchestrator())
	}
}
