/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cli implements the streamflow command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rulego/streamflow"
	"github.com/rulego/streamflow/connector"
	"github.com/rulego/streamflow/logger"
	"github.com/rulego/streamflow/plan"
	"github.com/rulego/streamflow/server"
	"github.com/rulego/streamflow/types"
	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

// eventsConnector is the name the --events file source is bound under.
const eventsConnector = "cli-events"

// BuildCLI returns the root command.
func BuildCLI() *cobra.Command {
	var configFile string
	rootCmd := &cobra.Command{
		Use:   "streamflow",
		Short: "Streaming SQL dataflow engine",
		Long: `streamflow runs compiled query plans as stage graphs over
unbounded event streams: filters, projections, windowed aggregates and
windowed joins, with an HTTP control plane to submit, watch and cancel flows.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (defaults apply when empty)")

	rootCmd.AddCommand(buildServeCommand(&configFile))
	rootCmd.AddCommand(buildRunCommand(&configFile))
	rootCmd.AddCommand(buildVersionCommand())
	return rootCmd
}

func buildServeCommand(configFile *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the engine with its HTTP control plane",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(*configFile, types.DefaultConfig())
			if err != nil {
				return err
			}
			if addr != "" {
				config.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, config, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func buildRunCommand(configFile *string) *cobra.Command {
	var (
		planFile   string
		eventsFile string
		timeout    time.Duration
		asTable    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a plan to completion and print its results",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig(*configFile, types.ReplayConfig())
			if err != nil {
				return err
			}
			return runPlan(config, runOptions{
				planFile:   planFile,
				eventsFile: eventsFile,
				timeout:    timeout,
				asTable:    asTable,
				out:        cmd.OutOrStdout(),
				logOut:     cmd.ErrOrStderr(),
			})
		},
	}
	cmd.Flags().StringVarP(&planFile, "plan", "p", "", "plan file (.yaml or .json)")
	cmd.Flags().StringVarP(&eventsFile, "events", "e", "", "JSON lines file feeding the plan's only source")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "cancel the flow after this long")
	cmd.Flags().BoolVar(&asTable, "table", true, "print results as a table")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func buildVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "streamflow", Version)
		},
	}
}

// loadConfig reads path over base. An empty path returns base.
func loadConfig(path string, base types.Config) (types.Config, error) {
	if path == "" {
		return base, nil
	}
	config, err := types.LoadConfig(path)
	if err != nil {
		return types.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return config, nil
}

func newLogger(config types.Config, out io.Writer) (logger.Logger, error) {
	level, err := logger.ParseLevel(config.Log.Level)
	if err != nil {
		return nil, err
	}
	return logger.NewLogger(level, out), nil
}

func serve(ctx context.Context, config types.Config, logOut io.Writer) error {
	log, err := newLogger(config, logOut)
	if err != nil {
		return err
	}
	engine, err := streamflow.New(streamflow.WithConfig(config), streamflow.WithLogger(log))
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := server.New(engine, config.Server)
	if err := srv.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type runOptions struct {
	planFile   string
	eventsFile string
	timeout    time.Duration
	asTable    bool
	out        io.Writer
	logOut     io.Writer
}

func runPlan(config types.Config, opts runOptions) error {
	p, err := plan.Load(opts.planFile)
	if err != nil {
		return err
	}
	log, err := newLogger(config, opts.logOut)
	if err != nil {
		return err
	}
	connectors := connector.NewDefaultRegistry()
	if opts.eventsFile != "" {
		if err := bindEvents(p, connectors, opts.eventsFile); err != nil {
			return err
		}
	}
	engine, err := streamflow.New(
		streamflow.WithConfig(config),
		streamflow.WithLogger(log),
		streamflow.WithConnectors(connectors),
	)
	if err != nil {
		return err
	}
	defer engine.Close()

	records, summary, err := engine.Collect(p, opts.timeout)
	if err != nil {
		return err
	}
	console := connector.NewConsoleSink(opts.out, opts.asTable)
	for _, rec := range records {
		if err := console.Push(context.Background(), rec); err != nil {
			return err
		}
	}
	if err := console.Close(); err != nil {
		return err
	}
	fmt.Fprintf(opts.out, "flow %s %s: %d records\n", summary.ID, summary.State, len(records))
	if summary.State == types.FlowError {
		return errors.New(summary.Error)
	}
	return nil
}

// bindEvents routes the plan's only source to a file of JSON lines.
func bindEvents(p *plan.Plan, connectors *connector.Registry, path string) error {
	var source *plan.Node
	for _, n := range p.Nodes {
		if n.Kind != plan.KindSource {
			continue
		}
		if source != nil {
			return fmt.Errorf("--events needs a plan with one source, found %s and %s", source.ID, n.ID)
		}
		source = n
	}
	if source == nil {
		return fmt.Errorf("plan has no source")
	}
	src, err := connector.NewFileSource(path)
	if err != nil {
		return err
	}
	if err := connectors.BindSource(eventsConnector, src); err != nil {
		_ = src.Close()
		return err
	}
	codec := ""
	if source.Connector != nil {
		codec = source.Connector.Codec
	}
	source.Connector = &plan.Connector{Type: eventsConnector, Codec: codec}
	return nil
}
