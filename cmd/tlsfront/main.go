// Copyright 2024 The tlsfront Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the entry point of the tlsfront command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/KimMachineGun/automemlimit/memlimit"

	"github.com/tlsfront/tlsfront/admin"
	"github.com/tlsfront/tlsfront/config"
	"github.com/tlsfront/tlsfront/control"
	"github.com/tlsfront/tlsfront/proxy"
	"github.com/tlsfront/tlsfront/routetable"
	"github.com/tlsfront/tlsfront/tlscontext"
)

// version is set at build time via -ldflags; "dev" means a dev build.
var version = "dev"

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tlsfront",
		Short: "tlsfront is a TLS-terminating, SNI-routed HTTP reverse proxy front end",
		Long: `tlsfront terminates TLS for a set of hosted applications, chooses the
certificate to present per connection from each ClientHello's SNI, and
routes the decrypted request to one of that application's backend
instances by longest matching path prefix. The routing table and
certificate store can be reconfigured at runtime without restarting
the process.`,
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tlsfront version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var (
		configPath string
		logFile    string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run tlsfront in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logFile, debug)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "tlsfront.toml", "path to the TOML bootstrap config")
	flags.StringVar(&logFile, "log-file", "", "rotated log file path (stdout only if empty)")
	flags.BoolVar(&debug, "debug", false, "enable debug-level logging")
	return cmd
}

func run(configPath, logFile string, debug bool) error {
	// Match the Linux container's CPU/memory quota before anything
	// else starts, so runtime.GOMAXPROCS and the soft memory limit
	// reflect the cgroup rather than the host.
	undoMaxProcs, err := maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	defer undoMaxProcs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tlsfront: failed to set GOMAXPROCS: %v\n", err)
	}
	_, _ = memlimit.SetGoMemLimitWithOpts(
		memlimit.WithProvider(
			memlimit.ApplyFallback(
				memlimit.FromCgroup,
				memlimit.FromSystem,
			),
		),
	)

	log, err := buildLogger(logFile, debug)
	if err != nil {
		return fmt.Errorf("tlsfront: building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	bootstrap, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := bootstrap.Validate(); err != nil {
		return err
	}

	defaultCert, err := tlscontext.LoadCertificate(bootstrap.DefaultCertPath, bootstrap.DefaultKeyPath)
	if err != nil {
		return fmt.Errorf("tlsfront: loading default certificate: %w", err)
	}
	store := tlscontext.NewStore(bootstrap.DefaultHostname, defaultCert)
	table := routetable.New()

	commands := make(chan control.Command, 64)
	statuses := make(chan control.Status, 64)

	server := proxy.New(bootstrap.Listen, store, table, log)
	server.Commands = commands
	server.StatusCh = statuses

	adminSrv := admin.New(bootstrap.AdminListen, table, log)

	seedBootstrap(commands, bootstrap)

	go observeStatuses(statuses, adminSrv, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting tlsfront",
		zap.String("version", version),
		zap.String("listen", bootstrap.Listen),
		zap.String("admin_listen", bootstrap.AdminListen),
	)
	return server.Run(ctx, adminSrv)
}

// seedBootstrap enqueues the bootstrap file's initial fronts and
// instances as ordinary AddFront/AddInstance commands, so startup
// seeding and runtime reconfiguration flow through the exact same
// single-writer path instead of a separate direct-install codepath.
func seedBootstrap(commands chan<- control.Command, b *config.Bootstrap) {
	for _, f := range b.Fronts {
		commands <- control.AddFront{Front: f.Front()}
	}
	for _, i := range b.Instances {
		commands <- control.AddInstance{Instance: i.Instance()}
	}
}

func observeStatuses(statuses <-chan control.Status, adminSrv *admin.Server, log *zap.Logger) {
	for status := range statuses {
		adminSrv.ObserveStatus(status.String())
		log.Debug("command applied", zap.Stringer("status", status))
	}
}
