// Command bb_runner serves the buildbarn.runner.Runner gRPC service over
// a Unix domain socket, executing each Run request inside a transient
// Linux sandbox.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/perfinion/bb-runner/internal/config"
	"github.com/perfinion/bb-runner/internal/logger"
	"github.com/perfinion/bb-runner/internal/runner"
	"github.com/perfinion/bb-runner/internal/runnerpb"
	"github.com/perfinion/bb-runner/internal/sandbox"
)

func main() {
	// The "__pid1" hidden subcommand is never reached through cobra: it
	// is dispatched before any flag parsing so that the re-exec'd
	// trampoline (SPEC_FULL.md §4.M) pays no cobra/config-loading
	// overhead and can't be confused by user-supplied flags on the
	// original command line.
	if len(os.Args) > 1 && os.Args[1] == "__pid1" {
		sandbox.RunPID1()
		return
	}

	root := &cobra.Command{
		Use:   "bb_runner",
		Short: "Buildbarn-compatible remote execution worker runner",
		RunE:  serve,
	}
	root.Flags().String("config", "/etc/bb_runner/config.json", "path to the JSON configuration document")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, args []string) error {
	logger.Init()

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.RemoveAll(cfg.GRPCListenPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket %s: %w", cfg.GRPCListenPath, err)
	}
	lis, err := net.Listen("unix", cfg.GRPCListenPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCListenPath, err)
	}

	grpcServer := grpc.NewServer()
	svc := runner.New(cfg)
	runnerpb.RegisterRunnerServer(grpcServer, svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bb_runner listening", "socket", cfg.GRPCListenPath, "numCpus", cfg.NumCPUs)
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		grpcServer.GracefulStop()
		svc.Close()
		return nil
	case err := <-errCh:
		return err
	}
}
