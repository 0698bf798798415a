// Package daemonrun wires together the daemon process runtime: logging,
// persistence, storage access, workflow stages, IPC, and signal handling.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"shuttle/internal/config"
	"shuttle/internal/daemon"
	"shuttle/internal/ipc"
	"shuttle/internal/logging"
	"shuttle/internal/monitor"
	"shuttle/internal/notifications"
	"shuttle/internal/queue"
	"shuttle/internal/spool"
	"shuttle/internal/storage"
	"shuttle/internal/transfer"
	"shuttle/internal/uploader"
	"shuttle/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the shuttle daemon runtime loop and blocks until a shutdown
// signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "shuttle.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	storageClient, err := storage.NewClient(cfg)
	if err != nil {
		logger.Error("init storage client", logging.Error(err))
		return err
	}

	spoolManager, err := spool.NewManager(cfg)
	if err != nil {
		logger.Error("init spool manager", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)
	workflowManager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	registerStages(workflowManager, cfg, store, storageClient, spoolManager, logger)

	recovery := workflow.NewRecovery(cfg, store, storageClient, spoolManager, logger)
	uploadMonitor := monitor.New(cfg, store, spoolManager, notifier, logger)

	d, err := daemon.New(cfg, store, logger, workflowManager, uploadMonitor, recovery)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
			logging.String(logging.FieldImpact, "daemon may not process uploads"),
		)
	}

	<-signalCtx.Done()
	logger.Info("shuttle daemon shutting down")
	return nil
}

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, client storage.Client, spoolManager *spool.Manager, logger *slog.Logger) {
	if mgr == nil || cfg == nil {
		return
	}

	up := uploader.New(cfg, logger)
	hook := uploader.NewHook(cfg, logger)

	mgr.ConfigureStages(workflow.StageSet{
		Transfer: transfer.NewStage(cfg, store, client, spoolManager, up, logger),
		Finalize: transfer.NewFinalizer(cfg, store, spoolManager, hook, logger),
	})
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
