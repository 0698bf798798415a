package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"shuttle/internal/config"
	"shuttle/internal/daemon"
	"shuttle/internal/ipc"
	"shuttle/internal/queue"
	"shuttle/internal/stage"
	"shuttle/internal/testsupport"
	"shuttle/internal/workflow"
)

type idleHandler struct{ name string }

func (h idleHandler) Prepare(context.Context, *queue.Task) error { return nil }
func (h idleHandler) Execute(context.Context, *queue.Task) error { return nil }
func (h idleHandler) HealthCheck(context.Context) stage.Health   { return stage.Healthy(h.name) }

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	store := testsupport.MustOpenStore(t, cfg)
	logger := testsupport.NewLogger(t)

	mgr := workflow.NewManager(cfg, store, logger)
	mgr.ConfigureStages(workflow.StageSet{
		Transfer: idleHandler{name: "transfer"},
		Finalize: idleHandler{name: "finalize"},
	})

	d, err := daemon.New(cfg, store, logger, mgr, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		socketPath: cfg.Paths.SocketPath,
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIQueueCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	testsupport.NewTask(t, env.store, "clients/alpha/session-01.webm", "")

	errored := testsupport.NewTask(t, env.store, "clients/beta/session-02.webm", "")
	errored.SetError("transfer interrupted")
	if err := env.store.Update(ctx, errored); err != nil {
		t.Fatalf("update errored task: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if !strings.Contains(out, "Pending") || !strings.Contains(out, "Error") {
		t.Fatalf("unexpected queue status output: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "clients/alpha/session-01.webm") || !strings.Contains(out, "clients/beta/session-02.webm") {
		t.Fatalf("queue list missing tasks: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "retry"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue retry: %v", err)
	}
	if !strings.Contains(out, "Retried 1 errored tasks") {
		t.Fatalf("unexpected retry output: %q", out)
	}
	refreshed, err := env.store.GetByID(ctx, errored.ID)
	if err != nil {
		t.Fatalf("GetByID after retry: %v", err)
	}
	if refreshed == nil || refreshed.Status != queue.StatusPending {
		t.Fatalf("expected errored task retried to pending, got %+v", refreshed)
	}

	refreshed.SetError("transfer interrupted again")
	if err := env.store.Update(ctx, refreshed); err != nil {
		t.Fatalf("reset errored status: %v", err)
	}

	out, _, err = runCLI(t, []string{"queue", "clear", "--errored"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear --errored: %v", err)
	}
	if !strings.Contains(out, "Cleared 1 errored tasks") {
		t.Fatalf("unexpected clear errored output: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	if !strings.Contains(out, "Cleared") {
		t.Fatalf("unexpected clear output: %q", out)
	}

	out, _, err = runCLI(t, []string{"queue", "status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue status after clear: %v", err)
	}
	if !strings.Contains(out, "Queue is empty") {
		t.Fatalf("expected empty queue message, got %q", out)
	}
}

func TestCLIAddAndShowCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	source := filepath.Join(testsupport.BaseDir(env.cfg), "session.webm")
	testsupport.WriteFile(t, source, 1024)

	out, _, err := runCLI(t, []string{
		"add", source,
		"--remote-path", "clients/alpha/session.webm",
		"--client-name", "Alpha",
	}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out, "Queued upload as task #") {
		t.Fatalf("unexpected add output: %q", out)
	}

	tasks, err := env.store.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected one queued task, got %d", len(tasks))
	}

	out, _, err = runCLI(t, []string{"queue", "show", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	if !strings.Contains(out, "clients/alpha/session.webm") || !strings.Contains(out, "Alpha") {
		t.Fatalf("unexpected show output: %q", out)
	}

	_, _, err = runCLI(t, []string{"queue", "show", "42"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected show of missing task to fail")
	}
}

func TestCLIQueueRemove(t *testing.T) {
	env := setupCLITestEnv(t)

	task := testsupport.NewTask(t, env.store, "clients/alpha/remove-me.webm", "")

	out, _, err := runCLI(t, []string{"queue", "remove", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	if !strings.Contains(out, "Removed 1 tasks") {
		t.Fatalf("unexpected remove output: %q", out)
	}

	remaining, err := env.store.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if remaining != nil {
		t.Fatalf("expected task removed, found %+v", remaining)
	}

	if _, _, err := runCLI(t, []string{"queue", "remove", "zero"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected invalid id to fail")
	}
}
