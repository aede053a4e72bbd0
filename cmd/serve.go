package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issuetracker/internal/api"
	"github.com/joescharf/issuetracker/internal/daemon"
	"github.com/joescharf/issuetracker/internal/logging"
	"github.com/joescharf/issuetracker/internal/store"
)

const (
	shutdownTimeout = 10 * time.Second
	startupTimeout  = 5 * time.Second
	pollInterval    = 100 * time.Millisecond
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the issue API server",
	Long: `Run the issue API server in the foreground.
By default it listens on port 8080. Use --port to change it.

Issues live in memory and are gone when the server exits.
Use 'serve start' to run the server in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun(cmd.Context())
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the background server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)

	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.PersistentFlags().String("backend", "memory", "issue store backend (memory or sqlite)")
	_ = viper.BindPFlag("server.port", serveCmd.PersistentFlags().Lookup("port"))
	_ = viper.BindPFlag("store.backend", serveCmd.PersistentFlags().Lookup("backend"))
}

// pidFile returns the PID file of the background server.
func pidFile() *daemon.PIDFile {
	return daemon.NewPIDFile(filepath.Join(stateDir(), "issuetracker-serve.pid"))
}

// serveLogPath returns where the background server writes its output.
func serveLogPath() string {
	return filepath.Join(stateDir(), "issuetracker-serve.log")
}

func serveRun(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := logging.New(os.Stderr, viper.GetString("log.level"), viper.GetString("log.format"))
	if err != nil {
		return err
	}

	backend := viper.GetString("store.backend")
	st, err := store.New(backend)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	srv := api.NewServer(st, logger)
	srv.AllowOrigin = viper.GetString("server.cors_origin")

	watchConfig(logger)

	addr := fmt.Sprintf(":%d", viper.GetInt("server.port"))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(ctx, shutdownSignals()...)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("backend", backend).Str("version", buildVersion).Msg("server listening")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// watchConfig reloads the log level when the config file changes.
func watchConfig(logger zerolog.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := viper.GetString("log.level")
		if err := logging.SetLevel(level); err != nil {
			logger.Warn().Err(err).Str("file", e.Name).Msg("config reload: keeping previous log level")
			return
		}
		logger.Info().Str("file", e.Name).Str("level", level).Msg("config reloaded")
	})
	viper.WatchConfig()
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.IsRunning(); running {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	args := []string{"serve",
		"--port", fmt.Sprint(viper.GetInt("server.port")),
		"--backend", viper.GetString("store.backend"),
	}
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		args = append(args, "--config", cfg)
	}

	logPath := serveLogPath()
	if dryRun {
		ui.DryRunMsg("Would run %s %v (log: %s)", exe, args, logPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if err := pf.WritePID(child.Process.Pid); err != nil {
		_ = child.Process.Kill()
		return fmt.Errorf("write PID file: %w", err)
	}
	_ = child.Process.Release()

	if err := waitHealthy(startupTimeout); err != nil {
		ui.Warning("Server started (pid %d) but is not answering yet: %v", child.Process.Pid, err)
		ui.Info("Log: %s", logPath)
		return nil
	}
	ui.Success("Server started (pid %d) at %s", child.Process.Pid, viper.GetString("server.url"))
	ui.VerboseLog("Log: %s", logPath)
	return nil
}

// waitHealthy polls the health endpoint until it answers or timeout elapses.
func waitHealthy(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c := apiClient()
	for {
		err := c.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(pollInterval):
		}
	}
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.IsRunning()
	if !running {
		_ = pf.Remove()
		return fmt.Errorf("server is not running")
	}

	if dryRun {
		ui.DryRunMsg("Would stop server (pid %d)", pid)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("signal server: %w", err)
	}
	if !pf.WaitExit(shutdownTimeout, pollInterval) {
		ui.Warning("Server did not exit in %s, killing it", shutdownTimeout)
		if err := pf.Signal(sigKILL()); err != nil {
			return fmt.Errorf("kill server: %w", err)
		}
	}
	if err := pf.Remove(); err != nil {
		return fmt.Errorf("remove PID file: %w", err)
	}
	ui.Success("Server stopped (pid %d)", pid)
	return nil
}

func serveStatusRun() error {
	pid, running := pidFile().IsRunning()
	if !running {
		ui.Info("Server not running")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := apiClient().Ping(ctx); err != nil {
		ui.Warning("Server running (pid %d) but not healthy: %v", pid, err)
		return nil
	}
	ui.Success("Server running (pid %d) at %s", pid, viper.GetString("server.url"))
	ui.VerboseLog("Log: %s", serveLogPath())
	return nil
}
