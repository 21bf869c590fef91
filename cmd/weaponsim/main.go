package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/siohaza/weaponsim/internal/callbacks"
	"github.com/siohaza/weaponsim/internal/catalog"
	"github.com/siohaza/weaponsim/internal/network"
	"github.com/siohaza/weaponsim/internal/protocol"
	"github.com/siohaza/weaponsim/internal/scenario"
	"github.com/siohaza/weaponsim/internal/session"
	"github.com/siohaza/weaponsim/pkg/config"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	version    = "0.1.0"

	scriptPath  string
	weaponName  string
	localPlayer uint8
	connectHost string
	connectPort int
)

var rootCmd = &cobra.Command{
	Use:   "weaponsim",
	Short: "weaponsim - Ace of Spades v0.75 client weapon simulation",
	Long: `weaponsim runs the client-side weapon firing and reload model of
Ace of Spades v0.75, either scripted in Lua or against a live server.`,
	Version: version,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a Lua weapon scenario",
	RunE:  runSimulate,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the weapon catalog",
	RunE:  runCatalog,
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Run a live weapon session against a server",
	Long: `connect joins a server and mirrors its weapon traffic: remote players
are replicated from their input and reload packets, and the local weapon is
reconciled from the server's reload confirmations.

There is no local input source in this mode. The local weapon never fires
or starts a reload on its own; use simulate to drive it from a script.`,
	RunE: runConnect,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("weaponsim v%s\n", version)
		fmt.Println("Ace of Spades v0.75 weapon simulation")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.toml", "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")

	simulateCmd.Flags().StringVarP(&scriptPath, "script", "s", "", "scenario script (defaults to scenario.script)")
	simulateCmd.Flags().StringVarP(&weaponName, "weapon", "w", "", "starting weapon (overrides script and config)")

	connectCmd.Flags().StringVar(&connectHost, "host", "", "server host (defaults to network.host)")
	connectCmd.Flags().IntVar(&connectPort, "port", 0, "server port (defaults to network.port)")
	connectCmd.Flags().Uint8Var(&localPlayer, "player-id", 0, "player id assigned by the server")
	connectCmd.Flags().StringVarP(&weaponName, "weapon", "w", "", "starting weapon (defaults to client.weapon)")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(versionCmd)
}

func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// loadConfig falls back to defaults when the default config path is absent.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		if !cmd.Flags().Changed("config") && errors.Is(err, os.ErrNotExist) {
			cfg = config.DefaultConfig()
		} else {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var logWriter io.Writer = os.Stdout
	closeFn := func() {}

	if cfg.Client.LogToFile {
		logDir := "logs"
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		timestamp := time.Now().Unix()
		logPath := filepath.Join(logDir, fmt.Sprintf("weaponsim_%d.log", timestamp))

		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closeFn = func() { logFile.Close() }

		logWriter = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.Catalog.Path)
}

func prepare(cmd *cobra.Command) (*config.Config, *catalog.Catalog, *slog.Logger, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	logger, closeFn, err := setupLogger(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		closeFn()
		return nil, nil, nil, nil, err
	}

	known := func(name string) bool {
		_, ok := cat.ByName(name)
		return ok
	}
	if err := cfg.ValidateWeapon(known); err != nil {
		closeFn()
		return nil, nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, cat, logger, closeFn, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, cat, logger, closeFn, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	path := scriptPath
	if path == "" {
		path = cfg.Scenario.Script
	}
	if path == "" {
		return fmt.Errorf("no scenario script given")
	}

	s := session.New(cfg, cat, nil, logger)
	s.RegisterCallbacks(callbacks.NewLogCallbacks(logger))

	sc := scenario.NewLuaScenario(s, logger)
	defer sc.Close()
	sc.SetMaxTime(cfg.Scenario.MaxTime)

	if err := sc.LoadFile(path); err != nil {
		return err
	}

	name := cfg.Client.Weapon
	if sc.Weapon() != "" {
		name = sc.Weapon()
	}
	if weaponName != "" {
		name = weaponName
	}

	spec, ok := cat.ByName(name)
	if !ok {
		return fmt.Errorf("unknown weapon: %q", name)
	}
	if _, err := s.SetLocalPlayer(0, cfg.Client.Name, spec.Kind); err != nil {
		return err
	}

	logger.Info("running scenario", "name", sc.Name(), "script", path, "weapon", spec.Name)
	return sc.Run()
}

func runCatalog(cmd *cobra.Command, args []string) error {
	cfg, cat, _, closeFn, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	if cfg.Catalog.Path != "" {
		fmt.Printf("catalog: %s\n", cfg.Catalog.Path)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tNAME\tCLIP\tSTOCK\tDELAY\tRELOAD\tMODE\tPELLETS\tHEAD/TORSO/ARMS/LEGS")
	for _, kind := range cat.Kinds() {
		spec, _ := cat.Lookup(kind)

		mode := "bulk"
		if spec.SlowReload {
			mode = "slow"
		}
		if spec.InterruptibleReload {
			mode += ",interruptible"
		}
		if spec.SemiAutomatic {
			mode += ",semi"
		}

		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%.3fs\t%.3fs\t%s\t%d\t%d/%d/%d/%d\n",
			spec.Kind, spec.Name, spec.ClipSize, spec.MaxStock,
			spec.FireDelay, spec.ReloadTime, mode, spec.PelletCount,
			spec.BaseDamage.Head, spec.BaseDamage.Torso, spec.BaseDamage.Arms, spec.BaseDamage.Legs)
	}
	return w.Flush()
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, cat, logger, closeFn, err := prepare(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	host := cfg.Network.Host
	if connectHost != "" {
		host = connectHost
	}
	port := cfg.Network.Port
	if connectPort != 0 {
		port = connectPort
	}

	name := cfg.Client.Weapon
	if weaponName != "" {
		name = weaponName
	}
	spec, ok := cat.ByName(name)
	if !ok {
		return fmt.Errorf("unknown weapon: %q", name)
	}

	client, err := network.NewClient(logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Connect(host, port, protocol.Version75, cfg.ConnectTimeout()); err != nil {
		return err
	}

	s := session.New(cfg, cat, client, logger)
	s.RegisterCallbacks(callbacks.NewLogCallbacks(logger))
	if _, err := s.SetLocalPlayer(localPlayer, cfg.Client.Name, spec.Kind); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("session running", "host", host, "port", port, "weapon", spec.Name, "tick_rate", cfg.Client.TickRate)

	err = s.Run(ctx, client)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutting down session")
		return nil
	case errors.Is(err, session.ErrDisconnected):
		logger.Warn("server closed the connection")
		return nil
	}
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
