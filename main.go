package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gosniff/internal/capture"
	"gosniff/internal/config"
	"gosniff/internal/health"
	"gosniff/internal/tui"
	"gosniff/internal/web"
)

const banner = `
  ╔══════════════════════════════════════════════╗
  ║      gosniff - Real-time Packet Analyzer     ║
  ╚══════════════════════════════════════════════╝
`

func main() {
	var (
		listIfaces bool
		iface      string
		filter     string
		webMode    bool
		demoMode   bool
		healthMode bool
		configPath string
		logLevel   string
		exportDir  string
	)

	flag.BoolVar(&listIfaces, "list", false, "list available network interfaces")
	flag.StringVar(&iface, "i", "", "network interface to capture on (e.g. eth0, wlan0)")
	flag.StringVar(&filter, "f", "", `BPF filter string (e.g. "tcp port 80")`)
	flag.BoolVar(&webMode, "web", false, "serve the web view instead of the terminal UI")
	flag.BoolVar(&demoMode, "demo", false, "use simulated traffic instead of live capture")
	flag.BoolVar(&healthMode, "health", false, "run health diagnostics and exit")
	flag.StringVar(&configPath, "config", "", "path to configuration file")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.StringVar(&exportDir, "export-dir", "", "directory for packet exports")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if exportDir != "" {
		cfg.Export.Dir = exportDir
	}
	if filter == "" {
		filter = cfg.Capture.DefaultFilter
	}

	if listIfaces {
		fmt.Print(banner)
		printInterfaces()
		return
	}
	if healthMode {
		fmt.Print(banner)
		fmt.Print(health.Run(health.Options{WebPort: cfg.Web.Port, ExportDir: cfg.Export.Dir}))
		return
	}

	var source capture.PacketSource
	if demoMode {
		source = capture.NewDemoSource()
	} else {
		source = capture.NewPcapSource()
	}

	if webMode {
		runWeb(cfg, source, iface, filter)
		return
	}

	if iface == "" {
		if !demoMode {
			fmt.Println("Please provide an interface name with -i")
			fmt.Println("Example: ./gosniff -i wlan0")
			fmt.Println("Use -list to see available interfaces")
			os.Exit(1)
		}
		iface = "demo0"
	}
	runTUI(cfg, source, iface, filter)
}

func printInterfaces() {
	names, err := capture.ListInterfaces()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error listing interfaces: %v\n", err)
		os.Exit(1)
	}
	if len(names) == 0 {
		fmt.Println("No network interfaces found. Packet capture may need elevated privileges.")
		return
	}

	fmt.Printf("%-20s %-20s %-16s\n", "Interface", "MAC Address", "IP Address")
	for _, name := range names {
		info := capture.LookupInterface(name)
		fmt.Printf("%-20s %-20s %-16s\n", info.Name, info.MAC, info.IP)
	}
}

func runWeb(cfg *config.Config, source capture.PacketSource, iface, filter string) {
	fmt.Print(banner)

	logger, err := newLogger(cfg.Log.Level, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	session := capture.NewSession(source, capture.SessionConfig{
		Capacity:     cfg.Capture.MaxPackets,
		StreamBuffer: cfg.Capture.StreamBuffer,
	}, logger)

	// Capture can also be started later through the API.
	if iface != "" {
		if err := session.Start(iface, filter); err != nil {
			logger.Fatal("failed to start capture", zap.Error(err))
		}
	}

	server := web.NewServer(session, cfg.Web.Host, cfg.Web.Port, cfg.Export.Dir, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("failed to start web server", zap.Error(err))
	}
	fmt.Printf("Web view listening on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	if err := server.Stop(); err != nil {
		logger.Error("web server shutdown failed", zap.Error(err))
	}
	session.Stop()
}

func runTUI(cfg *config.Config, source capture.PacketSource, iface, filter string) {
	// Stderr belongs to the alternate screen; logs go to a file instead.
	logger, err := newLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	session := capture.NewSession(source, capture.SessionConfig{
		Capacity:     cfg.Capture.MaxPackets,
		StreamBuffer: cfg.Capture.StreamBuffer,
	}, logger)

	if err := session.Start(iface, filter); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start capture: %v\n", err)
		fmt.Fprintln(os.Stderr, "Check the interface name with -list; live capture usually requires root.")
		os.Exit(1)
	}

	model := tui.NewModel(session, cfg.Export.Dir)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("terminal UI exited with error", zap.Error(err))
	}

	// The quit key already stops the session; this covers abnormal exits.
	session.Stop()
}

func newLogger(level, file string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if file != "" {
		zcfg.OutputPaths = []string{file}
		zcfg.ErrorOutputPaths = []string{file}
	}
	return zcfg.Build()
}
