package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/orlenko/claude-log-tail/internal/aggregator"
	"github.com/orlenko/claude-log-tail/internal/discovery"
	"github.com/orlenko/claude-log-tail/internal/hub"
	"github.com/orlenko/claude-log-tail/internal/monitor"
	"github.com/orlenko/claude-log-tail/internal/output"
	"github.com/orlenko/claude-log-tail/internal/server"
)

var cfgFile string

// rootCmd is the whole CLI: one positional directory argument.
var rootCmd = &cobra.Command{
	Use:   "claude-log-tail <directory>",
	Short: "Monitor Claude JSONL conversation logs with colored output",
	Long: `claude-log-tail watches a directory tree of JSONL conversation logs and
streams newly appended records to the terminal as a unified, colorized
view. Files are tailed from their current end, so history is never
replayed; new files are picked up as they appear.

Examples:
  claude-log-tail ~/.claude/projects
  claude-log-tail ~/.claude/projects --output json
  claude-log-tail ~/.claude/projects --serve 8787`,
	Args: cobra.ExactArgs(1),
	RunE: runRoot,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.claude-log-tail.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format: text, json")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colorized output")
	rootCmd.PersistentFlags().String("serve", "", "serve the live web dashboard on this port")

	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))
	_ = viper.BindPFlag("serve", rootCmd.PersistentFlags().Lookup("serve"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".claude-log-tail")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func runRoot(cmd *cobra.Command, args []string) error {
	// Past argument validation; runtime failures shouldn't print usage.
	cmd.SilenceUsage = true

	basedir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("bad directory argument: %w", err)
	}
	info, err := os.Stat(basedir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("directory does not exist: %s", basedir)
	}

	// --- Graceful shutdown on interrupt ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	// --- Choose renderer ---
	var renderer output.Renderer
	switch strings.ToLower(viper.GetString("output")) {
	case "json":
		renderer = output.NewJSONRenderer()
	default:
		renderer = output.NewTextRenderer(viper.GetBool("no-color"))
	}

	// --- Assemble the pipeline ---
	cfg := monitor.NewConfig(basedir)
	opts := []monitor.Option{}

	notifier, err := discovery.NewNotifier(basedir)
	if err != nil {
		// The periodic rescan alone still finds new files.
		fmt.Fprintf(os.Stderr, "warning: file notifications unavailable: %v\n", err)
		notifier = nil
	} else {
		opts = append(opts, monitor.WithNotifier(notifier))
	}

	var h *hub.Hub
	servePort := viper.GetString("serve")
	if servePort != "" {
		h = hub.New()
		opts = append(opts, monitor.WithHub(h))
	}

	m := monitor.New(cfg, renderer, opts...)

	fmt.Printf("Monitoring JSONL files in: %s\n", basedir)
	fmt.Printf("Polling every %v. New files checked every %v.\n", cfg.PollInterval, cfg.RescanInterval)
	fmt.Println("Press Ctrl+C to exit.")
	fmt.Println("---")

	count := m.Bootstrap()
	fmt.Printf("Monitoring %d JSONL files\n", count)
	fmt.Println("---")

	if notifier != nil {
		go notifier.Start(ctx)
	}

	if h != nil {
		agg := aggregator.New(h.Subscribe(), h.Dropped, m.FileCount)
		go agg.Start(ctx)

		srv := server.New(h, agg, servePort)
		go func() {
			if err := srv.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "dashboard server stopped: %v\n", err)
			}
		}()
		fmt.Printf("Dashboard: http://localhost:%s\n", servePort)
	}

	// --- Run the polling loop until interrupted ---
	m.Run(ctx)

	if h != nil {
		h.Close()
	}
	return nil
}
