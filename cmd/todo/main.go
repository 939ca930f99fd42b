// Command todo is the client-side sync engine for the task backend. It
// keeps a local working copy of tasks, tags, projects, and the daily
// schedule, audits that copy for integrity drift, and mirrors changes to a
// live WebSocket feed.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/k-iizuka000/ai-todo-sub002/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "todo",
	Short: "Client-side sync engine for the task backend",
	Long: `todo keeps a synchronized local working copy of your tasks, tags,
projects, and daily schedule, backed by the REST API.

Mutations are optimistic: they apply locally first and roll back if the
backend rejects them. A background monitor audits the working copy for
integrity drift and repairs what it safely can.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig builds the configuration loader from the --config flag.
// Without a flag, defaults plus TODO_* environment overrides apply.
func loadConfig(logger *log.Logger) (*config.Loader, error) {
	return config.NewLoader(configPath, logger)
}

// newLogger routes logs to the configured file with rotation, or stderr.
func newLogger(cfg config.Config, prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (YAML or TOML)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
