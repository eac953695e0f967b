package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/behrlich/katapipe/internal/config"
	"github.com/behrlich/katapipe/internal/logger"
	"github.com/behrlich/katapipe/internal/pipe"
)

var (
	configPath string
	engineList []string
	withLocal  bool
	logLevel   string
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "katapipe",
		Short: "GTP multiplexing proxy for a pool of KataGo engines",
		Long: "katapipe speaks GTP on stdin/stdout like a single engine while fanning\n" +
			"analysis out to local, remote and relay KataGo backends, picking moves\n" +
			"from their visit-weighted consensus.",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "katapipe.yaml", "Configuration file")
	rootCmd.Flags().StringSliceVar(&engineList, "engines", []string{"1", "2"}, "Engine ids to start with")
	rootCmd.Flags().BoolVar(&withLocal, "local", false, "Also start the local engine")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "debug", "Log level (debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(logLevel, config.ExpandUser(cfg.Log.LogFolder)); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ids := engineList
	if withLocal {
		ids = append([]string{"0"}, ids...)
	}

	p := pipe.New(cfg, os.Stdout)
	p.Start(ids)
	defer p.Shutdown()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			readErr <- err
			return
		}
		readErr <- io.EOF
	}()

	for {
		select {
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			if strings.Contains(line, "quit") {
				fmt.Print("= \n\n")
				return nil
			}
			p.Submit(line)
		case err := <-readErr:
			return fmt.Errorf("read upstream input: %w", err)
		case err := <-p.Fatal():
			return err
		}
	}
}
