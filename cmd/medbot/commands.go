package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"medbot/internal/assistant"
	"medbot/internal/bootstrap"
	"medbot/internal/config"
	"medbot/internal/logging"
	"medbot/internal/mcpserver"
	"medbot/internal/server"
	"medbot/internal/tui"
)

func loadConfig(path string) (*config.AppConfig, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

// setup loads and validates the config and builds the logger.
func setup(path string) (*config.AppConfig, *zap.Logger, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func closeComponents(c *bootstrap.Components, log *zap.Logger) {
	if err := c.Close(context.Background()); err != nil {
		log.Warn("close vector store", zap.Error(err))
	}
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			state := &assistant.State{}
			a, err := bootstrap.Assistant(cfg, state, log)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Serve(gctx, ln, cfg.Server, server.NewHandler(a, log).Routes(), log)
			})
			g.Go(func() error {
				start := time.Now()
				c, err := bootstrap.Pipeline(gctx, cfg, log)
				if err != nil {
					log.Error("pipeline init failed", zap.Error(err))
					return fmt.Errorf("init pipeline: %w", err)
				}
				go func() {
					<-gctx.Done()
					closeComponents(c, log)
				}()
				if err := state.MarkReady(c.Pipeline); err != nil {
					return err
				}
				log.Info("ready", zap.Duration("startup", time.Since(start)))
				return nil
			})
			return g.Wait()
		},
	}
}

func newIngestCmd(cfgPath *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load PDF and text files into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			start := time.Now()
			stats, err := bootstrap.Ingest(ctx, cfg, dir, log)
			if err != nil {
				return err
			}
			log.Info("ingest complete",
				zap.Int("documents", stats.Documents),
				zap.Int("chunks", stats.Chunks),
				zap.Int("dimension", stats.Dimension),
				zap.Duration("took", time.Since(start)),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Directory of documents (defaults to ingest.data_dir)")
	return cmd
}

func newChatCmd(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a running server from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			timeout := time.Duration(cfg.Server.RequestTimeoutSecs+5) * time.Second
			m := tui.New(tui.NewHTTPAsker(addr, timeout), timeout)
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Server address (defaults to server.addr)")
	return cmd
}

func newMCPCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant as an MCP tool over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			state := &assistant.State{}
			a, err := bootstrap.Assistant(cfg, state, log)
			if err != nil {
				return err
			}
			c, err := bootstrap.Pipeline(cmd.Context(), cfg, log)
			if err != nil {
				return fmt.Errorf("init pipeline: %w", err)
			}
			defer closeComponents(c, log)
			if err := state.MarkReady(c.Pipeline); err != nil {
				return err
			}
			return mcpserver.ServeStdio(mcpserver.New("medbot", version, a, log))
		},
	}
}

func newConfigCmd(cfgPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default configuration to --config or ./config.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *cfgPath
			if path == "" {
				path = "config.yaml"
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to overwrite", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
