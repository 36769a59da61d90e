package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kaz-tk/morpho/internal/certs"
	"github.com/kaz-tk/morpho/internal/config"
	"github.com/kaz-tk/morpho/internal/server"
	"github.com/kaz-tk/morpho/internal/terminal"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "morpho",
		Short: "Web-accessible terminal multiplexer",
		Long:  "Morpho hosts interactive PTY sessions and bridges them to browser clients over websockets, with shared sessions and replay on attach.",
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("morpho version %s\n", version)
		},
	}

	var (
		host          string
		port          int
		shell         string
		unsecure      bool
		certDir       string
		generateCerts bool
		theme         string
		motd          string
		logSessions   bool
		sessionLogDir string
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the morpho server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("shell") {
				cfg.Server.Shell = shell
			}
			if cmd.Flags().Changed("unsecure") {
				cfg.Server.Unsecure = unsecure
			}
			if cmd.Flags().Changed("cert-dir") {
				cfg.Server.CertDir = certDir
			}
			if cmd.Flags().Changed("theme") {
				cfg.Server.Theme = theme
			}
			if cmd.Flags().Changed("motd") {
				cfg.Server.MOTD = motd
			}
			if cmd.Flags().Changed("log-sessions") {
				cfg.Server.LogSessions = logSessions
			}
			if cmd.Flags().Changed("session-log-dir") {
				cfg.Server.SessionLogDir = sessionLogDir
			}

			if err := cfg.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create directories: %w", err)
			}

			if generateCerts {
				if err := certs.Generate(cfg.Server.CertDir, cfg.Server.Host); err != nil {
					return fmt.Errorf("failed to generate certificates: %w", err)
				}
				logrus.WithField("dir", cfg.Server.CertDir).Info("certificates generated")
			}

			logDir := ""
			if cfg.Server.LogSessions {
				logDir = cfg.Server.SessionLogDir
			}
			registry := terminal.NewRegistry(logDir, cfg.Server.HistoryBytes)

			srv := server.New(cfg, registry)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				logrus.Info("shutting down")
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()

			if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	serveCmd.Flags().StringVar(&host, "host", "", "host to bind (default from config)")
	serveCmd.Flags().IntVar(&port, "port", 0, "port to bind (default from config)")
	serveCmd.Flags().StringVar(&shell, "shell", "", "shell command for new sessions")
	serveCmd.Flags().BoolVar(&unsecure, "unsecure", false, "serve plain HTTP instead of TLS")
	serveCmd.Flags().StringVar(&certDir, "cert-dir", "", "TLS certificate directory")
	serveCmd.Flags().BoolVar(&generateCerts, "generate-certs", false, "regenerate the server certificate (creating the CA if absent), then serve")
	serveCmd.Flags().StringVar(&theme, "theme", "", "default terminal theme")
	serveCmd.Flags().StringVar(&motd, "motd", "", "path to a message-of-the-day file")
	serveCmd.Flags().BoolVar(&logSessions, "log-sessions", false, "record sessions in script/scriptreplay format")
	serveCmd.Flags().StringVar(&sessionLogDir, "session-log-dir", "", "directory for session recordings")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
