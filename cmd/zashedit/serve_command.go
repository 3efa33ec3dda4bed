package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zash3dit/zashedit/internal/api"
	"github.com/zash3dit/zashedit/internal/config"
	"github.com/zash3dit/zashedit/internal/db"
	"github.com/zash3dit/zashedit/internal/playback"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			startTime := time.Now()
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if port == 0 {
				port = cfg.Port()
			}

			a, err := ctx.open(cmd.ErrOrStderr(), cfg.LogLevel())
			if err != nil {
				return err
			}
			defer a.Close()
			logger := a.logger
			logger.Info("starting zashedit", "version", config.Version, "data_dir", cfg.DataDir())

			authToken, err := ensureAuthToken(cmd.Context(), a.db)
			if err != nil {
				return fmt.Errorf("failed to ensure auth token: %w", err)
			}

			if caps, err := a.doctor.Refresh(cmd.Context()); err != nil {
				logger.Warn("initial doctor probe failed", "error", err)
			} else if !caps.CanEncode() {
				logger.Warn("ffmpeg unavailable; encoder-backed edits will fail", "error", caps.FFmpeg.Error)
			}

			printBanner(cmd.OutOrStdout(), port, authToken)

			server := api.NewServer(api.ServerConfig{
				Port:      port,
				Service:   a.service,
				Media:     playback.NewServer(logger),
				Tokens:    a.db,
				Doctor:    a.doctor,
				Logger:    logger,
				StartTime: startTime,
				Version:   config.Version,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-cmd.Context().Done():
				logger.Info("initiating graceful shutdown")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown HTTP server", "error", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port on 127.0.0.1 (default from config)")
	return cmd
}

func printBanner(w io.Writer, port int, token string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔═══════════════════════════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w, "║  ZASHEDIT v%-66s ║\n", config.Version)
	fmt.Fprintln(w, "╠═══════════════════════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  API URL:    http://127.0.0.1:%-47d ║\n", port)
	fmt.Fprintf(w, "║  Auth Token: %-64s ║\n", token)
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
}

// ensureAuthToken returns the stored bearer token, generating one on first
// start.
func ensureAuthToken(ctx context.Context, database *db.DB) (string, error) {
	existing, ok, err := database.ConfigValue(ctx, api.AuthTokenKey)
	if err != nil {
		return "", err
	}
	if ok && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := database.SetConfigValue(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}
	return token, nil
}
