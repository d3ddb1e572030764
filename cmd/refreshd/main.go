// Command refreshd keeps a session's Pitchly access token fresh. It drives
// the refresh RPC with force=false on the standard cadence, so the server
// only performs an exchange when the token is inside its expiry window.
package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/pitchlyapp/accounts-pitchly/scheduler"
)

func main() {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("SERVER_URL", "http://localhost:8080")

	serverURL := v.GetString("SERVER_URL")
	sessionToken := v.GetString("SESSION_TOKEN")
	if sessionToken == "" {
		log.Fatal().Msg("SESSION_TOKEN is required")
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	httpClient := &http.Client{}
	refresh := func(ctx context.Context) error {
		body := bytes.NewReader([]byte(`{"force":false}`))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/pitchly/refreshAccessToken", body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+sessionToken)

		resp, err := httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("refresh RPC returned status %d", resp.StatusCode)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	log.Info().Str("server", serverURL).Msg("refreshd started")
	scheduler.New(refresh).Run(ctx)
	log.Info().Msg("refreshd stopped")
}
