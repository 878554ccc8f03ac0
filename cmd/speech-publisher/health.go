package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/speech-publisher/internal/httpapi"
	"github.com/spf13/cobra"
)

const healthTimeout = 10 * time.Second

// ErrServiceNotHealthy is returned when the server answers but is not ready.
var ErrServiceNotHealthy = errors.New("speech-publisher is not healthy")

func newHealthCmd() *cobra.Command {
	var baseURL string

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check that a running server is up and its model is loaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), healthTimeout)
			defer cancel()

			health, err := fetchHealth(ctx, baseURL)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "status=%s model_loaded=%t\n", health.Status, health.ModelLoaded)

			if health.Status != "ok" || !health.ModelLoaded {
				return ErrServiceNotHealthy
			}

			return nil
		},
	}

	healthCmd.Flags().StringVar(&baseURL, "url", "http://127.0.0.1:8081", "base URL of the server")

	return healthCmd
}

func fetchHealth(ctx context.Context, baseURL string) (httpapi.HealthResponse, error) {
	var health httpapi.HealthResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/", http.NoBody)
	if err != nil {
		return health, fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return health, fmt.Errorf("health check failed for service at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("%w: status %s", ErrServiceNotHealthy, resp.Status)
	}

	decodeErr := json.NewDecoder(resp.Body).Decode(&health)
	if decodeErr != nil {
		return health, fmt.Errorf("failed to decode health response: %w", decodeErr)
	}

	return health, nil
}
