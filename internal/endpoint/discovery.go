package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPDiscoverer implements Discoverer against the configuration service.
// The lookup returns {"apiBase": "..."}; a 2xx response without apiBase is
// itself a discovery failure.
type HTTPDiscoverer struct {
	URL    string
	Client *http.Client
	Logger *slog.Logger
}

type discoveryResponse struct {
	APIBase string `json:"apiBase"`
}

func (d *HTTPDiscoverer) Discover(ctx context.Context) (string, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build discovery request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("endpoint.discovery.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("discovery returned status %d", resp.StatusCode)
	}

	var dr discoveryResponse
	if err := json.Unmarshal(raw, &dr); err != nil {
		return "", fmt.Errorf("decode discovery response: %w", err)
	}
	if dr.APIBase == "" {
		return "", fmt.Errorf("discovery response missing apiBase")
	}

	logger.Info("endpoint.discovery.ok", "api_base", dr.APIBase, "elapsed_ms", time.Since(start).Milliseconds())
	return dr.APIBase, nil
}
