package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/avdupont/shopmesh/libs/httpx"
	"golang.org/x/sync/errgroup"
)

// upstreamList is the success envelope each CRUD service returns for lists.
type upstreamList struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
}

// dashboardHandler fans out to the user and product services concurrently
// and composes one payload. The composition is all-or-nothing: if either
// upstream fails there is no partial dashboard, only a 5xx naming the
// failure. The gateway does not retry.
func dashboardHandler(logger *slog.Logger, client *http.Client, userURL, productURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.Error(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var users, products upstreamList

		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			return fetchList(ctx, client, "user-service", userURL+"/users", &users)
		})
		g.Go(func() error {
			return fetchList(ctx, client, "product-service", productURL+"/products", &products)
		})
		if err := g.Wait(); err != nil {
			logger.Error("dashboard aggregation failed", "err", err)
			httpx.ErrorDetail(w, http.StatusBadGateway, "one or more services are unavailable", err.Error())
			return
		}

		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"dashboard": map[string]any{
				"users": map[string]any{
					"count": users.Count,
					"data":  users.Data,
				},
				"products": map[string]any{
					"count": products.Count,
					"data":  products.Data,
				},
			},
		})
	}
}

func fetchList(ctx context.Context, client *http.Client, upstream, url string, out *upstreamList) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", upstream, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		// Network-level failure; the upstream never answered.
		return fmt.Errorf("%s unreachable: %w", upstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s", upstream, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s returned an invalid payload: %w", upstream, err)
	}
	return nil
}
