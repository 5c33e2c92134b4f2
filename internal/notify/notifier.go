// Package notify sends the best-effort assembly-started ping to the external
// notification endpoint.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Notifier posts to a fixed external URL once packages have been created for a
// request. Delivery is at-most-once and best-effort: a failure is logged and
// never propagated, so it can neither block nor roll back created packages.
type Notifier struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewNotifier(url string, httpClient *http.Client, logger *zap.Logger) *Notifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Notifier{url: url, httpClient: httpClient, logger: logger}
}

// AssemblyStarted tells the downstream system that package assembly has begun
// for the requester identified by ci.
func (n *Notifier) AssemblyStarted(ctx context.Context, ci string) {
	if n.url == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{"ciUsuario": ci})
	if err != nil {
		n.logger.Warn("Failed to marshal assembly notification", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		n.logger.Warn("Failed to build assembly notification", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Warn("Assembly notification failed",
			zap.String("ci", ci),
			zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("Assembly notification rejected",
			zap.String("ci", ci),
			zap.Int("status", resp.StatusCode))
		return
	}

	n.logger.Info("Assembly notification sent", zap.String("ci", ci))
}
