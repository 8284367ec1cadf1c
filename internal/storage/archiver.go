// Package storage archives processed assets into the delivery bucket so the
// originals on the provider's CDN can expire without losing the order.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	storage "github.com/supabase-community/storage-go"
	"shootflow-backend/internal/processing"
)

type Archiver struct {
	client     *storage.Client
	bucket     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewArchiver(supabaseURL, serviceRoleKey, bucket string) *Archiver {
	baseURL := strings.TrimSuffix(supabaseURL, "/")
	return &Archiver{
		client:  storage.NewClient(baseURL+"/storage/v1", serviceRoleKey, nil),
		bucket:  bucket,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: slog.With("component", "storage"),
	}
}

// ArchiveProcessed copies each processed asset from the provider URL into
// the bucket. Failures are logged per asset; the provider URL stays on the
// asset row, so a partial archive is recoverable by re-running delivery.
func (a *Archiver) ArchiveProcessed(ctx context.Context, orderID uuid.UUID, results []processing.Result) {
	for _, result := range results {
		if err := a.archiveOne(ctx, orderID, result); err != nil {
			a.logger.Error("failed to archive asset",
				"order_id", orderID, "asset_id", result.AssetID, "error", err)
			continue
		}
	}
	a.logger.Info("archived processed assets", "order_id", orderID, "count", len(results))
}

func (a *Archiver) archiveOne(ctx context.Context, orderID uuid.UUID, result processing.Result) error {
	data, err := a.download(ctx, result.ProcessedURL)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("orders/%s/processed/%s.jpg", orderID, result.AssetID)
	contentType := "image/jpeg"
	upsert := true
	_, err = a.client.UploadFile(a.bucket, path, bytes.NewReader(data), storage.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}

	return nil
}

func (a *Archiver) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset download returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// PublicURL returns the public bucket URL for a stored path.
func (a *Archiver) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", a.baseURL, a.bucket, path)
}
