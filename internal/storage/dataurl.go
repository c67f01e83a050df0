package storage

import (
	"context"
	"encoding/base64"
	"fmt"
)

// DataURLPublisher inlines clips as base64 data URLs. Used when no bucket is
// configured; fine for short answers, heavy for anything long.
type DataURLPublisher struct{}

func (DataURLPublisher) Publish(_ context.Context, _ string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty clip")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
