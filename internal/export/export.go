// Package export serializes a history snapshot to disk.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gosniff/internal/models"
)

// WriteSnapshot writes records as an indented JSON array to a timestamped
// file under dir, creating the directory if needed. It returns the path of
// the written file. The snapshot is whatever the caller captured; nothing is
// re-read from the session.
func WriteSnapshot(records []models.PacketRecord, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("packets_%s.json", timestamp))

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if records == nil {
		records = []models.PacketRecord{}
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return "", fmt.Errorf("encode packets: %w", err)
	}
	return path, nil
}
