package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gosniff/internal/models"
)

func TestWriteSnapshot(t *testing.T) {
	dir := t.TempDir()

	records := []models.PacketRecord{
		{
			Timestamp:     time.Now(),
			Length:        120,
			Protocol:      models.ProtocolTCP,
			SourceAddress: "192.168.1.10",
			SourcePort:    51000,
			DestAddress:   "10.0.0.5",
			DestPort:      80,
			Flags:         "SYN",
			Summary:       "TCP 192.168.1.10:51000 > 10.0.0.5:80 len=120 [SYN]",
		},
		{
			Timestamp:     time.Now(),
			Length:        42,
			Protocol:      models.ProtocolARP,
			SourceAddress: "10.0.0.2",
			DestAddress:   "10.0.0.1",
			Summary:       "ARP 10.0.0.2 > 10.0.0.1",
		},
	}

	path, err := WriteSnapshot(records, dir)
	if err != nil {
		t.Fatalf("Failed to write snapshot: %v", err)
	}

	if !strings.HasPrefix(filepath.Base(path), "packets_") {
		t.Errorf("Unexpected export filename: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read export file: %v", err)
	}

	var decoded []models.PacketRecord
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("Export file is not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(decoded))
	}
	if decoded[0].SourceAddress != "192.168.1.10" {
		t.Errorf("Record order not preserved: %+v", decoded[0])
	}
	if decoded[1].Protocol != models.ProtocolARP {
		t.Errorf("Missing ARP record: %+v", decoded[1])
	}
}

func TestWriteSnapshotEmpty(t *testing.T) {
	path, err := WriteSnapshot(nil, t.TempDir())
	if err != nil {
		t.Fatalf("Failed to write empty snapshot: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read export file: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(content)), "[") {
		t.Errorf("Empty snapshot should encode as a JSON array, got: %s", content)
	}
}

func TestWriteSnapshotCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	if _, err := WriteSnapshot(nil, dir); err != nil {
		t.Fatalf("Failed to create export dir: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Export dir was not created: %v", err)
	}
}
