package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hq-entitlements/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, path string) []DownloadRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []DownloadRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec DownloadRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestFileEventLog_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "downloads.jsonl")
	log := NewFileEventLog(path)
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, log.Append(context.Background(), DownloadRecord{OrderID: "ORD-1", ImageID: "101", DownloadedAt: at}))
	require.NoError(t, log.Append(context.Background(), DownloadRecord{OrderID: "ORD-1", ImageID: "101", DownloadedAt: at, Replay: true}))
	require.NoError(t, log.Append(context.Background(), DownloadRecord{OrderID: "ORD-1", ImageID: "102", DownloadedAt: at, NowUsed: true}))

	records := readRecords(t, path)
	require.Len(t, records, 3)
	assert.False(t, records[0].Replay)
	assert.True(t, records[1].Replay)
	assert.True(t, records[2].NowUsed)
	assert.Equal(t, "102", records[2].ImageID)
}

func TestFileEventLog_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "downloads.jsonl")
	log := NewFileEventLog(path)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, log.Append(context.Background(), DownloadRecord{OrderID: "ORD-1", ImageID: "101"}))
		}()
	}
	wg.Wait()

	assert.Len(t, readRecords(t, path), 20)
}

func TestNopEventLog(t *testing.T) {
	assert.NoError(t, NopEventLog().Append(context.Background(), DownloadRecord{}))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name        string
		store       config.StoreConfig
		wantBackend string
		wantErr     bool
	}{
		{
			name:        "file",
			store:       config.StoreConfig{Backend: BackendFile, FilePath: filepath.Join(dir, "orders.json")},
			wantBackend: BackendFile,
		},
		{
			name:        "empty backend falls back to file",
			store:       config.StoreConfig{FilePath: filepath.Join(dir, "orders.json")},
			wantBackend: BackendFile,
		},
		{
			name:        "memory",
			store:       config.StoreConfig{Backend: BackendMemory},
			wantBackend: BackendMemory,
		},
		{
			name:    "unknown",
			store:   config.StoreConfig{Backend: "cassandra"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := Open(context.Background(), &config.Config{Store: tt.store}, zerolog.Nop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer st.Close()
			assert.Equal(t, tt.wantBackend, st.Backend())
		})
	}
}

func TestOpenEventLog(t *testing.T) {
	assert.Equal(t, NopEventLog(), OpenEventLog(&config.Config{}))

	path := filepath.Join(t.TempDir(), "downloads.jsonl")
	log := OpenEventLog(&config.Config{Store: config.StoreConfig{EventLogPath: path}})
	require.NoError(t, log.Append(context.Background(), DownloadRecord{OrderID: "ORD-1"}))
	assert.FileExists(t, path)
}
