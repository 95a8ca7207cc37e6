package storage

import (
	"context"
	"testing"

	"github.com/timmy/footfall/internal/config"
	"github.com/timmy/footfall/internal/logger"
)

func TestArchiveAndPurge(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStorage("https://files.example/")
	a := NewArchive(mem, logger.Discard())

	url, err := a.Archive(ctx, "exports/job-1/0-60-all.csv", []byte("a,b\n"), "text/csv")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if url != "https://files.example/exports/job-1/0-60-all.csv" {
		t.Errorf("url = %q", url)
	}
	_, _ = a.Archive(ctx, "exports/job-1/0-60-all.pdf", []byte("%PDF"), "application/pdf")
	_, _ = a.Archive(ctx, "exports/job-10/0-60-all.csv", []byte("x"), "text/csv")

	if err := a.PurgeJob(ctx, "job-1"); err != nil {
		t.Fatalf("PurgeJob: %v", err)
	}
	keys := mem.Keys()
	if len(keys) != 1 || keys[0] != "exports/job-10/0-60-all.csv" {
		t.Errorf("remaining keys = %v", keys)
	}
	if err := a.PurgeJob(ctx, " "); err == nil {
		t.Error("blank job id should be rejected")
	}
}

func TestDetectStorageType(t *testing.T) {
	testCases := []struct {
		endpoint string
		want     StorageType
	}{
		{"https://acct.r2.cloudflarestorage.com", StorageTypeR2},
		{"s3.eu-west-1.amazonaws.com", StorageTypeS3},
		{"", StorageTypeS3},
		{"localhost:9000", StorageTypeS3Compatible},
	}
	for _, tc := range testCases {
		t.Run(tc.endpoint, func(t *testing.T) {
			if got := detectStorageType(tc.endpoint); got != tc.want {
				t.Errorf("detectStorageType(%q) = %q, want %q", tc.endpoint, got, tc.want)
			}
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	if got := normalizeEndpoint("https://minio.local:9000/some/path"); got != "minio.local:9000" {
		t.Errorf("normalizeEndpoint = %q", got)
	}
}

func TestNewStorageDisabled(t *testing.T) {
	store, err := NewStorage(&config.StorageConfig{Enabled: false})
	if err != nil || store != nil {
		t.Errorf("NewStorage(disabled) = %v, %v", store, err)
	}
}

func TestS3URL(t *testing.T) {
	s, err := NewS3Storage(&S3Config{Endpoint: "http://localhost:9000", Bucket: "exports", AccessKey: "k", SecretKey: "s"})
	if err != nil {
		t.Fatalf("NewS3Storage: %v", err)
	}
	if got := s.URL("exports/j/a.csv"); got != "http://localhost:9000/exports/exports/j/a.csv" {
		t.Errorf("URL = %q", got)
	}

	s, _ = NewS3Storage(&S3Config{Endpoint: "localhost:9000", Bucket: "b", PublicURL: "https://cdn.example/", AccessKey: "k", SecretKey: "s"})
	if got := s.URL("k.png"); got != "https://cdn.example/k.png" {
		t.Errorf("URL with public prefix = %q", got)
	}
}
