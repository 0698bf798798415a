package storage_test

import (
	"testing"

	"shuttle/internal/storage"
	"shuttle/internal/testsupport"
)

func TestNewClientRequiresEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.Endpoint = ""
	if _, err := storage.NewClient(cfg); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestNewClientConnects(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client, err := storage.NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client == nil {
		t.Fatal("expected client")
	}
}

func TestSignedURLHost(t *testing.T) {
	host := storage.SignedURLHost("https://bucket.example.com/sessions/a.mp4?X-Amz-Signature=abc")
	if host != "bucket.example.com" {
		t.Fatalf("unexpected host %q", host)
	}
	if storage.SignedURLHost("://bad") != "" {
		t.Fatal("expected empty host for invalid URL")
	}
}
