package r2client

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestNew_RequiresAllFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"no bucket", Config{Endpoint: "https://x", AccessKeyID: "a", SecretKey: "s"}},
		{"no secret", Config{Endpoint: "https://x", AccessKeyID: "a", BucketName: "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(context.Background(), tt.cfg); err == nil {
				t.Error("expected error for incomplete config")
			}
		})
	}
}

func TestCompressReadObject_RoundTrip(t *testing.T) {
	t.Parallel()

	doc := []byte(strings.Repeat(`{"category":"Login","questionEn":"How do I log in?","answer":"Use your login ID."},`, 200))
	compressed, err := Compress(doc)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) >= len(doc) {
		t.Errorf("compressed size %d not smaller than %d", len(compressed), len(doc))
	}

	got, err := ReadObject("faqs.json.zst", bytes.NewReader(compressed), 0)
	if err != nil {
		t.Fatalf("ReadObject failed: %v", err)
	}
	if !bytes.Equal(got, doc) {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(doc))
	}
}

func TestReadObject_Plain(t *testing.T) {
	t.Parallel()

	got, err := ReadObject("faqs.json", strings.NewReader(`[]`), 0)
	if err != nil {
		t.Fatalf("ReadObject failed: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("got %q", got)
	}
}

func TestReadObject_Limit(t *testing.T) {
	t.Parallel()

	if _, err := ReadObject("faqs.json", strings.NewReader(strings.Repeat("x", 11)), 10); err == nil {
		t.Error("expected error when object exceeds limit")
	}
	if _, err := ReadObject("faqs.json", strings.NewReader(strings.Repeat("x", 10)), 10); err != nil {
		t.Errorf("object at limit rejected: %v", err)
	}
}

func TestReadObject_CorruptZstd(t *testing.T) {
	t.Parallel()

	if _, err := ReadObject("faqs.json.zst", strings.NewReader("not zstd"), 0); err == nil {
		t.Error("expected error for corrupt zstd data")
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	if isNotFound(errors.New("boom")) {
		t.Error("plain error reported as not found")
	}
}
