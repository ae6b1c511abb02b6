package storage

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWriteAndRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	key, err := store.Write(context.Background(), "sessions/abc/v1.png", []byte("payload"))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if key != "sessions/abc/v1.png" {
		t.Fatalf("key = %q, want %q", key, "sessions/abc/v1.png")
	}

	data, err := store.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("Read = %q, want %q", data, "payload")
	}

	if got := store.URL(key); got != "http://localhost:8080/static/sessions/abc/v1.png" {
		t.Fatalf("URL = %q", got)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	if _, err := store.Write(context.Background(), "../escape.png", []byte("x")); err == nil {
		t.Fatal("Write accepted traversal key")
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(dir), "escape.png")); err == nil {
		t.Fatal("traversal key escaped the storage root")
	}
}

func TestDecodeDataURL(t *testing.T) {
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	encoded := base64.StdEncoding.EncodeToString(raw)

	tests := []struct {
		name     string
		input    string
		wantMime string
		wantErr  bool
	}{
		{name: "full data url", input: "data:image/jpeg;base64," + encoded, wantMime: "image/jpeg"},
		{name: "bare base64 defaults to png", input: encoded, wantMime: "image/png"},
		{name: "missing comma", input: "data:image/png;base64", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mime, data, err := DecodeDataURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("DecodeDataURL succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeDataURL returned error: %v", err)
			}
			if mime != tt.wantMime {
				t.Fatalf("mime = %q, want %q", mime, tt.wantMime)
			}
			if string(data) != string(raw) {
				t.Fatalf("data mismatch: %v", data)
			}
		})
	}
}

func TestExtensionForMime(t *testing.T) {
	if got := ExtensionForMime("image/jpeg"); got != "jpg" {
		t.Fatalf("ExtensionForMime(jpeg) = %q", got)
	}
	if got := ExtensionForMime("application/octet-stream"); got != "png" {
		t.Fatalf("ExtensionForMime(unknown) = %q", got)
	}
}
