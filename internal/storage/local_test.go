package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directory if not exists", func(t *testing.T) {
		dir := filepath.Join(os.TempDir(), "audiotrim_test_"+randomSuffix())
		defer func() { _ = os.RemoveAll(dir) }()

		storage, err := NewLocalStorage(dir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.Dir() != dir {
			t.Errorf("Dir() = %v, want %v", storage.Dir(), dir)
		}

		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("expected directory, got file")
		}
	})

	t.Run("uses default directory when empty", func(t *testing.T) {
		storage, err := NewLocalStorage("")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(os.TempDir(), "audiotrim")
		if storage.Dir() != expected {
			t.Errorf("Dir() = %v, want %v", storage.Dir(), expected)
		}
	})
}

func TestLocalStorage_Put(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("writes object under key", func(t *testing.T) {
		obj, err := storage.Put(ctx, "trimmed_talk_1a2b3c4d.mp3", bytes.NewReader([]byte("mp3 data")), "audio/mpeg")
		if err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		if obj.Key != "trimmed_talk_1a2b3c4d.mp3" {
			t.Errorf("Key = %q", obj.Key)
		}
		if obj.Size != int64(len("mp3 data")) {
			t.Errorf("Size = %d, want %d", obj.Size, len("mp3 data"))
		}
		if obj.URL != "" {
			t.Errorf("local objects have no URL, got %q", obj.URL)
		}

		content, err := os.ReadFile(filepath.Join(storage.Dir(), obj.Key))
		if err != nil {
			t.Fatalf("failed to read stored file: %v", err)
		}
		if string(content) != "mp3 data" {
			t.Errorf("got %q, want %q", string(content), "mp3 data")
		}
	})

	t.Run("replaces existing object", func(t *testing.T) {
		if _, err := storage.Put(ctx, "replace.wav", strings.NewReader("first"), ""); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if _, err := storage.Put(ctx, "replace.wav", strings.NewReader("second"), ""); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		content, _ := os.ReadFile(filepath.Join(storage.Dir(), "replace.wav"))
		if string(content) != "second" {
			t.Errorf("got %q, want %q", string(content), "second")
		}
	})

	t.Run("leaves no temp files behind", func(t *testing.T) {
		entries, err := os.ReadDir(storage.Dir())
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".put_") {
				t.Errorf("temp file %s left in storage directory", e.Name())
			}
		}
	})

	t.Run("rejects keys outside the directory", func(t *testing.T) {
		for _, key := range []string{"../escape.mp3", "nested/out.mp3", "..", ""} {
			_, err := storage.Put(ctx, key, strings.NewReader("x"), "")
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Put(%q) error = %v, want ErrInvalidKey", key, err)
			}
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.Put(ctx, "cancelled.mp3", bytes.NewReader([]byte("data")), "")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_Open(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("opens stored object", func(t *testing.T) {
		if _, err := storage.Put(ctx, "open.flac", strings.NewReader("flac data"), "audio/flac"); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		reader, err := storage.Open(ctx, "open.flac")
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer func() { _ = reader.Close() }()

		content, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if string(content) != "flac data" {
			t.Errorf("got %q, want %q", string(content), "flac data")
		}
	})

	t.Run("returns ErrObjectNotFound for missing key", func(t *testing.T) {
		_, err := storage.Open(ctx, "missing.mp3")
		if !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.Open(ctx, "open.flac")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_Delete(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes object", func(t *testing.T) {
		if _, err := storage.Put(ctx, "delete.mp3", strings.NewReader("data"), ""); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		if err := storage.Delete(ctx, "delete.mp3"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}

		if _, err := os.Stat(filepath.Join(storage.Dir(), "delete.mp3")); !os.IsNotExist(err) {
			t.Error("object still exists")
		}
	})

	t.Run("ignores missing key", func(t *testing.T) {
		if err := storage.Delete(ctx, "never-stored.mp3"); err != nil {
			t.Errorf("Delete() should ignore missing keys, got %v", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := storage.Delete(ctx, "delete.mp3")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	dir := filepath.Join(os.TempDir(), "audiotrim_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	storage, err := NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}

func randomSuffix() string {
	return time.Now().Format("20060102150405.000000000")
}
