package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "doc-1_loan.txt", strings.NewReader("body")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reader, err := storage.Open(ctx, "doc-1_loan.txt")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(raw) != "body" {
		t.Errorf("content = %q", raw)
	}
}

func TestSaveStripsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := storage.Save(ctx, "../../etc/doc.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := storage.Open(ctx, "doc.txt"); err != nil {
		t.Fatalf("traversal key must collapse to its base name, Open: %v", err)
	}
}

func TestOpenMissingKey(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := storage.Open(context.Background(), "missing.txt"); err == nil {
		t.Fatal("expected error for missing key")
	}
}
