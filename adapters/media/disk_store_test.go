package media

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/satriahrh/jungo-bridge/domain/entities"
)

func TestDiskStore_SaveAndRemove(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "", zap.NewNop())
	if err != nil {
		t.Fatalf("NewDiskStore failed: %v", err)
	}

	data := []byte{0xff, 0xd8, 0xff, 0xe0}
	ref, err := store.Save(context.Background(), entities.CapturedImage{Data: data, MIMEType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasPrefix(ref, "captured/") || !strings.HasSuffix(ref, ".jpg") {
		t.Errorf("Unexpected reference %s", ref)
	}

	stored, err := os.ReadFile(store.Path(ref))
	if err != nil {
		t.Fatalf("Stored file missing: %v", err)
	}
	if !bytes.Equal(stored, data) {
		t.Error("Stored bytes differ")
	}

	other, _ := store.Save(context.Background(), entities.CapturedImage{Data: data, MIMEType: "image/png"})
	if other == ref || !strings.HasSuffix(other, ".png") {
		t.Errorf("Expected a distinct png reference, got %s", other)
	}

	if err := store.Remove(ref); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(store.Path(ref)); !os.IsNotExist(err) {
		t.Error("File still present after Remove")
	}
	if err := store.Remove(ref); err != nil {
		t.Errorf("Second Remove should be a no-op, got %v", err)
	}
}

func TestDiskStore_Rejects(t *testing.T) {
	store, _ := NewDiskStore(t.TempDir(), "shots", zap.NewNop())

	if _, err := store.Save(context.Background(), entities.CapturedImage{}); err == nil {
		t.Error("Expected error for empty image")
	}
	if err := store.Remove("../etc/passwd"); err == nil {
		t.Error("Expected error for escaping reference")
	}
	if _, err := NewDiskStore("", "", zap.NewNop()); err == nil {
		t.Error("Expected error for empty directory")
	}
}
