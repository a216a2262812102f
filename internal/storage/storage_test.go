package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

func TestResolveLocal(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "inv.pdf")
	if err := os.WriteFile(p, []byte("%PDF"), 0o600); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(nil, "", nil)

	f, err := r.Resolve(context.Background(), p)
	if err != nil || f.Path != p {
		t.Fatalf("Resolve = %+v, %v", f, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatal("closing a local file must not remove it")
	}
}

func TestResolveMissing(t *testing.T) {
	r := NewResolver(nil, "", nil)
	for _, p := range []string{
		filepath.Join(t.TempDir(), "gone.pdf"),
		t.TempDir(),
		"gs://bucket/inv.pdf", // no client
		"gs://bucket-only",
	} {
		if _, err := r.Resolve(context.Background(), p); !errors.Is(err, common.ErrInfrastructure) {
			t.Errorf("Resolve(%q) err = %v, want ErrInfrastructure", p, err)
		}
	}
}

func TestParseGCSURI(t *testing.T) {
	b, o, err := ParseGCSURI("gs://invoices/2024/03/a.pdf")
	if err != nil || b != "invoices" || o != "2024/03/a.pdf" {
		t.Fatalf("ParseGCSURI = %q %q %v", b, o, err)
	}
	if _, _, err := ParseGCSURI("/local/a.pdf"); err == nil {
		t.Fatal("local path should not parse")
	}
}
