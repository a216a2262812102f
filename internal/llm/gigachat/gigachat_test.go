package gigachat

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

func TestUnconfiguredClient(t *testing.T) {
	c, err := New(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Generate(context.Background(), "s", "p"); !errors.Is(err, common.ErrMissingCredentials) {
		t.Fatalf("err = %v", err)
	}
	if c.cfg.Scope != "GIGACHAT_API_PERS" || c.cfg.Model != DefaultModel {
		t.Fatalf("defaults not applied: %+v", c.cfg)
	}
}
