package verifier

import (
	"context"
	"testing"

	"github.com/witnz/catalogshadow/internal/catalog"
)

type fakeSource struct {
	snapshot *catalog.Catalog
	err      error
}

func (f *fakeSource) Snapshot(ctx context.Context) (*catalog.Catalog, error) {
	return f.snapshot, f.err
}

func buildCatalogWithUser(rowID, name string, userID int64) *catalog.Catalog {
	c := catalog.New(nil)
	_, _ = c.AddSysUser(&catalog.SysUser{RowIDStr: rowID, User: userID, Name: name, Single: true})
	return c
}

func TestVerifyMatchingSchemasSucceed(t *testing.T) {
	shadow := buildCatalogWithUser("U1", "HR", 10)
	source := &fakeSource{snapshot: buildCatalogWithUser("U1", "HR", 10)}

	v := New(nil, nil, nil, false)
	ok, msg, err := v.Verify(context.Background(), shadow, source)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected matching schemas to verify ok, got mismatch: %s", msg)
	}
}

func TestVerifyMismatchReportsDivergence(t *testing.T) {
	shadow := buildCatalogWithUser("U1", "HR", 10)
	source := &fakeSource{snapshot: buildCatalogWithUser("U2", "FINANCE", 20)}

	v := New(nil, nil, nil, false)
	ok, msg, err := v.Verify(context.Background(), shadow, source)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch, got ok")
	}
	if msg == "" {
		t.Fatalf("expected a non-empty mismatch message")
	}
}

func TestVerifyMismatchTriggersAutoShutdown(t *testing.T) {
	shadow := buildCatalogWithUser("U1", "HR", 10)
	source := &fakeSource{snapshot: buildCatalogWithUser("U2", "FINANCE", 20)}

	shutdownCalled := false
	v := New(nil, nil, func() error {
		shutdownCalled = true
		return nil
	}, true)

	if _, _, err := v.Verify(context.Background(), shadow, source); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !shutdownCalled {
		t.Fatalf("expected auto-shutdown to be invoked on mismatch")
	}
}

func TestVerifyPropagatesSnapshotError(t *testing.T) {
	shadow := buildCatalogWithUser("U1", "HR", 10)
	source := &fakeSource{err: context.DeadlineExceeded}

	v := New(nil, nil, nil, false)
	if _, _, err := v.Verify(context.Background(), shadow, source); err == nil {
		t.Fatalf("expected an error when the snapshot build fails")
	}
}
