package writer

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/witnz/catalogshadow/internal/dictexc"
	"github.com/witnz/catalogshadow/internal/statestore"
)

func openTestStore(t *testing.T) *statestore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := statestore.Open(path)
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// S6: writeCheckpoint(false) is a no-op while confirmedScn is still
// ZeroSCN, and writeCheckpoint(true) with confirmedScn==ZeroSCN is
// also still a no-op.
func TestWriteCheckpointIgnoresZeroSCN(t *testing.T) {
	store := openTestStore(t)
	meta := NewMetadata(store, "ORCLCDB", 1, 1, 300)

	if err := meta.WriteCheckpoint(false); err != nil {
		t.Fatalf("WriteCheckpoint(false): %v", err)
	}
	if _, ok, _ := store.Read(checkpointKey("ORCLCDB"), 0); ok {
		t.Fatalf("expected no checkpoint written at ZeroSCN")
	}

	if err := meta.WriteCheckpoint(true); err != nil {
		t.Fatalf("WriteCheckpoint(true): %v", err)
	}
	if _, ok, _ := store.Read(checkpointKey("ORCLCDB"), 0); ok {
		t.Fatalf("expected force write to still no-op at ZeroSCN")
	}
}

// R1: parse-then-serialize checkpoint JSON round-trips.
func TestCheckpointRoundTrip(t *testing.T) {
	store := openTestStore(t)
	meta := NewMetadata(store, "ORCLCDB", 7, 3, 0)
	meta.SetConfirmedSCN(12345)

	if err := meta.WriteCheckpoint(true); err != nil {
		t.Fatalf("WriteCheckpoint: %v", err)
	}

	reloaded := NewMetadata(store, "ORCLCDB", 0, 0, 0)
	status, err := reloaded.ReadCheckpoint()
	if err != nil {
		t.Fatalf("ReadCheckpoint: %v", err)
	}
	if status != StatusReplicate {
		t.Fatalf("expected StatusReplicate, got %v", status)
	}
	if reloaded.StartSCN != 12345 {
		t.Fatalf("expected startScn=12345, got %d", reloaded.StartSCN)
	}
	if reloaded.ResetLogs != 7 || reloaded.Activation != 3 {
		t.Fatalf("resetlogs/activation did not round-trip: %+v", reloaded)
	}
}

func TestReadCheckpointMissingFileSetsBoot(t *testing.T) {
	store := openTestStore(t)
	meta := NewMetadata(store, "ORCLCDB", 0, 0, 0)
	status, err := meta.ReadCheckpoint()
	if err != nil {
		t.Fatalf("ReadCheckpoint: %v", err)
	}
	if status != StatusBoot {
		t.Fatalf("expected StatusBoot on missing file, got %v", status)
	}
}

// The key embeds the database name, so the mismatch is a document whose
// "database" field differs from the name it is stored under.
func TestReadCheckpointDatabaseMismatchRaises20001(t *testing.T) {
	store := openTestStore(t)
	doc := []byte(`{"database":"ORCLCDB","scn":1,"resetlogs":0,"activation":0}`)
	if err := store.Write(checkpointKey("OTHERDB"), doc); err != nil {
		t.Fatalf("store.Write: %v", err)
	}

	mismatched := NewMetadata(store, "OTHERDB", 0, 0, 0)
	if _, err := mismatched.ReadCheckpoint(); err == nil || !isDataCode(err, 20001) {
		t.Fatalf("expected DataException 20001 on database mismatch, got %v", err)
	}
}

func isDataCode(err error, code int) bool {
	de, ok := err.(*dictexc.DataException)
	return ok && de.Code == code
}

// Force never bypasses the "hasn't advanced" gate, only the
// time-interval gate: a second forced write at the same confirmedScn
// must still no-op.
func TestWriteCheckpointForceDoesNotBypassUnchangedScn(t *testing.T) {
	store := openTestStore(t)
	meta := NewMetadata(store, "ORCLCDB", 0, 0, 0)
	meta.SetConfirmedSCN(5)

	if err := meta.WriteCheckpoint(true); err != nil {
		t.Fatalf("initial forced write: %v", err)
	}
	writtenAt := meta.lastWrite

	if err := meta.WriteCheckpoint(true); err != nil {
		t.Fatalf("second forced write: %v", err)
	}
	if !meta.lastWrite.Equal(writtenAt) {
		t.Fatalf("expected no write when confirmedScn has not advanced since the last checkpoint, even with force")
	}
}

func TestWriteCheckpointIntervalSuppressesUnforcedWrites(t *testing.T) {
	store := openTestStore(t)
	meta := NewMetadata(store, "ORCLCDB", 0, 0, 3600)
	meta.SetConfirmedSCN(1)
	if err := meta.WriteCheckpoint(true); err != nil {
		t.Fatalf("initial forced write: %v", err)
	}

	meta.SetConfirmedSCN(2)
	if err := meta.WriteCheckpoint(false); err != nil {
		t.Fatalf("WriteCheckpoint(false): %v", err)
	}
	data, ok, err := store.Read(checkpointKey("ORCLCDB"), 0)
	if err != nil || !ok {
		t.Fatalf("expected the original checkpoint to remain: ok=%v err=%v", ok, err)
	}
	var doc checkpointDoc
	if err := json.Unmarshal(data, &doc); err != nil || doc.SCN != 1 {
		t.Fatalf("expected the stored checkpoint to keep scn 1, got %s (err=%v)", data, err)
	}
}

