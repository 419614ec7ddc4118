// Package writer is the Writer Loop (C5): it walks the builder's ring
// of buffers, hands finished messages to the Delivery Queue, and owns
// the checkpoint file's read/write lifecycle (§4.6, §6).
package writer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/witnz/catalogshadow/internal/dictexc"
	"github.com/witnz/catalogshadow/internal/statestore"
)

// Status mirrors the two lifecycle states a session moves through:
// BOOT on first run (no checkpoint found), REPLICATE once a checkpoint
// has been read or written.
type Status int

const (
	StatusBoot Status = iota
	StatusReplicate
)

// ZeroSCN marks "no confirmed position yet"; writeCheckpoint(true) with
// a confirmedScn still at ZeroSCN is a documented no-op (B4's §8
// counterpart, confirm-before-any-message case).
const ZeroSCN uint64 = 0

// CheckpointFileMaxSize bounds the stored checkpoint blob (§6).
const CheckpointFileMaxSize = 4096

// checkpointDoc is the on-disk JSON shape (§6): database, scn,
// resetlogs, activation, nothing else.
type checkpointDoc struct {
	Database   string `json:"database"`
	SCN        uint64 `json:"scn"`
	ResetLogs  uint32 `json:"resetlogs"`
	Activation uint32 `json:"activation"`
}

// Metadata holds the fields the checkpoint persists plus the runtime
// status derived from whether a checkpoint file was found.
type Metadata struct {
	Database   string
	ResetLogs  uint32
	Activation uint32

	StartSCN      uint64
	confirmedScn  uint64
	checkpointScn uint64
	lastWrite     time.Time

	CheckpointIntervalS int

	store *statestore.Store
}

func NewMetadata(store *statestore.Store, database string, resetLogs, activation uint32, checkpointIntervalS int) *Metadata {
	return &Metadata{
		Database:            database,
		ResetLogs:           resetLogs,
		Activation:          activation,
		CheckpointIntervalS: checkpointIntervalS,
		store:               store,
	}
}

func checkpointKey(database string) string {
	return database + "-chkpt"
}

// SetConfirmedSCN is called by the writer loop as the Delivery Queue
// advances confirmedScn.
func (m *Metadata) SetConfirmedSCN(scn uint64) { m.confirmedScn = scn }

func (m *Metadata) ConfirmedSCN() uint64 { return m.confirmedScn }

// WriteCheckpoint follows Writer.cpp lines 308-340: no write at all
// when confirmedScn hasn't advanced since the last checkpoint or is
// still ZeroSCN, regardless of force; force only bypasses the
// time-interval gate.
func (m *Metadata) WriteCheckpoint(force bool) error {
	if m.checkpointScn == m.confirmedScn || m.confirmedScn == ZeroSCN {
		return nil
	}
	if !force && time.Since(m.lastWrite) < time.Duration(m.CheckpointIntervalS)*time.Second {
		return nil
	}

	doc := checkpointDoc{
		Database:   m.Database,
		SCN:        m.confirmedScn,
		ResetLogs:  m.ResetLogs,
		Activation: m.Activation,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if len(data) > CheckpointFileMaxSize {
		return dictexc.NewRuntime(20002, "checkpoint document exceeds CheckpointFileMaxSize")
	}
	if err := m.store.Write(checkpointKey(m.Database), data); err != nil {
		return err
	}
	m.checkpointScn = m.confirmedScn
	m.lastWrite = time.Now()
	return nil
}

// ReadCheckpoint follows Writer.cpp lines 341-372: a missing file
// leaves status at BOOT; a found file with a mismatched database name
// raises 20001; otherwise startScn is set and status moves to
// REPLICATE.
func (m *Metadata) ReadCheckpoint() (Status, error) {
	data, ok, err := m.store.Read(checkpointKey(m.Database), CheckpointFileMaxSize)
	if err != nil {
		return StatusBoot, err
	}
	if !ok {
		return StatusBoot, nil
	}

	var doc checkpointDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return StatusBoot, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	if doc.Database != m.Database {
		return StatusBoot, dictexc.NewData(20001, fmt.Sprintf(
			"checkpoint database mismatch: file has %q, expected %q", doc.Database, m.Database))
	}

	m.StartSCN = doc.SCN
	m.confirmedScn = doc.SCN
	m.checkpointScn = doc.SCN
	m.ResetLogs = doc.ResetLogs
	m.Activation = doc.Activation
	return StatusReplicate, nil
}
