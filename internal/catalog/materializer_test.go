package catalog

import (
	"regexp"
	"strings"
	"testing"

	"github.com/witnz/catalogshadow/internal/dictctx"
)

// warnCtx returns a Ctx whose warning sink appends every raised code to
// the given slice, for assertions on non-fatal warning paths.
func warnCtx(codes *[]int) *dictctx.Ctx {
	ctx := dictctx.New(nil)
	ctx.SetWarnSink(func(code int, msg string) {
		*codes = append(*codes, code)
	})
	return ctx
}

// S4: materialize a simple table.
func TestBuildMapsSimpleTable(t *testing.T) {
	c := New(nil)

	if _, err := c.AddSysUser(&SysUser{RowIDStr: "U10", User: 10, Name: "HR", Single: true}); err != nil {
		t.Fatalf("add user: %v", err)
	}
	if _, err := c.AddSysObj(&SysObj{RowIDStr: "O500", Owner: 10, Obj: 500, DataObj: 500, Type: ObjTypeTable, Name: "EMP", Single: true}); err != nil {
		t.Fatalf("add obj: %v", err)
	}
	if err := c.AddSysTab(&SysTab{RowIDStr: "TAB500", Obj: 500, Flags: 0}); err != nil {
		t.Fatalf("add tab: %v", err)
	}
	if err := c.AddSysCol(&SysCol{RowIDStr: "COL1", Obj: 500, Col: 1, SegCol: 1, IntCol: 1, Name: "ID", Type: ColTypeVarchar, CharsetForm: CharsetFormImplicit}); err != nil {
		t.Fatalf("add col: %v", err)
	}
	if err := c.AddSysDeferredStg(&SysDeferredStg{RowIDStr: "DS500", Obj: 500}); err != nil {
		t.Fatalf("add deferred stg: %v", err)
	}

	var msgs []string
	opts := MaterializeOptions{
		OwnerRegex: regexp.MustCompile("^HR$"), TableRegex: regexp.MustCompile("^EMP$"),
		DefaultCharmap: 873, DefaultNcharCharmap: 2000,
	}
	if err := c.BuildMaps(opts, &msgs); err != nil {
		t.Fatalf("BuildMaps: %v", err)
	}

	table, ok := c.tableMap[500]
	if !ok {
		t.Fatalf("expected descriptor published for obj 500")
	}
	if len(table.Columns) != 1 || table.Columns[0].Name != "ID" {
		t.Fatalf("expected exactly one column ID, got %+v", table.Columns)
	}
	if len(table.Lobs) != 0 {
		t.Fatalf("expected no LOBs, got %d", len(table.Lobs))
	}

	found := false
	for _, m := range msgs {
		if strings.HasSuffix(m, "(dataobj:500, obj:500, columns:1, lobs:0, lob-idx:0)") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a materialization summary message, got %v", msgs)
	}

	if _, ok := c.tablePartitionMap[500]; !ok {
		t.Fatalf("expected tablePartitionMap to carry the owning obj entry")
	}
}

// B2: LOB column with no discovered index still publishes the
// descriptor, with a warning surfaced through the Ctx hook.
func TestBuildMapsLobWithoutIndexWarns(t *testing.T) {
	var warnings []int
	ctx := warnCtx(&warnings)
	c := New(ctx)

	_, _ = c.AddSysUser(&SysUser{RowIDStr: "U1", User: 1, Name: "HR", Single: true})
	_, _ = c.AddSysObj(&SysObj{RowIDStr: "O1", Owner: 1, Obj: 600, DataObj: 600, Type: ObjTypeTable, Name: "DOCS", Single: true})
	_ = c.AddSysTab(&SysTab{RowIDStr: "TAB600", Obj: 600})
	_ = c.AddSysDeferredStg(&SysDeferredStg{RowIDStr: "DS600", Obj: 600})
	_ = c.AddSysCol(&SysCol{RowIDStr: "COL600", Obj: 600, Col: 1, SegCol: 1, IntCol: 1, Name: "BODY", Type: ColTypeClob, CharsetForm: CharsetFormImplicit})
	_ = c.AddSysTs(&SysTs{RowIDStr: "TS1", Ts: 1, BlockSize: 8192})
	_ = c.AddSysLob(&SysLob{RowIDStr: "LOB1", Obj: 600, Col: 1, IntCol: 1, LObj: 601, Ts: 1})

	var msgs []string
	opts := MaterializeOptions{DefaultCharmap: 873, DefaultNcharCharmap: 2000}
	if err := c.BuildMaps(opts, &msgs); err != nil {
		t.Fatalf("BuildMaps: %v", err)
	}

	table, ok := c.tableMap[600]
	if !ok {
		t.Fatalf("expected descriptor published despite missing LOB index")
	}
	if len(table.Lobs) != 1 {
		t.Fatalf("expected one LOB, got %d", len(table.Lobs))
	}
	if len(table.Lobs[0].Indexes) != 0 {
		t.Fatalf("expected zero discovered indexes")
	}

	has60021 := false
	for _, code := range warnings {
		if code == 60021 {
			has60021 = true
		}
	}
	if !has60021 {
		t.Fatalf("expected warning 60021, got %v", warnings)
	}
}

// Partitioned table with a partitioned LOB: fragment partitions must
// be registered by the fragment's physical dataObj (via OBJ$), not its
// logical LOBFRAG$ obj id, and the LOB's block size must come from the
// LOB's own tablespace, not the owning table's.
func TestBuildMapsPartitionedLobResolvesFragmentDataObj(t *testing.T) {
	c := New(nil)

	_, _ = c.AddSysUser(&SysUser{RowIDStr: "U1", User: 1, Name: "HR", Single: true})
	_, _ = c.AddSysObj(&SysObj{RowIDStr: "O700", Owner: 1, Obj: 700, DataObj: 700, Type: ObjTypeTable, Name: "DOCS", Single: true})
	_ = c.AddSysTab(&SysTab{RowIDStr: "TAB700", Obj: 700, Flags: tabFlagPartitioned})
	_ = c.AddSysDeferredStg(&SysDeferredStg{RowIDStr: "DS700", Obj: 700})
	_ = c.AddSysCol(&SysCol{RowIDStr: "COL700", Obj: 700, Col: 1, SegCol: 1, IntCol: 1, Name: "BODY", Type: ColTypeClob, CharsetForm: CharsetFormImplicit})

	// the table's own tablespace maps to a different block size than
	// the LOB segment's tablespace, so using the wrong one is detectable.
	_ = c.AddSysTs(&SysTs{RowIDStr: "TS1", Ts: 1, BlockSize: 8192})
	_ = c.AddSysTs(&SysTs{RowIDStr: "TS2", Ts: 2, BlockSize: 16384})

	_ = c.AddSysLob(&SysLob{RowIDStr: "LOB1", Obj: 700, Col: 1, IntCol: 1, LObj: 701, Ts: 2})
	_, _ = c.AddSysObj(&SysObj{RowIDStr: "O701", Owner: 1, Obj: 701, DataObj: 701, Type: ObjTypeTable, Name: "SYS_LOB0000000700C00001$$", Single: true})

	// fragment's logical obj (800) differs from its physical dataObj
	// (9800), the way an OBJ$ rename/reorg would produce.
	_ = c.AddSysLobFrag(&SysLobFrag{RowIDStr: "FRAG1", ParentObj: 701, FragObj: 800, Ts: 2})
	_, _ = c.AddSysObj(&SysObj{RowIDStr: "O800", Owner: 1, Obj: 800, DataObj: 9800, Type: ObjTypeTable, Name: "SYS_LOB_FRAG_800", Single: true})

	var msgs []string
	opts := MaterializeOptions{DefaultCharmap: 873, DefaultNcharCharmap: 2000}
	if err := c.BuildMaps(opts, &msgs); err != nil {
		t.Fatalf("BuildMaps: %v", err)
	}

	table, ok := c.tableMap[700]
	if !ok {
		t.Fatalf("expected descriptor published for obj 700")
	}
	if len(table.Lobs) != 1 {
		t.Fatalf("expected one LOB, got %d", len(table.Lobs))
	}
	lob := table.Lobs[0]

	if lob.BlockSize != 16264 {
		t.Fatalf("expected LOB block size from its own tablespace (16264), got %d", lob.BlockSize)
	}

	wantDataObj := packObj2(9800, 9800)
	foundFragment := false
	for _, p := range lob.Partitions {
		if p == wantDataObj {
			foundFragment = true
		}
		if lo, _ := unpackObj2(p); lo == 800 {
			t.Fatalf("fragment partition %d registered under logical obj 800 instead of its dataObj 9800", p)
		}
	}
	if !foundFragment {
		t.Fatalf("expected fragment partition packed from dataObj 9800, got %v", lob.Partitions)
	}
}

// B3: unmapped TS blockSize warns 60022 and defaults to 8132.
func TestLobBlockSizeDefaultsOnUnmappedSize(t *testing.T) {
	var warnings []int
	ctx := warnCtx(&warnings)
	c := New(ctx)
	_ = c.AddSysTs(&SysTs{RowIDStr: "TS1", Ts: 1, BlockSize: 4096})

	size := c.lobBlockSize(1)
	if size != 8132 {
		t.Fatalf("expected default block size 8132, got %d", size)
	}
	has60022 := false
	for _, code := range warnings {
		if code == 60022 {
			has60022 = true
		}
	}
	if !has60022 {
		t.Fatalf("expected warning 60022, got %v", warnings)
	}
}
