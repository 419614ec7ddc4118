package catalog

// OracleColumn is one materialized column of a table descriptor (§3.2).
type OracleColumn struct {
	SegCol      int64
	IntCol      int64
	Name        string
	Type        int64
	Length      int64
	Precision   int64
	Scale       int64
	CharmapID   int64
	GuardID     int64
	Nullable    bool
	Supplemental bool
}

// OracleLob is one materialized LOB column. Table is a non-owning back
// reference (design note "Cyclic references (LOB<->Table)") — it is set
// once when the materializer constructs the lob and never mutates the
// lob's own fields.
type OracleLob struct {
	Obj        int64
	DataObj    int64
	LObj       int64
	Col        int64
	IntCol     int64
	Indexes    []int64 // dataObj of each SYS_IL... index object found
	Partitions []int64 // packObj2(dataObj, dataObj) of every LOB partition/fragment/self entry
	BlockSize  int64
	Table      *OracleTable
}

// OracleTable is the immutable, published materialized descriptor C2
// produces and the redo parser consumes (§3.2). Once placed in
// Catalog.tableMap it is never mutated in place; BuildMaps skips an obj
// that already has a published descriptor and does not rebuild it.
type OracleTable struct {
	Obj        int64
	DataObj    int64
	Owner      int64
	Name       string
	Columns    []*OracleColumn
	Lobs       []*OracleLob
	Partitions []int64 // packed(obj, dataObj) per §4.3, includes sub-partitions
	Clustered  bool
	Partitioned bool
	RowMovement bool
	Dependency  bool
	NumPK       int
	NumSup      int
	SupLogColMissing bool
	SuppLogTablePrimary bool
	SuppLogTableAll     bool
}

// packObj2 packs (obj, dataObj) into a single 64-bit integer: high 32
// bits obj, low 32 bits dataObj (§4.3). unpackObj2 is its exact inverse
// (R2).
func packObj2(obj, dataObj int64) int64 {
	return (obj&0xFFFFFFFF)<<32 | (dataObj & 0xFFFFFFFF)
}

func unpackObj2(packed int64) (obj, dataObj int64) {
	obj = (packed >> 32) & 0xFFFFFFFF
	dataObj = packed & 0xFFFFFFFF
	return obj, dataObj
}
