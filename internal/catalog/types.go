package catalog

// Every SYS.* row type below mirrors a row of the Oracle data dictionary
// meta-table named in its comment (§3.1). RowID is the natural row
// identity; other fields are either part of a secondary key or are
// consumed directly by the Materializer (C2).

// SysCCol — CCOL$ (constraint column). Secondary key: (obj, intCol, con)
// unique.
type SysCCol struct {
	RowIDStr string
	Obj      int64
	IntCol   int64
	Con      int64
	Spare1   int64 // nonzero marks the column as excluded from supplemental logging
}

func (r SysCCol) RowID() string { return r.RowIDStr }

// SysCDef — CDEF$ (constraint definition). Secondary keys: (obj, con)
// unique; con unique.
type SysCDef struct {
	RowIDStr string
	Obj      int64
	Con      int64
	Type     int64 // 2 = primary key
}

func (r SysCDef) RowID() string      { return r.RowIDStr }
func (r SysCDef) IsPK() bool         { return r.Type == cdefTypePK }
func (r SysCDef) IsSupplementalLog() bool {
	return r.Type == cdefTypeSupplementalLogPK || r.Type == cdefTypeSupplementalLogAll ||
		r.Type == cdefTypeSupplementalLogFK || r.Type == cdefTypeSupplementalLogUnique
}

const (
	cdefTypePK                     = 2
	cdefTypeSupplementalLogPK      = 12
	cdefTypeSupplementalLogUnique  = 13
	cdefTypeSupplementalLogFK      = 14
	cdefTypeSupplementalLogAll     = 17
)

// Charset form, per §4.2 step 3.
const (
	CharsetFormImplicit = 1
	CharsetFormNChar    = 2
)

// Oracle column type ids relevant to charset validation and LOB handling.
const (
	ColTypeVarchar = 1
	ColTypeChar    = 96
	ColTypeClob    = 112
)

// SysCol — COL$ (column). Secondary key: (obj, segCol) unique when
// segCol > 0.
type SysCol struct {
	RowIDStr    string
	Obj         int64
	Col         int64
	SegCol      int64
	IntCol      int64
	Name        string
	Type        int64
	Length      int64
	Precision   int64
	Scale       int64
	CharsetForm int64
	CharsetID   int64
	Null        bool
}

func (r SysCol) RowID() string { return r.RowIDStr }

// SysDeferredStg — DEFERRED_STG$. Secondary key: obj unique.
type SysDeferredStg struct {
	RowIDStr    string
	Obj         int64
	CompressionFlags int64
}

func (r SysDeferredStg) RowID() string { return r.RowIDStr }

// IsCompressed follows the original's bit test on COMP_FLAGS — bit 0 set.
func (r SysDeferredStg) IsCompressed() bool { return r.CompressionFlags&1 != 0 }

// SysECol — ECOL$ (edition column). Secondary key: (tabObj, colNum) unique.
type SysECol struct {
	RowIDStr string
	TabObj   int64
	ColNum   int64
	GuardID  int64
}

func (r SysECol) RowID() string { return r.RowIDStr }

// SysLob — LOB$. Secondary keys: (obj, intCol) unique; lObj unique.
type SysLob struct {
	RowIDStr string
	Obj      int64
	Col      int64
	IntCol   int64
	LObj     int64 // the LOB's own internal object id (= dataObj via OBJ$ lookup)
	Ts       int64
}

func (r SysLob) RowID() string { return r.RowIDStr }

// SysLobCompPart — LOBCOMPPART$. Secondary keys: (lObj, partObj) unique;
// partObj unique.
type SysLobCompPart struct {
	RowIDStr string
	LObj     int64
	PartObj  int64
}

func (r SysLobCompPart) RowID() string { return r.RowIDStr }

// SysLobFrag — LOBFRAG$. Secondary key: (parentObj, fragObj) unique.
// parentObj is either a LOB$.lObj or a LOBCOMPPART$.partObj.
type SysLobFrag struct {
	RowIDStr  string
	ParentObj int64
	FragObj   int64
	Ts        int64
}

func (r SysLobFrag) RowID() string { return r.RowIDStr }

// SysObj — OBJ$. Secondary keys: (owner, name, obj, dataObj) unique; obj
// unique. Carries the single flag (I5).
type SysObj struct {
	RowIDStr string
	Owner    int64
	Obj      int64
	DataObj  int64
	Type     int64
	Name     string
	Flags    int64
	Single   bool
}

func (r SysObj) RowID() string { return r.RowIDStr }

const (
	ObjTypeTable = 2
	ObjTypeIndex = 1
)

func (r SysObj) IsDropped() bool { return r.Flags&objFlagDropped != 0 }

const objFlagDropped = 0x8000000

// SysTab — TAB$. Secondary key: obj unique.
type SysTab struct {
	RowIDStr       string
	Obj            int64
	Ts             int64
	Clu            int64 // nonzero: table is clustered
	Flags          int64
	Property       int64
}

func (r SysTab) RowID() string { return r.RowIDStr }

const (
	tabFlagIOT              = 1 << 0
	tabFlagBinary           = 1 << 1
	tabFlagTemporary        = 1 << 2
	tabFlagNested           = 1 << 3
	tabFlagPartitioned      = 1 << 4
	tabFlagInitial          = 1 << 5
	tabFlagRowMovement      = 1 << 6
	tabFlagDependency       = 1 << 7
)

func (r SysTab) IsIOT() bool         { return r.Flags&tabFlagIOT != 0 }
func (r SysTab) IsBinary() bool      { return r.Flags&tabFlagBinary != 0 }
func (r SysTab) IsTemporary() bool   { return r.Flags&tabFlagTemporary != 0 }
func (r SysTab) IsNested() bool      { return r.Flags&tabFlagNested != 0 }
func (r SysTab) IsPartitioned() bool { return r.Flags&tabFlagPartitioned != 0 }
func (r SysTab) IsInitial() bool     { return r.Flags&tabFlagInitial != 0 }
func (r SysTab) IsRowMovement() bool { return r.Flags&tabFlagRowMovement != 0 }
func (r SysTab) IsDependency() bool  { return r.Flags&tabFlagDependency != 0 }
func (r SysTab) IsClustered() bool   { return r.Clu != 0 }

// SysTabComPart — TABCOMPART$. Secondary keys: (bo, obj) unique; obj unique.
type SysTabComPart struct {
	RowIDStr string
	Bo       int64 // base object
	Obj      int64
	DataObj  int64
}

func (r SysTabComPart) RowID() string { return r.RowIDStr }

// SysTabPart — TABPART$. Secondary key: (bo, obj) unique.
type SysTabPart struct {
	RowIDStr string
	Bo       int64
	Obj      int64
	DataObj  int64
}

func (r SysTabPart) RowID() string { return r.RowIDStr }

// SysTabSubPart — TABSUBPART$. Secondary key: (pObj, obj) unique.
type SysTabSubPart struct {
	RowIDStr string
	PObj     int64 // parent composite partition obj
	Obj      int64
	DataObj  int64
}

func (r SysTabSubPart) RowID() string { return r.RowIDStr }

// SysTs — TS$ (tablespace). Secondary key: ts unique.
type SysTs struct {
	RowIDStr  string
	Ts        int64
	Name      string
	BlockSize int64
}

func (r SysTs) RowID() string { return r.RowIDStr }

// SysUser — USER$. Secondary key: user unique. Carries the single flag
// (I5).
type SysUser struct {
	RowIDStr string
	User     int64
	Name     string
	Single   bool
}

func (r SysUser) RowID() string { return r.RowIDStr }
