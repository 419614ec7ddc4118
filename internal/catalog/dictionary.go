package catalog

import (
	"fmt"
	"hash/fnv"

	"github.com/witnz/catalogshadow/internal/dictctx"
	"github.com/witnz/catalogshadow/internal/dictexc"
)

func hashName(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// Catalog is the in-memory catalog shadow: the Dictionary Store (C1),
// its published table descriptors (§3.2), and the touch-tracking state
// the Materializer (C2) consumes. C1 and C2 live in one package because
// the Materializer reaches directly into the store's touched sets and
// secondary indices — the coupling the specification describes as 70%
// of the system's implementation weight.
type Catalog struct {
	ctx *dictctx.Ctx

	ccol        *MetaStore[SysCCol]
	cdef        *MetaStore[SysCDef]
	col         *MetaStore[SysCol]
	deferredStg *MetaStore[SysDeferredStg]
	ecol        *MetaStore[SysECol]
	lob         *MetaStore[SysLob]
	lobCompPart *MetaStore[SysLobCompPart]
	lobFrag     *MetaStore[SysLobFrag]
	obj         *MetaStore[SysObj]
	tab         *MetaStore[SysTab]
	tabComPart  *MetaStore[SysTabComPart]
	tabPart     *MetaStore[SysTabPart]
	tabSubPart  *MetaStore[SysTabSubPart]
	ts          *MetaStore[SysTs]
	user        *MetaStore[SysUser]

	// Indices reused outside their owning MetaStore for ownership
	// resolution (dropUnusedMetadata, touchTable propagation) and for
	// the Materializer's prefix scans.
	objByObj         *SecondaryIndex // obj -> OBJ$ rowId
	userByUser       *SecondaryIndex // user -> USER$ rowId
	colByObjSegCol   *SecondaryIndex // (obj, segCol) -> COL$ rowId, non-unique
	ccolByObjIntCol  *SecondaryIndex // (obj, intCol, 0) -> CCOL$ rowId, prefix scans
	cdefByObj        *SecondaryIndex // (obj, 0) -> CDEF$ rowId, prefix scans
	cdefByCon        *SecondaryIndex // con -> CDEF$ rowId
	lobByObjIntCol   *SecondaryIndex // (obj, intCol) -> LOB$ rowId
	lobByLObj        *SecondaryIndex // lObj -> LOB$ rowId
	lobCompPartByPartObj *SecondaryIndex // partObj -> LOBCOMPPART$ rowId
	lobFragByParent  *SecondaryIndex // (parentObj, fragObj) -> LOBFRAG$ rowId, prefix scans
	tabPartByBo      *SecondaryIndex // (bo, 0) -> TABPART$ rowId, prefix scans
	tabComPartByBo   *SecondaryIndex // (bo, 0) -> TABCOMPART$ rowId, prefix scans
	tabSubPartByPObj *SecondaryIndex // (pObj, 0) -> TABSUBPART$ rowId, prefix scans
	tsByTs           *SecondaryIndex // ts -> TS$ rowId

	tableMap          map[int64]*OracleTable
	tablePartitionMap map[int64]*OracleTable
	lobIndexMap       map[int64]*OracleLob
	lobPartitionMap   map[int64]*OracleLob

	identifiersTouched map[int64]bool
	tablesTouched      map[int64]*OracleTable
	touched            bool
}

func New(ctx *dictctx.Ctx) *Catalog {
	if ctx == nil {
		ctx = dictctx.New(nil)
	}
	c := &Catalog{ctx: ctx}

	c.objByObj = NewSecondaryIndex(true)
	c.userByUser = NewSecondaryIndex(true)
	c.colByObjSegCol = NewSecondaryIndex(false)
	c.ccolByObjIntCol = NewSecondaryIndex(true)
	c.cdefByObj = NewSecondaryIndex(true)
	c.cdefByCon = NewSecondaryIndex(true)
	c.lobByObjIntCol = NewSecondaryIndex(true)
	c.lobByLObj = NewSecondaryIndex(true)
	c.lobCompPartByPartObj = NewSecondaryIndex(true)
	c.lobFragByParent = NewSecondaryIndex(true)
	c.tabPartByBo = NewSecondaryIndex(true)
	c.tabComPartByBo = NewSecondaryIndex(true)
	c.tabSubPartByPObj = NewSecondaryIndex(true)
	c.tsByTs = NewSecondaryIndex(true)

	c.ccol = newMetaStore[SysCCol]("CCOL$", secondaryDef[SysCCol]{
		idx: c.ccolByObjIntCol, name: "(obj,intCol,con)",
		keyFn: func(r *SysCCol) Key { return Key{r.Obj, r.IntCol, r.Con} },
	})
	c.cdef = newMetaStore[SysCDef]("CDEF$",
		secondaryDef[SysCDef]{idx: c.cdefByObj, name: "(obj,con)", keyFn: func(r *SysCDef) Key { return Key{r.Obj, r.Con} }},
		secondaryDef[SysCDef]{idx: c.cdefByCon, name: "con", keyFn: func(r *SysCDef) Key { return Key{r.Con} }},
	)
	c.col = newMetaStore[SysCol]("COL$", secondaryDef[SysCol]{
		idx: c.colByObjSegCol, name: "(obj,segCol)",
		keyFn: func(r *SysCol) Key { return Key{r.Obj, r.SegCol} },
	})
	c.deferredStg = newMetaStore[SysDeferredStg]("DEFERRED_STG$", secondaryDef[SysDeferredStg]{
		idx: NewSecondaryIndex(true), name: "obj",
		keyFn: func(r *SysDeferredStg) Key { return Key{r.Obj} },
	})
	c.ecol = newMetaStore[SysECol]("ECOL$", secondaryDef[SysECol]{
		idx: NewSecondaryIndex(true), name: "(tabObj,colNum)",
		keyFn: func(r *SysECol) Key { return Key{r.TabObj, r.ColNum} },
	})
	c.lob = newMetaStore[SysLob]("LOB$",
		secondaryDef[SysLob]{idx: c.lobByObjIntCol, name: "(obj,intCol)", keyFn: func(r *SysLob) Key { return Key{r.Obj, r.IntCol} }},
		secondaryDef[SysLob]{idx: c.lobByLObj, name: "lObj", keyFn: func(r *SysLob) Key { return Key{r.LObj} }},
	)
	c.lobCompPart = newMetaStore[SysLobCompPart]("LOBCOMPPART$",
		secondaryDef[SysLobCompPart]{idx: NewSecondaryIndex(true), name: "(lObj,partObj)", keyFn: func(r *SysLobCompPart) Key { return Key{r.LObj, r.PartObj} }},
		secondaryDef[SysLobCompPart]{idx: c.lobCompPartByPartObj, name: "partObj", keyFn: func(r *SysLobCompPart) Key { return Key{r.PartObj} }},
	)
	c.lobFrag = newMetaStore[SysLobFrag]("LOBFRAG$", secondaryDef[SysLobFrag]{
		idx: c.lobFragByParent, name: "(parentObj,fragObj)",
		keyFn: func(r *SysLobFrag) Key { return Key{r.ParentObj, r.FragObj} },
	})
	c.obj = newMetaStore[SysObj]("OBJ$",
		secondaryDef[SysObj]{idx: NewSecondaryIndex(true), name: "(owner,name,obj,dataObj)", keyFn: func(r *SysObj) Key { return Key{r.Owner, hashName(r.Name), r.Obj, r.DataObj} }},
		secondaryDef[SysObj]{idx: c.objByObj, name: "obj", keyFn: func(r *SysObj) Key { return Key{r.Obj} }},
	)
	c.tab = newMetaStore[SysTab]("TAB$", secondaryDef[SysTab]{
		idx: NewSecondaryIndex(true), name: "obj",
		keyFn: func(r *SysTab) Key { return Key{r.Obj} },
	})
	c.tabComPart = newMetaStore[SysTabComPart]("TABCOMPART$",
		secondaryDef[SysTabComPart]{idx: c.tabComPartByBo, name: "(bo,obj)", keyFn: func(r *SysTabComPart) Key { return Key{r.Bo, r.Obj} }},
		secondaryDef[SysTabComPart]{idx: NewSecondaryIndex(true), name: "obj", keyFn: func(r *SysTabComPart) Key { return Key{r.Obj} }},
	)
	c.tabPart = newMetaStore[SysTabPart]("TABPART$", secondaryDef[SysTabPart]{
		idx: c.tabPartByBo, name: "(bo,obj)",
		keyFn: func(r *SysTabPart) Key { return Key{r.Bo, r.Obj} },
	})
	c.tabSubPart = newMetaStore[SysTabSubPart]("TABSUBPART$", secondaryDef[SysTabSubPart]{
		idx: c.tabSubPartByPObj, name: "(pObj,obj)",
		keyFn: func(r *SysTabSubPart) Key { return Key{r.PObj, r.Obj} },
	})
	c.ts = newMetaStore[SysTs]("TS$", secondaryDef[SysTs]{
		idx: c.tsByTs, name: "ts",
		keyFn: func(r *SysTs) Key { return Key{r.Ts} },
	})
	c.user = newMetaStore[SysUser]("USER$", secondaryDef[SysUser]{
		idx: c.userByUser, name: "user",
		keyFn: func(r *SysUser) Key { return Key{r.User} },
	})

	c.tableMap = make(map[int64]*OracleTable)
	c.tablePartitionMap = make(map[int64]*OracleTable)
	c.lobIndexMap = make(map[int64]*OracleLob)
	c.lobPartitionMap = make(map[int64]*OracleLob)
	c.identifiersTouched = make(map[int64]bool)
	c.tablesTouched = make(map[int64]*OracleTable)

	return c
}

// touchTable implements §3.1's touch-tracking contract: touchTable(0) is
// a no-op; otherwise obj is recorded in identifiersTouched and, if it
// already has a published descriptor, that descriptor is recorded in
// tablesTouched. The global touched flag is set unconditionally by
// addK/dropK (see each AddSysX/DropSysX below), not here.
func (c *Catalog) touchTable(obj int64) {
	if obj == 0 {
		return
	}
	c.identifiersTouched[obj] = true
	if t, ok := c.tableMap[obj]; ok {
		c.tablesTouched[obj] = t
	}
}

// touchTableViaLObj resolves a LOB-family record's owning table through
// LOB$.lObj before propagating the touch.
func (c *Catalog) touchTableViaLObj(lObj int64) {
	if rowID, ok := c.lobByLObj.Find(Key{lObj}); ok {
		if lob, ok := c.lob.Find(rowID); ok {
			c.touchTable((*lob).Obj)
		}
	}
}

// touchTableViaParentObj resolves a LOBFRAG$ record's owning table: the
// parent is either a LOB$.lObj directly, or a LOBCOMPPART$.partObj one
// level further up.
func (c *Catalog) touchTableViaParentObj(parentObj int64) {
	if rowID, ok := c.lobByLObj.Find(Key{parentObj}); ok {
		if lob, ok := c.lob.Find(rowID); ok {
			c.touchTable((*lob).Obj)
			return
		}
	}
	if rowID, ok := c.lobCompPartByPartObj.Find(Key{parentObj}); ok {
		if part, ok := c.lobCompPart.Find(rowID); ok {
			c.touchTableViaLObj((*part).LObj)
		}
	}
}

func (c *Catalog) markTouched() { c.touched = true }

// --- CCOL$ ---

func (c *Catalog) AddSysCCol(r *SysCCol) error {
	if err := c.ccol.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTable(r.Obj)
	return nil
}

func (c *Catalog) DropSysCCol(rowID string) error {
	rec, _ := c.ccol.Find(rowID)
	if err := c.ccol.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTable((*rec).Obj)
	}
	return nil
}

func (c *Catalog) FindSysCCol(rowID string) (*SysCCol, bool) { return c.ccol.Find(rowID) }

// --- CDEF$ ---

func (c *Catalog) AddSysCDef(r *SysCDef) error {
	if err := c.cdef.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTable(r.Obj)
	return nil
}

func (c *Catalog) DropSysCDef(rowID string) error {
	rec, _ := c.cdef.Find(rowID)
	if err := c.cdef.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTable((*rec).Obj)
	}
	return nil
}

func (c *Catalog) FindSysCDef(rowID string) (*SysCDef, bool) { return c.cdef.Find(rowID) }

// --- COL$ ---
//
// The (obj,segCol) secondary index is non-unique in the underlying
// store (rows with segCol<=0 — dropped/placeholder columns — legitimately
// share a key); the uniqueness invariant "unique when segCol>0" from
// §3.1 is therefore enforced here rather than generically.

func (c *Catalog) AddSysCol(r *SysCol) error {
	if r.SegCol > 0 {
		dup := false
		c.colByObjSegCol.ScanPrefix(Key{r.Obj, r.SegCol}, func(key Key, rowID string) bool {
			if len(key) == 2 && key[1] == r.SegCol && rowID != r.RowIDStr {
				dup = true
				return false
			}
			return true
		})
		if dup {
			return dictexc.NewData(50024, fmt.Sprintf("COL$: secondary key collision on (obj,segCol) for rowId %q", r.RowIDStr))
		}
	}
	if err := c.col.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTable(r.Obj)
	return nil
}

func (c *Catalog) DropSysCol(rowID string) error {
	rec, _ := c.col.Find(rowID)
	if err := c.col.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTable((*rec).Obj)
	}
	return nil
}

func (c *Catalog) FindSysCol(rowID string) (*SysCol, bool) { return c.col.Find(rowID) }

// --- DEFERRED_STG$ ---

func (c *Catalog) AddSysDeferredStg(r *SysDeferredStg) error {
	if err := c.deferredStg.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTable(r.Obj)
	return nil
}

func (c *Catalog) DropSysDeferredStg(rowID string) error {
	rec, _ := c.deferredStg.Find(rowID)
	if err := c.deferredStg.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTable((*rec).Obj)
	}
	return nil
}

func (c *Catalog) FindSysDeferredStg(rowID string) (*SysDeferredStg, bool) {
	return c.deferredStg.Find(rowID)
}

// --- ECOL$ ---

func (c *Catalog) AddSysECol(r *SysECol) error {
	if err := c.ecol.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTable(r.TabObj)
	return nil
}

func (c *Catalog) DropSysECol(rowID string) error {
	rec, _ := c.ecol.Find(rowID)
	if err := c.ecol.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTable((*rec).TabObj)
	}
	return nil
}

func (c *Catalog) FindSysECol(rowID string) (*SysECol, bool) { return c.ecol.Find(rowID) }

// --- LOB$ ---

func (c *Catalog) AddSysLob(r *SysLob) error {
	if err := c.lob.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTable(r.Obj)
	return nil
}

func (c *Catalog) DropSysLob(rowID string) error {
	rec, _ := c.lob.Find(rowID)
	if err := c.lob.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTable((*rec).Obj)
	}
	return nil
}

func (c *Catalog) FindSysLob(rowID string) (*SysLob, bool) { return c.lob.Find(rowID) }

// --- LOBCOMPPART$ ---

func (c *Catalog) AddSysLobCompPart(r *SysLobCompPart) error {
	if err := c.lobCompPart.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTableViaLObj(r.LObj)
	return nil
}

func (c *Catalog) DropSysLobCompPart(rowID string) error {
	rec, _ := c.lobCompPart.Find(rowID)
	if err := c.lobCompPart.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTableViaLObj((*rec).LObj)
	}
	return nil
}

func (c *Catalog) FindSysLobCompPart(rowID string) (*SysLobCompPart, bool) {
	return c.lobCompPart.Find(rowID)
}

// --- LOBFRAG$ ---

func (c *Catalog) AddSysLobFrag(r *SysLobFrag) error {
	if err := c.lobFrag.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTableViaParentObj(r.ParentObj)
	return nil
}

func (c *Catalog) DropSysLobFrag(rowID string) error {
	rec, _ := c.lobFrag.Find(rowID)
	if err := c.lobFrag.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTableViaParentObj((*rec).ParentObj)
	}
	return nil
}

func (c *Catalog) FindSysLobFrag(rowID string) (*SysLobFrag, bool) { return c.lobFrag.Find(rowID) }

// --- OBJ$ (I5 single-flag semantics) ---

// AddSysObj implements I5/B1: a genuinely new rowId is inserted
// normally (still subject to I2/I3 via the generic store). A repeat add
// for an existing rowId is idempotent: if the stored record has
// single=true and the incoming record has single=false, the flag is
// cleared and true is returned; if the stored record already has
// single=false it is a no-op returning true; otherwise (stored
// single=true) it is a no-op returning false, signalling "already
// present".
func (c *Catalog) AddSysObj(r *SysObj) (bool, error) {
	if existing, ok := c.obj.Find(r.RowID()); ok {
		if (*existing).Single && !r.Single {
			(*existing).Single = false
			c.obj.touched[r.RowID()] = existing
			c.markTouched()
			c.touchTable((*existing).Obj)
			return true, nil
		}
		return !(*existing).Single, nil
	}
	if err := c.obj.Add(r); err != nil {
		return false, err
	}
	c.markTouched()
	c.touchTable(r.Obj)
	return true, nil
}

func (c *Catalog) DropSysObj(rowID string) error {
	rec, _ := c.obj.Find(rowID)
	if err := c.obj.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTable((*rec).Obj)
	}
	return nil
}

func (c *Catalog) FindSysObj(rowID string) (*SysObj, bool) { return c.obj.Find(rowID) }

func (c *Catalog) FindSysObjByObj(obj int64) (*SysObj, bool) {
	rowID, ok := c.objByObj.Find(Key{obj})
	if !ok {
		return nil, false
	}
	return c.obj.Find(rowID)
}

// --- TAB$ ---

func (c *Catalog) AddSysTab(r *SysTab) error {
	if err := c.tab.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTable(r.Obj)
	return nil
}

func (c *Catalog) DropSysTab(rowID string) error {
	rec, _ := c.tab.Find(rowID)
	if err := c.tab.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTable((*rec).Obj)
	}
	return nil
}

func (c *Catalog) FindSysTab(rowID string) (*SysTab, bool) { return c.tab.Find(rowID) }

func (c *Catalog) FindSysTabByObj(obj int64) (*SysTab, bool) {
	// tab's secondary index ("obj") is private to the MetaStore, so this
	// scans every TAB$ row for a matching obj.
	for rowID, rec := range c.tab.All() {
		if rec.Obj == obj {
			return c.tab.byRowID[rowID], true
		}
	}
	return nil, false
}

// --- TABCOMPART$ ---

func (c *Catalog) AddSysTabComPart(r *SysTabComPart) error {
	if err := c.tabComPart.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTable(r.Bo)
	return nil
}

func (c *Catalog) DropSysTabComPart(rowID string) error {
	rec, _ := c.tabComPart.Find(rowID)
	if err := c.tabComPart.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTable((*rec).Bo)
	}
	return nil
}

func (c *Catalog) FindSysTabComPart(rowID string) (*SysTabComPart, bool) { return c.tabComPart.Find(rowID) }

// --- TABPART$ ---

func (c *Catalog) AddSysTabPart(r *SysTabPart) error {
	if err := c.tabPart.Add(r); err != nil {
		return err
	}
	c.markTouched()
	c.touchTable(r.Bo)
	return nil
}

func (c *Catalog) DropSysTabPart(rowID string) error {
	rec, _ := c.tabPart.Find(rowID)
	if err := c.tabPart.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTable((*rec).Bo)
	}
	return nil
}

func (c *Catalog) FindSysTabPart(rowID string) (*SysTabPart, bool) { return c.tabPart.Find(rowID) }

// --- TABSUBPART$ ---

func (c *Catalog) AddSysTabSubPart(r *SysTabSubPart) error {
	if err := c.tabSubPart.Add(r); err != nil {
		return err
	}
	c.markTouched()
	// pObj is the owning TABCOMPART$'s obj; resolve through it to the
	// base table.
	c.touchTableViaComPart(r.PObj)
	return nil
}

func (c *Catalog) DropSysTabSubPart(rowID string) error {
	rec, _ := c.tabSubPart.Find(rowID)
	if err := c.tabSubPart.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	if rec != nil {
		c.touchTableViaComPart((*rec).PObj)
	}
	return nil
}

func (c *Catalog) FindSysTabSubPart(rowID string) (*SysTabSubPart, bool) { return c.tabSubPart.Find(rowID) }

func (c *Catalog) touchTableViaComPart(pObj int64) {
	for rowID, rec := range c.tabComPart.All() {
		if rec.Obj == pObj {
			c.touchTable(c.tabComPart.byRowID[rowID].Bo)
			return
		}
	}
}

// --- TS$ ---

func (c *Catalog) AddSysTs(r *SysTs) error {
	if err := c.ts.Add(r); err != nil {
		return err
	}
	c.markTouched()
	return nil
}

func (c *Catalog) DropSysTs(rowID string) error {
	if err := c.ts.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	return nil
}

func (c *Catalog) FindSysTs(rowID string) (*SysTs, bool) { return c.ts.Find(rowID) }

func (c *Catalog) FindSysTsByTs(ts int64) (*SysTs, bool) {
	rowID, ok := c.tsByTs.Find(Key{ts})
	if !ok {
		return nil, false
	}
	return c.ts.Find(rowID)
}

// --- USER$ (I5 single-flag semantics) ---

func (c *Catalog) AddSysUser(r *SysUser) (bool, error) {
	if existing, ok := c.user.Find(r.RowID()); ok {
		if (*existing).Single && !r.Single {
			(*existing).Single = false
			c.user.touched[r.RowID()] = existing
			c.markTouched()
			return true, nil
		}
		return !(*existing).Single, nil
	}
	if err := c.user.Add(r); err != nil {
		return false, err
	}
	c.markTouched()
	return true, nil
}

func (c *Catalog) DropSysUser(rowID string) error {
	if err := c.user.Drop(rowID); err != nil {
		return err
	}
	c.markTouched()
	return nil
}

func (c *Catalog) FindSysUser(rowID string) (*SysUser, bool) { return c.user.Find(rowID) }

func (c *Catalog) FindSysUserByUser(user int64) (*SysUser, bool) {
	rowID, ok := c.userByUser.Find(Key{user})
	if !ok {
		return nil, false
	}
	return c.user.Find(rowID)
}

// ResetTouched implements §3.3's quiescence-boundary contract: clears
// every store's touched set plus the identifier/table touched sets and
// the global flag. Called by the Materializer after buildMaps +
// DropUnusedMetadata complete a pass.
func (c *Catalog) ResetTouched() {
	c.ccol.ResetTouched()
	c.cdef.ResetTouched()
	c.col.ResetTouched()
	c.deferredStg.ResetTouched()
	c.ecol.ResetTouched()
	c.lob.ResetTouched()
	c.lobCompPart.ResetTouched()
	c.lobFrag.ResetTouched()
	c.obj.ResetTouched()
	c.tab.ResetTouched()
	c.tabComPart.ResetTouched()
	c.tabPart.ResetTouched()
	c.tabSubPart.ResetTouched()
	c.ts.ResetTouched()
	c.user.ResetTouched()
	c.identifiersTouched = make(map[int64]bool)
	c.tablesTouched = make(map[int64]*OracleTable)
	c.touched = false
}

func (c *Catalog) Touched() bool { return c.touched }

// Purge implements §3.4: drop every record of every store and assert
// every secondary index is empty afterward (50029 on residue).
func (c *Catalog) Purge() error {
	stores := []interface{ Purge() error }{
		c.ccol, c.cdef, c.col, c.deferredStg, c.ecol, c.lob, c.lobCompPart,
		c.lobFrag, c.obj, c.tab, c.tabComPart, c.tabPart, c.tabSubPart,
		c.ts, c.user,
	}
	for k := range c.tableMap {
		delete(c.tableMap, k)
	}
	for k := range c.tablePartitionMap {
		delete(c.tablePartitionMap, k)
	}
	for k := range c.lobIndexMap {
		delete(c.lobIndexMap, k)
	}
	for k := range c.lobPartitionMap {
		delete(c.lobPartitionMap, k)
	}
	for _, s := range stores {
		if err := s.Purge(); err != nil {
			return err
		}
	}
	return nil
}

// Compare implements P4/compareK: symmetric set-plus-content equality
// across every meta-table store. Returns the first differing or missing
// rowId across the whole catalog, short-circuiting like the original's
// Schema::compare.
func (c *Catalog) Compare(other *Catalog) (bool, string) {
	if ok, msg := c.ccol.Compare(other.ccol, func(a, b *SysCCol) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.cdef.Compare(other.cdef, func(a, b *SysCDef) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.col.Compare(other.col, func(a, b *SysCol) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.deferredStg.Compare(other.deferredStg, func(a, b *SysDeferredStg) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.ecol.Compare(other.ecol, func(a, b *SysECol) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.lob.Compare(other.lob, func(a, b *SysLob) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.lobCompPart.Compare(other.lobCompPart, func(a, b *SysLobCompPart) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.lobFrag.Compare(other.lobFrag, func(a, b *SysLobFrag) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.obj.Compare(other.obj, func(a, b *SysObj) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.tab.Compare(other.tab, func(a, b *SysTab) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.tabComPart.Compare(other.tabComPart, func(a, b *SysTabComPart) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.tabPart.Compare(other.tabPart, func(a, b *SysTabPart) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.tabSubPart.Compare(other.tabSubPart, func(a, b *SysTabSubPart) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.ts.Compare(other.ts, func(a, b *SysTs) bool { return *a == *b }); !ok {
		return false, msg
	}
	if ok, msg := c.user.Compare(other.user, func(a, b *SysUser) bool { return *a == *b }); !ok {
		return false, msg
	}
	return true, ""
}

// DropUnusedMetadata implements §4.1's single reconciliation pass: for
// every touched record in every store, if its owning object is no
// longer present in OBJ$ (or, for USER$, no longer listed in users), it
// is dropped. OBJ$ drops for objects whose owning USER$ row vanished
// additionally require the adaptive-schema feature flag. msgs collects
// human-readable drop notices.
func (c *Catalog) DropUnusedMetadata(users map[int64]bool, msgs *[]string) error {
	for rowID, rec := range c.user.Touched() {
		if _, present := c.user.Find(rowID); !present {
			continue
		}
		if !users[rec.User] {
			if err := c.DropSysUser(rowID); err != nil {
				return err
			}
			*msgs = append(*msgs, fmt.Sprintf("dropped USER$ rowid %s (user %d no longer present)", rowID, rec.User))
		}
	}

	if c.ctx != nil && c.ctx.AdaptiveSchema {
		for rowID, rec := range c.obj.Touched() {
			if _, present := c.obj.Find(rowID); !present {
				continue
			}
			if _, ok := c.userByUser.Find(Key{rec.Owner}); !ok {
				if err := c.DropSysObj(rowID); err != nil {
					return err
				}
				*msgs = append(*msgs, fmt.Sprintf("dropped OBJ$ rowid %s (owner %d no longer present)", rowID, rec.Owner))
			}
		}
	}

	objExists := func(obj int64) bool {
		_, ok := c.objByObj.Find(Key{obj})
		return ok
	}

	reconcileSimple(c, c.ccol, objExists, func(r *SysCCol) int64 { return r.Obj }, c.DropSysCCol, "CCOL$", msgs)
	reconcileSimple(c, c.cdef, objExists, func(r *SysCDef) int64 { return r.Obj }, c.DropSysCDef, "CDEF$", msgs)
	reconcileSimple(c, c.col, objExists, func(r *SysCol) int64 { return r.Obj }, c.DropSysCol, "COL$", msgs)
	reconcileSimple(c, c.deferredStg, objExists, func(r *SysDeferredStg) int64 { return r.Obj }, c.DropSysDeferredStg, "DEFERRED_STG$", msgs)
	reconcileSimple(c, c.ecol, objExists, func(r *SysECol) int64 { return r.TabObj }, c.DropSysECol, "ECOL$", msgs)
	reconcileSimple(c, c.lob, objExists, func(r *SysLob) int64 { return r.Obj }, c.DropSysLob, "LOB$", msgs)
	reconcileSimple(c, c.tab, objExists, func(r *SysTab) int64 { return r.Obj }, c.DropSysTab, "TAB$", msgs)
	reconcileSimple(c, c.tabComPart, objExists, func(r *SysTabComPart) int64 { return r.Bo }, c.DropSysTabComPart, "TABCOMPART$", msgs)
	reconcileSimple(c, c.tabPart, objExists, func(r *SysTabPart) int64 { return r.Bo }, c.DropSysTabPart, "TABPART$", msgs)

	reconcileSimple(c, c.lobCompPart, func(obj int64) bool {
		rowID, ok := c.lobByLObj.Find(Key{obj})
		if !ok {
			return false
		}
		lob, ok := c.lob.Find(rowID)
		return ok && objExists((*lob).Obj)
	}, func(r *SysLobCompPart) int64 { return r.LObj }, c.DropSysLobCompPart, "LOBCOMPPART$", msgs)

	reconcileSimple(c, c.lobFrag, func(obj int64) bool {
		if rowID, ok := c.lobByLObj.Find(Key{obj}); ok {
			if lob, ok := c.lob.Find(rowID); ok {
				return objExists((*lob).Obj)
			}
		}
		if rowID, ok := c.lobCompPartByPartObj.Find(Key{obj}); ok {
			if part, ok := c.lobCompPart.Find(rowID); ok {
				if lobRowID, ok := c.lobByLObj.Find(Key{(*part).LObj}); ok {
					if lob, ok := c.lob.Find(lobRowID); ok {
						return objExists((*lob).Obj)
					}
				}
			}
		}
		return false
	}, func(r *SysLobFrag) int64 { return r.ParentObj }, c.DropSysLobFrag, "LOBFRAG$", msgs)

	reconcileSimple(c, c.tabSubPart, func(pObj int64) bool {
		for _, rec := range c.tabComPart.All() {
			if rec.Obj == pObj {
				return objExists(rec.Bo)
			}
		}
		return false
	}, func(r *SysTabSubPart) int64 { return r.PObj }, c.DropSysTabSubPart, "TABSUBPART$", msgs)

	return nil
}

// reconcileSimple drops every touched record of store whose owning key
// (as derived by ownerKey) no longer satisfies present.
func reconcileSimple[V Record](c *Catalog, store *MetaStore[V], present func(key int64) bool, ownerKey func(*V) int64, dropFn func(string) error, name string, msgs *[]string) {
	for rowID, rec := range store.Touched() {
		if _, ok := store.Find(rowID); !ok {
			continue
		}
		key := ownerKey(rec)
		if present(key) {
			continue
		}
		if err := dropFn(rowID); err == nil {
			*msgs = append(*msgs, fmt.Sprintf("dropped %s rowid %s (owning object %d no longer present)", name, rowID, key))
		}
	}
}
