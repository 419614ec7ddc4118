package catalog

import (
	"fmt"
	"regexp"

	"github.com/witnz/catalogshadow/internal/dictexc"
)

// MaterializeOptions collects buildMaps's parameter list verbatim
// (§4.2): the owner/table regexes, an optional supplied key list that
// overrides PK discovery, the SYSTEM_TABLE bit-flag equivalent, the
// database-level supplemental-logging flags, and the default charmaps.
// Charmaps validates a charsetId against the (out-of-scope) character-
// set table; a nil Charmaps accepts every id.
type MaterializeOptions struct {
	OwnerRegex          *regexp.Regexp
	TableRegex          *regexp.Regexp
	Keys                []string
	KeysStr             string
	SystemTable         bool
	SuppLogDbPrimary    bool
	SuppLogDbAll        bool
	DefaultCharmap      int64
	DefaultNcharCharmap int64
	Charmaps            CharmapValidator
}

// CharmapValidator is the narrow interface onto the out-of-scope
// character-set table (§1): "is this charmap id usable for
// VARCHAR/CHAR/CLOB column decoding."
type CharmapValidator interface {
	Valid(charmapID int64) bool
}

var acceptAllCharmaps = acceptAll{}

type acceptAll struct{}

func (acceptAll) Valid(int64) bool { return true }

// BuildMaps implements C2's contract (§4.2 steps 1-7): for every object
// in identifiersTouched whose OBJ$ row matches tableRegex/ownerRegex and
// is eligible (not dropped/binary/IOT/temporary/nested/compressed,
// TAB$ present, not already published), construct and publish an
// OracleTable descriptor. msgs receives one line per materialized table
// and per table skipped for a TAB$/DEFERRED_STG$ reason or because it is
// already published; warnings (60021, 60022, 70005) go to the Ctx
// warning sink instead. A Ctx with DisableChecks set is treated as
// opts.SystemTable.
func (c *Catalog) BuildMaps(opts MaterializeOptions, msgs *[]string) error {
	if c.ctx.DisableChecks {
		opts.SystemTable = true
	}
	if opts.Charmaps == nil {
		opts.Charmaps = acceptAllCharmaps
	}
	if opts.OwnerRegex == nil {
		opts.OwnerRegex = regexp.MustCompile(".*")
	}
	if opts.TableRegex == nil {
		opts.TableRegex = regexp.MustCompile(".*")
	}

	for obj := range c.identifiersTouched {
		if err := c.materializeOne(obj, opts, msgs); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) materializeOne(obj int64, opts MaterializeOptions, msgs *[]string) error {
	sysObj, ok := c.FindSysObjByObj(obj)
	if !ok || sysObj.IsDropped() || sysObj.Type != ObjTypeTable {
		return nil
	}
	if !opts.TableRegex.MatchString(sysObj.Name) {
		return nil
	}
	ownerName := ""
	if u, ok := c.FindSysUserByUser(sysObj.Owner); ok {
		ownerName = u.Name
	}
	if !opts.OwnerRegex.MatchString(ownerName) {
		return nil
	}

	tab, ok := c.FindSysTabByObj(obj)
	if !ok {
		*msgs = append(*msgs, fmt.Sprintf("skip table %s.%s (obj:%d): missing TAB$ row", ownerName, sysObj.Name, obj))
		return nil
	}
	switch {
	case tab.IsBinary():
		*msgs = append(*msgs, fmt.Sprintf("skip table %s.%s (obj:%d): binary", ownerName, sysObj.Name, obj))
		return nil
	case tab.IsIOT():
		*msgs = append(*msgs, fmt.Sprintf("skip table %s.%s (obj:%d): index-organized", ownerName, sysObj.Name, obj))
		return nil
	case tab.IsTemporary():
		*msgs = append(*msgs, fmt.Sprintf("skip table %s.%s (obj:%d): temporary", ownerName, sysObj.Name, obj))
		return nil
	case tab.IsNested():
		*msgs = append(*msgs, fmt.Sprintf("skip table %s.%s (obj:%d): nested", ownerName, sysObj.Name, obj))
		return nil
	}

	if !tab.IsPartitioned() && tab.IsInitial() {
		if stg, ok := c.FindSysDeferredStgByObj(obj); ok && stg.IsCompressed() {
			*msgs = append(*msgs, fmt.Sprintf("skip table %s.%s (obj:%d): compressed", ownerName, sysObj.Name, obj))
			return nil
		}
	}

	if _, already := c.tableMap[obj]; already {
		*msgs = append(*msgs, fmt.Sprintf("skip table %s.%s (obj:%d): already added", ownerName, sysObj.Name, obj))
		return nil
	}

	t := &OracleTable{
		Obj: obj, DataObj: sysObj.DataObj, Owner: sysObj.Owner, Name: sysObj.Name,
		Clustered: tab.IsClustered(), Partitioned: tab.IsPartitioned(),
		RowMovement: tab.IsRowMovement(), Dependency: tab.IsDependency(),
	}

	// Step 1: partitions.
	if tab.IsPartitioned() {
		c.tabPartByBo.ScanPrefix(Key{obj}, func(_ Key, rowID string) bool {
			part, ok := c.tabPart.Find(rowID)
			if ok {
				t.Partitions = append(t.Partitions, packObj2((*part).Obj, (*part).DataObj))
			}
			return true
		})
		c.tabComPartByBo.ScanPrefix(Key{obj}, func(_ Key, rowID string) bool {
			comPart, ok := c.tabComPart.Find(rowID)
			if !ok {
				return true
			}
			t.Partitions = append(t.Partitions, packObj2((*comPart).Obj, (*comPart).DataObj))
			c.tabSubPartByPObj.ScanPrefix(Key{(*comPart).Obj}, func(_ Key, subRowID string) bool {
				sub, ok := c.tabSubPart.Find(subRowID)
				if ok {
					t.Partitions = append(t.Partitions, packObj2((*sub).Obj, (*sub).DataObj))
				}
				return true
			})
			return true
		})
	}

	// Step 2: table-level supplemental log analysis.
	if !opts.SystemTable && !opts.SuppLogDbPrimary && !opts.SuppLogDbAll {
		c.cdefByObj.ScanPrefix(Key{obj}, func(_ Key, rowID string) bool {
			cdef, ok := c.cdef.Find(rowID)
			if !ok {
				return true
			}
			switch (*cdef).Type {
			case cdefTypeSupplementalLogPK:
				t.SuppLogTablePrimary = true
			case cdefTypeSupplementalLogAll:
				t.SuppLogTableAll = true
			}
			return true
		})
	}

	// Step 3: columns.
	keySet := make(map[string]bool, len(opts.Keys))
	for _, k := range opts.Keys {
		keySet[k] = true
	}
	keysMatched := make(map[string]bool, len(opts.Keys))

	var colErr error
	c.colByObjSegCol.ScanPrefix(Key{obj}, func(_ Key, rowID string) bool {
		sysCol, ok := c.col.Find(rowID)
		if !ok || (*sysCol).SegCol <= 0 {
			return true
		}
		col := &OracleColumn{
			SegCol: (*sysCol).SegCol, IntCol: (*sysCol).IntCol, Name: (*sysCol).Name,
			Type: (*sysCol).Type, Length: (*sysCol).Length, Precision: (*sysCol).Precision,
			Scale: (*sysCol).Scale, Nullable: !(*sysCol).Null,
		}

		var charmapID int64
		switch (*sysCol).CharsetForm {
		case CharsetFormImplicit:
			if (*sysCol).Type == ColTypeClob {
				charmapID = opts.DefaultNcharCharmap
			} else {
				charmapID = opts.DefaultCharmap
			}
		case CharsetFormNChar:
			charmapID = opts.DefaultNcharCharmap
		default:
			charmapID = (*sysCol).CharsetID
		}
		needsCharmap := (*sysCol).Type == ColTypeVarchar || (*sysCol).Type == ColTypeChar || (*sysCol).Type == ColTypeClob
		if needsCharmap && !opts.Charmaps.Valid(charmapID) {
			colErr = dictexc.NewData(50026, fmt.Sprintf("table obj %d column %q: unsupported charset id %d", obj, (*sysCol).Name, charmapID))
			return false
		}
		col.CharmapID = charmapID

		if ecolRowIDLookup, ok := c.findECol(obj, (*sysCol).Col); ok {
			col.GuardID = ecolRowIDLookup.GuardID
		}

		var numPkCol, numSupCol int
		c.ccolByObjIntCol.ScanPrefix(Key{obj, (*sysCol).IntCol}, func(_ Key, ccolRowID string) bool {
			ccol, ok := c.ccol.Find(ccolRowID)
			if !ok {
				return true
			}
			conRowID, ok := c.cdefByCon.Find(Key{(*ccol).Con})
			if !ok {
				c.ctx.Warn(70005, fmt.Sprintf("table obj %d column %q: missing CDEF$ row for con %d", obj, (*sysCol).Name, (*ccol).Con))
				return true
			}
			cdef, ok := c.cdef.Find(conRowID)
			if !ok {
				return true
			}
			if (*cdef).IsPK() {
				numPkCol++
			}
			if (*ccol).Spare1 == 0 && (*cdef).IsSupplementalLog() {
				numSupCol++
				col.Supplemental = true
			}
			return true
		})

		if len(keySet) > 0 {
			if keySet[col.Name] {
				keysMatched[col.Name] = true
				t.NumPK++
				if numSupCol == 0 {
					t.SupLogColMissing = true
				}
			}
		} else {
			t.NumPK += numPkCol
			if numPkCol > 0 && numSupCol == 0 {
				t.SupLogColMissing = true
			}
		}
		t.NumSup += numSupCol

		t.Columns = append(t.Columns, col)
		return true
	})
	if colErr != nil {
		return colErr
	}
	if len(keySet) > 0 && len(keysMatched) != len(keySet) {
		return dictexc.NewData(10041, fmt.Sprintf("table obj %d: supplied key list %q not fully matched (%d/%d)", obj, opts.KeysStr, len(keysMatched), len(keySet)))
	}

	// Step 4: LOB discovery via LOB$.
	c.lobByObjIntCol.ScanPrefix(Key{obj}, func(_ Key, rowID string) bool {
		sysLob, ok := c.lob.Find(rowID)
		if !ok {
			return true
		}
		lobDataObj := c.resolveDataObj((*sysLob).LObj)
		lob := &OracleLob{Obj: obj, DataObj: lobDataObj, LObj: (*sysLob).LObj, Col: (*sysLob).Col, IntCol: (*sysLob).IntCol, Table: t}

		indexName := fmt.Sprintf("SYS_IL%010dC%05d$$", obj, (*sysLob).IntCol)
		for _, o := range c.obj.All() {
			if o.Name == indexName {
				lob.Indexes = append(lob.Indexes, o.DataObj)
			}
		}
		if len(lob.Indexes) == 0 {
			c.ctx.Warn(60021, fmt.Sprintf("table obj %d lob intCol %d: no LOB index object found (%s)", obj, (*sysLob).IntCol, indexName))
		}

		if tab.IsPartitioned() {
			c.lobFragByParent.ScanPrefix(Key{(*sysLob).LObj}, func(_ Key, fragRowID string) bool {
				frag, ok := c.lobFrag.Find(fragRowID)
				if ok {
					fragDataObj := c.resolveDataObj((*frag).FragObj)
					lob.Partitions = append(lob.Partitions, packObj2(fragDataObj, fragDataObj))
				}
				return true
			})
			for _, cp := range c.lobCompPart.All() {
				if cp.LObj != (*sysLob).LObj {
					continue
				}
				c.lobFragByParent.ScanPrefix(Key{cp.PartObj}, func(_ Key, fragRowID string) bool {
					frag, ok := c.lobFrag.Find(fragRowID)
					if ok {
						fragDataObj := c.resolveDataObj((*frag).FragObj)
						lob.Partitions = append(lob.Partitions, packObj2(fragDataObj, fragDataObj))
					}
					return true
				})
			}
		}
		lob.Partitions = append(lob.Partitions, packObj2(lobDataObj, lobDataObj))
		lob.BlockSize = c.lobBlockSize((*sysLob).Ts)

		t.Lobs = append(t.Lobs, lob)
		return true
	})

	// Step 5: alternate LOB discovery for tables with no LOB$ metadata.
	if len(t.Lobs) == 0 && !opts.SystemTable {
		prefix := fmt.Sprintf("SYS_LOB%010dC", obj)
		for _, o := range c.obj.All() {
			if len(o.Name) < len(prefix)+5 || o.Name[:len(prefix)] != prefix {
				continue
			}
			colDigits := o.Name[len(prefix) : len(prefix)+5]
			var intCol int64
			if _, err := fmt.Sscanf(colDigits, "%05d", &intCol); err != nil {
				continue
			}
			var lob *OracleLob
			for _, existing := range t.Lobs {
				if existing.IntCol == intCol {
					lob = existing
					break
				}
			}
			if lob == nil {
				lob = &OracleLob{Obj: obj, IntCol: intCol, DataObj: o.DataObj, Table: t, BlockSize: c.lobBlockSize(tab.Ts)}
				t.Lobs = append(t.Lobs, lob)
			}
			lob.Partitions = append(lob.Partitions, packObj2(o.DataObj, o.DataObj))
		}
	}

	// Step 7: publish.
	if err := c.addTableToDict(t); err != nil {
		return err
	}

	*msgs = append(*msgs, fmt.Sprintf("table %s.%s (dataobj:%d, obj:%d, columns:%d, lobs:%d, lob-idx:%d)",
		ownerName, sysObj.Name, t.DataObj, t.Obj, len(t.Columns), len(t.Lobs), countLobIndexes(t)))
	return nil
}

func countLobIndexes(t *OracleTable) int {
	n := 0
	for _, l := range t.Lobs {
		n += len(l.Indexes)
	}
	return n
}

func (c *Catalog) findECol(tabObj, colNum int64) (*SysECol, bool) {
	for _, e := range c.ecol.All() {
		if e.TabObj == tabObj && e.ColNum == colNum {
			return e, true
		}
	}
	return nil, false
}

func (c *Catalog) FindSysDeferredStgByObj(obj int64) (*SysDeferredStg, bool) {
	for _, d := range c.deferredStg.All() {
		if d.Obj == obj {
			return d, true
		}
	}
	return nil, false
}

// lobBlockSize maps a tablespace's block size to its usable LOB chunk
// size (§4.2 step 4); unmapped sizes warn 60022 and default to 8132
// (B3).
func (c *Catalog) lobBlockSize(ts int64) int64 {
	tsRow, ok := c.FindSysTsByTs(ts)
	if !ok {
		c.ctx.Warn(60022, fmt.Sprintf("tablespace %d: no TS$ row, defaulting LOB block size", ts))
		return 8132
	}
	switch tsRow.BlockSize {
	case 8192:
		return 8132
	case 16384:
		return 16264
	case 32768:
		return 32528
	default:
		c.ctx.Warn(60022, fmt.Sprintf("tablespace %d: unmapped block size %d, defaulting LOB block size", ts, tsRow.BlockSize))
		return 8132
	}
}

// resolveDataObj maps an obj id to its current physical dataObj via
// OBJ$, falling back to the obj id itself when OBJ$ has no row for it.
func (c *Catalog) resolveDataObj(obj int64) int64 {
	if o, ok := c.FindSysObjByObj(obj); ok {
		return o.DataObj
	}
	return obj
}

// addTableToDict publishes t into tableMap, tablePartitionMap,
// lobIndexMap, and lobPartitionMap (§4.3).
func (c *Catalog) addTableToDict(t *OracleTable) error {
	if _, exists := c.tableMap[t.Obj]; exists {
		return dictexc.NewData(50031, fmt.Sprintf("tableMap: duplicate obj %d", t.Obj))
	}
	c.tableMap[t.Obj] = t

	if _, exists := c.tablePartitionMap[t.Obj]; exists {
		return dictexc.NewData(50033, fmt.Sprintf("tablePartitionMap: duplicate owning obj %d", t.Obj))
	}
	c.tablePartitionMap[t.Obj] = t

	for _, packed := range t.Partitions {
		partObj, _ := unpackObj2(packed)
		if _, exists := c.tablePartitionMap[partObj]; exists {
			return dictexc.NewData(50034, fmt.Sprintf("tablePartitionMap: duplicate partition obj %d", partObj))
		}
		c.tablePartitionMap[partObj] = t
	}

	for _, lob := range t.Lobs {
		for _, idxObj := range lob.Indexes {
			if _, exists := c.lobIndexMap[idxObj]; exists {
				return dictexc.NewData(50032, fmt.Sprintf("lobIndexMap: duplicate dataObj %d", idxObj))
			}
			c.lobIndexMap[idxObj] = lob
		}
		for _, packed := range lob.Partitions {
			partObj, _ := unpackObj2(packed)
			c.lobPartitionMap[partObj] = lob // duplicate-tolerant per §4.3
		}
	}
	return nil
}

// removeTableFromDict reverses addTableToDict symmetrically across all
// four maps; a missing entry on any is fatal (50035-50038).
func (c *Catalog) removeTableFromDict(obj int64) error {
	t, ok := c.tableMap[obj]
	if !ok {
		return dictexc.NewData(50035, fmt.Sprintf("tableMap: missing obj %d on remove", obj))
	}
	delete(c.tableMap, obj)

	if _, ok := c.tablePartitionMap[obj]; !ok {
		return dictexc.NewData(50036, fmt.Sprintf("tablePartitionMap: missing owning obj %d on remove", obj))
	}
	delete(c.tablePartitionMap, obj)
	for _, packed := range t.Partitions {
		partObj, _ := unpackObj2(packed)
		if _, ok := c.tablePartitionMap[partObj]; !ok {
			return dictexc.NewData(50036, fmt.Sprintf("tablePartitionMap: missing partition obj %d on remove", partObj))
		}
		delete(c.tablePartitionMap, partObj)
	}

	for _, lob := range t.Lobs {
		for _, idxObj := range lob.Indexes {
			if _, ok := c.lobIndexMap[idxObj]; !ok {
				return dictexc.NewData(50037, fmt.Sprintf("lobIndexMap: missing dataObj %d on remove", idxObj))
			}
			delete(c.lobIndexMap, idxObj)
		}
		for _, packed := range lob.Partitions {
			partObj, _ := unpackObj2(packed)
			if _, ok := c.lobPartitionMap[partObj]; !ok {
				return dictexc.NewData(50038, fmt.Sprintf("lobPartitionMap: missing dataObj %d on remove", partObj))
			}
			delete(c.lobPartitionMap, partObj)
		}
	}
	return nil
}

// TableByObj returns the published descriptor owning obj, whether obj
// is the table itself or one of its partitions.
func (c *Catalog) TableByObj(obj int64) (*OracleTable, bool) {
	t, ok := c.tablePartitionMap[obj]
	return t, ok
}

// LobByDataObj returns the published LOB descriptor whose data segment
// is dataObj, checking both the index and partition registries.
func (c *Catalog) LobByDataObj(dataObj int64) (*OracleLob, bool) {
	if l, ok := c.lobIndexMap[dataObj]; ok {
		return l, true
	}
	l, ok := c.lobPartitionMap[dataObj]
	return l, ok
}
