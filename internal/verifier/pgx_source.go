package verifier

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/witnz/catalogshadow/internal/catalog"
	"github.com/witnz/catalogshadow/internal/dictctx"
)

// PgxSource is the concrete LiveSource adapter used for testing and
// demonstration: it queries a set of tables standing in for an Oracle
// dictionary query and rebuilds a catalog.Catalog from the rows it
// gets back. It is not a redo reader and never will be — querying
// live state is explicitly a verification-only operation (§ NON-GOALS).
type PgxSource struct {
	pool *pgxpool.Pool
	ctx  *dictctx.Ctx
}

func NewPgxSource(pool *pgxpool.Pool, ctx *dictctx.Ctx) *PgxSource {
	return &PgxSource{pool: pool, ctx: ctx}
}

// Snapshot queries obj/user/tab/col rows from the standby tables this
// adapter expects (shadow_obj, shadow_user, shadow_tab, shadow_col)
// and replays them through the same AddSysX entry points the redo
// parser uses, so the resulting catalog.Catalog is built the exact
// same way the shadow itself is.
func (s *PgxSource) Snapshot(ctx context.Context) (*catalog.Catalog, error) {
	c := catalog.New(s.ctx)

	rows, err := s.pool.Query(ctx, `SELECT row_id, user_id, name FROM shadow_user`)
	if err != nil {
		return nil, fmt.Errorf("query shadow_user: %w", err)
	}
	for rows.Next() {
		var rowID, name string
		var userID int64
		if err := rows.Scan(&rowID, &userID, &name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan shadow_user: %w", err)
		}
		if _, err := c.AddSysUser(&catalog.SysUser{RowIDStr: rowID, User: userID, Name: name, Single: true}); err != nil {
			rows.Close()
			return nil, fmt.Errorf("add sys user %s: %w", rowID, err)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shadow_user: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT row_id, owner, obj, data_obj, obj_type, name FROM shadow_obj`)
	if err != nil {
		return nil, fmt.Errorf("query shadow_obj: %w", err)
	}
	for rows.Next() {
		var rowID, name string
		var owner, obj, dataObj, objType int64
		if err := rows.Scan(&rowID, &owner, &obj, &dataObj, &objType, &name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan shadow_obj: %w", err)
		}
		if _, err := c.AddSysObj(&catalog.SysObj{
			RowIDStr: rowID, Owner: owner, Obj: obj, DataObj: dataObj, Type: objType, Name: name, Single: true,
		}); err != nil {
			rows.Close()
			return nil, fmt.Errorf("add sys obj %s: %w", rowID, err)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shadow_obj: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT row_id, obj FROM shadow_tab`)
	if err != nil {
		return nil, fmt.Errorf("query shadow_tab: %w", err)
	}
	for rows.Next() {
		var rowID string
		var obj int64
		if err := rows.Scan(&rowID, &obj); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan shadow_tab: %w", err)
		}
		if err := c.AddSysTab(&catalog.SysTab{RowIDStr: rowID, Obj: obj}); err != nil {
			rows.Close()
			return nil, fmt.Errorf("add sys tab %s: %w", rowID, err)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shadow_tab: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT row_id, obj, col, seg_col, int_col, name, col_type, charset_form FROM shadow_col`)
	if err != nil {
		return nil, fmt.Errorf("query shadow_col: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rowID, name string
		var obj, col, segCol, intCol, colType, charsetForm int64
		if err := rows.Scan(&rowID, &obj, &col, &segCol, &intCol, &name, &colType, &charsetForm); err != nil {
			return nil, fmt.Errorf("scan shadow_col: %w", err)
		}
		if err := c.AddSysCol(&catalog.SysCol{
			RowIDStr: rowID, Obj: obj, Col: col, SegCol: segCol, IntCol: intCol,
			Name: name, Type: colType, CharsetForm: charsetForm,
		}); err != nil {
			return nil, fmt.Errorf("add sys col %s: %w", rowID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shadow_col: %w", err)
	}

	return c, nil
}
