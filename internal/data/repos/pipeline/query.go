package pipeline

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// ListQuery is the storage-level form of a dashboard filter. Status matching is
// done on lowered, trimmed raw values.
type ListQuery struct {
	From        *time.Time
	ToExclusive *time.Time

	StatusIn        []string
	StatusMatchNull bool

	RunID      string
	PropertyID string
	PropNo     string
	BatchLabel string
	Q          string

	Offset int
	Limit  int
}

type listColumns struct {
	timestamp  string
	primaryKey string
	search     []string
	exact      []exactColumn
	status     bool
}

type exactColumn struct {
	name string
	get  func(ListQuery) string
}

// where applies every filter except ordering and pagination.
func (q ListQuery) where(db *gorm.DB, cols listColumns) *gorm.DB {
	if q.From != nil {
		db = db.Where(instantExpr(db, cols.timestamp)+" >= "+instantExpr(db, "?"), q.From.UTC())
	}
	if q.ToExclusive != nil {
		db = db.Where(instantExpr(db, cols.timestamp)+" < "+instantExpr(db, "?"), q.ToExclusive.UTC())
	}
	for _, col := range cols.exact {
		if v := strings.TrimSpace(col.get(q)); v != "" {
			db = db.Where(col.name+" = ?", v)
		}
	}
	if cols.status && (len(q.StatusIn) > 0 || q.StatusMatchNull) {
		switch {
		case len(q.StatusIn) > 0 && q.StatusMatchNull:
			db = db.Where("(LOWER(TRIM(status)) IN ? OR status IS NULL OR TRIM(status) = '')", q.StatusIn)
		case len(q.StatusIn) > 0:
			db = db.Where("LOWER(TRIM(status)) IN ?", q.StatusIn)
		default:
			db = db.Where("(status IS NULL OR TRIM(status) = '')")
		}
	}
	if term := strings.TrimSpace(q.Q); term != "" && len(cols.search) > 0 {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		parts := make([]string, 0, len(cols.search))
		args := make([]interface{}, 0, len(cols.search))
		for _, c := range cols.search {
			parts = append(parts, "LOWER("+c+") LIKE ? ESCAPE '\\'")
			args = append(args, pattern)
		}
		db = db.Where("("+strings.Join(parts, " OR ")+")", args...)
	}
	return db
}

func (q ListQuery) page(db *gorm.DB, cols listColumns) *gorm.DB {
	db = db.Order(instantExpr(db, cols.timestamp) + " DESC NULLS LAST").Order(cols.primaryKey + " DESC")
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	return db
}

// instantExpr makes a timestamp column or placeholder comparable by instant.
// SQLite keeps times as text carrying the writer's offset, so rows inserted by
// other producers only order correctly through julianday.
func instantExpr(db *gorm.DB, expr string) string {
	if isSQLite(db) {
		return "julianday(" + expr + ")"
	}
	return expr
}

func isSQLite(db *gorm.DB) bool {
	return db != nil && db.Dialector != nil && db.Dialector.Name() == "sqlite"
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
