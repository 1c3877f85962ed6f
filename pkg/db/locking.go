package db

import "gorm.io/gorm"

// LockClause returns the row-locking suffix for raw SELECT statements.
// SQLite has no FOR UPDATE syntax; its single-writer model already
// serializes the read-check-write window, so the clause is elided there.
func LockClause(tx *gorm.DB) string {
	if tx == nil || tx.Dialector == nil {
		return ""
	}
	if tx.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
