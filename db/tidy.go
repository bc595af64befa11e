package db

import (
	"database/sql"
	"time"

	sb "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Tidy removes delivery records older than 90 days from the database
func Tidy(database string) (int64, error) {
	db, err := connection(database)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return tidy(db)
}

func tidy(db *sql.DB) (int64, error) {
	ninetyDaysAgo := time.Now().Add(-90 * 24 * time.Hour).Unix()
	deleteEntries := sb.NewDeleteBuilder()
	sql, args := deleteEntries.DeleteFrom("entries").
		Where(deleteEntries.LessEqualThan("created_at", ninetyDaysAgo)).
		BuildWithFlavor(sb.SQLite)

	log.WithFields(log.Fields{
		"sql":  sql,
		"args": args,
	}).Info("Tidying database")

	res, err := db.Exec(sql, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
