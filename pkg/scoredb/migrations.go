package scoredb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE run(
			id INTEGER PRIMARY KEY,
			method TEXT NOT NULL,
			created_at INT NOT NULL,
			f_avg REAL NOT NULL,
			f_setup1 REAL NOT NULL,
			f_setup2 REAL NOT NULL,
			f_setup3 REAL NOT NULL,
			report BLOB
		);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE INDEX idx_run_method ON run(method);
		CREATE INDEX idx_run_f_avg ON run(f_avg);
	`))

	return migs
}
