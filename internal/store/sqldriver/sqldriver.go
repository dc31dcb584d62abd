// Package sqldriver names the SQL drivers the history store can open. It
// imports no driver, so config validation does not link SQLite.
package sqldriver

const (
	// SQLite is modernc.org/sqlite.
	SQLite = "sqlite"

	// SQLite3 is github.com/mattn/go-sqlite3 (requires cgo).
	SQLite3 = "sqlite3"
)

// Valid reports whether name is a supported driver.
func Valid(name string) bool {
	return name == SQLite || name == SQLite3
}
