package session

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// seedDatabase applies a seed script to a fresh session database so SQL
// submissions can query pre-populated tables. The submitted statements
// themselves run through the sqlite3 shell, not this connection.
func seedDatabase(dbPath, seedPath string) error {
	script, err := os.ReadFile(seedPath)
	if err != nil {
		return fmt.Errorf("reading seed script: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	defer db.Close()

	if _, err := db.Exec(string(script)); err != nil {
		return fmt.Errorf("applying seed script: %w", err)
	}
	return nil
}
