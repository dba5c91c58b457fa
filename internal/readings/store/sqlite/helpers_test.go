package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/BrandonDHaskell/readings/internal/db"
	sqlitestore "github.com/BrandonDHaskell/readings/internal/readings/store/sqlite"
)

// newTestJournal builds a journal over a private in-memory database with
// the embedded schema applied. The writer shuts down before the connection
// closes.
func newTestJournal(t *testing.T) (*sqlitestore.IngestEventStore, *sql.DB) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := sql.Open("sqlite", fmt.Sprintf("file:journal_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.Migrate(context.Background(), conn))

	writer := db.NewWorker(conn)
	t.Cleanup(writer.Close)

	return sqlitestore.NewIngestEventStore(conn, writer), conn
}
