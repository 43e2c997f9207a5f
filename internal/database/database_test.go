package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSqlite_FileAndDump(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(zerolog.Nop())

	require.NoError(t, m.ConnectSqlite(filepath.Join(dir, "live.db")))
	t.Cleanup(func() { m.Close() })
	require.NotNil(t, m.DB)

	require.NoError(t, m.DB.Exec("CREATE TABLE laps (id INTEGER PRIMARY KEY, t REAL)").Error)
	require.NoError(t, m.DB.Exec("INSERT INTO laps (t) VALUES (61.5)").Error)

	dump := filepath.Join(dir, "dump.db")
	require.NoError(t, os.WriteFile(dump, []byte("stale"), 0644))
	require.NoError(t, m.DumpMemoryToDisk(dump))

	restored := NewManager(zerolog.Nop())
	require.NoError(t, restored.ConnectSqlite(dump))
	t.Cleanup(func() { restored.Close() })

	var count int64
	require.NoError(t, restored.DB.Raw("SELECT COUNT(*) FROM laps").Scan(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpMemoryDBToDisk_RequiresPath(t *testing.T) {
	db, err := GetSqliteDB(filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestClose_WithoutConnection(t *testing.T) {
	m := NewManager(zerolog.Nop())
	assert.NoError(t, m.Close())
}
