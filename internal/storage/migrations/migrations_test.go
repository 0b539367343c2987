package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScripts_Embedded(t *testing.T) {
	pg, err := scripts(PostgresFS, "postgres")
	require.NoError(t, err)
	require.NotEmpty(t, pg)
	assert.Equal(t, "001_schema.sql", pg[0].name)
	assert.Contains(t, pg[0].body, "vw_swap_obligations")
	require.Len(t, pg, 2)
	assert.Contains(t, pg[1].body, "risk_history")

	ch, err := scripts(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	assert.Contains(t, ch[0].body, "risk_history")
}

func TestSplitStatements(t *testing.T) {
	stmts, err := splitStatements(`
-- header comment; with a semicolon
CREATE TABLE a (x String DEFAULT 'it''s');
CREATE TABLE b (y UInt8)
`)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a"))
	assert.Equal(t, "CREATE TABLE b (y UInt8)", stmts[1])

	_, err = splitStatements("INSERT INTO a VALUES ('x;y');")
	assert.Error(t, err)
}

func TestSplitStatements_ClickhouseSchema(t *testing.T) {
	ch, err := scripts(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	for _, f := range ch {
		stmts, err := splitStatements(f.body)
		require.NoError(t, err, f.name)
		assert.NotEmpty(t, stmts, f.name)
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/swaps")
	require.NoError(t, err)
	assert.Equal(t, "swaps", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}
