package statestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMigrationVersion(t *testing.T) {
	assert.Equal(t, "0001", extractMigrationVersion("0001_initial_schema.up.sql"))
	assert.Equal(t, "0002", extractMigrationVersion("0002_add_isp_provider.up.sql"))
}

func TestSplitSQLStatementsSkipsCommentsAndBlankLines(t *testing.T) {
	content := `-- a comment
CREATE TABLE foo (
    id TEXT PRIMARY KEY
);

-- another comment
CREATE INDEX idx_foo ON foo (id);
`

	stmts := splitSQLStatements(content)

	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE foo")
	assert.Contains(t, stmts[1], "CREATE INDEX idx_foo")
}

func TestSplitSQLStatementsHandlesTrailingStatementWithoutSemicolon(t *testing.T) {
	stmts := splitSQLStatements("SELECT 1")

	assert.Equal(t, []string{"SELECT 1"}, stmts)
}

func TestAvailableMigrationsSortedAndFiltered(t *testing.T) {
	names, err := availableMigrations()

	assert.NoError(t, err)
	assert.NotEmpty(t, names)

	for _, n := range names {
		assert.Regexp(t, `\.up\.sql$`, n)
	}
}
