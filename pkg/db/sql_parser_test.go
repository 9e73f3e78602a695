package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSQLStatementsHandlesDollarQuotedBlocks(t *testing.T) {
	content := `
-- Enable extension
CREATE EXTENSION IF NOT EXISTS pgcrypto;

DO $$
BEGIN
    PERFORM set_config('search_path', 'public', false);
    PERFORM do_something();
END $$;

SELECT 1;
`

	statements := splitSQLStatements(content)

	require.Len(t, statements, 3, "%#v", statements)
	assert.True(t, strings.HasPrefix(statements[1], "DO"), statements[1])
	assert.Equal(t, "SELECT 1", statements[2])
}

func TestSplitSQLStatementsIgnoresSemicolonsInQuotes(t *testing.T) {
	content := `
INSERT INTO logs(message) VALUES('hello;world');
DO $tag$
BEGIN
    PERFORM do_something('value;with;semicolons');
END $tag$;
`

	statements := splitSQLStatements(content)

	require.Len(t, statements, 2, "%#v", statements)
	assert.True(t, strings.HasPrefix(statements[0], "INSERT"), statements[0])
	assert.True(t, strings.HasPrefix(statements[1], "DO"), statements[1])
	assert.True(t, strings.HasSuffix(statements[1], "$tag$"), statements[1])
}

func TestSplitSQLStatementsDropsComments(t *testing.T) {
	content := `/* header; with a semicolon */
CREATE TABLE a (id INT); -- trailing; comment
SELECT "weird;name" FROM a`

	statements := splitSQLStatements(content)

	require.Len(t, statements, 2, "%#v", statements)
	assert.Equal(t, "CREATE TABLE a (id INT)", statements[0])
	assert.Equal(t, `SELECT "weird;name" FROM a`, statements[1])
}

func TestEmbeddedDiscoveryMigration(t *testing.T) {
	pending, err := pendingMigrations(cnpgMigrationsFS, map[string]struct{}{})
	require.NoError(t, err)
	require.NotEmpty(t, pending)

	for _, name := range pending {
		assert.True(t, strings.HasSuffix(name, ".up.sql"), name)
	}

	content, err := cnpgMigrationsFS.ReadFile(cnpgMigrationsDir + "/" + pending[0])
	require.NoError(t, err)

	statements := splitSQLStatements(string(content))
	joined := strings.Join(statements, "\n")
	assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS discovered_hosts")
	assert.Contains(t, joined, "CREATE TABLE IF NOT EXISTS discovered_services")
	assert.Contains(t, joined, "PRIMARY KEY (rule_id, check_id, identity, port)")

	applied := map[string]struct{}{extractVersion(pending[0]): {}}
	rest, err := pendingMigrations(cnpgMigrationsFS, applied)
	require.NoError(t, err)
	assert.NotContains(t, rest, pending[0])
}

func TestExtractVersion(t *testing.T) {
	assert.Equal(t, "00000000000001", extractVersion("00000000000001_discovery_state.up.sql"))
	assert.Equal(t, "noversion.sql", extractVersion("noversion.sql"))
}
