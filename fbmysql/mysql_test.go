package fbmysql_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fbnetwork/corenet/fbmysql"
)

// These tests cover the argument validation Open and OpenUnixSocket
// perform before they ever touch the network; no retrieved example repo ships
// a MySQL test double, and the pack has no in-memory database/sql
// driver, so exercising a live query round trip is out of reach
// without a running server. See DESIGN.md.

func TestOpenRejectsEmptyHost(t *testing.T) {
	_, err := fbmysql.Open("", "user", "pass", "db", 3306)
	require.Error(t, err)
}

func TestOpenRejectsOutOfRangePort(t *testing.T) {
	_, err := fbmysql.Open("localhost", "user", "pass", "db", 70000)
	require.Error(t, err)
}

func TestOpenUnixSocketRejectsEmptySocketPath(t *testing.T) {
	_, err := fbmysql.OpenUnixSocket("", "user", "pass", "db")
	require.Error(t, err)
}

func TestOpenUnixSocketRejectsEmptyUser(t *testing.T) {
	_, err := fbmysql.OpenUnixSocket("/var/run/mysqld/mysqld.sock", "", "pass", "db")
	require.Error(t, err)
}
