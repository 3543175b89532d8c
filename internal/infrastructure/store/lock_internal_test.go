package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvisoryXactLock_SQL(t *testing.T) {
	query, _, err := advisoryXactLock("borrower:42").ToSQL()
	require.NoError(t, err)
	assert.Equal(t, `SELECT pg_advisory_xact_lock(hashtextextended('borrower:42', 0))`, query)
}
