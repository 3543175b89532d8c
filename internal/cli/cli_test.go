package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--driver", "sqlite", "--sqlite-path", dbPath}, args...))

	err := root.Execute()
	return out.String(), err
}

func TestItemLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ctl.db")

	out, err := run(t, dbPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied (sqlite)")

	id := uuid.NewString()
	out, err = run(t, dbPath, "item", "register", "--id", id, "--copies", "2")
	require.NoError(t, err, out)

	var item struct {
		ID              string `json:"id"`
		CopiesTotal     int    `json:"copies_total"`
		CopiesAvailable int    `json:"copies_available"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &item))
	assert.Equal(t, id, item.ID)
	assert.Equal(t, 2, item.CopiesAvailable)

	out, err = run(t, dbPath, "item", "resize", id, "--copies", "5")
	require.NoError(t, err, out)

	out, err = run(t, dbPath, "item", "availability", id)
	require.NoError(t, err, out)
	var snapshot map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snapshot))
	assert.EqualValues(t, 5, snapshot["copies_total"])
	assert.EqualValues(t, 5, snapshot["copies_available"])
	assert.EqualValues(t, 0, snapshot["open_loan_count"])

	out, err = run(t, dbPath, "reconcile")
	require.NoError(t, err, out)

	out, err = run(t, dbPath, "fines", "refresh")
	require.NoError(t, err, out)
	assert.Contains(t, out, "0 loan(s) updated")
}

func TestArgumentErrors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ctl.db")

	_, err := run(t, dbPath, "item", "availability", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid item id")

	_, err = run(t, dbPath, "loan", "force-close", uuid.NewString())
	assert.ErrorContains(t, err, "loan not found")

	_, err = run(t, dbPath, "item", "resize", uuid.NewString())
	assert.Error(t, err, "--copies is required")
}
