package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/law-makers/cmhistory/internal/app"
	"github.com/law-makers/cmhistory/internal/errs"
	"github.com/law-makers/cmhistory/pkg/models"
)

func TestBuildQuery(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.Local)

	q, err := buildQuery("", "", "", "200", now)
	require.NoError(t, err)
	assert.Equal(t, models.RoleBuyer, q.Role)
	assert.Equal(t, now, q.Start)
	assert.Nil(t, q.End)
	assert.Equal(t, "200", q.ShipmentStatus)

	q, err = buildQuery("Seller", "2025-06-01", "2025-03-01", "200", now)
	require.NoError(t, err)
	assert.Equal(t, models.RoleSeller, q.Role)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.Local), q.Start)
	require.NotNil(t, q.End)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local), *q.End)
}

func TestBuildQuery_Invalid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name, role, start, end string
	}{
		{"role", "trader", "", ""},
		{"start", "buyer", "01/06/2025", ""},
		{"end", "buyer", "", "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildQuery(tt.role, tt.start, tt.end, "200", now)
			require.Error(t, err)
			assert.Equal(t, errs.CodeValidation, errs.CodeOf(err))
		})
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four\n\n- keep this line as is", 9)
	assert.Equal(t, "one two\nthree\nfour\n\n- keep this line as is", got)
}

func TestPrintFlags(t *testing.T) {
	var buf bytes.Buffer
	printFlags(&buf, "      --db string   Database file\n  -v, --verbose     Verbose logging\n")
	out := buf.String()
	assert.Contains(t, out, "--db string")
	assert.Contains(t, out, "Database file")
	assert.Contains(t, out, "-v, --verbose")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"login", "session", "orders", "products", "stats", "page"} {
		assert.True(t, names[want], want)
	}
}

func TestExecute_ClosesAppWhenCommandFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CMH_CONFIG", "")
	t.Setenv("CMH_DB_PATH", filepath.Join(dir, "history.db"))
	t.Setenv("CMH_STATE_PATH", filepath.Join(dir, "state.json"))

	var opened *app.Application
	failing := &cobra.Command{
		Use: "failing-import",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := getApp()
			if err != nil {
				return err
			}
			opened = a
			return errors.New("import aborted")
		},
	}
	rootCmd.AddCommand(failing)
	t.Cleanup(func() {
		rootCmd.RemoveCommand(failing)
		rootCmd.SetArgs(nil)
	})
	rootCmd.SetArgs([]string{"failing-import", "-q"})

	code := Execute(context.Background())

	assert.Equal(t, 1, code)
	require.NotNil(t, opened)
	assert.Nil(t, currentApp())
	_, err := opened.Store.ListOrders(context.Background())
	assert.Error(t, err, "store should be closed")
}
