package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	table := NewTable("Name", "Path")
	assert.Equal(t, []string{"Name", "Path"}, table.Headers())
	assert.Empty(t, table.Rows())

	table.AddRow("primary", "/srv/primary")
	table.AddRow("archive", "/srv/archive")
	require.Len(t, table.Rows(), 2)
	assert.Equal(t, []string{"archive", "/srv/archive"}, table.Rows()[1])
}

func TestPrintTable(t *testing.T) {
	table := NewTable("Name", "Enabled")
	table.AddRow("primary", "yes")

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "ENABLED")
	assert.Contains(t, out, "primary")
	assert.NotContains(t, out, "+")
}

func TestDetails(t *testing.T) {
	d := NewDetails().Add("Name", "team").Add("Description", "")
	assert.Equal(t, [][]string{{"Name", "team"}, {"Description", "-"}}, d.Rows())

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, d))
	assert.Contains(t, buf.String(), "team")
}
