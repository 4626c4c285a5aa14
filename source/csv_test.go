package source

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestOpenReadsHeader(t *testing.T) {
	path := writeFixture(t, "entity_code,period,ae_attendances_total\nRGT,2024-01-01,100\n")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"entity_code", "period", "ae_attendances_total"}, r.Header())
}

func TestNextStreamsRowsUntilEOF(t *testing.T) {
	path := writeFixture(t,
		"entity_code,period,ae_attendances_total\n"+
			"RGT,2024-01-01,100\n"+
			"RWD,2024-01-01,\n")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "RGT", first["entity_code"])
	assert.Equal(t, "100", first["ae_attendances_total"])

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "RWD", second["entity_code"])
	assert.Equal(t, "", second["ae_attendances_total"])

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestNextSurfacesMalformedRowWithoutStopping(t *testing.T) {
	path := writeFixture(t,
		"entity_code,period\n"+
			"RGT,2024-01-01,extra-field\n"+
			"RWD,2024-02-01\n")

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Next()
	assert.Error(t, err, "wrong field count is a row-level error")

	good, err := r.Next()
	require.NoError(t, err, "the reader stays usable after a bad row")
	assert.Equal(t, "RWD", good["entity_code"])

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestOpenMissingFileIsConfigurationError(t *testing.T) {
	_, err := Open("/nonexistent/source.csv")
	assert.Error(t, err)
}
