package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesAreOrderedAndReadable(t *testing.T) {
	names, err := Files()
	require.NoError(t, err)
	require.Equal(t, []string{"sql/0001_signals.up.sql", "sql/0002_sigmax.up.sql"}, names)

	body, err := fs.ReadFile(FS(), names[1])
	require.NoError(t, err)
	assert.Contains(t, string(body), "sigmax_roundtrips")
}
