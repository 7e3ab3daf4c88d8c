package social

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteDebugFilesCreatesDirAndFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dump")
	require.NoError(t, writeDebugFiles(dir, "(define (domain d))", "(define (problem p))"))

	domain, err := os.ReadFile(filepath.Join(dir, "domain_rv.pddl"))
	require.NoError(t, err)
	require.Equal(t, "(define (domain d))", string(domain))

	problem, err := os.ReadFile(filepath.Join(dir, "problem_rv.pddl"))
	require.NoError(t, err)
	require.Equal(t, "(define (problem p))", string(problem))
}
