package testutil

import (
	"os"
	"path/filepath"
	"runtime"
)

// ReadFixture returns the contents of a file under internal/testutil/testdata.
func ReadFixture(filename string) ([]byte, error) {
	_, currentFile, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(currentFile), "testdata")
	return os.ReadFile(filepath.Join(dir, filename))
}
