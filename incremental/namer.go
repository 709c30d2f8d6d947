package incremental

import (
	"fmt"
	"os"
	"strconv"
)

// Separator is placed between a name and its index.
const Separator = "-"

// NextPath returns base with the first index, starting from 0, for which
// no file, directory or symlink exists. In Suffix mode the index is
// appended to the file name, in Extension mode it is inserted before
// the extension if there is one.
//
// NextPath only queries the filesystem, it creates nothing and reserves
// nothing; a concurrent caller may create the returned path before this
// caller does.
func NextPath(base string, mode Mode) (string, error) {
	if err := requireFile("next", base); err != nil {
		return "", err
	}
	dir, name := splitPath(base)
	stem, ext := name, ""
	switch mode {
	case Suffix:
	case Extension:
		stem, ext = splitExt(name)
	default:
		return "", fmt.Errorf("next %q: invalid naming mode: %v", base, mode)
	}
	for i := 0; i >= 0; i++ {
		candidate := dir + stem + Separator + strconv.Itoa(i) + ext
		if !exists(candidate) {
			return candidate, nil
		}
	}
	panic(fmt.Sprintf("incremental: index space exhausted for %q", base))
}

// exists reports false for any Lstat error, leaving it to the eventual
// create to report the failure.
func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
