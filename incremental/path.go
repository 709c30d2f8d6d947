package incremental

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// IsFileCandidate returns true if path can be used to create a file
// without the OS reporting that it names a directory. It is purely
// structural and unlike os.Stat does not consult the filesystem. Paths
// that end in a separator, are empty, consist only of a volume name, or
// whose final element is "." or ".." are not candidates. A path that is
// not valid UTF-8 results in an error of kind InvalidEncoding.
func IsFileCandidate(path string) (bool, error) {
	return classify("classify", path)
}

func classify(op, path string) (bool, error) {
	if !utf8.ValidString(path) {
		return false, newError(InvalidEncoding, op, path, nil)
	}
	if len(path) > 0 && os.IsPathSeparator(path[len(path)-1]) {
		return false, nil
	}
	switch _, name := splitPath(path); name {
	case "", ".", "..":
		return false, nil
	}
	return true, nil
}

func requireFile(op, path string) error {
	ok, err := classify(op, path)
	if err != nil {
		return err
	}
	if !ok {
		return newError(NotAFile, op, path, nil)
	}
	return nil
}

// splitPath splits path immediately after its final separator. Unlike
// filepath.Split the directory is returned as written, including any
// volume name, so that derived paths keep the caller's spelling.
func splitPath(path string) (dir, name string) {
	vol := filepath.VolumeName(path)
	i := len(path) - 1
	for i >= len(vol) && !os.IsPathSeparator(path[i]) {
		i--
	}
	return path[:i+1], path[i+1:]
}

// splitExt splits name into a stem and an extension that includes the
// leading dot. Names whose only dot is the first character, eg. .profile,
// have no extension.
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}
