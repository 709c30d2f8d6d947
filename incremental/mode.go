package incremental

import "fmt"

// Mode selects where the numeric index is placed in an incremented name.
type Mode int

const (
	// Suffix appends the index to the full file name: file.txt-0.
	Suffix Mode = iota
	// Extension inserts the index before the extension: file-0.txt.
	Extension
)

// modes maps each Mode to its index and name. The index of a Mode in
// this table must equal its value.
var modes = []struct {
	mode Mode
	name string
}{
	{Suffix, "suffix"},
	{Extension, "extension"},
}

// Modes returns all supported modes in index order.
func Modes() []Mode {
	r := make([]Mode, len(modes))
	for i, m := range modes {
		r[i] = m.mode
	}
	return r
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modes) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modes[m].name
}

// ParseMode returns the Mode with the given name.
func ParseMode(name string) (Mode, error) {
	for _, m := range modes {
		if m.name == name {
			return m.mode, nil
		}
	}
	return 0, fmt.Errorf("unknown naming mode: %q", name)
}

func (m Mode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(modes) {
		return nil, fmt.Errorf("invalid naming mode: %d", int(m))
	}
	return []byte(modes[m].name), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
