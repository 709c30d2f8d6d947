package incremental

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModes(t *testing.T) {
	for i, m := range Modes() {
		require.Equal(t, i, int(m))
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		require.Equal(t, m, parsed)

		text, err := m.MarshalText()
		require.NoError(t, err)
		var u Mode
		require.NoError(t, u.UnmarshalText(text))
		require.Equal(t, m, u)
	}
	require.Equal(t, []Mode{Suffix, Extension}, Modes())

	_, err := ParseMode("dot")
	require.Error(t, err)
	_, err = Mode(7).MarshalText()
	require.Error(t, err)
	require.Equal(t, "Mode(7)", Mode(7).String())
}

func TestErrorKinds(t *testing.T) {
	cause := &fs.PathError{Op: "open", Path: "x", Err: fs.ErrExist}
	err := newError(AlreadyExists, "create", "x", cause)
	require.True(t, errors.Is(err, ErrAlreadyExists))
	require.True(t, errors.Is(err, fs.ErrExist))
	require.False(t, errors.Is(err, ErrNotAFile))
	require.Equal(t, `create "x": open x: file already exists`, err.Error())

	err = newError(NotAFile, "create", "x/", nil)
	require.EqualError(t, err, `create "x/": not a file`)
	require.Nil(t, errors.Unwrap(err))

	require.Equal(t, KindUnknown, KindOf(errors.New("other")))
	require.Equal(t, "already exists", AlreadyExists.String())
	require.Equal(t, "unknown", Kind(42).String())
}
