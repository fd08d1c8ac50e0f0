package log

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for name, want := range LogLevelMapping {
		got, err := ParseLevel(strings.ToUpper(name))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseLevel("verbose")
	require.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	prev := level
	t.Cleanup(func() {
		SetLevel(prev)
		SetOutput(os.Stderr)
	})

	SetLevel(WARNING)
	Debugln("hidden %d", 1)
	Infoln("hidden %d", 2)
	Warnln("shown %d", 3)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "|warn| shown 3")

	buf.Reset()
	SetLevel(SILENT)
	Warnln("nothing")
	require.Empty(t, buf.String())
}
