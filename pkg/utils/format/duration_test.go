package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDuration(t *testing.T) {
	require.Equal(t, "0:00", Duration(0))
	require.Equal(t, "0:07", Duration(7.9))
	require.Equal(t, "3:35", Duration(215.4))
	require.Equal(t, "1:00:01", Duration(3601))
	require.Equal(t, "0:00", Duration(-5))
}
