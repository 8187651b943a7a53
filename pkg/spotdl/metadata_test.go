package spotdl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchSongs_ParsesJSON(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		require.Equal(t, "save", args[0])
		require.Equal(t, "https://open.spotify.com/track/abc", args[1])
		require.Equal(t, "--save-file", args[2])
		return []byte(`[{"song_id":"abc","name":"Song","artist":"Artist","album_name":"Album","year":2021,"duration":215.4,"url":"https://open.spotify.com/track/abc","genres":["pop"]}]`), nil, nil
	}

	songs, err := c.FetchSongs(context.Background(), "https://open.spotify.com/track/abc")
	require.NoError(t, err)
	require.Len(t, songs, 1)
	require.Equal(t, "Song", songs[0].Name)
	require.Equal(t, "Artist", songs[0].Artist)
	require.Equal(t, 2021, songs[0].Year)
	require.Equal(t, []string{"pop"}, songs[0].Genres)
}

func TestFetchSongs_EmptyURL(t *testing.T) {
	c := New()
	_, err := c.FetchSongs(context.Background(), "")
	require.Error(t, err)
}

func TestFetchSongs_WrapsExecError(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, []byte("LookupError: no results"), errors.New("exit status 1")
	}

	_, err := c.FetchSongs(context.Background(), "https://open.spotify.com/track/abc")
	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "LookupError: no results", ee.Stderr)
}

func TestFetchSongs_NoOutput(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return nil, nil, nil
	}

	_, err := c.FetchSongs(context.Background(), "https://open.spotify.com/track/abc")
	require.Error(t, err)
}
