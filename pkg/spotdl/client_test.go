package spotdl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamWriter_SplitsOnCRAndLF(t *testing.T) {
	var buf bytes.Buffer
	var lines []string
	w := &streamWriter{
		stream: "stdout",
		callback: func(stream string, line string) {
			lines = append(lines, stream+":"+line)
		},
		buffer: &buf,
	}

	_, err := w.Write([]byte("a\rb\nc\r\nd"))
	require.NoError(t, err)

	// No delimiter after trailing "d" yet.
	require.Equal(t, []string{"stdout:a", "stdout:b", "stdout:c"}, lines)

	_, err = w.Write([]byte("\n"))
	require.NoError(t, err)
	require.Equal(t, []string{"stdout:a", "stdout:b", "stdout:c", "stdout:d"}, lines)

	require.Equal(t, "a\rb\nc\r\nd\n", buf.String())
}

func TestScrapePercent(t *testing.T) {
	require.Equal(t, 0.0, scrapePercent("Processing query"))
	require.Equal(t, 42.0, scrapePercent("Downloading: 42%"))
	require.Equal(t, 7.5, scrapePercent("Song.mp3 7.5% done"))
	require.Equal(t, 100.0, scrapePercent("overshoot 250%"))
}

func TestDownload_ReportsProgress(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		require.Equal(t, "spotdl", name)
		require.Equal(t, "download", args[0])
		return []byte("Downloaded \"Artist - Song\""), nil, nil
	}

	out, err := c.Download(context.Background(), []string{"download", "https://example.com"}, nil)
	require.NoError(t, err)
	require.Equal(t, "Downloaded \"Artist - Song\"", out)
}

func TestDownload_ReturnsOutputOnFailure(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte("partial"), []byte("HTTPError: 403"), errors.New("exit status 1")
	}

	out, err := c.Download(context.Background(), []string{"download", "u"}, nil)
	require.Error(t, err)
	// Output survives the failure so it can still be classified.
	require.Equal(t, "partial\nHTTPError: 403", out)

	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "HTTPError: 403", ee.Stderr)
}

func TestDownload_MaterializesCookieFile(t *testing.T) {
	c := New()
	c.Cookies = "# Netscape HTTP Cookie File\n.example.com\tTRUE\t/\tTRUE\t0\tsid\tabc\n"

	var got []string
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		got = args
		return nil, nil, nil
	}

	_, err := c.Download(context.Background(), []string{"download", "u", "--cookie-file", ""}, nil)
	require.NoError(t, err)

	idx := indexOf(got, "--cookie-file")
	require.GreaterOrEqual(t, idx, 0)
	require.NotEmpty(t, got[idx+1])
	// The temp file is removed once the command finishes.
	_, statErr := os.Stat(got[idx+1])
	require.True(t, os.IsNotExist(statErr))
}

func TestSubstituteCookieFile_LeavesExplicitPathAlone(t *testing.T) {
	args := []string{"download", "u", "--cookie-file", "/home/user/cookies.txt"}
	out := substituteCookieFile(args, "/tmp/generated.txt")
	require.Equal(t, args, out)
}

func TestCreateTempCookieFile_WritesContent(t *testing.T) {
	path, err := createTempCookieFile("cookie-data")
	require.NoError(t, err)
	require.NotEmpty(t, path)
	defer os.Remove(path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "cookie-data", string(b))
}

func TestWrapExecError_TrimsOutput(t *testing.T) {
	err := wrapExecError("spotdl", []string{"--version"}, []byte(" out \n"), []byte(" err \n"), errors.New("boom"))
	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, "spotdl", ee.Cmd)
	require.Equal(t, []string{"--version"}, ee.Args)
	require.Equal(t, 0, ee.ExitCode)
	require.Equal(t, "out", ee.Stdout)
	require.Equal(t, "err", ee.Stderr)
	require.Equal(t, "boom", ee.Cause.Error())
	require.Contains(t, ee.Error(), "spotdl")
}

func TestVersion_TrimsOutput(t *testing.T) {
	c := New()
	c.execFn = func(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
		return []byte("4.2.5\n"), nil, nil
	}

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if v != "4.2.5" {
		t.Fatalf("expected version to be trimmed, got %q", v)
	}
}

func TestClient_PathOrDefault(t *testing.T) {
	c := &Client{Path: "   "}
	require.Equal(t, "spotdl", c.PathOrDefault())

	c.Path = "/usr/local/bin/spotdl"
	require.Equal(t, "/usr/local/bin/spotdl", c.PathOrDefault())
}
