package spotdl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ProgressFunc receives progress updates while a download runs: the percent
// reported by spotdl (0-100), the cumulative bytes received on the output
// streams, and the latest output line. It may be invoked from the stream
// reading goroutine of any concurrently running task.
type ProgressFunc func(percent float64, received int64, line string)

// percentRe scrapes a trailing percentage out of spotdl progress lines.
var percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// streamWriter wraps an io.Writer and calls a callback for each line.
type streamWriter struct {
	stream   string
	callback func(stream string, line string)
	buffer   *bytes.Buffer
	pending  []byte
}

func (w *streamWriter) Write(p []byte) (n int, err error) {
	if w.buffer != nil {
		w.buffer.Write(p)
	}

	w.pending = append(w.pending, p...)

	// spotdl rewrites its progress bar with carriage returns, so treat both
	// \n and \r as line boundaries.
	for {
		idx := bytes.IndexAny(w.pending, "\r\n")
		if idx < 0 {
			break
		}

		line := string(w.pending[:idx])

		consume := 1
		if w.pending[idx] == '\r' && idx+1 < len(w.pending) && w.pending[idx+1] == '\n' {
			consume = 2
		}
		w.pending = w.pending[idx+consume:]

		if w.callback != nil {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				w.callback(w.stream, trimmed)
			}
		}
	}

	return len(p), nil
}

// ExecError carries the full context of a failed spotdl invocation.
type ExecError struct {
	Cmd      string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Cause    error
}

func (e *ExecError) Error() string {
	cmdline := strings.TrimSpace(e.Cmd + " " + strings.Join(e.Args, " "))
	if e.ExitCode != 0 {
		return fmt.Sprintf("spotdl: command failed (exit %d): %s", e.ExitCode, cmdline)
	}
	return fmt.Sprintf("spotdl: command failed: %s", cmdline)
}

func (e *ExecError) Unwrap() error { return e.Cause }

// Client invokes the spotdl executable. The zero value is not usable; call
// New. A Client is not safe for concurrent use; create one per task.
type Client struct {
	// Path to the spotdl executable. Defaults to "spotdl" (PATH lookup).
	Path string

	// Cookies is Netscape cookies.txt content for authenticated providers.
	// If set, a temporary cookie file is materialized for each command and
	// its path substituted for the empty CookieFile preference.
	Cookies string

	// ExtraArgs are always appended before per-call args.
	ExtraArgs []string

	// LastPID is the process ID of the most recently executed command.
	LastPID int

	// LogCallback is called for each line of stdout/stderr output.
	LogCallback func(stream string, line string)

	execFn func(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

func New() *Client {
	return &Client{Path: "spotdl"}
}

// PathOrDefault returns the configured path or "spotdl" if unset.
func (c *Client) PathOrDefault() string {
	if strings.TrimSpace(c.Path) == "" {
		return "spotdl"
	}
	return c.Path
}

func (c *Client) exec(ctx context.Context, args ...string) (stdout []byte, stderr []byte, err error) {
	name := c.PathOrDefault()

	c.LastPID = 0

	fullArgs := make([]string, 0, len(c.ExtraArgs)+len(args))
	fullArgs = append(fullArgs, c.ExtraArgs...)
	fullArgs = append(fullArgs, args...)

	if c.execFn != nil {
		return c.execFn(ctx, name, fullArgs...)
	}

	slog.Info("spotdl: executing command", "cmd", name, "args", fullArgs)
	cmd := exec.CommandContext(ctx, name, fullArgs...)
	var outBuf, errBuf bytes.Buffer

	if c.LogCallback != nil {
		cmd.Stdout = &streamWriter{stream: "stdout", callback: c.LogCallback, buffer: &outBuf}
		cmd.Stderr = &streamWriter{stream: "stderr", callback: c.LogCallback, buffer: &errBuf}
	} else {
		cmd.Stdout = &outBuf
		cmd.Stderr = &errBuf
	}

	err = cmd.Start()
	if err != nil {
		return nil, nil, err
	}

	c.LastPID = cmd.Process.Pid

	err = cmd.Wait()
	return outBuf.Bytes(), errBuf.Bytes(), err
}

// Download runs a download command built by BuildArgs and blocks until the
// subprocess terminates. Each output line is fed to onProgress with the
// scraped percentage; the combined stdout+stderr text is returned for
// classification regardless of the process outcome.
func (c *Client) Download(ctx context.Context, args []string, onProgress ProgressFunc) (output string, err error) {
	var received int64

	prev := c.LogCallback
	c.LogCallback = func(stream string, line string) {
		received += int64(len(line))
		if prev != nil {
			prev(stream, line)
		}
		if onProgress != nil {
			onProgress(scrapePercent(line), received, line)
		}
	}
	defer func() { c.LogCallback = prev }()

	// Materialize a temporary cookie file when cookie content is attached.
	if c.Cookies != "" {
		cookieFile, cerr := createTempCookieFile(c.Cookies)
		if cerr != nil {
			return "", fmt.Errorf("spotdl: create temp cookie file: %w", cerr)
		}
		defer os.Remove(cookieFile)
		args = substituteCookieFile(args, cookieFile)
	}

	stdout, stderr, err := c.exec(ctx, args...)
	output = combinedOutput(stdout, stderr)
	if err != nil {
		return output, wrapExecError(c.PathOrDefault(), args, stdout, stderr, err)
	}
	return output, nil
}

// Version returns `spotdl --version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := c.exec(ctx, "--version")
	if err != nil {
		return "", wrapExecError(c.PathOrDefault(), append([]string{"--version"}, c.ExtraArgs...), stdout, stderr, err)
	}
	return strings.TrimSpace(string(stdout)), nil
}

func scrapePercent(line string) float64 {
	m := percentRe.FindStringSubmatch(line)
	if len(m) < 2 {
		return 0
	}
	p, err := strconv.ParseFloat(m[1], 64)
	if err != nil || p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func combinedOutput(stdout, stderr []byte) string {
	out := strings.TrimSpace(string(stdout))
	errOut := strings.TrimSpace(string(stderr))
	switch {
	case out == "":
		return errOut
	case errOut == "":
		return out
	default:
		return out + "\n" + errOut
	}
}

// substituteCookieFile fills the materialized cookie file path into the
// value slot following --cookie-file, which BuildArgs leaves empty when the
// snapshot carries no pre-existing path.
func substituteCookieFile(args []string, path string) []string {
	out := append([]string(nil), args...)
	for i := 0; i < len(out)-1; i++ {
		if out[i] == "--cookie-file" && out[i+1] == "" {
			out[i+1] = path
		}
	}
	return out
}

func wrapExecError(cmd string, args []string, stdout []byte, stderr []byte, cause error) error {
	exitCode := 0
	var ee *exec.ExitError
	if errors.As(cause, &ee) {
		exitCode = ee.ExitCode()
	}

	return &ExecError{
		Cmd:      cmd,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   strings.TrimSpace(string(stdout)),
		Stderr:   strings.TrimSpace(string(stderr)),
		Cause:    cause,
	}
}

// createTempCookieFile creates a temporary file with the cookie content.
func createTempCookieFile(content string) (string, error) {
	tmpFile, err := os.CreateTemp("", "spotdl-cookies-*.txt")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	if _, err := tmpFile.WriteString(content); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	return tmpFile.Name(), nil
}
