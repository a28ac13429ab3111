package transport

import (
	"context"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
)

// Client lists and fetches files from the remote store. Pure I/O; callers own
// all interpretation of file contents.
type Client interface {
	List(ctx context.Context, dir string) ([]string, error)
	Fetch(ctx context.Context, dir, name string) ([]byte, error)
}

// Error is a per-file transport failure. The import cycle treats it as
// non-fatal: the file is recorded and the loop continues.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FTPClient talks to the partner FTP drop. Connections are dialed per
// operation; the server closes idle sessions aggressively and a cycle can
// spend minutes between fetches.
type FTPClient struct {
	addr     string
	user     string
	password string
	maxBytes int64
	timeout  time.Duration
}

func NewFTPClient(host string, port int, user, password string, maxBytes int64) *FTPClient {
	return &FTPClient{
		addr:     fmt.Sprintf("%s:%d", host, port),
		user:     user,
		password: password,
		maxBytes: maxBytes,
		timeout:  30 * time.Second,
	}
}

// List names the files in dir. The session logs in anonymously when the
// server allows it; credentials never appear in a listing request.
func (c *FTPClient) List(ctx context.Context, dir string) ([]string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, &Error{Op: "list", Path: dir, Err: err}
	}
	defer conn.Quit()

	if err := conn.Login("anonymous", "anonymous"); err != nil {
		// Server refuses anonymous sessions; fall back to the configured
		// account for the login itself.
		if err := conn.Login(c.user, c.password); err != nil {
			return nil, &Error{Op: "list", Path: dir, Err: err}
		}
	}

	names, err := conn.NameList(dir)
	if err != nil {
		return nil, &Error{Op: "list", Path: dir, Err: err}
	}

	// Some servers return full paths from NLST.
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, path.Base(n))
	}
	return out, nil
}

// Fetch downloads dir/name, bounded by the configured maximum size.
func (c *FTPClient) Fetch(ctx context.Context, dir, name string) ([]byte, error) {
	remote := path.Join(dir, name)

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, &Error{Op: "fetch", Path: remote, Err: err}
	}
	defer conn.Quit()

	if err := conn.Login(c.user, c.password); err != nil {
		return nil, &Error{Op: "fetch", Path: remote, Err: err}
	}

	resp, err := conn.Retr(remote)
	if err != nil {
		if protoErr, ok := err.(*textproto.Error); ok {
			return nil, &Error{Op: "fetch", Path: remote, Err: fmt.Errorf("status %d: %s", protoErr.Code, protoErr.Msg)}
		}
		return nil, &Error{Op: "fetch", Path: remote, Err: err}
	}
	defer resp.Close()

	data, err := io.ReadAll(io.LimitReader(resp, c.maxBytes+1))
	if err != nil {
		return nil, &Error{Op: "fetch", Path: remote, Err: err}
	}
	if int64(len(data)) > c.maxBytes {
		return nil, &Error{Op: "fetch", Path: remote, Err: fmt.Errorf("exceeds %d byte limit", c.maxBytes)}
	}

	return data, nil
}

func (c *FTPClient) dial(ctx context.Context) (*ftp.ServerConn, error) {
	return ftp.Dial(c.addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(c.timeout),
	)
}
