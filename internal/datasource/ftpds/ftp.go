// Package ftpds downloads a single file from an anonymous FTP server.
package ftpds

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/jlaffaye/ftp"
)

// Config describes where the file lives.
type Config struct {
	Addr     string // host:port
	Dir      string
	File     string
	User     string // default "anonymous"
	Password string // default "anonymous"
	Timeout  time.Duration
}

// conn is the subset of *ftp.ServerConn the source needs.
type conn interface {
	Login(user, password string) error
	ChangeDir(dir string) error
	Retr(name string) (io.ReadCloser, error)
	Quit() error
}

type serverConn struct{ *ftp.ServerConn }

func (c serverConn) Retr(name string) (io.ReadCloser, error) {
	return c.ServerConn.Retr(name)
}

// dial is swapped in tests.
var dial = func(ctx context.Context, addr string, timeout time.Duration) (conn, error) {
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(timeout))
	}
	c, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return serverConn{c}, nil
}

// Source implements datasource.Source over FTP.
type Source struct {
	cfg Config
}

// NewSource returns a Source for cfg.
func NewSource(cfg Config) *Source {
	if cfg.User == "" {
		cfg.User = "anonymous"
	}
	if cfg.Password == "" {
		cfg.Password = "anonymous"
	}
	return &Source{cfg: cfg}
}

// Describe implements datasource.Describer.
func (s *Source) Describe() string {
	return "ftp://" + s.cfg.Addr + "/" + path.Join(s.cfg.Dir, s.cfg.File)
}

// Open logs in, retrieves the file fully into memory and closes the control
// connection before returning. The archive is small enough that buffering keeps
// the FTP session short.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	if s.cfg.Addr == "" || s.cfg.File == "" {
		return nil, fmt.Errorf("ftpds: addr and file are required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := dial(ctx, s.cfg.Addr, s.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("ftpds: dial %s: %w", s.cfg.Addr, err)
	}
	defer func() { _ = c.Quit() }()

	if err := c.Login(s.cfg.User, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("ftpds: login: %w", err)
	}
	if s.cfg.Dir != "" {
		if err := c.ChangeDir(s.cfg.Dir); err != nil {
			return nil, fmt.Errorf("ftpds: cwd %s: %w", s.cfg.Dir, err)
		}
	}

	r, err := c.Retr(s.cfg.File)
	if err != nil {
		return nil, fmt.Errorf("ftpds: retr %s: %w", s.cfg.File, err)
	}
	data, readErr := io.ReadAll(r)
	closeErr := r.Close()
	if readErr != nil {
		return nil, fmt.Errorf("ftpds: read %s: %w", s.cfg.File, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("ftpds: close %s: %w", s.cfg.File, closeErr)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
