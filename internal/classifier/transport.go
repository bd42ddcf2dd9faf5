package classifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout applies to each phase (connect, write, read) of a remote call.
const DefaultTimeout = 30 * time.Second

// Timeouts holds the per-phase limits for the remote backend.
type Timeouts struct {
	Connect time.Duration
	Write   time.Duration
	Read    time.Duration
}

// DefaultTimeouts returns 30s for every phase.
func DefaultTimeouts() Timeouts {
	return Timeouts{Connect: DefaultTimeout, Write: DefaultTimeout, Read: DefaultTimeout}
}

// TransportErrorKind enumerates remote transport and wire failures.
type TransportErrorKind int

const (
	ConnectTimeout TransportErrorKind = iota
	WriteTimeout
	ReadTimeout
	NonSuccessStatus
	MalformedBody
	// ConnectionFailure covers I/O errors that are not timeouts
	// (refused, reset, DNS).
	ConnectionFailure
)

func (k TransportErrorKind) String() string {
	switch k {
	case ConnectTimeout:
		return "connect timeout"
	case WriteTimeout:
		return "write timeout"
	case ReadTimeout:
		return "read timeout"
	case NonSuccessStatus:
		return "non-success status"
	case MalformedBody:
		return "malformed body"
	case ConnectionFailure:
		return "connection failure"
	default:
		return "unknown"
	}
}

// TransportError describes why a remote call produced no probabilities.
type TransportError struct {
	Kind       TransportErrorKind
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Kind == NonSuccessStatus:
		return fmt.Sprintf("%s: HTTP %d", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// transportError maps an error from the HTTP round trip or body read to a
// TransportError.
func transportError(err error) *TransportError {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			switch opErr.Op {
			case "dial":
				return &TransportError{Kind: ConnectTimeout, Err: err}
			case "write":
				return &TransportError{Kind: WriteTimeout, Err: err}
			default:
				return &TransportError{Kind: ReadTimeout, Err: err}
			}
		}
		return &TransportError{Kind: ConnectionFailure, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: ReadTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: ReadTimeout, Err: err}
	}
	return &TransportError{Kind: ConnectionFailure, Err: err}
}

// deadlineConn arms a fresh deadline before every Read and Write, so each
// I/O phase gets its own budget rather than sharing one for the whole call.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(b []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(b)
}

func (c *deadlineConn) Write(b []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(b)
}

// NewTimeoutHTTPClient builds an *http.Client enforcing t per phase.
func NewTimeoutHTTPClient(t Timeouts) *http.Client {
	dialer := &net.Dialer{Timeout: t.Connect}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := dialer.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		return &deadlineConn{Conn: conn, read: t.Read, write: t.Write}, nil
	}
	transport.ResponseHeaderTimeout = t.Read
	return &http.Client{Transport: transport}
}
