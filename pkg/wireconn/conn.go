// Package wireconn implements the TCP (and optional TLS) connection the
// HTTP client sends and receives over. It owns exactly one socket at a
// time: Reconnect and UpgradeToTLS both tear down and rebuild the
// connection wholesale rather than patching it in place.
package wireconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	httpPort  = "80"
	httpsPort = "443"

	dialTimeout = 15 * time.Second
)

var tlsOnce sync.Once

// Conn is a connection to one remote host, over plain TCP or TLS.
type Conn struct {
	Host        string // current host, possibly changed by a redirect
	PrimaryHost string // original seed host; Reconnect always dials this
	UseTLS      bool

	// TLSConfig, if set before Open/UpgradeToTLS, overrides the default
	// MinVersion-TLS1.2 config. Tests set this to point RootCAs at a
	// test server's own certificate instead of the system trust store.
	TLSConfig *tls.Config

	nc net.Conn
}

// Open dials conn.Host (on the port given in Host if any, otherwise 443
// if UseTLS, else 80) and, if UseTLS is set, performs the TLS handshake.
// Mirrors open_connection.
func (c *Conn) Open(ctx context.Context) error {
	tlsOnce.Do(func() {}) // one-shot init point, mirroring __init_openssl's pthread_once guard

	port := httpPort
	if c.UseTLS {
		port = httpsPort
	}
	if _, explicit, err := net.SplitHostPort(c.Host); err == nil {
		port = explicit
	}

	addr, err := firstIPv4(ctx, c.Host)
	if err != nil {
		return fmt.Errorf("wireconn: resolve %s: %w", c.Host, err)
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	target := net.JoinHostPort(addr, port)

	if c.UseTLS {
		if c.TLSConfig == nil {
			c.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: stripPort(c.Host)}
		}
		tc, err := tls.DialWithDialer(dialer, "tcp", target, c.TLSConfig)
		if err != nil {
			return fmt.Errorf("wireconn: tls dial %s: %w", target, err)
		}
		c.nc = tc
		return nil
	}

	nc, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return fmt.Errorf("wireconn: dial %s: %w", target, err)
	}
	c.nc = nc
	return nil
}

// FromNetConn wraps an already-established net.Conn, bypassing Open's
// DNS/dial logic. Used by tests that set up their own listener.
func FromNetConn(nc net.Conn, host string) *Conn {
	return &Conn{Host: host, PrimaryHost: host, nc: nc}
}

// Close shuts down the current socket. Mirrors close_connection.
func (c *Conn) Close() error {
	if c.nc == nil {
		return nil
	}
	err := c.nc.Close()
	c.nc = nil
	return err
}

// Reconnect closes the current socket and reopens a connection to
// PrimaryHost, not the possibly-redirected Host. Mirrors reconnect.
func (c *Conn) Reconnect(ctx context.Context) error {
	c.Close()
	c.Host = c.PrimaryHost
	return c.Open(ctx)
}

// UpgradeToTLS closes the current plain connection and reopens it with
// TLS enabled. Mirrors conn_switch_to_tls.
func (c *Conn) UpgradeToTLS(ctx context.Context) error {
	c.Close()
	c.UseTLS = true
	return c.Open(ctx)
}

// Send writes p to the connection.
func (c *Conn) Send(p []byte) error {
	if c.nc == nil {
		return fmt.Errorf("wireconn: send on closed connection")
	}
	_, err := c.nc.Write(p)
	return err
}

// Recv reads up to len(p) bytes into p.
func (c *Conn) Recv(p []byte) (int, error) {
	if c.nc == nil {
		return 0, fmt.Errorf("wireconn: recv on closed connection")
	}
	return c.nc.Read(p)
}

// SetDeadline forwards to the underlying connection. The HTTP client
// does not call it; tests use it to bound reads.
func (c *Conn) SetDeadline(t time.Time) error {
	if c.nc == nil {
		return nil
	}
	return c.nc.SetDeadline(t)
}

func firstIPv4(ctx context.Context, host string) (string, error) {
	h := stripPort(host)
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, h)
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ip4 := a.IP.To4(); ip4 != nil {
			return ip4.String(), nil
		}
	}
	return "", fmt.Errorf("no A record for %s", h)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
