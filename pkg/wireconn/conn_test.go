package wireconn

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

func echoServer(t *testing.T) (addr string, stop func()) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				r := bufio.NewReader(conn)
				line, err := r.ReadString('\n')
				if err != nil {
					return
				}
				conn.Write([]byte("echo:" + line))
			}()
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func TestOpenSendRecv(t *testing.T) {
	addr, stop := echoServer(t)
	defer stop()

	// Open dials the explicit port carried in Host, which is how it
	// reaches the test server's ephemeral port.
	c := &Conn{Host: addr, PrimaryHost: addr}
	if err := c.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.Send([]byte("hello\n")); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 64)
	c.SetDeadline(time.Now().Add(2 * time.Second))
	n, err := c.Recv(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(buf[:n]); got != "echo:hello\n" {
		t.Fatalf("got %q", got)
	}
}

func TestRecvOnClosedConnErrors(t *testing.T) {
	c := &Conn{}
	if _, err := c.Recv(make([]byte, 1)); err == nil {
		t.Fatal("expected error reading from closed connection")
	}
}

func TestFirstIPv4ResolvesLoopback(t *testing.T) {
	addr, err := firstIPv4(context.Background(), "localhost")
	if err != nil {
		t.Fatal(err)
	}
	if addr != "127.0.0.1" {
		t.Fatalf("expected 127.0.0.1, got %s", addr)
	}
}

func TestStripPort(t *testing.T) {
	if got := stripPort("example.com:8443"); got != "example.com" {
		t.Fatalf("got %q", got)
	}
	if got := stripPort("example.com"); got != "example.com" {
		t.Fatalf("got %q", got)
	}
}
