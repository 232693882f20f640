package instrument

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"time"
)

// socketTransport speaks SCPI over a raw TCP socket (LXI instruments listen on
// 5025; serial-to-ethernet bridges use their own port). Commands and replies are
// newline terminated.
type socketTransport struct {
	conn   net.Conn
	reader *bufio.Reader
}

// dialSocket connects within timeout; zero leaves only ctx as the bound.
func dialSocket(ctx context.Context, address string, timeout time.Duration) (*socketTransport, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return newSocketTransport(conn), nil
}

func newSocketTransport(conn net.Conn) *socketTransport {
	return &socketTransport{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// bind maps the context deadline onto the connection and forces pending I/O to
// return when the context is cancelled.
func (t *socketTransport) bind(ctx context.Context) func() {
	if deadline, ok := ctx.Deadline(); ok {
		t.conn.SetDeadline(deadline)
	} else {
		t.conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		t.conn.SetDeadline(time.Now())
	})
	return func() { stop() }
}

func (t *socketTransport) Send(ctx context.Context, command string) error {
	release := t.bind(ctx)
	defer release()

	_, err := io.WriteString(t.conn, command+"\n")
	return err
}

func (t *socketTransport) Receive(ctx context.Context) (string, error) {
	release := t.bind(ctx)
	defer release()

	line, err := t.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *socketTransport) Close() error {
	return t.conn.Close()
}
