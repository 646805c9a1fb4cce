package wait

import (
	"context"
	"errors"
	"net"
	"time"
)

const dialTimeout = time.Second

func portOpen(ctx context.Context, t Target, port string) (bool, error) {
	addr, err := t.Endpoint(ctx, port)
	if errors.Is(err, ErrPortUnavailable) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, nil
	}
	conn.Close()
	return true, nil
}
