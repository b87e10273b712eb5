// Package transport provides the Unix domain socket transport shared by
// the daemon and its clients.
package transport

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

// DialTimeout is the default time to wait for a connection to the
// daemon socket.
const DialTimeout = 500 * time.Millisecond

// Listen creates the daemon's Unix socket listener. A stale socket file
// left by a crashed daemon is removed first. The socket is restricted
// to the owning user.
func Listen(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return listener, nil
}

// Dial connects to the daemon socket with the default timeout.
func Dial(socketPath string) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DialTimeout)
	defer cancel()
	return DialContext(ctx, socketPath)
}

// DialContext connects to the daemon socket using the provided context
// for timeout and cancellation.
func DialContext(ctx context.Context, socketPath string) (net.Conn, error) {
	if !SocketExists(socketPath) {
		return nil, fmt.Errorf("socket not found: %s", socketPath)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", socketPath, err)
	}
	return conn, nil
}

// SocketExists checks if the daemon socket file exists.
func SocketExists(socketPath string) bool {
	_, err := os.Stat(socketPath)
	return err == nil
}
