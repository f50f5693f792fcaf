//go:build !unix

package peer

import "syscall"

// control is a no-op where socket options are not exposed through x/sys/unix.
// Broadcast sends may be refused by the OS on such platforms.
func control(network, address string, c syscall.RawConn) error {
	return nil
}
