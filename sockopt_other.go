//go:build !(darwin || dragonfly || freebsd || linux || netbsd || openbsd || windows)

package mdns

import "syscall"

func reuseControl(network, address string, c syscall.RawConn) error {
	return nil
}
