//go:build !unix

package process

import "syscall"

func ownGroupAttr() *syscall.SysProcAttr {
	return nil
}
