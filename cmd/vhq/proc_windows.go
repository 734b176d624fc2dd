//go:build windows

package main

import (
	"os/exec"
	"syscall"
)

// createNewProcessGroup keeps the daemon alive when the console closes.
const createNewProcessGroup = 0x00000200

func configureDaemonProc(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}
