package kernel

import (
	"golang.org/x/sys/unix"
)

// ProcessGroupKiller sends signals to a PID's entire process group, so
// a game launched with helper/child processes is torn down together
// rather than leaving orphans running (spec §4.6: "send a graceful
// termination signal to the entire process group").
type ProcessGroupKiller struct{}

func NewProcessGroupKiller() *ProcessGroupKiller { return &ProcessGroupKiller{} }

func (ProcessGroupKiller) Terminate(pid int) error {
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		return unix.Kill(pid, unix.SIGTERM)
	}
	return unix.Kill(-pgid, unix.SIGTERM)
}

func (ProcessGroupKiller) Kill(pid int) error {
	pgid, err := unix.Getpgid(pid)
	if err != nil {
		return unix.Kill(pid, unix.SIGKILL)
	}
	return unix.Kill(-pgid, unix.SIGKILL)
}

// StillAlive reports whether pid is still running by probing it with
// signal 0, which performs existence/permission checks without
// actually delivering anything.
func (ProcessGroupKiller) StillAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}
