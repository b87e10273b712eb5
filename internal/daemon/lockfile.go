//go:build !windows

package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFile manages an exclusive lock file to prevent multiple daemon instances.
// It uses flock(2) with LOCK_EX|LOCK_NB for non-blocking exclusive locking.
type LockFile struct {
	file *os.File
	path string
}

// NewLockFile creates a new LockFile at the specified path.
// The lock is not acquired until Acquire is called.
func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

// ReadHeldPID returns the PID recorded in lockPath if (and only if) the file lock
// is currently held by another process. If the lock is not held (or the file does
// not exist), held will be false.
//
// This is how a running daemon is identified without a separate PID
// file: the PID in the lock file is only meaningful while the lock is
// held.
func ReadHeldPID(lockPath string) (pid int, held bool, err error) {
	f, err := os.OpenFile(lockPath, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close()

	// If we can acquire the lock, it is not held.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return 0, false, nil
	} else if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
		pid := readPID(f)
		return pid, true, nil
	} else {
		return 0, false, fmt.Errorf("flock: %w", err)
	}
}

// Acquire attempts to acquire an exclusive non-blocking lock.
// If the lock is held by another process, it checks for stale PIDs.
// On success, the current PID is written to the lock file.
func (l *LockFile) Acquire() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EAGAIN) {
			f.Close()
			return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
		}

		// Lock is held by another process. A dead holder left a stale
		// lock behind; remove it and retry once.
		stalePID := readPID(f)
		f.Close()

		if stalePID > 0 && !isProcessAlive(stalePID) {
			os.Remove(l.path)
			return l.retryAcquire()
		}

		if stalePID > 0 {
			return fmt.Errorf("daemon already running (PID %d), lock file: %s", stalePID, l.path)
		}
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	if err := l.writePID(f); err != nil {
		f.Close()
		return err
	}
	l.file = f
	return nil
}

// retryAcquire performs a single retry after removing a stale lock file.
func (l *LockFile) retryAcquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lock file on retry: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return fmt.Errorf("failed to acquire lock on retry: %w", err)
	}

	if err := l.writePID(f); err != nil {
		f.Close()
		return err
	}
	l.file = f
	return nil
}

// writePID records the current PID in the already-locked file.
func (l *LockFile) writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync lock file: %w", err)
	}
	return nil
}

// Release releases the lock and removes the lock file.
func (l *LockFile) Release() error {
	if l.file == nil {
		return nil
	}

	// Best effort unlock; closing the file drops it anyway.
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	l.file = nil

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *LockFile) Path() string {
	return l.path
}

// readPID reads a PID from an already-open file.
func readPID(f *os.File) int {
	if _, err := f.Seek(0, 0); err != nil {
		return 0
	}
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

// isProcessAlive checks if a process with the given PID is running.
func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds. Send signal 0 to check if alive.
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
