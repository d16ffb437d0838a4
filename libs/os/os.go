package os

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
)

type logger interface {
	Info(msg string, keyvals ...interface{})
}

// TrapSignal waits in the background for SIGINT or SIGTERM, calls onSignal
// and exits the process with 128 plus the signal number.
func TrapSignal(logger logger, onSignal func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("caught signal, shutting down", "signal", sig.String())
		if onSignal != nil {
			onSignal()
		}

		code := 128
		if num, ok := sig.(syscall.Signal); ok {
			code += int(num)
		}
		os.Exit(code)
	}()
}

// Exit prints msg to stderr and exits with status 1.
func Exit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

// EnsureDir creates dir and any missing parents with mode. An existing
// directory is left untouched; an existing non-directory is an error.
func EnsureDir(dir string, mode os.FileMode) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("%s exists and is not a directory", dir)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, mode); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}
	return nil
}

// FileExists reports whether anything exists at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
