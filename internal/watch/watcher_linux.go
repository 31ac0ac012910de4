//go:build linux

// File: internal/watch/watcher_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// inotify backend. The parent directory is watched so saves that replace
// the file through a rename are still seen.

package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const watchMask = unix.IN_MODIFY | unix.IN_CLOSE_WRITE | unix.IN_MOVED_TO | unix.IN_CREATE | unix.IN_ATTRIB

func (w *Watcher) watch(ctx context.Context) error {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		w.log.Warn("inotify unavailable, polling instead", "err", err)
		return w.poll(ctx)
	}
	defer unix.Close(fd)

	if _, err := unix.InotifyAddWatch(fd, w.dir, watchMask); err != nil {
		return fmt.Errorf("inotify watch %s: %w", w.dir, err)
	}

	buf := make([]byte, 64*(unix.SizeofInotifyEvent+unix.NAME_MAX+1))
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	timeout := int(w.pollInterval / time.Millisecond)

	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := unix.Poll(fds, timeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("poll inotify: %w", err)
		}
		if n == 0 {
			continue
		}
		nr, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("read inotify: %w", err)
		}
		if w.matches(buf[:nr]) {
			w.notify(ctx)
		}
	}
}

// matches reports whether any event in buf concerns the watched file.
func (w *Watcher) matches(buf []byte) bool {
	hit := false
	for off := 0; off+unix.SizeofInotifyEvent <= len(buf); {
		ev := (*unix.InotifyEvent)(unsafe.Pointer(&buf[off]))
		start := off + unix.SizeofInotifyEvent
		end := start + int(ev.Len)
		if end > len(buf) {
			break
		}
		if ev.Mask&unix.IN_Q_OVERFLOW != 0 {
			hit = true
		}
		if strings.TrimRight(string(buf[start:end]), "\x00") == w.base {
			hit = true
		}
		off = end
	}
	return hit
}
