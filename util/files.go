package util

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ReadFileAt reads full contents of a file in given directory
func ReadFileAt(dir *os.File, filename string) ([]byte, error) {
	fd, oerr := unix.Openat(int(dir.Fd()), filename, unix.O_RDONLY, 0o644)
	if oerr != nil {
		return nil, oerr
	}
	var stat unix.Stat_t
	if serr := unix.Fstat(fd, &stat); serr != nil {
		unix.Close(fd)
		return nil, serr
	}
	buf := make([]byte, stat.Size)
	n, rerr := unix.Read(fd, buf)
	if rerr != nil {
		unix.Close(fd)
		return nil, rerr
	}
	if n != len(buf) {
		buf = buf[:n]
	}
	unix.Close(fd)
	return buf, nil
}

// StatFileAt queries the stat of an existing file in given directory
func StatFileAt(dir *os.File, filename string) (unix.Stat_t, error) {
	var stat unix.Stat_t
	err := unix.Fstatat(int(dir.Fd()), filename, &stat, 0)
	return stat, err
}

// UnlinkFileAt unlinks an existing file in given directory
func UnlinkFileAt(dir *os.File, filename string) error {
	return unix.Unlinkat(int(dir.Fd()), filename, 0)
}

// WriteFileAt writes to a new file in given directory
func WriteFileAt(dir *os.File, filename string, data []byte, perm os.FileMode) error {
	fd, oerr := unix.Openat(int(dir.Fd()), filename, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, uint32(perm))
	if oerr != nil {
		return oerr
	}
	werr := writeFull(func(b []byte) (int, error) { return unix.Write(fd, b) }, data)
	unix.Close(fd)
	if werr != nil {
		_ = unix.Unlinkat(int(dir.Fd()), filename, 0)
	}
	return werr
}

// WriteFileSyncAt writes to a temporary file, flushes it to disk and then renames it to the filename in given directory
//
// The file either exists with full contents or doesn't exist at all after crash
func WriteFileSyncAt(dir *os.File, filename string, data []byte, perm os.FileMode) error {
	tmpName := filename + ".tmp"
	fd, oerr := unix.Openat(int(dir.Fd()), tmpName, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, uint32(perm))
	if oerr != nil {
		return oerr
	}
	if werr := writeFull(func(b []byte) (int, error) { return unix.Write(fd, b) }, data); werr != nil {
		unix.Close(fd)
		_ = unix.Unlinkat(int(dir.Fd()), tmpName, 0)
		return werr
	}
	if serr := unix.Fsync(fd); serr != nil {
		unix.Close(fd)
		_ = unix.Unlinkat(int(dir.Fd()), tmpName, 0)
		return serr
	}
	unix.Close(fd)
	return unix.Renameat(int(dir.Fd()), tmpName, int(dir.Fd()), filename)
}

// writeFull calls write until all of data is written. Returns io.ErrShortWrite if write makes no progress
func writeFull(write func(b []byte) (int, error), data []byte) error {
	for len(data) > 0 {
		n, err := write(data)
		if err != nil {
			return err
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
