//go:build unix

package deepviewrt

import (
	"os"

	"golang.org/x/sys/unix"
)

// LoadModelFile maps the model file read-only and loads it zero-copy. The
// mapping is held until the model is unloaded. If mmap is unavailable,
// the file is read into memory instead.
func (c *Context) LoadModelFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return &SystemError{Op: "open model", Err: err}
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return &SystemError{Op: "stat model", Err: err}
	}
	size := stat.Size()
	if size == 0 {
		return wrapperErr("empty model file")
	}
	if int64(int(size)) != size || size < 0 {
		return wrapperErr("model file too large to map")
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return c.loadModelFileCopy(path)
	}
	if err := c.loadModel(data, true); err != nil {
		_ = unix.Munmap(data)
		return err
	}
	return nil
}

func munmapModel(data []byte) error {
	return unix.Munmap(data)
}
