//go:build linux

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential tells the kernel the split is read front to back from
// offset, which doubles readahead on most filesystems. Failures are ignored;
// the hint is optional.
func adviseSequential(f *os.File, offset int64) {
	_ = unix.Fadvise(int(f.Fd()), offset, 0, unix.FADV_SEQUENTIAL)
}
