//go:build unix

package platform

import (
	"errors"
	"os"
	"syscall"
)

// openNoFollow opens name under root, refusing a final symlink component.
func openNoFollow(root *os.Root, name string) (*os.File, error) {
	f, err := root.OpenFile(name, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, ErrSymlink
		}
		return nil, err
	}
	return f, nil
}
