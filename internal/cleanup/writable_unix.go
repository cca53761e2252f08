//go:build unix

package cleanup

import "golang.org/x/sys/unix"

// dirWritable asks the kernel, so ACLs and read-only mounts count too.
func dirWritable(dir string) bool {
	return unix.Access(dir, unix.W_OK) == nil
}
