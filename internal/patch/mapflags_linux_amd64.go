package patch

import "golang.org/x/sys/unix"

// Go executables are linked low in the address space. Keeping the arena
// under 2GiB keeps most jumps and calls between the two within rel32 range.
const mapFlags = unix.MAP_32BIT
