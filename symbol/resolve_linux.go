//go:build linux

package symbol

import (
	"bufio"
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pboyd/framehook/internal/gosym"
	"github.com/shirou/gopsutil/v3/process"
)

func resolve(module, symbol string) (uintptr, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, moduleNotFound(module, symbol, err)
	}

	exe, err := proc.Exe()
	if err == nil && filepath.Base(exe) == module {
		addr, ok := gosym.Lookup(symbol)
		if !ok {
			return 0, symbolNotFound(module, symbol, nil)
		}
		return addr, nil
	}

	path, err := findMapped(proc, module)
	if err != nil {
		return 0, moduleNotFound(module, symbol, err)
	}

	addr, err := elfSymbol(path, symbol)
	if err != nil {
		return 0, symbolNotFound(module, symbol, err)
	}
	return addr, nil
}

// findMapped returns the path of the mapped file named module.
func findMapped(proc *process.Process, module string) (string, error) {
	maps, err := proc.MemoryMaps(false)
	if err != nil {
		return "", err
	}
	for _, m := range *maps {
		if m.Path != "" && filepath.Base(m.Path) == module {
			return m.Path, nil
		}
	}

	// gopsutil splits on whitespace, so paths with spaces only show up here.
	var path string
	err = readMaps(func(m mapping) bool {
		if filepath.Base(m.path) == module {
			path = m.path
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("no mapping of %s", module)
	}
	return path, nil
}

// elfSymbol looks up symbol in the dynamic symbol table of the ELF object
// at path and returns its address in this process.
func elfSymbol(path, symbol string) (uintptr, error) {
	f, err := elf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	syms, err := f.DynamicSymbols()
	if err != nil {
		return 0, err
	}

	var value uint64
	for _, s := range syms {
		if s.Name == symbol && s.Section != elf.SHN_UNDEF && elf.ST_TYPE(s.Info) == elf.STT_FUNC {
			value = s.Value
			break
		}
	}
	if value == 0 {
		return 0, errors.New("not in dynamic symbol table")
	}

	var first *elf.Prog
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD {
			first = p
			break
		}
	}
	if first == nil {
		return 0, errors.New("no loadable segment")
	}

	base, err := loadBase(path)
	if err != nil {
		return 0, err
	}

	pageSize := uint64(os.Getpagesize())
	vaddr := first.Vaddr &^ (pageSize - 1)
	return uintptr(base + value - vaddr), nil
}

// loadBase returns the start of the mapping of path at file offset zero.
func loadBase(path string) (uint64, error) {
	var (
		base  uint64
		found bool
	)
	err := readMaps(func(m mapping) bool {
		if m.path == path && m.offset == 0 {
			base, found = m.start, true
			return false
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%s is not mapped", path)
	}
	return base, nil
}

type mapping struct {
	start  uint64
	offset uint64
	path   string
}

// readMaps calls fn for each file-backed mapping in /proc/self/maps until fn
// returns false.
func readMaps(fn func(mapping) bool) error {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m, ok := parseMapsLine(scanner.Text())
		if !ok || m.path == "" {
			continue
		}
		if !fn(m) {
			return nil
		}
	}
	return scanner.Err()
}

// parseMapsLine parses one line of /proc/<pid>/maps:
//
//	start-end perms offset dev inode path
//
// The path is everything after the inode and may contain spaces.
func parseMapsLine(line string) (mapping, bool) {
	var fields [5]string
	rest := line
	for i := range fields {
		rest = strings.TrimLeft(rest, " \t")
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			end = len(rest)
		}
		fields[i], rest = rest[:end], rest[end:]
		if fields[i] == "" {
			return mapping{}, false
		}
	}

	startHex, _, ok := strings.Cut(fields[0], "-")
	if !ok {
		return mapping{}, false
	}
	start, err := strconv.ParseUint(startHex, 16, 64)
	if err != nil {
		return mapping{}, false
	}
	offset, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return mapping{}, false
	}

	return mapping{
		start:  start,
		offset: offset,
		path:   strings.TrimLeft(rest, " \t"),
	}, true
}
