// Package counters publishes monotonic 64-bit counters through shared
// memory: one 8-byte mmap'd file per counter, little-endian, single writer.
// An empty directory selects process-private counters, which tests use.
package counters

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

type Counter struct {
	mapped []byte // nil for in-memory counters
	mem    uint64
}

func (c *Counter) Add(n uint64) {
	if c.mapped == nil {
		c.mem += n
		return
	}
	v := binary.LittleEndian.Uint64(c.mapped)
	binary.LittleEndian.PutUint64(c.mapped, v+n)
}

func (c *Counter) Value() uint64 {
	if c.mapped == nil {
		return c.mem
	}
	return binary.LittleEndian.Uint64(c.mapped)
}

// Block is a named set of counters sharing one publication directory.
type Block struct {
	byName map[string]*Counter
}

// Open creates (or reopens) one counter file per name under dir. dir == ""
// keeps the whole block in private memory.
func Open(dir string, names ...string) (*Block, error) {
	b := &Block{byName: make(map[string]*Counter, len(names))}
	for _, name := range names {
		if dir == "" {
			b.byName[name] = &Counter{}
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("counters: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("counters: %w", err)
		}
		if err := f.Truncate(8); err != nil {
			f.Close()
			return nil, fmt.Errorf("counters: %w", err)
		}
		mapped, err := unix.Mmap(int(f.Fd()), 0, 8,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		f.Close() // the mapping outlives the descriptor
		if err != nil {
			return nil, fmt.Errorf("counters: mmap %s: %w", name, err)
		}
		b.byName[name] = &Counter{mapped: mapped}
	}
	return b, nil
}

// Get returns the named counter; the name must have been passed to Open.
func (b *Block) Get(name string) *Counter {
	c, ok := b.byName[name]
	if !ok {
		panic("counters: unknown counter " + name)
	}
	return c
}

func (b *Block) Close() error {
	var first error
	for _, c := range b.byName {
		if c.mapped == nil {
			continue
		}
		if err := unix.Munmap(c.mapped); err != nil && first == nil {
			first = err
		}
		c.mapped = nil
	}
	return first
}
