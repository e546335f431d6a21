// Package cache implements the HeuristicCache spec.md 6 names under
// "Persisted state": a (device, concretization-fingerprint) keyed store of
// previously chosen heuristic decisions, so a fusion seen before with an
// equivalent input shape skips re-dispatch. Entries are framed as small
// length-prefixed protobuf wire records rather than a single generated
// message, since the scheme needs to append and scan individual entries
// without re-decoding a whole file.
package cache

import (
	"fmt"
	"io"
	"os"
	"sync"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zerfoo/fusegen/heuristic"
	"github.com/zerfoo/fusegen/kerr"
)

// Entry is one persisted heuristic decision.
type Entry struct {
	Device      string
	Fingerprint string
	Kind        heuristic.Kind
	// Params is the caller-serialized heuristic.Params payload (opaque to
	// this package: each scheduler's Params type owns its own encoding).
	Params []byte
}

type key struct {
	device      string
	fingerprint string
}

// HeuristicCache is safe for concurrent use.
type HeuristicCache struct {
	mu      sync.Mutex
	entries map[key]Entry
}

// New returns an empty HeuristicCache.
func New() *HeuristicCache {
	return &HeuristicCache{entries: map[key]Entry{}}
}

// Get looks up the cached decision for device/fingerprint.
func (c *HeuristicCache) Get(device, fingerprint string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key{device, fingerprint}]
	return e, ok
}

// Put records a heuristic decision, overwriting any prior entry for the
// same device/fingerprint.
func (c *HeuristicCache) Put(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key{e.Device, e.Fingerprint}] = e
}

// Invalidate drops every cached entry for device. The compiler calls it at
// the start of a schedule_and_lower call made with disable_kernel_reuse
// set; it also serves as an explicit reset, e.g. after a fingerprinting
// scheme change.
func (c *HeuristicCache) Invalidate(device string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.device == device {
			delete(c.entries, k)
		}
	}
}

const (
	fieldDevice      protowire.Number = 1
	fieldFingerprint protowire.Number = 2
	fieldKind        protowire.Number = 3
	fieldParams      protowire.Number = 4
)

func marshalEntry(e Entry) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldDevice, protowire.BytesType)
	b = protowire.AppendString(b, e.Device)
	b = protowire.AppendTag(b, fieldFingerprint, protowire.BytesType)
	b = protowire.AppendString(b, e.Fingerprint)
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Kind))
	b = protowire.AppendTag(b, fieldParams, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Params)
	return b
}

func unmarshalEntry(b []byte) (Entry, error) {
	var e Entry
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Entry{}, fmt.Errorf("malformed cache entry tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldDevice:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Entry{}, fmt.Errorf("malformed cache entry device field: %w", protowire.ParseError(n))
			}
			e.Device = v
			b = b[n:]
		case fieldFingerprint:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Entry{}, fmt.Errorf("malformed cache entry fingerprint field: %w", protowire.ParseError(n))
			}
			e.Fingerprint = v
			b = b[n:]
		case fieldKind:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Entry{}, fmt.Errorf("malformed cache entry kind field: %w", protowire.ParseError(n))
			}
			e.Kind = heuristic.Kind(v)
			b = b[n:]
		case fieldParams:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Entry{}, fmt.Errorf("malformed cache entry params field: %w", protowire.ParseError(n))
			}
			e.Params = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Entry{}, fmt.Errorf("malformed cache entry unknown field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}

// Save writes every entry to w as a sequence of varint-length-prefixed
// wire records.
func (c *HeuristicCache) Save(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		rec := marshalEntry(e)
		length := protowire.AppendVarint(nil, uint64(len(rec)))
		if _, err := w.Write(length); err != nil {
			return err
		}
		if _, err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// Load reads entries written by Save, merging them into c (later entries
// for the same device/fingerprint overwrite earlier ones).
func (c *HeuristicCache) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for len(data) > 0 {
		n, m := protowire.ConsumeVarint(data)
		if m < 0 {
			return fmt.Errorf("malformed cache record length: %w", protowire.ParseError(m))
		}
		data = data[m:]
		if uint64(len(data)) < n {
			return fmt.Errorf("truncated cache record: %w", kerr.InvalidInput)
		}
		rec := data[:n]
		data = data[n:]

		e, err := unmarshalEntry(rec)
		if err != nil {
			return err
		}
		c.entries[key{e.Device, e.Fingerprint}] = e
	}
	return nil
}

// SaveFile writes the cache to path, replacing it if it already exists.
func (c *HeuristicCache) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Save(f)
}

// LoadFile merges path's contents into c. A missing file is not an error;
// a cache with nothing persisted yet behaves as if freshly constructed.
func (c *HeuristicCache) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return c.Load(f)
}
