package witness

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	coreerrors "github.com/agentmem/agentmem/internal/errors"
	"github.com/agentmem/agentmem/internal/pathutil"
	"golang.org/x/crypto/sha3"
)

// entrySize is the fixed wire size of one chain entry: a 32-byte link to
// the previous entry, a 32-byte SHAKE-256 digest of this emission, an
// 8-byte timestamp, and a 1-byte flag.
const entrySize = 32 + 32 + 8 + 1

// Entry is one append-only witness-chain record.
type Entry struct {
	PrevHash  [32]byte
	EntryHash [32]byte
	Timestamp int64
	Flag      byte
}

// Chain is an in-memory, append-only witness chain over certificate
// emissions. Each entry links to the previous via PrevHash, so any
// retroactive edit breaks the hash linkage.
type Chain struct {
	mu      sync.Mutex
	entries []Entry
}

// NewChain returns an empty witness chain.
func NewChain() *Chain {
	return &Chain{}
}

// Append records one certificate emission, chaining it to the last entry.
func (c *Chain) Append(cert *Certificate, timestamp int64) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var prev [32]byte
	if n := len(c.entries); n > 0 {
		prev = c.entries[n-1].EntryHash
	}

	entry := Entry{
		PrevHash:  prev,
		EntryHash: emissionDigest(prev, cert, timestamp),
		Timestamp: timestamp,
		Flag:      0,
	}
	c.entries = append(c.entries, entry)
	return entry
}

// Entries returns a copy of the chain's entries in append order.
func (c *Chain) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Bytes serializes the chain to its flat 73-byte-per-entry wire form.
func (c *Chain) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, 0, len(c.entries)*entrySize)
	for _, e := range c.entries {
		buf = append(buf, encodeEntry(e)...)
	}
	return buf
}

func encodeEntry(e Entry) []byte {
	buf := make([]byte, entrySize)
	copy(buf[0:32], e.PrevHash[:])
	copy(buf[32:64], e.EntryHash[:])
	binary.LittleEndian.PutUint64(buf[64:72], uint64(e.Timestamp))
	buf[72] = e.Flag
	return buf
}

func decodeEntry(buf []byte) Entry {
	var e Entry
	copy(e.PrevHash[:], buf[0:32])
	copy(e.EntryHash[:], buf[32:64])
	e.Timestamp = int64(binary.LittleEndian.Uint64(buf[64:72]))
	e.Flag = buf[72]
	return e
}

// emissionDigest computes the SHAKE-256 digest linking a certificate
// emission to the previous chain entry.
func emissionDigest(prev [32]byte, cert *Certificate, timestamp int64) [32]byte {
	h := sha3.NewShake256()
	h.Write(prev[:])
	h.Write([]byte(cert.QueryID))
	h.Write(cert.MerkleRoot[:])
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(timestamp))
	h.Write(tsBuf[:])

	var out [32]byte
	h.Read(out[:])
	return out
}

// VerifyChainBytes checks structural integrity of a serialized witness
// chain: the length must be a multiple of the entry size, and each
// entry's PrevHash must equal the previous entry's EntryHash.
func VerifyChainBytes(data []byte) error {
	if len(data)%entrySize != 0 {
		return coreerrors.CorruptError("witness chain length is not a multiple of the entry size", nil)
	}

	n := len(data) / entrySize
	var prev [32]byte
	for i := 0; i < n; i++ {
		e := decodeEntry(data[i*entrySize : (i+1)*entrySize])
		if i > 0 && e.PrevHash != prev {
			return coreerrors.CorruptError("witness chain link broken", nil)
		}
		prev = e.EntryHash
	}
	return nil
}

// Save atomically writes the chain's flat wire form to path.
func (c *Chain) Save(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}
	data := c.Bytes()

	tmp, err := os.CreateTemp(filepath.Dir(path), "agentmem-witness-*.tmp")
	if err != nil {
		return coreerrors.IOError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return coreerrors.IOError("failed to write witness chain", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return coreerrors.IOError("failed to close temp file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return coreerrors.IOError("failed to rename witness chain into place", err)
	}
	return nil
}

// Load replaces the chain's entries with a previously-saved chain. A
// missing file is not an error; the chain is left as-is.
func (c *Chain) Load(path string) error {
	if err := pathutil.Validate(path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return coreerrors.IOError("failed to read witness chain", err)
	}
	if err := VerifyChainBytes(data); err != nil {
		return err
	}
	entries, err := ParseChain(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

// ParseChain decodes a serialized witness chain into entries without
// verifying linkage.
func ParseChain(data []byte) ([]Entry, error) {
	if len(data)%entrySize != 0 {
		return nil, coreerrors.CorruptError("witness chain length is not a multiple of the entry size", nil)
	}
	n := len(data) / entrySize
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = decodeEntry(data[i*entrySize : (i+1)*entrySize])
	}
	return out, nil
}
