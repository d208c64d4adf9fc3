package population

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/synthfuzz/synthfuzz-core/internal/tree"
)

// nodeDTO is the wire shape of a tree.Node: parent pointers are dropped (they
// are redundant with nesting) and reconstructed on load.
type nodeDTO struct {
	Name     string     `json:"name"`
	Text     string     `json:"text,omitempty"`
	Variant  int        `json:"variant"`
	Children []*nodeDTO `json:"children,omitempty"`
}

func toDTO(n *tree.Node) *nodeDTO {
	d := &nodeDTO{Name: n.Name, Text: n.Text, Variant: int(n.Variant)}
	for _, c := range n.Children {
		d.Children = append(d.Children, toDTO(c))
	}

	return d
}

func fromDTO(d *nodeDTO) *tree.Node {
	n := &tree.Node{Name: d.Name, Text: d.Text, Variant: tree.Variant(d.Variant)}
	for _, cd := range d.Children {
		child := fromDTO(cd)
		child.Parent = n
		n.Children = append(n.Children, child)
	}

	return n
}

// Codec persists a tree as an LZ4-compressed JSON envelope. Compression
// follows the same reasoning as the arena-array compression in the
// teacher's red-black tree package: populations accumulate many
// structurally similar trees, and LZ4 block compression is cheap enough to
// apply on every save without becoming the bottleneck.
type Codec struct{}

// Save writes root to path as a single atomic file (temp file + rename),
// so concurrent readers never observe a partially written population entry.
func (Codec) Save(path string, root *tree.Node) error {
	raw, err := json.Marshal(toDTO(root))
	if err != nil {
		return fmt.Errorf("population: marshal tree: %w", err)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))

	var lzw lz4.Compressor

	n, err := lzw.CompressBlock(raw, compressed)
	if err != nil {
		return fmt.Errorf("population: compress tree: %w", err)
	}

	envelope := envelope{RawLen: len(raw), Data: compressed[:n]}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("population: marshal envelope: %w", err)
	}

	return writeAtomic(path, payload)
}

// Load reads and decompresses the tree stored at path.
func (Codec) Load(path string) (*tree.Node, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("population: read %s: %w", path, err)
	}

	var env envelope
	if unmarshalErr := json.Unmarshal(payload, &env); unmarshalErr != nil {
		return nil, fmt.Errorf("population: unmarshal envelope: %w", unmarshalErr)
	}

	raw := make([]byte, env.RawLen)

	_, err = lz4.UncompressBlock(env.Data, raw)
	if err != nil {
		return nil, fmt.Errorf("population: decompress tree: %w", err)
	}

	var dto nodeDTO
	if unmarshalErr := json.Unmarshal(raw, &dto); unmarshalErr != nil {
		return nil, fmt.Errorf("population: unmarshal tree: %w", unmarshalErr)
	}

	return fromDTO(&dto), nil
}

type envelope struct {
	Data   []byte `json:"data"`
	RawLen int    `json:"raw_len"`
}

// writeAtomic writes data to a temp file in the same directory as path, then
// renames it into place, so a reader never sees a half-written file.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp) //nolint:gosec // path is caller-controlled (population directory), not user input
	if err != nil {
		return fmt.Errorf("population: create temp file: %w", err)
	}

	_, writeErr := io.Copy(f, bytes.NewReader(data))
	closeErr := f.Close()

	if writeErr != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("population: write temp file: %w", writeErr)
	}

	if closeErr != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("population: close temp file: %w", closeErr)
	}

	if renameErr := os.Rename(tmp, path); renameErr != nil {
		return fmt.Errorf("population: rename into place: %w", renameErr)
	}

	return nil
}
