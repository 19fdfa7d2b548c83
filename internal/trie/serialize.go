package trie

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// Serialize encodes the trie into a compact, self-describing binary form:
// a header (root key, data node count) followed by a pre-order walk of
// the node tree. It is the wire format used to ship a trie fragment
// across the internal HTTP client (format=trie responses).
func (t *ShardTrie) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	writeString(&buf, t.rootKey)
	writeUvarint(&buf, uint64(t.dataCount))
	if err := encodeNode(&buf, t.root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize parses the output of Serialize back into a ShardTrie.
func Deserialize(data []byte) (*ShardTrie, error) {
	r := bytes.NewReader(data)
	rootKey, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("trie: read root key: %w", err)
	}
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("trie: read data count: %w", err)
	}
	root, err := decodeNode(r)
	if err != nil {
		return nil, fmt.Errorf("trie: decode node tree: %w", err)
	}
	return &ShardTrie{rootKey: rootKey, root: root, dataCount: int(count)}, nil
}

func encodeNode(buf *bytes.Buffer, n *Node) error {
	buf.WriteByte(byte(n.Flag))
	writeString(buf, n.Key)
	writeString(buf, n.FullKey)
	writeUvarint(buf, uint64(n.Timestamp.UnixNano()))

	if n.Flag == FlagData {
		if n.Data == nil {
			return fmt.Errorf("trie: data node %q missing payload", n.FullKey)
		}
		writeUvarint(buf, uint64(n.Data.Size))
		writeString(buf, n.Data.ContentType)
		writeString(buf, n.Data.ETag)
		if n.Data.Deleted {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeUvarint(buf, uint64(n.Data.StoragePolicyIndex))
	}

	children := n.sortedChildKeys()
	writeUvarint(buf, uint64(len(children)))
	for _, b := range children {
		if err := encodeNode(buf, n.children[b]); err != nil {
			return err
		}
	}
	return nil
}

func decodeNode(r *bytes.Reader) (*Node, error) {
	flagByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	flag := Flag(flagByte)

	key, err := readString(r)
	if err != nil {
		return nil, err
	}
	fullKey, err := readString(r)
	if err != nil {
		return nil, err
	}
	ts, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}

	n := newNode(key, fullKey, flag)
	n.Timestamp = time.Unix(0, int64(ts)).UTC()

	if flag == FlagData {
		size, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		contentType, err := readString(r)
		if err != nil {
			return nil, err
		}
		etag, err := readString(r)
		if err != nil {
			return nil, err
		}
		deletedByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		spi, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		n.Data = &ObjectData{
			Size:               int64(size),
			ContentType:        contentType,
			ETag:               etag,
			Deleted:            deletedByte == 1,
			StoragePolicyIndex: int(spi),
		}
	}

	childCount, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < childCount; i++ {
		child, err := decodeNode(r)
		if err != nil {
			return nil, err
		}
		if len(child.Key) == 0 {
			return nil, fmt.Errorf("trie: child node %q has empty edge label", child.FullKey)
		}
		n.children[child.Key[0]] = child
	}
	return n, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return "", err
	}
	return string(out), nil
}
