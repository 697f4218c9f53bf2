// Package store implements the persistent pieces spec.md §4.6 requires:
// an append-only outbound message log keyed by MsgSeqNum, an atomically
// rewritten session-state snapshot, and an in-memory resend cache that
// spares most resend requests a disk scan. Grounded structurally on
// original_source/sxsuite/store.py's MessageFileStore (append, scan
// forward, no separate index) but framed with length-prefixed gob
// records instead of pickle, per SPEC_FULL.md §4.
package store

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"io"
	"os"
	"sync"
)

// ErrNotFound is returned by Find when no record exists for the
// requested seqnum, including the "gap in the middle" case the resend
// policy must gap-fill around.
var ErrNotFound = errors.New("store: record not found")

// Record is one durable outbound entry: the assigned seqnum, its
// MsgType (so the resend policy can tell session-level traffic from
// application traffic without re-parsing), and the exact wire bytes
// that were (or will be) sent.
type Record struct {
	SeqNum  int
	MsgType string
	Wire    []byte
}

// MessageStore is an append-only, per-session log of outbound records.
// Saves are flushed to disk before returning, satisfying spec.md §4.6's
// durability-before-send ordering constraint; writes are also mirrored
// into an in-memory index so Find need not scan the file on the common
// path.
type MessageStore struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	index map[int]int64 // seqnum -> byte offset of its record
	last  int
}

// Open creates or appends to the message store file at path, rebuilding
// its in-memory seqnum index by scanning any existing records.
func Open(path string) (*MessageStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	s := &MessageStore{path: path, file: f, index: make(map[int]int64)}
	if err := s.rebuildIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *MessageStore) rebuildIndex() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r := bufio.NewReader(s.file)
	var offset int64
	for {
		rec, n, err := readRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		s.index[rec.SeqNum] = offset
		if rec.SeqNum > s.last {
			s.last = rec.SeqNum
		}
		offset += int64(n)
	}
	_, err := s.file.Seek(0, io.SeekEnd)
	return err
}

// Save appends a record, flushing before returning. Per spec.md §4.6,
// this call must complete before the same bytes are handed to the
// transport.
func (s *MessageStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	buf := encodeRecord(rec)
	if _, err := s.file.Write(buf); err != nil {
		return err
	}
	if err := s.file.Sync(); err != nil {
		return err
	}
	s.index[rec.SeqNum] = offset
	if rec.SeqNum > s.last {
		s.last = rec.SeqNum
	}
	return nil
}

// Find returns the record stored for seqnum n, or ErrNotFound.
func (s *MessageStore) Find(n int) (Record, error) {
	s.mu.Lock()
	offset, ok := s.index[n]
	s.mu.Unlock()
	if !ok {
		return Record{}, ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Seek(offset, io.SeekStart); err != nil {
		return Record{}, err
	}
	r := bufio.NewReader(s.file)
	rec, _, err := readRecord(r)
	if err != nil {
		return Record{}, err
	}
	if _, err := s.file.Seek(0, io.SeekEnd); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Last returns the highest seqnum stored, or 0 if the store is empty.
func (s *MessageStore) Last() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *MessageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func encodeRecord(rec Record) []byte {
	payload := struct {
		SeqNum  int
		MsgType string
		Wire    []byte
	}{rec.SeqNum, rec.MsgType, rec.Wire}

	body := gobEncode(payload)

	var out []byte
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(body)))
	out = append(out, lenBuf...)
	out = append(out, body...)
	return out
}

func readRecord(r *bufio.Reader) (Record, int, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return Record{}, 0, err
	}
	n := binary.BigEndian.Uint32(lenBuf)
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Record{}, 0, err
	}

	var payload struct {
		SeqNum  int
		MsgType string
		Wire    []byte
	}
	if err := gobDecode(body, &payload); err != nil {
		return Record{}, 0, err
	}
	return Record{SeqNum: payload.SeqNum, MsgType: payload.MsgType, Wire: payload.Wire}, 4 + int(n), nil
}

func gobEncode(v interface{}) []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	_ = enc.Encode(v)
	return buf.Bytes()
}

func gobDecode(data []byte, v interface{}) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}
