package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestMessageStoreSaveAndFind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Save(Record{SeqNum: 1, MsgType: "A", Wire: []byte("8=FIX.4.2\x01")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(Record{SeqNum: 2, MsgType: "D", Wire: []byte("8=FIX.4.2\x01second")}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	rec, err := s.Find(2)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if rec.MsgType != "D" || string(rec.Wire) != "8=FIX.4.2\x01second" {
		t.Errorf("unexpected record: %+v", rec)
	}

	if s.Last() != 2 {
		t.Errorf("expected Last()==2, got %d", s.Last())
	}
}

func TestMessageStoreFindMissingReturnsErrNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	_, err = s.Find(42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMessageStoreRebuildsIndexOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Save(Record{SeqNum: 1, MsgType: "0", Wire: []byte("a")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(Record{SeqNum: 2, MsgType: "0", Wire: []byte("b")}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if reopened.Last() != 2 {
		t.Errorf("expected Last()==2 after reopen, got %d", reopened.Last())
	}
	rec, err := reopened.Find(1)
	if err != nil || string(rec.Wire) != "a" {
		t.Errorf("expected to find seq 1 with wire 'a', got %+v err=%v", rec, err)
	}
}
