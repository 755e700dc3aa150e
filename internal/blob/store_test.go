package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"shelfcore/internal/blob/core"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
		"s3mock": NewMockS3ForTests(),
	}
}

func TestStoresShareSemantics(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, _, err := s.Get(ctx, "saves/slot1.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
			if _, err := s.Put(ctx, "saves/slot1.json", bytes.NewBufferString("v1"), PutOptions{ContentType: "application/json"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := s.Put(ctx, "saves/slot1.json", bytes.NewBufferString("v2"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected exists without overwrite, got %v", err)
			}
			if _, err := s.Put(ctx, "saves/slot1.json", bytes.NewBufferString("v2"), PutOptions{Overwrite: true}); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			_, rc, err := s.Get(ctx, "saves/slot1.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(data) != "v2" {
				t.Fatalf("expected overwritten payload, got %q", data)
			}
			if _, err := s.Put(ctx, "saves/slot2.json", bytes.NewBufferString("x"), PutOptions{}); err != nil {
				t.Fatalf("put second: %v", err)
			}
			list, err := s.List(ctx, "saves/")
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 2 || list[0].Key != "saves/slot1.json" {
				t.Fatalf("unexpected listing %+v", list)
			}
			ok, err := s.Delete(ctx, "saves/slot1.json")
			if err != nil || !ok {
				t.Fatalf("delete: %v %v", ok, err)
			}
			if ok, _ := s.Delete(ctx, "saves/slot1.json"); ok {
				t.Fatalf("second delete must report missing")
			}
			if _, err := s.Head(ctx, "saves/slot1.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected not found after delete, got %v", err)
			}
		})
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{FSRoot: t.TempDir()})
	if err != nil || s.Driver() != DriverFilesystem {
		t.Fatalf("expected fs default, got %v %v", s, err)
	}
	s, err = Open(ctx, Config{Driver: "MEMORY"})
	if err != nil || s.Driver() != DriverMemory {
		t.Fatalf("expected memory, got %v %v", s, err)
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestStoresRecordChecksumAndRejectBadKeys(t *testing.T) {
	ctx := context.Background()
	want := core.Checksum([]byte("payload"))
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			info, err := s.Put(ctx, "slot.json", bytes.NewBufferString("payload"), PutOptions{Metadata: map[string]string{"save-version": "3"}})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if info.Checksum != want || info.Size != 7 {
				t.Fatalf("unexpected put info %+v", info)
			}
			head, err := s.Head(ctx, "slot.json")
			if err != nil {
				t.Fatalf("head: %v", err)
			}
			if head.Checksum != want || head.Metadata["save-version"] != "3" {
				t.Fatalf("unexpected head info %+v", head)
			}
			for _, bad := range []string{"", "/abs.json", "../escape.json", "a/../../b"} {
				if _, err := s.Put(ctx, bad, bytes.NewBufferString("x"), PutOptions{}); !errors.Is(err, ErrInvalidKey) {
					t.Fatalf("key %q: expected invalid key, got %v", bad, err)
				}
			}
		})
	}
}
