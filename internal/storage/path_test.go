package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestBuildExportPath(t *testing.T) {
	ts := time.Date(2026, time.February, 19, 4, 5, 6, 7, time.FixedZone("x", -5*3600))
	key, err := BuildExportPath("0b7c2f9e-1d2a-4d3b-9a8e-3f1c2b4d5e6f", "parquet", ts)
	if err != nil {
		t.Fatalf("BuildExportPath() error = %v", err)
	}
	want := "exports/0b7c2f9e-1d2a-4d3b-9a8e-3f1c2b4d5e6f/date=2026-02-19/result-090506.000000007.parquet"
	if key != want {
		t.Fatalf("BuildExportPath() = %q, want %q", key, want)
	}
}

func TestBuildExportPathRejectsBadComponents(t *testing.T) {
	if _, err := BuildExportPath("../x", "csv", time.Now()); err == nil {
		t.Fatal("expected session id validation error")
	}
	if _, err := BuildExportPath("abc", "", time.Now()); err == nil {
		t.Fatal("expected extension validation error")
	}
}

func TestReadObject(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{"uploads/sales.csv": []byte("name,sales\n")}}

	data, err := ReadObject(context.Background(), store, "uploads/sales.csv", 1024)
	if err != nil {
		t.Fatalf("ReadObject() error = %v", err)
	}
	if string(data) != "name,sales\n" {
		t.Fatalf("data = %q", data)
	}

	if _, err := ReadObject(context.Background(), store, "uploads/sales.csv", 4); !errors.Is(err, ErrObjectTooLarge) {
		t.Fatalf("ReadObject() error = %v, want ErrObjectTooLarge", err)
	}
	if _, err := ReadObject(context.Background(), store, "missing.csv", 1024); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("ReadObject() error = %v, want ErrObjectNotFound", err)
	}
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ PutOptions) (ObjectInfo, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return ObjectInfo{}, err
	}
	m.objects[key] = data
	return ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (ObjectInfo, error) {
	data, ok := m.objects[key]
	if !ok {
		return ObjectInfo{}, ErrObjectNotFound
	}
	return ObjectInfo{Key: key, Size: int64(len(data))}, nil
}
