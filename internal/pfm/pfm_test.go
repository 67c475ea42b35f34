package pfm

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Create(path, DefaultInitialSize)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Close()

	payload := bytes.Repeat([]byte{0xAB}, 1000)
	if err := m.WriteData(1, payload); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	got, err := m.ReadData(1)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestReadMissingIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Create(path, DefaultInitialSize)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Close()

	if _, err := m.ReadData(42); err == nil {
		t.Fatalf("expected error reading unmapped index")
	}
}

func TestFreeAndReuse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Create(path, DefaultInitialSize)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Close()

	if err := m.WriteData(1, bytes.Repeat([]byte{1}, 2000)); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if err := m.FreeData(1); err != nil {
		t.Fatalf("FreeData: %v", err)
	}
	if _, err := m.ReadData(1); err == nil {
		t.Fatalf("expected error reading freed index")
	}
	if err := m.WriteData(2, bytes.Repeat([]byte{2}, 100)); err != nil {
		t.Fatalf("WriteData after free: %v", err)
	}
	got, err := m.ReadData(2)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("ReadData returned %d bytes, want 100", len(got))
	}
}

func TestReopenPreservesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Create(path, DefaultInitialSize)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	m.SetRootIndex(5)
	m.SetTreeIndex(6)
	if err := m.WriteData(1, []byte("hello")); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	if reopened.RootIndex() != 5 || reopened.TreeIndex() != 6 {
		t.Fatalf("reopened root/tree index = %d/%d, want 5/6", reopened.RootIndex(), reopened.TreeIndex())
	}
	got, err := reopened.ReadData(1)
	if err != nil {
		t.Fatalf("ReadData after reopen: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("ReadData after reopen = %q, want hello", got)
	}
}

func TestReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	m, err := Create(path, DefaultInitialSize)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Close()

	m.WriteData(1, []byte("data"))
	m.SetRootIndex(9)
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if m.RootIndex() != 0 {
		t.Fatalf("RootIndex after Reset = %d, want 0", m.RootIndex())
	}
	if _, err := m.ReadData(1); err == nil {
		t.Fatalf("expected data cleared by Reset")
	}
}

func TestCreateProvisionsInitialSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	const budget = 64 * 1024
	m, err := Create(path, budget)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Close()

	size, err := m.FileSize()
	if err != nil {
		t.Fatalf("FileSize: %v", err)
	}
	if size < budget {
		t.Fatalf("FileSize() = %d, want at least the provisioned budget %d", size, budget)
	}
	if got := m.InitialSize(); got != budget {
		t.Fatalf("InitialSize() = %d, want %d", got, budget)
	}
	if got := m.FreeBlocks(); got <= 0 {
		t.Fatalf("FreeBlocks() = %d, want a provisioned free extent", got)
	}
}

func TestResetRestoresInitialSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	const budget = 64 * 1024
	m, err := Create(path, budget)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer m.Close()

	if err := m.WriteData(1, bytes.Repeat([]byte{7}, 40*1024)); err != nil {
		t.Fatalf("WriteData: %v", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	size, err := m.FileSize()
	if err != nil {
		t.Fatalf("FileSize: %v", err)
	}
	if size < budget {
		t.Fatalf("FileSize() after Reset = %d, want at least the provisioned budget %d", size, budget)
	}
	if got := m.InitialSize(); got != budget {
		t.Fatalf("InitialSize() after Reset = %d, want %d", got, budget)
	}
}
