package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"rover-bridge/command"
)

func TestFilePersisterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robotState.json")
	p := NewFilePersister(path)
	s := NewStore(p, Initial(command.DefaultOptions()))

	intents := []command.Derived{
		{Flags: command.Directional{Up: true}, Command: command.Forward, Speed: 0.8, Duration: 1},
		{Command: command.Parse("dance"), Speed: 0.2, Duration: 0.05},
		{Flags: command.Directional{Right: true}, Command: command.Right, Speed: 1, Duration: 5},
	}
	for _, d := range intents {
		snap, err := s.Apply(context.Background(), d)
		if err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		loaded, err := p.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded != snap {
			t.Errorf("Round trip mismatch:\n got  %+v\n want %+v", loaded, snap)
		}
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Temp file should not survive a successful save, stat err = %v", err)
	}
}

func TestFilePersisterInterruptedWriteLeavesPreviousFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robotState.json")
	p := NewFilePersister(path)

	first := Snapshot{Command: command.Forward, Speed: 0.5, CommandID: 1, Timestamp: 10}
	if err := p.Save(context.Background(), first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// A crash between writing the temp file and renaming it leaves a torn temp
	// file behind; the canonical file must still hold the previous record.
	if err := os.WriteFile(path+".tmp", []byte(`{"command":"for`), 0o644); err != nil {
		t.Fatal(err)
	}
	loaded, err := p.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != first {
		t.Errorf("Expected previous record, got %+v", loaded)
	}

	second := Snapshot{Command: command.Stop, Speed: 0.5, CommandID: 2, Timestamp: 11}
	if err := p.Save(context.Background(), second); err != nil {
		t.Fatalf("Save after crash failed: %v", err)
	}
	if loaded, _ := p.Load(); loaded != second {
		t.Errorf("Expected new record, got %+v", loaded)
	}
}

func TestFilePersisterRenameFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "robotState.json")
	// A directory at the canonical path makes the rename fail.
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	p := NewFilePersister(path)

	err := p.Save(context.Background(), Snapshot{CommandID: 1})
	if err == nil {
		t.Fatal("Expected rename failure")
	}
	if _, statErr := os.Stat(path + ".tmp"); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("Temp file should be cleaned up on failure, stat err = %v", statErr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	p := NewFilePersister(filepath.Join(t.TempDir(), "nope.json"))
	if _, err := p.Load(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}

func TestChainJoinsErrors(t *testing.T) {
	good := &recordingPersister{}
	bad := &recordingPersister{err: errors.New("redis down")}
	chain := Chain{good, bad}

	err := chain.Save(context.Background(), Snapshot{CommandID: 3})
	if err == nil || err.Error() != "redis down" {
		t.Errorf("Expected joined redis error, got %v", err)
	}
	if len(good.ids()) != 1 || len(bad.ids()) != 1 {
		t.Error("Every persister in the chain should be called")
	}
}
