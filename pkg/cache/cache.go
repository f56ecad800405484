package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/djeday123/chatcorpus/dataset"
	"github.com/djeday123/chatcorpus/vocab"
)

// Version is bumped whenever the blob layout changes.
const Version = 1

var ErrVersionMismatch = errors.New("cache version mismatch")

// Settings records the parameters a cache was built with so a stale cache
// can be detected.
type Settings struct {
	VocabSize int `cbor:"vocab_size"`
	MaxLen    int `cbor:"max_len"`
	LoadFirst int `cbor:"load_first"`

	BothDirections bool `cbor:"both_directions"`
}

// Snapshot is everything persisted between runs.
type Snapshot struct {
	Version  int               `cbor:"version"`
	Settings Settings          `cbor:"settings"`
	Vocab    *vocab.Snapshot   `cbor:"vocab"`
	Examples []dataset.Example `cbor:"examples"`
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Save writes the vocabulary and examples atomically to path.
func Save(path string, settings Settings, v *vocab.Vocabulary, store *dataset.Store) error {
	snap := Snapshot{
		Version:  Version,
		Settings: settings,
		Vocab:    v.Snapshot(),
		Examples: store.Examples(),
	}

	data, err := encMode.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load reads a cache written by Save and rebuilds the vocabulary and store.
func Load(path string) (Settings, *vocab.Vocabulary, *dataset.Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, nil, nil, err
	}

	var snap Snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return Settings{}, nil, nil, fmt.Errorf("decode cache %s: %w", path, err)
	}
	if snap.Version != Version {
		return Settings{}, nil, nil, fmt.Errorf("%w: %s has version %d, want %d", ErrVersionMismatch, path, snap.Version, Version)
	}

	v, err := vocab.FromSnapshot(snap.Vocab)
	if err != nil {
		return Settings{}, nil, nil, fmt.Errorf("cache %s: %w", path, err)
	}
	store, err := dataset.NewStore(snap.Examples...)
	if err != nil {
		return Settings{}, nil, nil, fmt.Errorf("cache %s: %w", path, err)
	}
	return snap.Settings, v, store, nil
}
