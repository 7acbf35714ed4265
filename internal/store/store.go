package store

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/PowerDNS/lmdb-go/lmdb"

	"episodereel/internal/services"
)

// Store provides typed read-only access to an LMDB dataset.
type Store struct {
	env  *lmdb.Env
	dbi  lmdb.DBI
	path string
}

// Open opens the LMDB environment at path read-only. path may be the
// environment directory or, for environments created with subdir=False, the
// data file itself.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "store", "open", "empty dataset path", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "store", "open", fmt.Sprintf("dataset %s", path), err)
	}

	env, err := lmdb.NewEnv()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "store", "open", "create lmdb env", err)
	}
	flags := uint(lmdb.Readonly | lmdb.NoLock)
	if !info.IsDir() {
		flags |= lmdb.NoSubdir
	}
	if err := env.Open(path, flags, 0o644); err != nil {
		_ = env.Close()
		return nil, services.Wrap(services.ErrTransient, "store", "open", fmt.Sprintf("open lmdb env %s", path), err)
	}

	var dbi lmdb.DBI
	err = env.View(func(txn *lmdb.Txn) error {
		var openErr error
		dbi, openErr = txn.OpenRoot(0)
		return openErr
	})
	if err != nil {
		_ = env.Close()
		return nil, services.Wrap(services.ErrTransient, "store", "open", "open root database", err)
	}

	return &Store{env: env, dbi: dbi, path: path}, nil
}

// Path returns the dataset location the store was opened with.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close releases the environment. It is safe to call more than once.
func (s *Store) Close() error {
	if s == nil || s.env == nil {
		return nil
	}
	err := s.env.Close()
	s.env = nil
	return err
}

// DatasetLength returns the total number of frames, cur_step + 1.
func (s *Store) DatasetLength() (int, error) {
	var step int
	err := s.lookup(LengthKey, func(raw []byte) error {
		var decodeErr error
		step, decodeErr = decodeInt(LengthKey, raw)
		return decodeErr
	})
	if err != nil {
		return 0, err
	}
	if step < -1 {
		return 0, decodeError(LengthKey, fmt.Sprintf("negative step %d", step), nil)
	}
	return step + 1, nil
}

// EpisodeIndex returns the episode a frame belongs to.
func (s *Store) EpisodeIndex(frame int) (int, error) {
	key := EpisodeKey(frame)
	var episode int
	err := s.lookup(key, func(raw []byte) error {
		var decodeErr error
		episode, decodeErr = decodeInt(key, raw)
		return decodeErr
	})
	return episode, err
}

// FrameImage returns the encoded image payload stored for a frame.
func (s *Store) FrameImage(frame int) ([]byte, error) {
	key := FrameKey(frame)
	var payload []byte
	err := s.lookup(key, func(raw []byte) error {
		var decodeErr error
		payload, decodeErr = decodeImage(key, raw)
		return decodeErr
	})
	return payload, err
}

// Instruction returns the language annotation recorded for an episode.
func (s *Store) Instruction(episode int) (string, error) {
	key := InstructionKey(episode)
	var text string
	err := s.lookup(key, func(raw []byte) error {
		var decodeErr error
		text, decodeErr = decodeText(key, raw)
		return decodeErr
	})
	return text, err
}

// lookup runs decode against the raw value inside a read transaction. raw is
// only valid until decode returns.
func (s *Store) lookup(key string, decode func(raw []byte) error) error {
	if s == nil || s.env == nil {
		return services.Wrap(services.ErrTransient, "store", key, "store is closed", nil)
	}
	return s.env.View(func(txn *lmdb.Txn) error {
		txn.RawRead = true
		raw, err := txn.Get(s.dbi, []byte(key))
		if err != nil {
			if lmdb.IsNotFound(err) {
				return services.Wrap(services.ErrNotFound, "store", "lookup", fmt.Sprintf("key %s", key), nil)
			}
			return services.Wrap(services.ErrTransient, "store", "lookup", fmt.Sprintf("key %s", key), err)
		}
		return decode(raw)
	})
}

// IsNotFound reports whether err came from a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
