package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"postureguard/internal/posture"
)

const (
	recordKeyPrefix      = "record:"
	calibrationKeyPrefix = "calibration:"
	settingKeyPrefix     = "setting:"
	recordSequenceKey    = "seq:record"
)

// MetadataDB keeps posture records, calibration profiles and settings in an
// embedded badger database. Record keys sort by capture time so range scans
// come out in chronological order.
type MetadataDB struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *logrus.Entry
}

// NewMetadataDB opens the database under dir. An empty dir keeps everything in
// memory, which is what the tests use.
func NewMetadataDB(dir string, logger *logrus.Entry) (*MetadataDB, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	seq, err := db.GetSequence([]byte(recordSequenceKey), 100)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &MetadataDB{
		db:     db,
		seq:    seq,
		logger: logger,
	}, nil
}

func (m *MetadataDB) Close() error {
	if err := m.seq.Release(); err != nil {
		m.logger.WithError(err).Warn("release record sequence")
	}
	return m.db.Close()
}

func (m *MetadataDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (m *MetadataDB) Set(key, val []byte) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func (m *MetadataDB) Delete(key []byte) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", posture.ErrPersistence, op, err)
}

// recordKey flips the sign bit of the timestamp so pre-1970 times still sort
// before later ones.
func recordKey(unixNano int64, id int64) []byte {
	return []byte(fmt.Sprintf("%s%020d:%020d", recordKeyPrefix, uint64(unixNano)^(1<<63), id))
}

func (m *MetadataDB) SaveRecord(ctx context.Context, rec *posture.PostureRecord) error {
	next, err := m.seq.Next()
	if err != nil {
		return persistenceError("allocate record id", err)
	}
	rec.ID = int64(next) + 1

	val, err := json.Marshal(rec)
	if err != nil {
		return persistenceError("encode record", err)
	}
	if err := m.Set(recordKey(rec.Timestamp.UnixNano(), rec.ID), val); err != nil {
		return persistenceError("save record", err)
	}
	return nil
}

func (m *MetadataDB) QueryRecords(ctx context.Context, r posture.TimeRange) ([]posture.PostureRecord, error) {
	prefix := []byte(recordKeyPrefix)
	seek := prefix
	if !r.Start.IsZero() {
		seek = recordKey(r.Start.UnixNano(), 0)
	}

	records := make([]posture.PostureRecord, 0, 64)
	err := m.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 100
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var rec posture.PostureRecord
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				m.logger.WithError(err).Errorf("unmarshal record %s", item.Key())
				continue
			}
			if !r.End.IsZero() && rec.Timestamp.After(r.End) {
				break
			}
			if r.Contains(rec.Timestamp) {
				records = append(records, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, persistenceError("query records", err)
	}
	return records, nil
}

func (m *MetadataDB) SaveCalibration(ctx context.Context, p posture.CalibrationProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	val, err := json.Marshal(p)
	if err != nil {
		return persistenceError("encode calibration", err)
	}
	if err := m.Set([]byte(calibrationKeyPrefix+p.Role.String()), val); err != nil {
		return persistenceError("save calibration", err)
	}
	return nil
}

func (m *MetadataDB) LoadCalibration(ctx context.Context, role posture.CameraRole) (*posture.CalibrationProfile, error) {
	val, err := m.Get([]byte(calibrationKeyPrefix + role.String()))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, persistenceError("load calibration", err)
	}
	p := &posture.CalibrationProfile{}
	if err := json.Unmarshal(val, p); err != nil {
		return nil, persistenceError("decode calibration", err)
	}
	return p, nil
}

func (m *MetadataDB) DeleteCalibration(ctx context.Context, role posture.CameraRole) error {
	if err := m.Delete([]byte(calibrationKeyPrefix + role.String())); err != nil {
		return persistenceError("delete calibration", err)
	}
	return nil
}

func (m *MetadataDB) SaveSetting(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("setting key is empty")
	}
	if err := m.Set([]byte(settingKeyPrefix+key), []byte(value)); err != nil {
		return persistenceError("save setting", err)
	}
	return nil
}

func (m *MetadataDB) LoadSetting(ctx context.Context, key, def string) (string, error) {
	val, err := m.Get([]byte(settingKeyPrefix + key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return def, nil
		}
		return def, persistenceError("load setting", err)
	}
	return string(val), nil
}
