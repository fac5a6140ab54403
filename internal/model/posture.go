package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"postureguard/internal/posture"
)

type PostureRecord struct {
	Id            int64     `gorm:"primaryKey"`
	Timestamp     time.Time `gorm:"type:datetime(3);index"`
	ShoulderAngle *float64  `gorm:"type:double"`
	NeckAngle     float64   `gorm:"type:double"`
	CameraType    string    `gorm:"type:char(16);index"`
	IsPoorPosture bool
}

type Calibration struct {
	CameraType   string    `gorm:"type:char(16);primaryKey"`
	ShoulderMin  float64   `gorm:"type:double"`
	ShoulderMax  float64   `gorm:"type:double"`
	NeckMin      float64   `gorm:"type:double"`
	NeckMax      float64   `gorm:"type:double"`
	Margin       float64   `gorm:"type:double"`
	CalibratedAt time.Time `gorm:"type:datetime(3)"`
}

type AppSetting struct {
	Name       string    `gorm:"type:char(96);primaryKey"`
	Value      string    `gorm:"type:text"`
	UpdateTime time.Time `gorm:"datetime;autoCreateTime;autoUpdateTime"`
}

func fromPostureRecord(r *posture.PostureRecord) *PostureRecord {
	return &PostureRecord{
		Id:            r.ID,
		Timestamp:     r.Timestamp,
		ShoulderAngle: r.ShoulderAngle,
		NeckAngle:     r.NeckAngle,
		CameraType:    r.Role.String(),
		IsPoorPosture: r.IsPoorPosture,
	}
}

func (m *PostureRecord) toPostureRecord() posture.PostureRecord {
	return posture.PostureRecord{
		ID:            m.Id,
		Timestamp:     m.Timestamp,
		ShoulderAngle: m.ShoulderAngle,
		NeckAngle:     m.NeckAngle,
		Role:          posture.CameraRole(m.CameraType),
		IsPoorPosture: m.IsPoorPosture,
	}
}

func (m *Calibration) toProfile() *posture.CalibrationProfile {
	return &posture.CalibrationProfile{
		Role:         posture.CameraRole(m.CameraType),
		ShoulderMin:  m.ShoulderMin,
		ShoulderMax:  m.ShoulderMax,
		NeckMin:      m.NeckMin,
		NeckMax:      m.NeckMax,
		Margin:       m.Margin,
		CalibratedAt: m.CalibratedAt,
	}
}

// Store persists posture data in MySQL through gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", posture.ErrPersistence, op, err)
}

func (s *Store) SaveRecord(ctx context.Context, rec *posture.PostureRecord) error {
	m := fromPostureRecord(rec)
	m.Id = 0
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return persistenceError("save record", err)
	}
	rec.ID = m.Id
	return nil
}

func (s *Store) QueryRecords(ctx context.Context, r posture.TimeRange) ([]posture.PostureRecord, error) {
	q := s.db.WithContext(ctx).Model(&PostureRecord{})
	if !r.Start.IsZero() {
		q = q.Where("timestamp >= ?", r.Start)
	}
	if !r.End.IsZero() {
		q = q.Where("timestamp <= ?", r.End)
	}
	var rows []PostureRecord
	if err := q.Order("timestamp asc, id asc").Find(&rows).Error; err != nil {
		return nil, persistenceError("query records", err)
	}
	records := make([]posture.PostureRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toPostureRecord())
	}
	return records, nil
}

func (s *Store) SaveCalibration(ctx context.Context, p posture.CalibrationProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m := &Calibration{
		CameraType:   p.Role.String(),
		ShoulderMin:  p.ShoulderMin,
		ShoulderMax:  p.ShoulderMax,
		NeckMin:      p.NeckMin,
		NeckMax:      p.NeckMax,
		Margin:       p.Margin,
		CalibratedAt: p.CalibratedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
	if err != nil {
		return persistenceError("save calibration", err)
	}
	return nil
}

func (s *Store) LoadCalibration(ctx context.Context, role posture.CameraRole) (*posture.CalibrationProfile, error) {
	var m Calibration
	err := s.db.WithContext(ctx).Where("camera_type = ?", role.String()).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, persistenceError("load calibration", err)
	}
	return m.toProfile(), nil
}

func (s *Store) DeleteCalibration(ctx context.Context, role posture.CameraRole) error {
	err := s.db.WithContext(ctx).Where("camera_type = ?", role.String()).Delete(&Calibration{}).Error
	if err != nil {
		return persistenceError("delete calibration", err)
	}
	return nil
}

func (s *Store) SaveSetting(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("setting key is empty")
	}
	m := &AppSetting{Name: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "update_time"}),
	}).Create(m).Error
	if err != nil {
		return persistenceError("save setting", err)
	}
	return nil
}

func (s *Store) LoadSetting(ctx context.Context, key, def string) (string, error) {
	var m AppSetting
	err := s.db.WithContext(ctx).Where("name = ?", key).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return def, nil
		}
		return def, persistenceError("load setting", err)
	}
	return m.Value, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
