package model

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"postureguard/internal/posture"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewStore(db), mock
}

func TestStoreSaveRecordAssignsID(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO `posture_records`").
		WillReturnResult(sqlmock.NewResult(42, 1))

	shoulder := 80.0
	rec := &posture.PostureRecord{
		Timestamp:     time.Date(2025, 3, 10, 9, 0, 4, 0, time.UTC),
		ShoulderAngle: &shoulder,
		NeckAngle:     40,
		Role:          posture.RoleFrontal,
		IsPoorPosture: true,
	}
	require.NoError(t, s.SaveRecord(context.Background(), rec))
	assert.Equal(t, int64(42), rec.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSaveRecordWrapsFailure(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO `posture_records`").WillReturnError(errors.New("disk full"))

	err := s.SaveRecord(context.Background(), &posture.PostureRecord{Role: posture.RoleLateral})
	assert.ErrorIs(t, err, posture.ErrPersistence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreQueryRecords(t *testing.T) {
	s, mock := newMockStore(t)
	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	rows := sqlmock.NewRows([]string{"id", "timestamp", "shoulder_angle", "neck_angle", "camera_type", "is_poor_posture"}).
		AddRow(1, start.Add(time.Hour), 91.5, 40.0, "frontal", false).
		AddRow(2, start.Add(2*time.Hour), nil, 52.0, "lateral", true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `posture_records` WHERE timestamp >= ? AND timestamp <= ? ORDER BY timestamp asc, id asc")).
		WithArgs(start, end).
		WillReturnRows(rows)

	got, err := s.QueryRecords(context.Background(), posture.TimeRange{Start: start, End: end})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, posture.RoleFrontal, got[0].Role)
	require.NotNil(t, got[0].ShoulderAngle)
	assert.Equal(t, 91.5, *got[0].ShoulderAngle)

	assert.Equal(t, posture.RoleLateral, got[1].Role)
	assert.Nil(t, got[1].ShoulderAngle)
	assert.True(t, got[1].IsPoorPosture)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreQueryRecordsOpenRange(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `posture_records` ORDER BY timestamp asc, id asc")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := s.QueryRecords(context.Background(), posture.TimeRange{})
	require.NoError(t, err)
	assert.Empty(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCalibration(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT \\* FROM `calibrations`").
		WillReturnRows(sqlmock.NewRows([]string{"camera_type"}))
	p, err := s.LoadCalibration(ctx, posture.RoleFrontal)
	require.NoError(t, err)
	assert.Nil(t, p)

	mock.ExpectExec("INSERT INTO `calibrations` .* ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SaveCalibration(ctx, posture.CalibrationProfile{
		Role: posture.RoleFrontal, ShoulderMin: 85, ShoulderMax: 95, NeckMin: 35, NeckMax: 45, Margin: 5,
	}))

	calibratedAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT \\* FROM `calibrations`").
		WillReturnRows(sqlmock.NewRows([]string{"camera_type", "shoulder_min", "shoulder_max", "neck_min", "neck_max", "margin", "calibrated_at"}).
			AddRow("frontal", 85.0, 95.0, 35.0, 45.0, 5.0, calibratedAt))
	p, err = s.LoadCalibration(ctx, posture.RoleFrontal)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, posture.RoleFrontal, p.Role)
	assert.Equal(t, 45.0, p.NeckMax)
	assert.True(t, calibratedAt.Equal(p.CalibratedAt))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM `calibrations` WHERE camera_type = ?")).
		WithArgs("frontal").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.DeleteCalibration(ctx, posture.RoleFrontal))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSettings(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery("SELECT \\* FROM `app_settings`").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}))
	v, err := s.LoadSetting(ctx, "last_lateral_source", "none")
	require.NoError(t, err)
	assert.Equal(t, "none", v)

	mock.ExpectExec("INSERT INTO `app_settings` .* ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.SaveSetting(ctx, "last_lateral_source", "1"))

	mock.ExpectQuery("SELECT \\* FROM `app_settings`").
		WillReturnRows(sqlmock.NewRows([]string{"name", "value"}).AddRow("last_lateral_source", "1"))
	v, err = s.LoadSetting(ctx, "last_lateral_source", "none")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, mock.ExpectationsWereMet())
}
