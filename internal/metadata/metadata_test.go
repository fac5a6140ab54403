package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postureguard/internal/posture"
)

func newTestDB(t *testing.T) *MetadataDB {
	t.Helper()
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	db, err := NewMetadataDB("", logrus.NewEntry(l))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordsComeBackInTimeOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	shoulder := 88.5
	for _, offset := range []time.Duration{10 * time.Second, 0, 5 * time.Second, -time.Hour} {
		rec := &posture.PostureRecord{
			Timestamp:     base.Add(offset),
			ShoulderAngle: &shoulder,
			NeckAngle:     41,
			Role:          posture.RoleFrontal,
		}
		require.NoError(t, db.SaveRecord(ctx, rec))
		assert.NotZero(t, rec.ID)
	}

	all, err := db.QueryRecords(ctx, posture.TimeRange{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Timestamp.Before(all[i-1].Timestamp))
	}
	require.NotNil(t, all[0].ShoulderAngle)
	assert.Equal(t, 88.5, *all[0].ShoulderAngle)

	ids := map[int64]bool{}
	for _, r := range all {
		ids[r.ID] = true
	}
	assert.Len(t, ids, 4, "ids are unique")
}

func TestQueryRecordsRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		require.NoError(t, db.SaveRecord(ctx, &posture.PostureRecord{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			NeckAngle: float64(i),
			Role:      posture.RoleLateral,
		}))
	}

	got, err := db.QueryRecords(ctx, posture.TimeRange{
		Start: base.Add(2 * time.Minute),
		End:   base.Add(5 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, got, 4, "both bounds are inclusive")
	assert.Equal(t, 2.0, got[0].NeckAngle)
	assert.Equal(t, 5.0, got[3].NeckAngle)
	assert.Nil(t, got[0].ShoulderAngle)

	got, err = db.QueryRecords(ctx, posture.TimeRange{Start: base.Add(8 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = db.QueryRecords(ctx, posture.TimeRange{End: base.Add(-time.Second)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCalibrationLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, err := db.LoadCalibration(ctx, posture.RoleFrontal)
	require.NoError(t, err)
	assert.Nil(t, p, "absent calibration is not an error")

	want := posture.CalibrationProfile{
		Role:         posture.RoleFrontal,
		ShoulderMin:  85,
		ShoulderMax:  95,
		NeckMin:      35,
		NeckMax:      45,
		Margin:       5,
		CalibratedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.SaveCalibration(ctx, want))

	p, err = db.LoadCalibration(ctx, posture.RoleFrontal)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, want.NeckMax, p.NeckMax)
	assert.True(t, want.CalibratedAt.Equal(p.CalibratedAt))

	lateral, err := db.LoadCalibration(ctx, posture.RoleLateral)
	require.NoError(t, err)
	assert.Nil(t, lateral)

	require.NoError(t, db.DeleteCalibration(ctx, posture.RoleFrontal))
	p, err = db.LoadCalibration(ctx, posture.RoleFrontal)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSaveCalibrationRejectsInvalidBand(t *testing.T) {
	db := newTestDB(t)
	err := db.SaveCalibration(context.Background(), posture.CalibrationProfile{
		Role: posture.RoleFrontal, NeckMin: 50, NeckMax: 40, Margin: 5,
	})
	assert.Error(t, err)
}

func TestSettings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	v, err := db.LoadSetting(ctx, "last_lateral_source", "")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, db.SaveSetting(ctx, "last_lateral_source", "http://192.168.1.20:4747/video"))
	v, err = db.LoadSetting(ctx, "last_lateral_source", "")
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:4747/video", v)

	assert.Error(t, db.SaveSetting(ctx, " ", "x"))
}
