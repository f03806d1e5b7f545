package monitor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite", filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fptr(v float64) *float64 {
	return &v
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestStoreUpsertInsert(t *testing.T) {
	store := newTestStore(t)
	pnt := time.Date(2026, 2, 15, 3, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(Record{Date: pnt, ActualConsumption: fptr(41000)}))

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Date.Equal(pnt))
	require.NotNil(t, records[0].ActualConsumption)
	assert.Equal(t, 41000.0, *records[0].ActualConsumption)
	assert.Nil(t, records[0].OfficialForecast)
	assert.Nil(t, records[0].ModelPrediction)
}

func TestStoreUpsertIdempotent(t *testing.T) {
	store := newTestStore(t)
	pnt := time.Date(2026, 2, 15, 3, 0, 0, 0, time.UTC)
	rec := Record{Date: pnt, ActualConsumption: fptr(41000), ModelPrediction: fptr(40000)}

	require.NoError(t, store.Upsert(rec))
	require.NoError(t, store.Upsert(rec))

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 41000.0, *records[0].ActualConsumption)
	assert.Equal(t, 40000.0, *records[0].ModelPrediction)
}

func TestStoreUpsertMergesFields(t *testing.T) {
	store := newTestStore(t)
	pnt := time.Date(2026, 2, 15, 3, 0, 0, 0, time.UTC)

	// two partial writes for the same hour populate complementary fields
	require.NoError(t, store.Upsert(Record{Date: pnt, ActualConsumption: fptr(5)}))
	require.NoError(t, store.Upsert(Record{Date: pnt, OfficialForecast: fptr(7)}))

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ActualConsumption)
	require.NotNil(t, records[0].OfficialForecast)
	assert.Equal(t, 5.0, *records[0].ActualConsumption)
	assert.Equal(t, 7.0, *records[0].OfficialForecast)
	assert.Nil(t, records[0].ModelPrediction)
}

func TestStoreUpsertNeverClearsFields(t *testing.T) {
	store := newTestStore(t)
	pnt := time.Date(2026, 2, 15, 3, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(Record{Date: pnt, ActualConsumption: fptr(5), OfficialForecast: fptr(7)}))
	require.NoError(t, store.Upsert(Record{Date: pnt, ModelPrediction: fptr(6)}))

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 5.0, *records[0].ActualConsumption)
	assert.Equal(t, 7.0, *records[0].OfficialForecast)
	assert.Equal(t, 6.0, *records[0].ModelPrediction)
	assert.True(t, records[0].Complete())
}

func TestStoreUpsertOverwritesPopulated(t *testing.T) {
	store := newTestStore(t)
	pnt := time.Date(2026, 2, 15, 3, 0, 0, 0, time.UTC)

	// a populated incoming field replaces the stored value, e.g. a revised
	// observation from the provider
	require.NoError(t, store.Upsert(Record{Date: pnt, ActualConsumption: fptr(5)}))
	require.NoError(t, store.Upsert(Record{Date: pnt, ActualConsumption: fptr(9)}))

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 9.0, *records[0].ActualConsumption)
}

func TestStoreFullyPopulated(t *testing.T) {
	store := newTestStore(t)
	day := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)

	for h := 0; h < 24; h++ {
		rec := Record{
			Date:              day.Add(time.Duration(h) * time.Hour),
			ActualConsumption: fptr(100),
			ModelPrediction:   fptr(101),
		}
		// official only arrives for the first half of the day
		if h < 12 {
			rec.OfficialForecast = fptr(99)
		}
		require.NoError(t, store.Upsert(rec))
	}
	// a record on the next day must not leak into the window
	require.NoError(t, store.Upsert(Record{
		Date:              day.AddDate(0, 0, 1),
		ActualConsumption: fptr(100),
		OfficialForecast:  fptr(99),
		ModelPrediction:   fptr(101),
	}))

	records, err := store.FullyPopulated(day)
	require.NoError(t, err)
	require.Len(t, records, 12)
	for _, rec := range records {
		assert.True(t, rec.Complete())
		assert.True(t, rec.Date.Before(day.Add(12*time.Hour)))
	}
}

func TestStoreRange(t *testing.T) {
	store := newTestStore(t)
	day := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	for h := 0; h < 30; h++ {
		require.NoError(t, store.Upsert(Record{
			Date:            day.Add(time.Duration(h) * time.Hour),
			ModelPrediction: fptr(float64(h)),
		}))
	}

	records, err := store.Range(day, day.AddDate(0, 0, 1).Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 24)
	for i, rec := range records {
		assert.True(t, rec.Date.Equal(day.Add(time.Duration(i)*time.Hour)))
	}
}
