package bucket

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/encodeous/sift/objects"
)

func newTestBucket(t *testing.T, capacity int) *Bucket {
	t.Helper()
	return New(objects.L2, capacity, nil)
}

func TestBucketAddGet(t *testing.T) {
	b := newTestBucket(t, 0)
	o := objects.New("obj1", []float32{1, 2})
	require.NoError(t, b.AddObject(o))
	assert.Equal(t, 1, b.Count())

	byID, err := b.GetObject(o.ID)
	require.NoError(t, err)
	assert.Same(t, o, byID)

	byLoc, err := b.GetObjectByLocator("obj1")
	require.NoError(t, err)
	assert.Same(t, o, byLoc)

	_, err = b.GetObject(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.GetObjectByLocator("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBucketDuplicate(t *testing.T) {
	b := newTestBucket(t, 0)
	o := objects.New("obj1", []float32{1})
	require.NoError(t, b.AddObject(o))

	assert.ErrorIs(t, b.AddObject(o), ErrDuplicate)
	assert.ErrorIs(t, b.AddObject(objects.New("obj1", []float32{2})), ErrDuplicate)
}

func TestBucketCapacity(t *testing.T) {
	b := newTestBucket(t, 2)
	require.NoError(t, b.AddObject(objects.New("a", []float32{1})))
	require.NoError(t, b.AddObject(objects.New("b", []float32{2})))
	assert.ErrorIs(t, b.AddObject(objects.New("c", []float32{3})), ErrCapacity)
}

func TestBucketAddObjectsAllOrNone(t *testing.T) {
	b := newTestBucket(t, 0)
	require.NoError(t, b.AddObject(objects.New("taken", []float32{0})))

	batch := []*objects.Object{
		objects.New("x", []float32{1}),
		objects.New("taken", []float32{2}),
	}
	assert.ErrorIs(t, b.AddObjects(batch), ErrDuplicate)
	// nothing from the failed batch landed
	assert.Equal(t, 1, b.Count())
	_, err := b.GetObjectByLocator("x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBucketDelete(t *testing.T) {
	b := newTestBucket(t, 0)
	o := objects.New("obj1", []float32{1})
	require.NoError(t, b.AddObject(o))

	require.NoError(t, b.DeleteObjectByLocator("obj1"))
	assert.Equal(t, 0, b.Count())
	assert.ErrorIs(t, b.DeleteObject(o.ID), ErrNotFound)
	assert.ErrorIs(t, b.DeleteObjectByLocator("obj1"), ErrNotFound)

	// the locator is reusable after deletion
	assert.NoError(t, b.AddObject(objects.New("obj1", []float32{5})))
}

func TestBucketRangeSearch(t *testing.T) {
	b := newTestBucket(t, 0)
	require.NoError(t, b.AddObjects([]*objects.Object{
		objects.New("origin", []float32{0, 0}),
		objects.New("near", []float32{1, 0}),
		objects.New("far", []float32{10, 0}),
	}))

	results, err := b.RangeSearch(objects.New("", []float32{0, 0}), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "origin", results[0].Object.Locator)
	assert.Equal(t, "near", results[1].Object.Locator)
}

func TestBucketKNNSearch(t *testing.T) {
	b := newTestBucket(t, 0)
	require.NoError(t, b.AddObjects([]*objects.Object{
		objects.New("a", []float32{1}),
		objects.New("b", []float32{2}),
		objects.New("c", []float32{5}),
	}))

	results, err := b.KNNSearch(objects.New("", []float32{0}), 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Object.Locator)
	assert.Equal(t, "b", results[1].Object.Locator)

	_, err = b.KNNSearch(objects.New("", []float32{0}), 0)
	assert.Error(t, err)
}

func TestBucketSearchCacheInvalidation(t *testing.T) {
	b := newTestBucket(t, 0)
	require.NoError(t, b.AddObject(objects.New("a", []float32{1})))

	query := objects.New("", []float32{0})
	first, err := b.RangeSearch(query, 10)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	require.NoError(t, b.AddObject(objects.New("b", []float32{2})))
	second, err := b.RangeSearch(query, 10)
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestBucketSearchDimensionMismatch(t *testing.T) {
	b := newTestBucket(t, 0)
	require.NoError(t, b.AddObject(objects.New("a", []float32{1, 2})))

	_, err := b.RangeSearch(objects.New("", []float32{1}), 10)
	assert.Error(t, err)
}
