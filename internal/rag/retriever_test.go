package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore returns canned candidates and records the last call.
type fakeStore struct {
	cands     []Candidate
	err       error
	threshold float64
	limit     int
}

func (f *fakeStore) Match(_ context.Context, _ []float32, threshold float64, limit int) ([]Candidate, error) {
	f.threshold, f.limit = threshold, limit
	return f.cands, f.err
}

func cand(id string, sim float64) Candidate {
	return Candidate{Article: Article{ID: id, Title: "t" + id}, Similarity: sim}
}

func TestProfiles(t *testing.T) {
	t.Parallel()

	p := PrimaryProfile()
	assert.Equal(t, 0.4, p.Threshold)
	assert.Equal(t, 7, p.Limit)

	b := BackfillProfile(3)
	assert.Equal(t, 0.35, b.Threshold)
	assert.Equal(t, 18, b.Limit)
}

func TestRetrieve_EnforcesContract(t *testing.T) {
	t.Parallel()

	store := &fakeStore{cands: []Candidate{
		cand("a", 0.5),
		cand("b", 0.9),
		cand("c", 0.4), // equal to threshold: excluded
		cand("d", 0.7),
	}}
	r, err := NewRetriever(store)
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), []float32{1}, Profile{Name: "primary", Threshold: 0.4, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "d", got[1].ID)
	assert.Equal(t, 0.4, store.threshold)
	assert.Equal(t, 2, store.limit)
}

func TestRetrieve_EmptyIsNotError(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&fakeStore{})
	require.NoError(t, err)

	got, err := r.Retrieve(context.Background(), []float32{1}, PrimaryProfile())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieve_WrapsStoreErrors(t *testing.T) {
	t.Parallel()

	r, err := NewRetriever(&fakeStore{err: ErrMatchFunctionMissing})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), []float32{1}, PrimaryProfile())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrievalFailed)
	assert.ErrorIs(t, err, ErrMatchFunctionMissing)
}

func TestNewRetriever_NilStore(t *testing.T) {
	t.Parallel()
	_, err := NewRetriever(nil)
	assert.Error(t, err)
}

// fakeEmbedder returns a fixed batch or error.
type fakeEmbedder struct {
	vecs [][]float32
	err  error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return f.vecs, f.err
}

func TestEmbedQuery(t *testing.T) {
	t.Parallel()

	vec, err := EmbedQuery(context.Background(), &fakeEmbedder{vecs: [][]float32{{0.1, 0.2}}}, "q")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vec)

	_, err = EmbedQuery(context.Background(), &fakeEmbedder{err: errors.New("boom")}, "q")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	_, err = EmbedQuery(context.Background(), &fakeEmbedder{vecs: [][]float32{{}}}, "q")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)

	_, err = EmbedQuery(context.Background(), &fakeEmbedder{}, "q")
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}
