package store

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/pmrag-go/internal/rag"
)

func Test_VectorRoundTrip(t *testing.T) {
	t.Parallel()
	in := []float32{0, 1.5, -2.25, math.MaxFloat32}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("[%d] = %v, want %v", i, out[i], in[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func Test_CosineSimilarity(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"mismatched", []float32{1}, []float32{1, 0}, 0},
		{"zero", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		if got := cosineSimilarity(tc.a, tc.b); math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("%s: got %f, want %f", tc.name, got, tc.want)
		}
	}
}

func Test_MapPQError(t *testing.T) {
	t.Parallel()
	cases := []struct {
		code string
		want error
	}{
		{pgUniqueViolation, rag.ErrDuplicateArticle},
		{pgNotNullViolation, rag.ErrMissingField},
		{pgUndefinedFunction, rag.ErrMatchFunctionMissing},
	}
	for _, tc := range cases {
		err := mapPQError(fmt.Errorf("exec: %w", &pq.Error{Code: pq.ErrorCode(tc.code), Message: "boom"}))
		if !errors.Is(err, tc.want) {
			t.Errorf("code %s: want %v, got %v", tc.code, tc.want, err)
		}
		var pqErr *pq.Error
		if !errors.As(err, &pqErr) {
			t.Errorf("code %s: driver error lost from chain", tc.code)
		}
	}

	plain := errors.New("connection refused")
	if got := mapPQError(plain); got != plain {
		t.Errorf("non-pq errors must pass through unchanged, got %v", got)
	}
	other := &pq.Error{Code: "22001"}
	if got := mapPQError(other); got != error(other) {
		t.Errorf("unmapped codes must pass through unchanged, got %v", got)
	}
}

func Test_PointID_Stable(t *testing.T) {
	t.Parallel()
	a, b := pointID("12345"), pointID("12345")
	if a.GetUuid() == "" || a.GetUuid() != b.GetUuid() {
		t.Errorf("point ids not stable: %q vs %q", a.GetUuid(), b.GetUuid())
	}
	if pointID("12346").GetUuid() == a.GetUuid() {
		t.Error("different articles must map to different points")
	}
}

func Test_PayloadRoundTrip(t *testing.T) {
	t.Parallel()
	a := article("777")
	a.TranslatedAbstract = "초록"

	payload := qdrant.NewValueMap(articlePayload(a, time.Unix(0, 99)))
	got, ts := articleFromPayload(payload)
	if got != a {
		t.Errorf("round trip: got %+v, want %+v", got, a)
	}
	if ts != 99 {
		t.Errorf("created_at = %d, want 99", ts)
	}
}
