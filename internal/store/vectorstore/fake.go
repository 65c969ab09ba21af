package vectorstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/scrypster/aegis/pkg/types"
)

// Fake is an in-memory Store for tests, a hand-rolled fake rather than a
// mocking framework.
type Fake struct {
	mu     sync.Mutex
	alerts map[string]*types.Alert
	vecs   map[string][]float32

	// Unavailable, when true, makes every method return ErrUnavailable.
	Unavailable bool
}

// NewFake returns an empty Fake store.
func NewFake() *Fake {
	return &Fake{alerts: make(map[string]*types.Alert), vecs: make(map[string][]float32)}
}

// Seed stores the given alert pointers directly (no copy), for test setup.
func (f *Fake) Seed(alerts ...*types.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range alerts {
		f.alerts[a.ID] = a
	}
}

// SeedVector attaches a vector to an already-seeded alert ID, for KNN tests.
func (f *Fake) SeedVector(alertID string, vector []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vecs[alertID] = vector
}

func (f *Fake) ListUnprocessed(ctx context.Context, limit int) ([]*types.Alert, error) {
	if f.Unavailable {
		return nil, ErrUnavailable
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*types.Alert
	for _, a := range f.alerts {
		if !a.Enrichment.HasAnalysis() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *Fake) KNN(ctx context.Context, vector []float32, k int, filter KNNFilter) ([]KNNResult, error) {
	if f.Unavailable {
		return nil, ErrUnavailable
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []KNNResult
	for id, v := range f.vecs {
		a := f.alerts[id]
		if a == nil {
			continue
		}
		if filter.ExcludeUnanalyzed && !a.Enrichment.HasAnalysis() {
			continue
		}
		out = append(out, KNNResult{Alert: a, Similarity: cosine(vector, v)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *Fake) KeywordTimeWindow(ctx context.Context, q KeywordQuery) ([]KeywordResult, error) {
	if f.Unavailable {
		return nil, ErrUnavailable
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []KeywordResult
	for _, a := range f.alerts {
		if a.Timestamp.Before(q.From) || a.Timestamp.After(q.To) {
			continue
		}
		if q.Host != "" && a.Agent.Name != q.Host {
			continue
		}
		haystack := strings.ToLower(a.Rule.Description + " " + a.FullLog)
		score := 0.0
		for _, kw := range q.Keywords {
			if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		out = append(out, KeywordResult{Alert: a, Score: score, Timestamp: a.Timestamp})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	size := q.Size
	if size <= 0 {
		size = 20
	}
	if len(out) > size {
		out = out[:size]
	}
	return out, nil
}

func (f *Fake) UpdateEnrichment(ctx context.Context, alertID string, enrichment types.Enrichment) error {
	if f.Unavailable {
		return ErrUnavailable
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.alerts[alertID]
	if !ok {
		return ErrUnavailable
	}
	a.Enrichment = &enrichment
	if len(enrichment.Vector) > 0 {
		f.vecs[alertID] = enrichment.Vector
	}
	return nil
}

func (f *Fake) EnsureIndexTemplate(ctx context.Context) error {
	if f.Unavailable {
		return ErrUnavailable
	}
	return nil
}

func (f *Fake) Close() error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
