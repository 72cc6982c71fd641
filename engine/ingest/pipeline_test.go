package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
	"github.com/HomeGenieAI/homegenie-engine/engine/embed"
	"github.com/HomeGenieAI/homegenie-engine/engine/semantic"
	"github.com/HomeGenieAI/homegenie-engine/pkg/fn"
)

// --- Fakes ---

// fakeEmbedder encodes each text's marker so tests can verify pairing.
type fakeEmbedder struct {
	dims     int
	fail     error
	failOnce bool
	calls    int
	markers  map[string]float32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dims: 4, markers: map[string]float32{}}
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.fail != nil {
		err := f.fail
		if f.failOnce {
			f.fail = nil
		}
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		marker := float32(len(f.markers) + 1)
		f.markers[t] = marker
		out[i] = []float32{marker, 0, 0, 0}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return f.dims }
func (f *fakeEmbedder) Model() string   { return "fake" }

// fakeStore keeps points in memory with collection lifecycle semantics.
type fakeStore struct {
	exists    bool
	points    map[string]semantic.VectorRecord
	order     []string
	recreates int
	upsertErr error
	recreated []time.Time
	upserted  []time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{points: map[string]semantic.VectorRecord{}}
}

func (s *fakeStore) RecreateCollection(_ context.Context, _ int) error {
	s.exists = true
	s.recreates++
	s.points = map[string]semantic.VectorRecord{}
	s.order = nil
	s.recreated = append(s.recreated, time.Now())
	return nil
}

func (s *fakeStore) EnsureCollection(_ context.Context, _ int) error {
	s.exists = true
	return nil
}

func (s *fakeStore) Upsert(_ context.Context, records []semantic.VectorRecord) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for _, r := range records {
		if _, ok := s.points[r.ID]; !ok {
			s.order = append(s.order, r.ID)
		}
		s.points[r.ID] = r
	}
	s.upserted = append(s.upserted, time.Now())
	return nil
}

func listings(n int) []domain.Listing {
	out := make([]domain.Listing, n)
	for i := range out {
		out[i] = domain.Listing{
			Title:          fmt.Sprintf("Listing %d", i),
			DatePosted:     "2024-05-12",
			PriceVND:       1_000_000_000,
			AreaM2:         50,
			PricePerArea:   20_000_000,
			Bedrooms:       2,
			Toilets:        1,
			Direction:      "Bắc",
			DistrictCounty: "Quận 1",
			ProvinceCity:   "Hồ Chí Minh",
			URL:            fmt.Sprintf("https://example.com/%d", i),
			Body:           fmt.Sprintf("marker-%03d nhà đẹp", i),
		}
	}
	return out
}

func newPipeline(e embed.Embedder, s *fakeStore) *Pipeline {
	return NewPipeline(Deps{
		Embedder: e,
		Store:    s,
		Logger:   slog.New(slog.DiscardHandler),
		Retry:    fn.RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond},
	})
}

// --- Builder tests ---

func TestDocName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"full_new.json", "full new"},
		{"stack.json", "stack"},
		{"re_clean_2024.csv", "re clean 2024"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := DocName(tt.in); got != tt.want {
			t.Errorf("DocName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildDocuments(t *testing.T) {
	ls := listings(3)
	docs := BuildDocuments(ls, "full_new.json")
	if len(docs) != 3 {
		t.Fatalf("docs: %d", len(docs))
	}

	ids := map[string]bool{}
	for i, d := range docs {
		if d.Content != ls[i].Body {
			t.Errorf("doc %d content mismatch", i)
		}
		if d.Metadata.Title != ls[i].Title || d.Metadata.DocName != "full new" {
			t.Errorf("doc %d metadata: %+v", i, d.Metadata)
		}
		if len(d.ID) != 36 || strings.Count(d.ID, "-") != 4 {
			t.Errorf("doc %d id not a uuid: %q", i, d.ID)
		}
		if ids[d.ID] {
			t.Fatalf("duplicate id in batch: %s", d.ID)
		}
		ids[d.ID] = true
	}
}

// --- Pipeline tests ---

func TestIndex_WritesAllDocuments(t *testing.T) {
	store := newFakeStore()
	emb := newFakeEmbedder()
	p := newPipeline(emb, store)

	report, err := p.Index(context.Background(), Request{
		Listings:   listings(7),
		SourceName: "full_new.json",
		DropOld:    true,
	})
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if report.Written != 7 || report.Skipped != 0 {
		t.Fatalf("report: %+v", report)
	}
	if len(store.points) != 7 {
		t.Fatalf("stored: %d", len(store.points))
	}
}

func TestIndex_DropOldIsIdempotent(t *testing.T) {
	store := newFakeStore()
	p := newPipeline(newFakeEmbedder(), store)
	req := Request{Listings: listings(5), SourceName: "a.json", DropOld: true}

	for i := 0; i < 2; i++ {
		if _, err := p.Index(context.Background(), req); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if len(store.points) != 5 {
			t.Fatalf("run %d: count %d, want 5", i, len(store.points))
		}
	}
	if store.recreates != 2 {
		t.Fatalf("recreates: %d", store.recreates)
	}
}

func TestIndex_AppendDoubles(t *testing.T) {
	store := newFakeStore()
	p := newPipeline(newFakeEmbedder(), store)
	req := Request{Listings: listings(5), SourceName: "a.json", DropOld: false}

	for i := 0; i < 2; i++ {
		if _, err := p.Index(context.Background(), req); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(store.points) != 10 {
		t.Fatalf("append semantics: count %d, want 10", len(store.points))
	}
}

func TestIndex_RecreateHappensBeforeUpsert(t *testing.T) {
	store := newFakeStore()
	p := newPipeline(newFakeEmbedder(), store)

	if _, err := p.Index(context.Background(), Request{Listings: listings(3), SourceName: "a.json", DropOld: true}); err != nil {
		t.Fatal(err)
	}
	if len(store.recreated) != 1 || len(store.upserted) == 0 {
		t.Fatal("expected one recreate and at least one upsert")
	}
	if store.upserted[0].Before(store.recreated[0]) {
		t.Fatal("upsert ran before recreate")
	}
}

func TestIndex_SkipsInvalidRowsAndContinues(t *testing.T) {
	ls := listings(4)
	ls[1].Body = "" // not indexable
	store := newFakeStore()
	p := newPipeline(newFakeEmbedder(), store)

	report, err := p.Index(context.Background(), Request{Listings: ls, SourceName: "a.json", DropOld: true})
	if err != nil {
		t.Fatalf("one bad row must not abort the batch: %v", err)
	}
	if report.Written != 3 || report.Skipped != 1 {
		t.Fatalf("report: %+v", report)
	}
}

func TestIndex_EmptyBatchIsNoOpSuccess(t *testing.T) {
	store := newFakeStore()
	p := newPipeline(newFakeEmbedder(), store)

	report, err := p.Index(context.Background(), Request{SourceName: "a.json", DropOld: true})
	if err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if report.Written != 0 {
		t.Fatalf("report: %+v", report)
	}
	// The collection is still recreated so re-seeding an empty source clears
	// stale entries.
	if store.recreates != 1 {
		t.Fatalf("recreates: %d", store.recreates)
	}
}

func TestIndex_EmbedCountMismatchIsFatal(t *testing.T) {
	store := newFakeStore()
	emb := &mismatchEmbedder{}
	p := newPipeline(emb, store)

	_, err := p.Index(context.Background(), Request{Listings: listings(3), SourceName: "a.json", DropOld: true})
	if !errors.Is(err, domain.ErrConsistency) {
		t.Fatalf("want ErrConsistency, got %v", err)
	}
}

type mismatchEmbedder struct{}

func (m *mismatchEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)-1), nil
}
func (m *mismatchEmbedder) Dimensions() int { return 4 }
func (m *mismatchEmbedder) Model() string   { return "mismatch" }

func TestIndex_RetriesUnavailableOnce(t *testing.T) {
	store := newFakeStore()
	emb := newFakeEmbedder()
	emb.fail = domain.Unavailablef("ollama embed")
	emb.failOnce = true
	p := newPipeline(emb, store)

	report, err := p.Index(context.Background(), Request{Listings: listings(2), SourceName: "a.json", DropOld: true})
	if err != nil {
		t.Fatalf("transient failure should be retried: %v", err)
	}
	if report.Written != 2 || emb.calls < 2 {
		t.Fatalf("report %+v, embed calls %d", report, emb.calls)
	}
}

func TestIndex_ValidationStyleErrorIsNotRetried(t *testing.T) {
	store := newFakeStore()
	emb := newFakeEmbedder()
	emb.fail = errors.New("bad request")
	p := newPipeline(emb, store)

	_, err := p.Index(context.Background(), Request{Listings: listings(2), SourceName: "a.json", DropOld: true})
	if err == nil {
		t.Fatal("expected failure")
	}
	if emb.calls != 1 {
		t.Fatalf("non-retryable error retried %d times", emb.calls)
	}
}

func TestIndex_ChunksLargeBatches(t *testing.T) {
	store := newFakeStore()
	emb := newFakeEmbedder()
	p := newPipeline(emb, store)

	n := EmbedBatchSize*2 + 50
	report, err := p.Index(context.Background(), Request{Listings: listings(n), SourceName: "a.json", DropOld: true})
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if report.Written != n {
		t.Fatalf("written: %d", report.Written)
	}
	if emb.calls != 3 {
		t.Fatalf("expected 3 embed calls, got %d", emb.calls)
	}
	// Every stored record's vector carries the marker assigned to its own
	// content: pairing survives chunking.
	for _, id := range store.order {
		rec := store.points[id]
		if rec.Embedding[0] != emb.markers[rec.Content] {
			t.Fatalf("vector paired with wrong document: %s", rec.Content)
		}
	}
}

func TestEmbedPairing_Concurrent(t *testing.T) {
	// 100 distinct marker texts through a worker pool of 8: each vector
	// must reattach to its source text.
	texts := make([]string, 100)
	for i := range texts {
		texts[i] = fmt.Sprintf("marker-%03d", i)
	}
	results := fn.ParMapResult(texts, 8, func(text string) fn.Result[string] {
		return fn.Ok("vec:" + text)
	})
	for i, r := range results {
		v, err := r.Unwrap()
		if err != nil || v != "vec:"+texts[i] {
			t.Fatalf("index %d: %q, %v", i, v, err)
		}
	}
}
