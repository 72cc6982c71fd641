package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/HomeGenieAI/homegenie-engine/engine/domain"
)

// --- Mocks ---

type mockPoints struct {
	upsertReq  *pb.UpsertPoints
	upsertErr  error
	searchResp *pb.SearchResponse
	searchErr  error
	countResp  *pb.CountResponse
	countErr   error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upsertReq = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}

func (m *mockPoints) Search(_ context.Context, _ *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	return m.searchResp, m.searchErr
}

func (m *mockPoints) Count(_ context.Context, _ *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	return m.countResp, m.countErr
}

type mockCollections struct {
	existing  []string
	listErr   error
	created   []string
	createErr error
	deleted   []string
	deleteErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	resp := &pb.ListCollectionsResponse{}
	for _, name := range m.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = append(m.created, in.GetCollectionName())
	return &pb.CollectionOperationResponse{}, m.createErr
}

func (m *mockCollections) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.deleted = append(m.deleted, in.GetCollectionName())
	return &pb.CollectionOperationResponse{}, m.deleteErr
}

func sampleMeta() domain.Metadata {
	return domain.Metadata{
		Title:          "Nhà Quận 1",
		DatePosted:     "2024-05-12",
		PriceVND:       4_500_000_000,
		AreaM2:         62.5,
		PricePerArea:   72_000_000,
		Bedrooms:       3,
		Toilets:        2,
		Direction:      "Đông Nam",
		DistrictCounty: "Quận 1",
		ProvinceCity:   "Hồ Chí Minh",
		URL:            "https://example.com/1",
		DocName:        "full new",
	}
}

// --- Tests ---

func TestRecreateCollection_DeletesExisting(t *testing.T) {
	cols := &mockCollections{existing: []string{"listings"}}
	vs := NewWithClients(&mockPoints{}, cols, "listings")

	if err := vs.RecreateCollection(context.Background(), 768); err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != "listings" {
		t.Fatalf("expected delete of listings, got %v", cols.deleted)
	}
	if len(cols.created) != 1 {
		t.Fatalf("expected create, got %v", cols.created)
	}
}

func TestRecreateCollection_SafeOnAbsent(t *testing.T) {
	cols := &mockCollections{}
	vs := NewWithClients(&mockPoints{}, cols, "listings")

	if err := vs.RecreateCollection(context.Background(), 768); err != nil {
		t.Fatalf("recreate on absent: %v", err)
	}
	if len(cols.deleted) != 0 {
		t.Fatalf("must not delete a non-existent collection: %v", cols.deleted)
	}
	if len(cols.created) != 1 {
		t.Fatal("expected create")
	}
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	cols := &mockCollections{existing: []string{"listings"}}
	vs := NewWithClients(&mockPoints{}, cols, "listings")

	if err := vs.EnsureCollection(context.Background(), 768); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if len(cols.created) != 0 {
		t.Fatal("ensure must not recreate an existing collection")
	}
}

func TestUpsert_BuildsTypedPayload(t *testing.T) {
	pts := &mockPoints{}
	vs := NewWithClients(pts, &mockCollections{}, "listings")

	rec := VectorRecord{
		ID:        "6f1e9a3c-0000-0000-0000-000000000001",
		Embedding: []float32{0.1, 0.2},
		Content:   "Nhà 3 phòng ngủ gần chợ Bến Thành.",
		Meta:      sampleMeta(),
	}
	if err := vs.Upsert(context.Background(), []VectorRecord{rec}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	points := pts.upsertReq.GetPoints()
	if len(points) != 1 {
		t.Fatalf("points: %d", len(points))
	}
	p := points[0].GetPayload()
	if p["content"].GetStringValue() != rec.Content {
		t.Error("content payload")
	}
	if p["bedrooms"].GetIntegerValue() != 3 {
		t.Error("bedrooms must be an integer payload value")
	}
	if p["price_vnd"].GetDoubleValue() != 4_500_000_000 {
		t.Error("price payload")
	}
	if p["area"].GetDoubleValue() != 62.5 {
		t.Error("canonical area key missing")
	}
	if pts.upsertReq.GetWait() != true {
		t.Error("upsert must wait for visibility")
	}
}

func TestUpsert_Empty(t *testing.T) {
	vs := NewWithClients(&mockPoints{}, &mockCollections{}, "listings")
	if err := vs.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert must be a no-op: %v", err)
	}
}

func TestSearch_RoundTripsMetadata(t *testing.T) {
	payload := payloadFrom("body text", sampleMeta())
	pts := &mockPoints{
		searchResp: &pb.SearchResponse{
			Result: []*pb.ScoredPoint{
				{
					Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "id-1"}},
					Score:   0.92,
					Payload: payload,
				},
			},
		},
	}
	vs := NewWithClients(pts, &mockCollections{}, "listings")

	results, err := vs.Search(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results: %d", len(results))
	}
	got := results[0]
	if got.Content != "body text" || got.Score != 0.92 {
		t.Fatalf("hit: %+v", got)
	}
	if got.Meta != sampleMeta() {
		t.Fatalf("metadata round trip: %+v", got.Meta)
	}
}

func TestSearch_EmptyCollectionIsNotAnError(t *testing.T) {
	pts := &mockPoints{searchResp: &pb.SearchResponse{}}
	vs := NewWithClients(pts, &mockCollections{}, "listings")

	results, err := vs.Search(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("empty search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no hits, got %d", len(results))
	}
}

func TestSearch_MissingCollectionIsNotFound(t *testing.T) {
	pts := &mockPoints{searchErr: status.Error(codes.NotFound, "Collection `listings` doesn't exist")}
	vs := NewWithClients(pts, &mockCollections{}, "listings")

	_, err := vs.Search(context.Background(), []float32{0.1}, 5)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpsert_UnreachableIsUnavailable(t *testing.T) {
	pts := &mockPoints{upsertErr: status.Error(codes.Unavailable, "connection refused")}
	vs := NewWithClients(pts, &mockCollections{}, "listings")

	err := vs.Upsert(context.Background(), []VectorRecord{{ID: "x", Embedding: []float32{1}}})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestCount(t *testing.T) {
	pts := &mockPoints{countResp: &pb.CountResponse{Result: &pb.CountResult{Count: 42}}}
	vs := NewWithClients(pts, &mockCollections{}, "listings")

	n, err := vs.Count(context.Background())
	if err != nil || n != 42 {
		t.Fatalf("count: %d, %v", n, err)
	}
}

func TestExists(t *testing.T) {
	cols := &mockCollections{existing: []string{"other", "listings"}}
	vs := NewWithClients(&mockPoints{}, cols, "listings")

	ok, err := vs.Exists(context.Background())
	if err != nil || !ok {
		t.Fatalf("exists: %v, %v", ok, err)
	}

	vs2 := NewWithClients(&mockPoints{}, &mockCollections{}, "listings")
	ok, err = vs2.Exists(context.Background())
	if err != nil || ok {
		t.Fatalf("exists on absent: %v, %v", ok, err)
	}
}
