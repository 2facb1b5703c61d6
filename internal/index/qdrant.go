package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Qdrant keeps index contents in a Qdrant collection over gRPC. Build
// recreates the collection, which gives the same wholesale-replace semantics
// as the other backends.
type Qdrant struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	metric      Metric

	mu    sync.RWMutex
	dims  int
	count int
}

// DialQdrant opens the shared gRPC connection. Callers own the connection
// and close it on shutdown.
func DialQdrant(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial qdrant %s: %w", addr, err)
	}
	return conn, nil
}

func NewQdrant(conn *grpc.ClientConn, collection string, metric Metric) *Qdrant {
	return &Qdrant{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		metric:      metric,
	}
}

func (s *Qdrant) Metric() Metric { return s.metric }

func (s *Qdrant) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

func (s *Qdrant) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

func (s *Qdrant) distance() pb.Distance {
	if s.metric == MetricEuclidean {
		return pb.Distance_Euclid
	}
	return pb.Distance_Cosine
}

// Build drops and recreates the collection, then upserts every chunk.
func (s *Qdrant) Build(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	dims, err := validateBuild(chunks, vectors)
	if err != nil {
		return err
	}

	// ignore delete failure for a collection that does not exist yet
	_, _ = s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection})

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: s.distance(),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}

	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: uuid.New().String()},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vectors[i]},
				},
			},
			Payload: map[string]*pb.Value{
				"document_id":    {Kind: &pb.Value_StringValue{StringValue: c.DocumentID.String()}},
				"document":       {Kind: &pb.Value_StringValue{StringValue: c.Document}},
				"page_number":    {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Page)}},
				"sequence_index": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(c.Seq)}},
				"text":           {Kind: &pb.Value_StringValue{StringValue: c.Text}},
			},
		}
	}

	wait := true
	if _, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}

	s.mu.Lock()
	s.dims = dims
	s.count = len(chunks)
	s.mu.Unlock()
	return nil
}

func (s *Qdrant) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	s.mu.RLock()
	dims, count := s.dims, s.count
	s.mu.RUnlock()

	if count == 0 || k <= 0 {
		return []Match{}, nil
	}
	if len(vector) != dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(vector), dims)
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	matches := make([]Match, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		payload := r.GetPayload()
		chunk := Chunk{
			Document: payload["document"].GetStringValue(),
			Page:     int(payload["page_number"].GetIntegerValue()),
			Seq:      int(payload["sequence_index"].GetIntegerValue()),
			Text:     payload["text"].GetStringValue(),
		}
		if id, err := uuid.Parse(payload["document_id"].GetStringValue()); err == nil {
			chunk.DocumentID = id
		}

		score := float64(r.GetScore())
		if s.metric == MetricEuclidean {
			// qdrant reports raw distance for Euclid
			score = 1.0 / (1.0 + score)
		}
		matches = append(matches, Match{Chunk: chunk, Score: score})
	}
	return matches, nil
}
