// Package qdrant mirrors the built index into a Qdrant collection and serves
// exact searches from it over gRPC.
package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"manualrag/internal/domain"
)

const defaultBatchSize = 256

// Config locates the Qdrant collection.
type Config struct {
	Addr       string
	APIKey     string
	Collection string
	BatchSize  int
}

// Mirror is a Qdrant copy of the vector store. Point ids are record positions.
type Mirror struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	apiKey      string
	collection  string
	batchSize   int
	logger      *slog.Logger
}

// Dial connects to Qdrant's gRPC endpoint.
func Dial(cfg Config, logger *slog.Logger) (*Mirror, error) {
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection name is required")
	}
	conn, err := grpc.NewClient(cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	m := newMirror(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), cfg, logger)
	m.conn = conn
	return m, nil
}

func newMirror(points pb.PointsClient, collections pb.CollectionsClient, cfg Config, logger *slog.Logger) *Mirror {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		points:      points,
		collections: collections,
		apiKey:      cfg.APIKey,
		collection:  cfg.Collection,
		batchSize:   cfg.BatchSize,
		logger:      logger,
	}
}

// Close releases the connection.
func (m *Mirror) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}

func (m *Mirror) withAuth(ctx context.Context) context.Context {
	if m.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", m.apiKey)
}

// Publish replaces the collection with records. The collection is recreated
// with cosine distance and the dimension of the first record.
func (m *Mirror) Publish(ctx context.Context, records []domain.VectorRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("qdrant publish: %w", domain.ErrEmptyCorpus)
	}
	ctx = m.withAuth(ctx)
	dim := len(records[0].Embedding)

	if _, err := m.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: m.collection}); err != nil {
		return fmt.Errorf("qdrant drop %s: %w", m.collection, err)
	}
	_, err := m.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: m.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(dim),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if err != nil {
		return fmt.Errorf("qdrant create %s: %w", m.collection, err)
	}

	wait := true
	for start := 0; start < len(records); start += m.batchSize {
		end := min(start+m.batchSize, len(records))
		pts := make([]*pb.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			pt, err := toPoint(i, records[i], dim)
			if err != nil {
				return err
			}
			pts = append(pts, pt)
		}
		if _, err := m.points.Upsert(ctx, &pb.UpsertPoints{CollectionName: m.collection, Wait: &wait, Points: pts}); err != nil {
			return fmt.Errorf("qdrant upsert %d-%d: %w", start, end, err)
		}
		m.logger.Info("published points", "collection", m.collection, "done", end, "total", len(records))
	}
	return nil
}

// Search runs an exact nearest-neighbour query. Results are ordered by score
// descending, ties by position.
func (m *Mirror) Search(ctx context.Context, query []float64, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return []domain.SearchResult{}, nil
	}
	vec := make([]float32, len(query))
	for i, v := range query {
		vec[i] = float32(v)
	}
	exact := true
	resp, err := m.points.Search(m.withAuth(ctx), &pb.SearchPoints{
		CollectionName: m.collection,
		Vector:         vec,
		Limit:          uint64(k),
		Params:         &pb.SearchParams{Exact: &exact},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	out := make([]domain.SearchResult, 0, len(resp.GetResult()))
	for _, pt := range resp.GetResult() {
		r, err := fromPoint(pt)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

// Retrieve implements domain.Retriever.
func (m *Mirror) Retrieve(ctx context.Context, query []float64, k int) ([]domain.SearchResult, error) {
	return m.Search(ctx, query, k)
}

func toPoint(pos int, rec domain.VectorRecord, dim int) (*pb.PointStruct, error) {
	if len(rec.Embedding) != dim {
		return nil, fmt.Errorf("qdrant publish: record %d has dimension %d, want %d", pos, len(rec.Embedding), dim)
	}
	vec := make([]float32, dim)
	for i, v := range rec.Embedding {
		vec[i] = float32(v)
	}
	chunkJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, err
	}
	str := func(s string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }
	return &pb.PointStruct{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(pos)}},
		Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vec}}},
		Payload: map[string]*pb.Value{
			"text":     str(rec.Text),
			"chunk_id": str(rec.Metadata.ChunkID),
			"title":    str(rec.Metadata.Title),
			"level":    str(string(rec.Metadata.Level)),
			"chunk":    str(string(chunkJSON)),
		},
	}, nil
}

func fromPoint(pt *pb.ScoredPoint) (domain.SearchResult, error) {
	payload := pt.GetPayload()
	var c domain.Chunk
	if raw := payload["chunk"].GetStringValue(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return domain.SearchResult{}, fmt.Errorf("qdrant point %d: bad chunk payload: %w", pt.GetId().GetNum(), err)
		}
	} else {
		c = domain.Chunk{
			ChunkID: payload["chunk_id"].GetStringValue(),
			Title:   payload["title"].GetStringValue(),
			Level:   domain.Level(payload["level"].GetStringValue()),
		}
	}
	if c.ParentChain == nil {
		c.ParentChain = []domain.ChainEntry{}
	}
	return domain.SearchResult{
		Text:       payload["text"].GetStringValue(),
		Metadata:   c,
		Similarity: float64(pt.GetScore()),
		Position:   int(pt.GetId().GetNum()),
	}, nil
}
