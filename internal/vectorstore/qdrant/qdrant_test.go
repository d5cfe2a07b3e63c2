package qdrant

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"manualrag/internal/domain"
)

type fakeCollections struct {
	pb.CollectionsClient
	calls   []string
	created *pb.CreateCollection
	apiKeys []string
}

func (f *fakeCollections) Delete(ctx context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.calls = append(f.calls, "delete:"+in.GetCollectionName())
	md, _ := metadata.FromOutgoingContext(ctx)
	f.apiKeys = append(f.apiKeys, md.Get("api-key")...)
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.calls = append(f.calls, "create:"+in.GetCollectionName())
	f.created = in
	return &pb.CollectionOperationResponse{Result: true}, nil
}

type fakePoints struct {
	pb.PointsClient
	upserts [][]*pb.PointStruct
	search  *pb.SearchPoints
	result  []*pb.ScoredPoint
	err     error
}

func (f *fakePoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.upserts = append(f.upserts, in.GetPoints())
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	f.search = in
	if f.err != nil {
		return nil, f.err
	}
	return &pb.SearchResponse{Result: f.result}, nil
}

func records() []domain.VectorRecord {
	return []domain.VectorRecord{
		{Embedding: []float64{1, 0}, Text: "intro", Metadata: domain.Chunk{ChunkID: "1", Title: "Overview", Level: domain.LevelMain, Content: "intro", ParentChain: []domain.ChainEntry{}}},
		{Embedding: []float64{0, 1}, Text: "details", Metadata: domain.Chunk{ChunkID: "1.1", Title: "Details", Level: domain.LevelSub, Content: "details", ParentChain: []domain.ChainEntry{{ChunkID: "1", Title: "Overview"}}}},
		{Embedding: []float64{1, 1}, Text: "next", Metadata: domain.Chunk{ChunkID: "2", Title: "Next", Level: domain.LevelMain, Content: "next", ParentChain: []domain.ChainEntry{}}},
	}
}

func TestPublish_RecreatesAndBatches(t *testing.T) {
	cols, pts := &fakeCollections{}, &fakePoints{}
	m := newMirror(pts, cols, Config{Collection: "manual", BatchSize: 2, APIKey: "secret"}, nil)

	require.NoError(t, m.Publish(context.Background(), records()))
	assert.Equal(t, []string{"delete:manual", "create:manual"}, cols.calls)
	assert.Equal(t, []string{"secret"}, cols.apiKeys)
	params := cols.created.GetVectorsConfig().GetParams()
	assert.Equal(t, uint64(2), params.GetSize())
	assert.Equal(t, pb.Distance_Cosine, params.GetDistance())

	require.Len(t, pts.upserts, 2)
	assert.Len(t, pts.upserts[0], 2)
	last := pts.upserts[1][0]
	assert.Equal(t, uint64(2), last.GetId().GetNum())
	assert.Equal(t, "next", last.GetPayload()["text"].GetStringValue())
	assert.Equal(t, "2", last.GetPayload()["chunk_id"].GetStringValue())
}

func TestPublish_RejectsEmptyAndMixedDimensions(t *testing.T) {
	m := newMirror(&fakePoints{}, &fakeCollections{}, Config{Collection: "c"}, nil)
	assert.ErrorIs(t, m.Publish(context.Background(), nil), domain.ErrEmptyCorpus)

	recs := records()
	recs[2].Embedding = []float64{1, 1, 1}
	assert.Error(t, m.Publish(context.Background(), recs))
}

func TestSearch_DecodesAndOrders(t *testing.T) {
	cols, pts := &fakeCollections{}, &fakePoints{}
	m := newMirror(pts, cols, Config{Collection: "manual"}, nil)
	require.NoError(t, m.Publish(context.Background(), records()))

	var stored []*pb.PointStruct
	for _, batch := range pts.upserts {
		stored = append(stored, batch...)
	}
	scored := func(i int, score float32) *pb.ScoredPoint {
		return &pb.ScoredPoint{Id: stored[i].GetId(), Payload: stored[i].GetPayload(), Score: score}
	}
	// Server returns a tie in reverse position order.
	pts.result = []*pb.ScoredPoint{scored(2, 0.5), scored(1, 0.5), scored(0, 0.9)}

	res, err := m.Retrieve(context.Background(), []float64{1, 0.2}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{res[0].Position, res[1].Position, res[2].Position})
	assert.InDelta(t, 0.9, res[0].Similarity, 1e-6)
	assert.Equal(t, records()[1].Metadata, res[1].Metadata)
	assert.Equal(t, "details", res[1].Text)

	assert.True(t, pts.search.GetParams().GetExact())
	assert.Equal(t, uint64(3), pts.search.GetLimit())
	assert.Equal(t, []float32{1, 0.2}, pts.search.GetVector())
}

func TestSearch_NonPositiveKAndErrors(t *testing.T) {
	pts := &fakePoints{err: errors.New("unavailable")}
	m := newMirror(pts, &fakeCollections{}, Config{Collection: "c"}, nil)

	res, err := m.Search(context.Background(), []float64{1}, 0)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Nil(t, pts.search)

	_, err = m.Search(context.Background(), []float64{1}, 2)
	assert.Error(t, err)
}

func TestFromPoint_FallsBackToFlatPayload(t *testing.T) {
	str := func(s string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }
	r, err := fromPoint(&pb.ScoredPoint{
		Id:      &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 7}},
		Payload: map[string]*pb.Value{"text": str("t"), "chunk_id": str("3.1"), "title": str("Browser"), "level": str("sub")},
		Score:   0.25,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, r.Position)
	assert.Equal(t, domain.Chunk{ChunkID: "3.1", Title: "Browser", Level: domain.LevelSub, ParentChain: []domain.ChainEntry{}}, r.Metadata)
}
