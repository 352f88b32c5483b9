package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/GCYYfun/ai-studio-sub001/internal/config"
	"github.com/GCYYfun/ai-studio-sub001/internal/models"
)

const (
	payloadRecordID      = "record_id"
	payloadCandidateName = "candidate_name"
	payloadPosition      = "position"
	payloadText          = "text"

	indexChunkSize    = 800
	indexChunkOverlap = 100
)

// QdrantService is the qdrant-backed SimilarityIndex. Each history record
// is stored as one point per chunk of its evaluation text.
type QdrantService struct {
	client         *qdrant.Client
	embedder       Embedder
	chunker        *TextChunker
	collectionName string
	vectorSize     uint64
}

func NewQdrantService(cfg config.QdrantConfig, embedder Embedder) (*QdrantService, error) {
	// Parse URL to extract host, port, and TLS usage
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsed.Hostname()
	useTLS := parsed.Scheme == "https"

	// For gRPC client, use port 6334 by default (gRPC port)
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantService{
		client:         client,
		embedder:       embedder,
		chunker:        NewTextChunker(),
		collectionName: cfg.Collection,
		vectorSize:     768, // text-embedding-004 size
	}, nil
}

func (q *QdrantService) Close() error {
	return q.client.Close()
}

// InitCollection creates the collection when it does not exist yet.
func (q *QdrantService) InitCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		log.Println("✅ Collection already exists")
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("✅ Qdrant collection '%s' created successfully\n", q.collectionName)
	return nil
}

// IndexRecord implements SimilarityIndex. Existing points of the record are
// replaced.
func (q *QdrantService) IndexRecord(ctx context.Context, record *models.HistoryRecord) error {
	text := RecordIndexText(record)
	if text == "" {
		return nil
	}

	if err := q.DeleteRecord(ctx, record.ID); err != nil {
		return err
	}

	var points []*qdrant.PointStruct
	for _, chunk := range q.chunker.ChunkText(text, indexChunkSize, indexChunkOverlap) {
		embedding, err := q.embedder.GenerateEmbedding(ctx, chunk)
		if err != nil {
			return fmt.Errorf("failed to embed record %s: %w", record.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.New().String()),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadRecordID:      record.ID,
				payloadCandidateName: record.CandidateName,
				payloadPosition:      record.Position,
				payloadText:          chunk,
			}),
		})
	}
	if len(points) == 0 {
		return nil
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// FindSimilar implements SimilarityIndex. Chunk hits are folded into one
// hit per record, keeping the best score.
func (q *QdrantService) FindSimilar(ctx context.Context, record *models.HistoryRecord, limit int) ([]SimilarHit, error) {
	text := RecordIndexText(record)
	if text == "" {
		return nil, nil
	}

	embedding, err := q.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(embedding...),
		Filter: &qdrant.Filter{
			MustNot: []*qdrant.Condition{
				qdrant.NewMatch(payloadRecordID, record.ID),
			},
		},
		Limit:       qdrant.PtrOf(uint64(limit * 4)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	best := make(map[string]float32)
	for _, point := range points {
		value, ok := point.Payload[payloadRecordID]
		if !ok {
			continue
		}
		id := value.GetStringValue()
		if id == "" {
			continue
		}
		if score, seen := best[id]; !seen || point.Score > score {
			best[id] = point.Score
		}
	}

	hits := make([]SimilarHit, 0, len(best))
	for id, score := range best {
		hits = append(hits, SimilarHit{RecordID: id, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].RecordID < hits[j].RecordID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// DeleteRecord implements SimilarityIndex.
func (q *QdrantService) DeleteRecord(ctx context.Context, id string) error {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch(payloadRecordID, id),
		},
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: filter,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete record points: %w", err)
	}
	return nil
}

// RecordIndexText is the text embedded for a record: position, summary,
// strengths, weaknesses and per-dimension assessments.
func RecordIndexText(record *models.HistoryRecord) string {
	if record == nil || record.AnalysisResult == nil || record.AnalysisResult.Evaluation == nil {
		return ""
	}
	eval := record.AnalysisResult.Evaluation

	var parts []string
	if record.Position != "" {
		parts = append(parts, "职位："+record.Position)
	}
	if eval.Summary != "" {
		parts = append(parts, "总结："+eval.Summary)
	}
	if len(eval.Strengths) > 0 {
		parts = append(parts, "优势："+strings.Join(eval.Strengths, "；"))
	}
	if len(eval.Weaknesses) > 0 {
		parts = append(parts, "不足："+strings.Join(eval.Weaknesses, "；"))
	}
	for _, dim := range models.Dimensions {
		if score, ok := eval.Dimensions[dim]; ok && score.Assessment != "" {
			parts = append(parts, fmt.Sprintf("%s：%s", dim, score.Assessment))
		}
	}
	return strings.Join(parts, "\n\n")
}
