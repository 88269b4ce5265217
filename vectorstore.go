package quizbuilder

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

const (
	metaSource = "source"
	metaPage   = "page"
	metaChunk  = "chunk"
)

// Retriever finds the chunks most similar to a query
type Retriever interface {
	Query(ctx context.Context, query string, n int) ([]Match, error)
}

// VectorStore chunks pages, embeds the chunks and keeps them in an
// in-memory chromem collection. It is rebuilt from scratch on every
// CreateCollection call.
type VectorStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	chunker    *Chunker
	embedder   *EmbeddingClient
}

func NewVectorStore(chunker *Chunker, embedder *EmbeddingClient) *VectorStore {
	return &VectorStore{
		db:       chromem.NewDB(),
		chunker:  chunker,
		embedder: embedder,
	}
}

// CreateCollection replaces the current collection with one built from
// pages. progress, if set, is called after each chunk is embedded.
func (vs *VectorStore) CreateCollection(ctx context.Context, pages []Page, progress func(done, total int)) (int, error) {
	chunks, err := vs.chunker.SplitPages(pages)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, ErrNoDocuments
	}
	log.Info().Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Split documents into text chunks")

	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		embedding, err := vs.embedder.EmbedQuery(ctx, chunk.Text)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d of %s page %d: %w", chunk.Index, chunk.Source, chunk.Page, err)
		}
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%d-%s-%d-%d", i, chunk.Source, chunk.Page, chunk.Index),
			Content: chunk.Text,
			Metadata: map[string]string{
				metaSource: chunk.Source,
				metaPage:   strconv.Itoa(chunk.Page),
				metaChunk:  strconv.Itoa(chunk.Index),
			},
			Embedding: embedding,
		})
		if progress != nil {
			progress(i+1, len(chunks))
		}
	}

	vs.Reset()
	collection, err := vs.db.CreateCollection("quiz-"+uuid.NewString(), nil, chromem.EmbeddingFunc(vs.embedder.EmbedQuery))
	if err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return 0, fmt.Errorf("failed to add documents: %w", err)
	}
	vs.collection = collection

	log.Info().Int("documents", collection.Count()).Msg("Chroma collection created")
	return len(docs), nil
}

// Query returns up to n chunks ordered by descending similarity
func (vs *VectorStore) Query(ctx context.Context, query string, n int) ([]Match, error) {
	if vs.collection == nil {
		return nil, ErrStoreNotCreated
	}
	count := vs.collection.Count()
	if count == 0 || n <= 0 {
		return nil, ErrNoMatchingChunks
	}
	n = min(n, count)

	embedding, err := vs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := vs.collection.QueryEmbedding(ctx, embedding, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoMatchingChunks
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		page, _ := strconv.Atoi(r.Metadata[metaPage])
		matches = append(matches, Match{
			Content:    r.Content,
			Source:     r.Metadata[metaSource],
			Page:       page,
			Similarity: r.Similarity,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches, nil
}

// QueryFirst returns the single best match for query
func (vs *VectorStore) QueryFirst(ctx context.Context, query string) (Match, error) {
	matches, err := vs.Query(ctx, query, 1)
	if err != nil {
		return Match{}, err
	}
	return matches[0], nil
}

// Count is the number of chunks in the current collection
func (vs *VectorStore) Count() int {
	if vs.collection == nil {
		return 0
	}
	return vs.collection.Count()
}

// Reset drops the current collection
func (vs *VectorStore) Reset() {
	if vs.collection == nil {
		return
	}
	if err := vs.db.DeleteCollection(vs.collection.Name); err != nil {
		log.Warn().Err(err).Str("collection", vs.collection.Name).Msg("Failed to drop collection")
	}
	vs.collection = nil
}
