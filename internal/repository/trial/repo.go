package trial

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/trialmatch/internal/db"
	"github.com/kailas-cloud/trialmatch/internal/domain"
	"github.com/kailas-cloud/trialmatch/internal/domain/search/query"
	domtrial "github.com/kailas-cloud/trialmatch/internal/domain/trial"
)

// DefaultIndexName is the FT index over trial hashes.
const DefaultIndexName = "trials"

// ingestBatchSize bounds a single HSET pipeline.
const ingestBatchSize = 500

// store is the consumer interface for trial documents (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Repo implements usecase/retrieval.Repository over a Redis FT index.
type Repo struct {
	store store
	index string
}

// New creates a trial repository bound to an index name.
func New(s store, index string) *Repo {
	if index == "" {
		index = DefaultIndexName
	}
	return &Repo{store: s, index: index}
}

// Index returns the index name the repository searches.
func (r *Repo) Index() string { return r.index }

// IndexExists reports whether the trial index is present.
func (r *Repo) IndexExists(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.index)
	if err != nil {
		return false, fmt.Errorf("index exists %s: %w", r.index, err)
	}
	return ok, nil
}

// IndexDefinition describes the trial index: a TEXT field per searchable
// trial field and a TAG on nct_id. Weights are applied per query, not here.
func (r *Repo) IndexDefinition() (*db.IndexDefinition, error) {
	b := db.NewIndex(r.index).Prefix(domtrial.KeyPrefix).Tag(domtrial.FieldNCTID)
	for _, boost := range query.DefaultPrimaryBoosts() {
		b = b.Text(string(boost.Field))
	}
	def, err := b.Text(domtrial.FieldBriefSummary).Build()
	if err != nil {
		return nil, fmt.Errorf("build index %s: %w", r.index, err)
	}
	return def, nil
}

// CreateIndex creates the trial index. It returns db.ErrIndexExists when the
// index is already present, unless recreate is set, in which case it is dropped
// first. Dropping the index keeps the documents.
func (r *Repo) CreateIndex(ctx context.Context, recreate bool) error {
	def, err := r.IndexDefinition()
	if err != nil {
		return err
	}
	if recreate {
		if err := r.store.DropIndex(ctx, r.index); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop index %s: %w", r.index, err)
		}
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", r.index, err)
	}
	return nil
}

// Ingest stores documents as hashes in pipelined batches. Invalid documents are
// rejected before anything is written. It returns the number stored.
func (r *Repo) Ingest(ctx context.Context, docs []domtrial.Document) (int, error) {
	items := make([]db.HashSetItem, 0, len(docs))
	for i := range docs {
		if err := docs[i].Validate(); err != nil {
			return 0, fmt.Errorf("document %d: %w: %w", i, domain.ErrInvalidInput, err)
		}
		items = append(items, db.HashSetItem{Key: docs[i].Key(), Fields: docs[i].Fields()})
	}

	stored := 0
	for start := 0; start < len(items); start += ingestBatchSize {
		end := min(start+ingestBatchSize, len(items))
		if err := r.store.HSetMulti(ctx, items[start:end]); err != nil {
			return stored, fmt.Errorf("hset batch at %d: %w", start, err)
		}
		stored = end
	}
	return stored, nil
}

// Get returns a single trial by NCT id.
func (r *Repo) Get(ctx context.Context, nctID string) (domtrial.RawHit, error) {
	key := domtrial.KeyPrefix + nctID
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return domtrial.RawHit{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return domtrial.RawHit{}, fmt.Errorf("trial %s: %w", nctID, domain.ErrNotFound)
	}
	return domtrial.RawHit{ID: key, Source: fields}, nil
}

// Search runs a weighted query and returns hits in engine order.
// A query that renders to nothing returns no hits without touching the engine.
func (r *Repo) Search(ctx context.Context, q query.Weighted, size, offset int) ([]domtrial.RawHit, error) {
	rendered := RenderQuery(q)
	if rendered == "" || size <= 0 {
		return []domtrial.RawHit{}, nil
	}

	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.index,
		Query:        rendered,
		Offset:       offset,
		Limit:        size,
		ReturnFields: domtrial.ProjectedFields(),
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", r.index, err)
	}

	hits := make([]domtrial.RawHit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		hits = append(hits, domtrial.RawHit{ID: e.Key, Score: e.Score, Source: e.Fields})
	}
	return hits, nil
}

// Count returns the number of indexed trials.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.index, MatchAllQuery)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.index, err)
	}
	return n, nil
}
