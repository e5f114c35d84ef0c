package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/datagate/adapters/sqlite"
	"github.com/artpar/datagate/core/registry"
	"github.com/artpar/datagate/core/schema"
	"github.com/artpar/datagate/domain/query"
	"github.com/artpar/datagate/domain/record"
	"github.com/artpar/datagate/ports"
)

func openStore(t *testing.T) *sqlite.RecordStore {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg, err := registry.Build(schema.Definitions{
		Models: []schema.Model{{
			Name: "post",
			Fields: map[string]schema.Field{
				"title":     {Type: schema.FieldTypeString, Required: true},
				"author":    {Type: schema.FieldTypeString},
				"published": {Type: schema.FieldTypeBool, Default: false},
				"score":     {Type: schema.FieldTypeInt},
			},
			Rules: []schema.Rule{{Allow: schema.ActorOwner}},
			Indexes: []schema.Index{
				{Name: "byAuthor", PartitionKey: "author", SortKey: "score"},
				{Name: "byPublished", PartitionKey: "published", SortKey: "created_at"},
				{Name: "byTitle", PartitionKey: "author", SortKey: "title"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	store := sqlite.NewRecordStore(db)
	if err := store.Migrate(reg); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// Migrations are re-runnable.
	if err := store.Migrate(reg); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	return store
}

func seed(t *testing.T, store *sqlite.RecordStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	posts := []record.Record{
		{ID: "p1", Owner: "alice", CreatedAt: base, UpdatedAt: base,
			Fields: map[string]any{"title": "alpha", "author": "alice", "published": true, "score": 10}},
		{ID: "p2", Owner: "alice", CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour),
			Fields: map[string]any{"title": "beta", "author": "alice", "published": false, "score": 30}},
		{ID: "p3", Owner: "bob", CreatedAt: base.Add(2 * time.Hour), UpdatedAt: base.Add(2 * time.Hour),
			Fields: map[string]any{"title": "gamma", "author": "bob", "published": true, "score": 20}},
	}
	for _, p := range posts {
		if err := store.Put(ctx, "post", p); err != nil {
			t.Fatalf("seed %s: %v", p.ID, err)
		}
	}
}

func TestGet_RoundTrip(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	got, err := store.Get(context.Background(), "post", "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "p1" || got.Owner != "alice" {
		t.Errorf("got = %+v", got)
	}
	if got.Fields["title"] != "alpha" {
		t.Errorf("title = %v", got.Fields["title"])
	}
	if got.Fields["published"] != true {
		t.Errorf("published = %v", got.Fields["published"])
	}
	if !got.CreatedAt.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("created_at = %v", got.CreatedAt)
	}
}

func TestGet_Missing(t *testing.T) {
	store := openStore(t)

	_, err := store.Get(context.Background(), "post", "ghost")
	if !errors.Is(err, ports.ErrRecordNotFound) {
		t.Errorf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestPut_Replaces(t *testing.T) {
	store := openStore(t)
	seed(t, store)
	ctx := context.Background()

	rec, _ := store.Get(ctx, "post", "p1")
	rec = rec.WithField("title", "alpha v2")
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Minute)

	if err := store.Put(ctx, "post", rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, "post", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Fields["title"] != "alpha v2" {
		t.Errorf("title = %v", got.Fields["title"])
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Errorf("updated_at not bumped: %v", got.UpdatedAt)
	}
}

func TestDelete(t *testing.T) {
	store := openStore(t)
	seed(t, store)
	ctx := context.Background()

	if err := store.Delete(ctx, "post", "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "post", "p1"); !errors.Is(err, ports.ErrRecordNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
	if err := store.Delete(ctx, "post", "p1"); !errors.Is(err, ports.ErrRecordNotFound) {
		t.Errorf("double delete: %v", err)
	}
}

func TestQuery_PartitionEquality(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	got, err := store.Query(context.Background(), "post", query.Plan{
		IndexName:      "byAuthor",
		PartitionKey:   "author",
		PartitionValue: "alice",
	}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
}

func TestQuery_BoolPartition(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	got, err := store.Query(context.Background(), "post", query.Plan{
		IndexName:      "byPublished",
		PartitionKey:   "published",
		PartitionValue: true,
	}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want the 2 published posts", len(got))
	}
}

func TestQuery_SortOrder(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	got, err := store.Query(context.Background(), "post", query.Plan{
		IndexName:      "byAuthor",
		PartitionKey:   "author",
		PartitionValue: "alice",
		SortKey:        "score",
		SortRange:      &query.Range{Field: "score", Op: query.RangeGTE, Value: 0},
	}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records", len(got))
	}
	// Results come back in sort key order.
	if got[0].ID != "p1" || got[1].ID != "p2" {
		t.Errorf("order = [%s %s], want [p1 p2]", got[0].ID, got[1].ID)
	}
}

func TestQuery_RangeOperators(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	tests := []struct {
		name string
		rng  query.Range
		want []string
	}{
		{"gt", query.Range{Field: "score", Op: query.RangeGT, Value: 10}, []string{"p2"}},
		{"gte", query.Range{Field: "score", Op: query.RangeGTE, Value: 10}, []string{"p1", "p2"}},
		{"lt", query.Range{Field: "score", Op: query.RangeLT, Value: 30}, []string{"p1"}},
		{"lte", query.Range{Field: "score", Op: query.RangeLTE, Value: 30}, []string{"p1", "p2"}},
		{"between", query.Range{Field: "score", Op: query.RangeBetween, Value: 5, Upper: 15}, []string{"p1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(context.Background(), "post", query.Plan{
				IndexName:      "byAuthor",
				PartitionKey:   "author",
				PartitionValue: "alice",
				SortKey:        "score",
				SortRange:      &tt.rng,
			}, 0)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			ids := make([]string, len(got))
			for i, rec := range got {
				ids[i] = rec.ID
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("ids = %v, want %v", ids, tt.want)
				}
			}
		})
	}
}

func TestQuery_BeginsWith(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	got, err := store.Query(context.Background(), "post", query.Plan{
		IndexName:      "byTitle",
		PartitionKey:   "author",
		PartitionValue: "alice",
		SortKey:        "title",
		SortRange:      &query.Range{Field: "title", Op: query.RangeBegins, Value: "al"},
	}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p1" {
		t.Errorf("got = %v records", len(got))
	}
}

func TestQuery_SystemSortKey(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	cutoff := time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC)
	got, err := store.Query(context.Background(), "post", query.Plan{
		IndexName:      "byPublished",
		PartitionKey:   "published",
		PartitionValue: true,
		SortKey:        "created_at",
		SortRange:      &query.Range{Field: "created_at", Op: query.RangeGT, Value: cutoff},
	}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "p3" {
		t.Errorf("got %d records", len(got))
	}
}

func TestQuery_Limit(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	got, err := store.Query(context.Background(), "post", query.Plan{
		IndexName:      "byAuthor",
		PartitionKey:   "author",
		PartitionValue: "alice",
	}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d records, want limit of 1", len(got))
	}
}

func TestScan(t *testing.T) {
	store := openStore(t)
	seed(t, store)

	got, err := store.Scan(context.Background(), "post", 0)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d records, want all 3", len(got))
	}
}
