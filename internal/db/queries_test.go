package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/resolve"
	"github.com/hpungsan/cardbot/internal/ticket"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSnapshot_PutAndGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, ok, err := GetSnapshot(ctx, db, ticket.CategoryColumns); err != nil || ok {
		t.Fatalf("GetSnapshot on empty table = (%v, %v), want miss", ok, err)
	}

	fetched := time.Unix(1_700_000_000, 0)
	snap := resolve.Snapshot{
		Map: resolve.NewMap(
			resolve.Entry{Name: "Needs Design", ID: "c1"},
			resolve.Entry{Name: "On Hold/Backlog", ID: "c2"},
		),
		FetchedAt: fetched,
	}
	if err := PutSnapshot(ctx, db, ticket.CategoryColumns, snap); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}

	got, ok, err := GetSnapshot(ctx, db, ticket.CategoryColumns)
	if err != nil || !ok {
		t.Fatalf("GetSnapshot = (%v, %v), want hit", ok, err)
	}
	names := got.Map.Names()
	if len(names) != 2 || names[0] != "Needs Design" || names[1] != "On Hold/Backlog" {
		t.Errorf("Names() = %v, want entries in stored order", names)
	}
	if !got.FetchedAt.Equal(fetched) {
		t.Errorf("FetchedAt = %v, want %v", got.FetchedAt, fetched)
	}
}

func TestSnapshot_PutReplaces(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first := resolve.Snapshot{Map: resolve.NewMap(resolve.Entry{Name: "Old", ID: "1"}), FetchedAt: time.Unix(100, 0)}
	second := resolve.Snapshot{Map: resolve.NewMap(resolve.Entry{Name: "New", ID: "2"}), FetchedAt: time.Unix(200, 0)}
	if err := PutSnapshot(ctx, db, ticket.CategoryLabels, first); err != nil {
		t.Fatal(err)
	}
	if err := PutSnapshot(ctx, db, ticket.CategoryLabels, second); err != nil {
		t.Fatal(err)
	}

	got, _, err := GetSnapshot(ctx, db, ticket.CategoryLabels)
	if err != nil {
		t.Fatal(err)
	}
	if id, ok := got.Map.Lookup("New"); !ok || id != "2" {
		t.Errorf("Lookup(New) = %q, %v; want 2, true", id, ok)
	}
	if got.Map.Len() != 1 {
		t.Errorf("Len() = %d, want 1", got.Map.Len())
	}
}

func TestSnapshot_CorruptRowIsMiss(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO vocabulary_snapshots (category, entries_json, fetched_at) VALUES ('columns', '{broken', 1)`); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := GetSnapshot(ctx, db, ticket.CategoryColumns); err != nil || ok {
		t.Errorf("GetSnapshot = (%v, %v), want miss without error", ok, err)
	}
}

func TestSnapshotStore_Invalidate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := NewSnapshotStore(db)

	snap := resolve.Snapshot{Map: resolve.NewMap(resolve.Entry{Name: "Bug", ID: "l1"}), FetchedAt: time.Now()}
	for _, c := range ticket.Categories {
		if err := store.PutSnapshot(ctx, c, snap); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.InvalidateSnapshots(ctx); err != nil {
		t.Fatalf("InvalidateSnapshots failed: %v", err)
	}
	for _, c := range ticket.Categories {
		if _, ok, _ := store.GetSnapshot(ctx, c); ok {
			t.Errorf("category %s still cached after invalidation", c)
		}
	}

	n, err := DeleteSnapshots(ctx, db)
	if err != nil || n != 0 {
		t.Errorf("DeleteSnapshots on empty table = (%d, %v), want (0, nil)", n, err)
	}
}

func TestSnapshotStore_WithCachedProvider(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := resolve.NewStaticProvider(map[string]resolve.Map{
		ticket.CategoryColumns: resolve.NewMap(resolve.Entry{Name: "Shipped", ID: "c9"}),
	})
	cp := resolve.NewCachedProvider(base, NewSnapshotStore(db), time.Hour, nil)

	if _, err := cp.Vocabulary(ctx, ticket.CategoryColumns); err != nil {
		t.Fatal(err)
	}
	got, ok, err := GetSnapshot(ctx, db, ticket.CategoryColumns)
	if err != nil || !ok {
		t.Fatalf("snapshot not written through: (%v, %v)", ok, err)
	}
	if id, _ := got.Map.Lookup("Shipped"); id != "c9" {
		t.Errorf("cached id = %q, want c9", id)
	}
}

func newTestAttachment(id, cardID string, createdAt int64) *ticket.Attachment {
	return &ticket.Attachment{
		ID:         id,
		RequestID:  "req-" + id,
		CardID:     cardID,
		SharingURL: "https://share.zight.com/" + id,
		Status:     ticket.AttachPending,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

func TestAttachment_InsertGetUpdate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	a := newTestAttachment("01JOB1", "card1", 1000)
	if err := InsertAttachment(ctx, db, a); err != nil {
		t.Fatalf("InsertAttachment failed: %v", err)
	}

	got, err := GetAttachment(ctx, db, "01JOB1")
	if err != nil {
		t.Fatalf("GetAttachment failed: %v", err)
	}
	if got.Status != ticket.AttachPending || got.ImageURL != "" || got.Reason != "" {
		t.Errorf("unexpected pending record: %+v", got)
	}

	a.Status = ticket.AttachAttached
	a.ImageURL = "https://cdn.example.com/full.png"
	if err := UpdateAttachment(ctx, db, a); err != nil {
		t.Fatalf("UpdateAttachment failed: %v", err)
	}
	if a.UpdatedAt < 1000 {
		t.Errorf("UpdatedAt = %d, want refreshed", a.UpdatedAt)
	}

	got, err = GetAttachment(ctx, db, "01JOB1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ticket.AttachAttached || got.ImageURL != a.ImageURL {
		t.Errorf("record = %+v, want attached with image", got)
	}
}

func TestAttachment_NotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := GetAttachment(ctx, db, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetAttachment(missing) error = %v, want NOT_FOUND", err)
	}

	err = UpdateAttachment(ctx, db, &ticket.Attachment{ID: "missing", Status: ticket.AttachFailed})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("UpdateAttachment(missing) error = %v, want NOT_FOUND", err)
	}
}

func TestListAttachments(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i, cardID := range []string{"card1", "card2", "card1"} {
		a := newTestAttachment(string(rune('A'+i)), cardID, int64(1000+i))
		if err := InsertAttachment(ctx, db, a); err != nil {
			t.Fatal(err)
		}
	}

	all, err := ListAttachments(ctx, db, "", 0)
	if err != nil {
		t.Fatalf("ListAttachments failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "C" || all[2].ID != "A" {
		t.Errorf("ListAttachments order = %v, want newest first", ids(all))
	}

	limited, err := ListAttachments(ctx, db, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 || limited[0].ID != "C" {
		t.Errorf("limit 1 = %v, want [C]", ids(limited))
	}

	card1, err := ListAttachments(ctx, db, "card1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(card1) != 2 {
		t.Errorf("card1 = %v, want 2 records", ids(card1))
	}

	none, err := ListAttachments(ctx, db, "nope", 10)
	if err != nil {
		t.Fatal(err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("unknown card = %v, want empty non-nil slice", none)
	}
}

func ids(list []ticket.Attachment) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}
