package buffer

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "buffer.db"), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBatchOrdersParentsFirst(t *testing.T) {
	store := openStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	items := []Item{
		{DocumentID: "c1", Entity: EntityComment, Operation: OperationCreate, Timestamp: base},
		{DocumentID: "t1", Entity: EntityTask, Operation: OperationCreate, Timestamp: base.Add(time.Second)},
		{DocumentID: "p1", Entity: EntityProject, Operation: OperationCreate, Timestamp: base.Add(2 * time.Second)},
		{DocumentID: "t1", Entity: EntityTask, Operation: OperationUpdate, Timestamp: base.Add(3 * time.Second)},
	}
	for _, item := range items {
		if err := store.Enqueue(item); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	batch, err := store.GetBatch(10)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	var got []string
	for _, item := range batch {
		got = append(got, item.DocumentID+":"+item.Operation)
	}
	want := []string{"p1:create", "t1:create", "c1:create"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	counts, err := store.CountByEntity()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[EntityTask] != 1 || counts[EntityProject] != 1 || counts[EntityComment] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestWritesToOneDocumentCoalesce(t *testing.T) {
	cases := []struct {
		name     string
		ops      []string
		wantOps  []string
		wantData string
	}{
		{"create then update", []string{OperationCreate, OperationUpdate}, []string{OperationCreate}, `"v2"`},
		{"create then delete", []string{OperationCreate, OperationDelete}, nil, ""},
		{"update then update", []string{OperationUpdate, OperationUpdate}, []string{OperationUpdate}, `"v2"`},
		{"update then delete", []string{OperationUpdate, OperationDelete}, []string{OperationDelete}, `"v2"`},
		{"delete then create", []string{OperationDelete, OperationCreate}, []string{OperationDelete, OperationCreate}, `"v1"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := openStore(t)
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			for i, op := range tc.ops {
				item := Item{
					DocumentID: "t1",
					Entity:     EntityTask,
					Operation:  op,
					Data:       []byte(fmt.Sprintf(`"v%d"`, i+1)),
					Timestamp:  base.Add(time.Duration(i) * time.Second),
				}
				if err := store.Enqueue(item); err != nil {
					t.Fatalf("enqueue: %v", err)
				}
			}

			batch, err := store.GetBatch(10)
			if err != nil {
				t.Fatalf("batch: %v", err)
			}
			if len(batch) != len(tc.wantOps) {
				t.Fatalf("batch = %+v, want ops %v", batch, tc.wantOps)
			}
			for i, op := range tc.wantOps {
				if batch[i].Operation != op {
					t.Errorf("batch[%d].Operation = %s, want %s", i, batch[i].Operation, op)
				}
			}
			if len(batch) > 0 && string(batch[0].Data) != tc.wantData {
				t.Errorf("data = %s, want %s", batch[0].Data, tc.wantData)
			}
		})
	}
}

func TestRemoveClearsIndex(t *testing.T) {
	store := openStore(t)
	store.Enqueue(Item{DocumentID: "t1", Entity: EntityTask, Operation: OperationCreate})
	batch, _ := store.GetBatch(10)
	if err := store.Remove(batch[0]); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// With the pending create gone, a later delete is queued on its own.
	store.Enqueue(Item{DocumentID: "t1", Entity: EntityTask, Operation: OperationDelete})
	batch, _ = store.GetBatch(10)
	if len(batch) != 1 || batch[0].Operation != OperationDelete {
		t.Errorf("batch = %+v", batch)
	}
}

func TestRemoveAndRequeue(t *testing.T) {
	store := openStore(t)
	if err := store.Enqueue(Item{DocumentID: "t1", Entity: EntityTask, Operation: OperationCreate}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := store.Enqueue(Item{DocumentID: "t2", Entity: EntityTask, Operation: OperationCreate}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	batch, _ := store.GetBatch(1)
	first := batch[0]
	first.Retries++
	if err := store.Requeue(first); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if size, _ := store.Size(); size != 2 {
		t.Fatalf("size after requeue = %d", size)
	}

	batch, _ = store.GetBatch(10)
	if batch[0].DocumentID != "t2" || batch[1].DocumentID != "t1" || batch[1].Retries != 1 {
		t.Errorf("batch = %+v", batch)
	}

	for _, item := range batch {
		if err := store.Remove(item); err != nil {
			t.Fatalf("remove: %v", err)
		}
	}
	if size, _ := store.Size(); size != 0 {
		t.Errorf("size = %d", size)
	}
}

func TestCleanup(t *testing.T) {
	store := openStore(t)
	old := time.Now().Add(-48 * time.Hour)
	store.Enqueue(Item{DocumentID: "old", Entity: EntityTask, Timestamp: old})
	store.Enqueue(Item{DocumentID: "new", Entity: EntityTask})

	removed, err := store.Cleanup(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	batch, _ := store.GetBatch(10)
	if len(batch) != 1 || batch[0].DocumentID != "new" {
		t.Errorf("batch = %+v", batch)
	}
}

func TestClosedStore(t *testing.T) {
	var store *Store
	if err := store.Enqueue(Item{}); err == nil {
		t.Errorf("nil store should refuse writes")
	}
	if err := store.Close(); err != nil {
		t.Errorf("closing nil store: %v", err)
	}
}
