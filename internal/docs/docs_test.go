package docs

import (
	"context"
	"errors"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/sentinel-chat/internal/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestSplitChunks(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph.\r\n\r\n\n\nThird."
	got := SplitChunks(text, 40)
	if len(got) != 2 {
		t.Fatalf("expected paragraphs to be packed into 2 chunks, got %q", got)
	}
	for _, c := range got {
		if len([]rune(c)) > 40 {
			t.Fatalf("chunk too long: %q", c)
		}
	}

	long := strings.Repeat("word ", 100) + "end. " + strings.Repeat("x", 250)
	for _, c := range SplitChunks(long, 100) {
		if n := len([]rune(c)); n > 100 {
			t.Fatalf("chunk of %d runes exceeds limit", n)
		}
	}

	if got := SplitChunks("  \n\n  ", 10); len(got) != 0 {
		t.Fatalf("blank text should give no chunks, got %q", got)
	}
}

func TestRank(t *testing.T) {
	chunks := []Chunk{
		{Seq: 0, Content: "The cat sat on the mat."},
		{Seq: 1, Content: "Quarterly revenue grew in the north region."},
		{Seq: 2, Content: "Revenue for the south region fell; revenue targets missed."},
		{Seq: 3, Content: "Nothing relevant here."},
	}

	got := Rank(chunks, "How did revenue change in the north region?", 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %+v", got)
	}
	if got[0].Seq != 1 {
		t.Fatalf("best hit should be the north chunk, got %+v", got[0])
	}

	if got := Rank(chunks, "a an", 3); got != nil {
		t.Fatalf("short terms should not match, got %+v", got)
	}
}

func TestExtractText(t *testing.T) {
	text, err := ExtractText("notes.md", []byte("# Title\nbody"))
	if err != nil || text != "# Title\nbody" {
		t.Fatalf("unexpected %q %v", text, err)
	}
	if _, err := ExtractText("blob.bin", []byte{0xff, 0xfe, 0x00}); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("expected unsupported file, got %v", err)
	}
	if _, err := ExtractText("broken.pdf", []byte("%PDF-1.4 garbage")); err == nil {
		t.Fatalf("expected error on broken pdf")
	}
}

type recordingQueue struct {
	ids []string
	err error
}

func (q *recordingQueue) PublishJob(_ context.Context, indexID string) error {
	q.ids = append(q.ids, indexID)
	return q.err
}

func TestService_InlineIngestAndSearch(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)), nil, nil)
	ctx := context.Background()

	idx, err := svc.Ingest(ctx, "alice", "S1", []File{
		{Name: "handbook.txt", Data: []byte("Vacation requests go to the team lead.\n\nExpenses are filed monthly.")},
		{Name: "image.bin", Data: []byte{0xff, 0xfe}},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if idx.Status != IndexReady || idx.FileCount != 2 {
		t.Fatalf("unexpected index %+v", idx)
	}

	hits, err := svc.Search(ctx, idx.ID, "who approves vacation requests?", 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || !strings.Contains(hits[0].Content, "Vacation") {
		t.Fatalf("unexpected hits %+v", hits)
	}

	if _, err := svc.Status(ctx, "bob", idx.ID); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("other users must not see the index, got %v", err)
	}
}

func TestService_NothingExtractableFails(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)), nil, nil)
	ctx := context.Background()

	idx, err := svc.Ingest(ctx, "alice", "S1", []File{{Name: "x.bin", Data: []byte{0xff}}})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if idx.Status != IndexFailed || idx.Error == nil {
		t.Fatalf("expected failed index, got %+v", idx)
	}
	hits, err := svc.Search(ctx, idx.ID, "anything at all", 3)
	if err != nil || hits != nil {
		t.Fatalf("failed index should return no hits, got %+v %v", hits, err)
	}
}

func TestService_QueuedIngest(t *testing.T) {
	q := &recordingQueue{}
	svc := NewService(NewRepo(openTestDB(t)), q, nil)
	ctx := context.Background()

	idx, err := svc.Ingest(ctx, "alice", "S1", []File{{Name: "a.txt", Data: []byte("alpha beta gamma")}})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if idx.Status != IndexPending || len(q.ids) != 1 || q.ids[0] != idx.ID {
		t.Fatalf("expected a pending, enqueued index: %+v %v", idx, q.ids)
	}

	// what the worker does
	if err := svc.Build(ctx, idx.ID); err != nil {
		t.Fatalf("build: %v", err)
	}
	got, err := svc.Status(ctx, "alice", idx.ID)
	if err != nil || got.Status != IndexReady {
		t.Fatalf("expected ready, got %+v %v", got, err)
	}
}

func TestService_EnqueueFailure(t *testing.T) {
	q := &recordingQueue{err: errors.New("broker down")}
	repo := NewRepo(openTestDB(t))
	svc := NewService(repo, q, nil)

	if _, err := svc.Ingest(context.Background(), "alice", "S1", []File{{Name: "a.txt", Data: []byte("x")}}); err == nil {
		t.Fatalf("expected enqueue error")
	}
	idx, err := repo.GetIndex(context.Background(), q.ids[0])
	if err != nil || idx.Status != IndexFailed {
		t.Fatalf("index should be marked failed, got %+v %v", idx, err)
	}
}

func TestService_BuildTwiceKeepsReadyIndex(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)), nil, nil)
	ctx := context.Background()

	idx, err := svc.Ingest(ctx, "alice", "S1", []File{{Name: "faq.txt", Data: []byte("Refunds take five business days.")}})
	if err != nil || idx.Status != IndexReady {
		t.Fatalf("ingest: %+v %v", idx, err)
	}

	// a redelivered job runs the build again
	if err := svc.Build(ctx, idx.ID); err != nil {
		t.Fatalf("second build: %v", err)
	}
	got, err := svc.Status(ctx, "alice", idx.ID)
	if err != nil || got.Status != IndexReady {
		t.Fatalf("index should stay ready, got %+v %v", got, err)
	}
	hits, err := svc.Search(ctx, idx.ID, "how long do refunds take", 3)
	if err != nil || len(hits) != 1 {
		t.Fatalf("index should stay searchable, got %+v %v", hits, err)
	}
}

func TestService_BuildUnknownIndex(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)), nil, nil)
	if err := svc.Build(context.Background(), "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

type hookQueue func(indexID string) error

func (q hookQueue) PublishJob(_ context.Context, indexID string) error { return q(indexID) }

func TestService_EnqueueFailureLogsWhenIndexCannotBeMarked(t *testing.T) {
	gdb := openTestDB(t)
	core, logs := observer.New(zap.ErrorLevel)
	queue := hookQueue(func(string) error {
		if err := gdb.Migrator().DropTable(&Index{}); err != nil {
			t.Fatalf("drop table: %v", err)
		}
		return errors.New("broker down")
	})
	svc := NewService(NewRepo(gdb), queue, zap.New(core))

	if _, err := svc.Ingest(context.Background(), "alice", "S1", []File{{Name: "a.txt", Data: []byte("x")}}); err == nil {
		t.Fatalf("expected enqueue error")
	}
	if logs.FilterMessageSnippet("index stays pending").Len() != 1 {
		t.Fatalf("expected the failed status update to be logged, got %+v", logs.All())
	}
}

func TestService_IngestRequiresFiles(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)), nil, nil)
	if _, err := svc.Ingest(context.Background(), "alice", "S1", nil); err == nil {
		t.Fatalf("expected error without files")
	}
}
