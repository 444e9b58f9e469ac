package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/akgaur12/converse/internal/store"
)

func testStore(t *testing.T) *ChatStore {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background(), "chat", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewChatStore(db)
}

func TestCreateAndGetConversation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, err := s.CreateConversation(ctx, "user-1", "Trip Planning")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if conv.ID == "" {
		t.Fatal("conversation ID is empty")
	}
	if conv.MessageCount != 0 {
		t.Errorf("MessageCount = %d, want 0", conv.MessageCount)
	}

	got, err := s.GetConversation(ctx, "user-1", conv.ID)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if got.Title != "Trip Planning" {
		t.Errorf("Title = %q, want %q", got.Title, "Trip Planning")
	}
}

func TestCreateConversation_DefaultTitle(t *testing.T) {
	s := testStore(t)

	conv, err := s.CreateConversation(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if conv.Title != "New Chat" {
		t.Errorf("Title = %q, want %q", conv.Title, "New Chat")
	}
}

func TestGetConversation_ForeignUserIsNotFound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "user-1", "Private")

	if _, err := s.GetConversation(ctx, "user-2", conv.ID); err != ErrNotFound {
		t.Fatalf("GetConversation() by foreign user error = %v, want ErrNotFound", err)
	}
}

func TestListConversations_OrderedByActivity(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, _ := s.CreateConversation(ctx, "user-1", "first")
	second, _ := s.CreateConversation(ctx, "user-1", "second")
	_, _ = s.CreateConversation(ctx, "user-2", "other user")

	// Touch the older conversation so it becomes the most recent.
	time.Sleep(10 * time.Millisecond)
	if err := s.AppendTurn(ctx, "user-1", &Turn{ChatID: first.ID, UserText: "hi", AssistantText: "hello"}); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	convs, err := s.ListConversations(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != first.ID || convs[1].ID != second.ID {
		t.Errorf("order = [%s, %s], want most recently active first", convs[0].Title, convs[1].Title)
	}
}

func TestAppendTurn_AssignsSequentialSeq(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "user-1", "seq test")

	for i := 1; i <= 3; i++ {
		turn := &Turn{ChatID: conv.ID, UserText: "q", AssistantText: "a"}
		if err := s.AppendTurn(ctx, "user-1", turn); err != nil {
			t.Fatalf("AppendTurn() #%d error = %v", i, err)
		}
		if turn.Seq != i {
			t.Errorf("turn #%d Seq = %d, want %d", i, turn.Seq, i)
		}
	}

	got, err := s.GetConversation(ctx, "user-1", conv.ID)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if got.MessageCount != 3 {
		t.Errorf("MessageCount = %d, want 3", got.MessageCount)
	}

	n, err := s.TurnCount(ctx, conv.ID)
	if err != nil {
		t.Fatalf("TurnCount() error = %v", err)
	}
	if n != got.MessageCount {
		t.Errorf("TurnCount = %d, MessageCount = %d, want equal", n, got.MessageCount)
	}
}

func TestAppendTurn_Concurrent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "user-1", "concurrent")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.AppendTurn(ctx, "user-1", &Turn{ChatID: conv.ID, UserText: "q", AssistantText: "a"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	turns, err := s.ListTurns(ctx, "user-1", conv.ID)
	if err != nil {
		t.Fatalf("ListTurns() error = %v", err)
	}
	if len(turns) != workers {
		t.Fatalf("got %d turns, want %d", len(turns), workers)
	}

	// Strictly increasing from 1, no gaps or duplicates.
	for i, turn := range turns {
		if turn.Seq != i+1 {
			t.Errorf("turns[%d].Seq = %d, want %d", i, turn.Seq, i+1)
		}
	}

	got, _ := s.GetConversation(ctx, "user-1", conv.ID)
	if got.MessageCount != workers {
		t.Errorf("MessageCount = %d, want %d", got.MessageCount, workers)
	}
}

func TestAppendTurn_ForeignConversation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "user-1", "mine")

	err := s.AppendTurn(ctx, "user-2", &Turn{ChatID: conv.ID, UserText: "q", AssistantText: "a"})
	if err != ErrNotFound {
		t.Fatalf("AppendTurn() by foreign user error = %v, want ErrNotFound", err)
	}

	// No partial writes.
	n, _ := s.TurnCount(ctx, conv.ID)
	if n != 0 {
		t.Errorf("TurnCount = %d, want 0 after rejected append", n)
	}
}

func TestRecentTurns_LimitAndOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "user-1", "history")
	for i := 1; i <= 8; i++ {
		turn := &Turn{ChatID: conv.ID, UserText: "q", AssistantText: "a"}
		if err := s.AppendTurn(ctx, "user-1", turn); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	turns, err := s.RecentTurns(ctx, "user-1", conv.ID, 5)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("got %d turns, want 5", len(turns))
	}
	// The newest 5, in chronological order: seq 4..8.
	for i, turn := range turns {
		if turn.Seq != i+4 {
			t.Errorf("turns[%d].Seq = %d, want %d", i, turn.Seq, i+4)
		}
	}
}

func TestRenameConversation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "user-1", "old")

	if err := s.RenameConversation(ctx, "user-1", conv.ID, "new title"); err != nil {
		t.Fatalf("RenameConversation() error = %v", err)
	}
	got, _ := s.GetConversation(ctx, "user-1", conv.ID)
	if got.Title != "new title" {
		t.Errorf("Title = %q, want %q", got.Title, "new title")
	}

	if err := s.RenameConversation(ctx, "user-1", "no-such-id", "x"); err != ErrNotFound {
		t.Errorf("RenameConversation() missing id error = %v, want ErrNotFound", err)
	}
}

func TestDeleteConversation_CascadesToTurns(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	conv, _ := s.CreateConversation(ctx, "user-1", "doomed")
	_ = s.AppendTurn(ctx, "user-1", &Turn{ChatID: conv.ID, UserText: "q", AssistantText: "a"})
	_ = s.AppendTurn(ctx, "user-1", &Turn{ChatID: conv.ID, UserText: "q2", AssistantText: "a2"})

	if err := s.DeleteConversation(ctx, "user-1", conv.ID); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}

	if _, err := s.GetConversation(ctx, "user-1", conv.ID); err != ErrNotFound {
		t.Errorf("GetConversation() after delete error = %v, want ErrNotFound", err)
	}
	n, _ := s.TurnCount(ctx, conv.ID)
	if n != 0 {
		t.Errorf("TurnCount = %d, want 0 after cascade delete", n)
	}
}
