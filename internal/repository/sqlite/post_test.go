package sqlite_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/msomdec/quill/internal/domain"
	"github.com/msomdec/quill/internal/repository/sqlite"
)

func TestPostRepository_ListByAuthor_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	users := sqlite.NewUserRepository(db)
	posts := sqlite.NewPostRepository(db)
	ctx := context.Background()

	alice := createUser(t, users, "alice", "alice@example.com")
	bob := createUser(t, users, "bob", "bob@example.com")

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		p := &domain.Post{
			Title:      fmt.Sprintf("alice %d", i),
			Content:    "body",
			UserID:     alice.ID,
			DatePosted: base.Add(time.Duration(i) * time.Hour),
		}
		if err := posts.Create(ctx, p); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := posts.Create(ctx, &domain.Post{Title: "bob", Content: "body", UserID: bob.ID}); err != nil {
		t.Fatalf("Create bob post: %v", err)
	}

	count, err := posts.CountByAuthor(ctx, alice.ID)
	if err != nil {
		t.Fatalf("CountByAuthor: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7 posts for alice, got %d", count)
	}

	first, err := posts.ListByAuthor(ctx, alice.ID, 5, 0)
	if err != nil {
		t.Fatalf("ListByAuthor: %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("expected 5 posts, got %d", len(first))
	}
	if first[0].Title != "alice 6" || first[4].Title != "alice 2" {
		t.Fatalf("unexpected order: first=%q last=%q", first[0].Title, first[4].Title)
	}
	if first[0].Author == nil || first[0].Author.Username != "alice" {
		t.Fatalf("expected author to be populated, got %+v", first[0].Author)
	}

	second, err := posts.ListByAuthor(ctx, alice.ID, 5, 5)
	if err != nil {
		t.Fatalf("ListByAuthor page 2: %v", err)
	}
	if len(second) != 2 || second[1].Title != "alice 0" {
		t.Fatalf("unexpected second page: %+v", second)
	}
}

func TestPostRepository_ListAndCount(t *testing.T) {
	db := newTestDB(t)
	users := sqlite.NewUserRepository(db)
	posts := sqlite.NewPostRepository(db)
	ctx := context.Background()

	author := createUser(t, users, "writer", "writer@example.com")
	for i := 0; i < 3; i++ {
		if err := posts.Create(ctx, &domain.Post{Title: fmt.Sprintf("p%d", i), Content: "c", UserID: author.ID}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	n, err := posts.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 posts, got %d", n)
	}

	all, err := posts.List(ctx, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(all))
	}
	// Same timestamp second: ties fall back to id descending.
	if all[0].ID < all[len(all)-1].ID {
		t.Fatalf("expected newest first, got ids %d..%d", all[0].ID, all[len(all)-1].ID)
	}
}

func TestPostRepository_Create_UnknownAuthor(t *testing.T) {
	db := newTestDB(t)
	posts := sqlite.NewPostRepository(db)

	err := posts.Create(context.Background(), &domain.Post{Title: "orphan", Content: "c", UserID: 12345})
	if err == nil {
		t.Fatal("expected foreign key error for unknown author")
	}
}
