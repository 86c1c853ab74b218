package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/vkm/internal/models"
	"github.com/desertthunder/vkm/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// each connection to :memory: is a separate database
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "downloads")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for table without sequence")
	}
}

func TestTokenRepository(t *testing.T) {
	t.Run("Save And Latest", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))
		expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

		token := models.NewCachedToken("user@example.com", "T", "U", &expires)
		if err := repo.Save(token); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}
		if token.ID() == "" {
			t.Error("token ID should be set after save")
		}

		got, err := repo.Latest("user@example.com")
		if err != nil {
			t.Fatalf("failed to get token: %v", err)
		}
		if got.Token != "T" || got.UserID != "U" {
			t.Errorf("unexpected token %+v", got)
		}
		if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, got.ExpiresAt)
		}
	})

	t.Run("Save Replaces Previous Token", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTokenRepository(db)

		if err := repo.Save(models.NewCachedToken("user@example.com", "old", "U", nil)); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}
		if err := repo.Save(models.NewCachedToken("user@example.com", "new", "U", nil)); err != nil {
			t.Fatalf("failed to save token: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM tokens").Scan(&count); err != nil {
			t.Fatalf("failed to count tokens: %v", err)
		}
		if count != 1 {
			t.Errorf("expected 1 token, got %d", count)
		}

		got, err := repo.Latest("")
		if err != nil {
			t.Fatalf("failed to get token: %v", err)
		}
		if got.Token != "new" || got.ExpiresAt != nil {
			t.Errorf("unexpected token %+v", got)
		}
	})

	t.Run("Latest NotFound", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))

		_, err := repo.Latest("nobody")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))

		err := repo.Save(models.NewCachedToken("user@example.com", "", "U", nil))
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewTokenRepository(setupTestDB(t))
		for _, login := range []string{"a", "b"} {
			if err := repo.Save(models.NewCachedToken(login, "T", "U", nil)); err != nil {
				t.Fatalf("failed to save token: %v", err)
			}
		}

		n, err := repo.Delete("a")
		if err != nil || n != 1 {
			t.Fatalf("expected 1 deleted token, got %d (%v)", n, err)
		}
		if _, err := repo.Latest("a"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected token for a to be gone, got %v", err)
		}

		n, err = repo.DeleteAll()
		if err != nil || n != 1 {
			t.Fatalf("expected 1 deleted token, got %d (%v)", n, err)
		}
	})
}

func TestDownloadRepository(t *testing.T) {
	audio := models.Audio{ID: 7, OwnerID: 42, Artist: "Artist", Title: "Song"}

	t.Run("Record", func(t *testing.T) {
		repo := NewDownloadRepository(setupTestDB(t))
		download := models.NewDownload(audio, "/music/Artist - Song.mp3", 1024)

		if err := repo.Record(download); err != nil {
			t.Fatalf("failed to record download: %v", err)
		}
		if download.ID() == "" || download.Sequence() != 1 {
			t.Errorf("expected id and sequence 1, got %q/%d", download.ID(), download.Sequence())
		}

		exists, err := repo.Exists(42, 7)
		if err != nil || !exists {
			t.Errorf("expected download to exist, got %v (%v)", exists, err)
		}

		exists, err = repo.Exists(42, 8)
		if err != nil || exists {
			t.Errorf("expected download to not exist, got %v (%v)", exists, err)
		}
	})

	t.Run("List Newest First", func(t *testing.T) {
		repo := NewDownloadRepository(setupTestDB(t))
		for i := 1; i <= 3; i++ {
			a := audio
			a.ID = i
			if err := repo.Record(models.NewDownload(a, "/music/x.mp3", int64(i))); err != nil {
				t.Fatalf("failed to record download: %v", err)
			}
		}

		all, err := repo.List(0)
		if err != nil {
			t.Fatalf("failed to list downloads: %v", err)
		}
		if len(all) != 3 || all[0].AudioID != 3 || all[2].AudioID != 1 {
			t.Errorf("unexpected order: %v", all)
		}
		if all[0].Artist != "Artist" || all[0].Bytes != 3 {
			t.Errorf("unexpected download %+v", all[0])
		}

		limited, err := repo.List(2)
		if err != nil {
			t.Fatalf("failed to list downloads: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 downloads, got %d", len(limited))
		}
	})

	t.Run("Validation", func(t *testing.T) {
		repo := NewDownloadRepository(setupTestDB(t))

		err := repo.Record(models.NewDownload(audio, "", 0))
		if !errors.Is(err, models.ErrValidation) {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}
