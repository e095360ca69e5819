package catalog_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/catalog"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openCatalog(testContext *testing.T, positions ...int) *gorm.DB {
	testContext.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(testContext.TempDir(), "catalog.db")), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&catalog.Album{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}
	for _, position := range positions {
		album := catalog.Album{Position: position, Artist: "Artist", Title: "Title"}
		if err := db.Create(&album).Error; err != nil {
			testContext.Fatalf("seed position %d: %v", position, err)
		}
	}
	return db
}

func TestReleaseSetsReleasedAtOnce(testContext *testing.T) {
	db := openCatalog(testContext, 1, 2)
	first := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)

	album, err := catalog.Release(db, 2, first)
	if err != nil {
		testContext.Fatalf("Release: %v", err)
	}
	if !album.IsReleased || album.ReleasedAt == nil || !album.ReleasedAt.Equal(first) {
		testContext.Fatalf("unexpected release state: %+v", album)
	}
	if album.Genre != "Unknown" {
		testContext.Fatalf("genre default = %q, want Unknown", album.Genre)
	}

	album, err = catalog.Release(db, 2, first.Add(48*time.Hour))
	if err != nil {
		testContext.Fatalf("Release again: %v", err)
	}
	if !album.ReleasedAt.Equal(first) {
		testContext.Fatalf("released_at moved to %v", album.ReleasedAt)
	}
}

func TestReleaseMissingPosition(testContext *testing.T) {
	db := openCatalog(testContext, 1)

	if _, err := catalog.Release(db, 2, time.Now()); !errors.Is(err, catalog.ErrAlbumNotFound) {
		testContext.Fatalf("Release missing position error = %v, want ErrAlbumNotFound", err)
	}
}

func TestListReleasedThroughNewestFirst(testContext *testing.T) {
	db := openCatalog(testContext, 1, 2, 3, 4)
	now := time.Now()
	for _, position := range []int{1, 2, 3} {
		if _, err := catalog.Release(db, position, now); err != nil {
			testContext.Fatalf("Release(%d): %v", position, err)
		}
	}

	albums, err := catalog.ListReleasedThrough(db, 2)
	if err != nil {
		testContext.Fatalf("ListReleasedThrough: %v", err)
	}
	if len(albums) != 2 || albums[0].Position != 2 || albums[1].Position != 1 {
		testContext.Fatalf("unexpected albums: %+v", albums)
	}

	total, err := catalog.Count(db)
	if err != nil || total != 4 {
		testContext.Fatalf("Count = %d, %v", total, err)
	}
}

func TestUnreleaseAllClearsTimestamps(testContext *testing.T) {
	db := openCatalog(testContext, 1, 2)
	for _, position := range []int{1, 2} {
		if _, err := catalog.Release(db, position, time.Now()); err != nil {
			testContext.Fatalf("Release(%d): %v", position, err)
		}
	}

	if err := catalog.UnreleaseAll(db); err != nil {
		testContext.Fatalf("UnreleaseAll: %v", err)
	}

	albums, err := catalog.ListReleasedThrough(db, 10)
	if err != nil {
		testContext.Fatalf("ListReleasedThrough: %v", err)
	}
	if len(albums) != 0 {
		testContext.Fatalf("expected no released albums, got %d", len(albums))
	}
	album, err := catalog.AtPosition(db, 1)
	if err != nil {
		testContext.Fatalf("AtPosition: %v", err)
	}
	if album.ReleasedAt != nil {
		testContext.Fatalf("released_at should be cleared, got %v", album.ReleasedAt)
	}
}

func TestByIDsAndSummary(testContext *testing.T) {
	db := openCatalog(testContext, 1, 2)
	first, err := catalog.AtPosition(db, 1)
	if err != nil {
		testContext.Fatalf("AtPosition: %v", err)
	}

	albums, err := catalog.ByIDs(db, []uint{first.ID})
	if err != nil {
		testContext.Fatalf("ByIDs: %v", err)
	}
	if len(albums) != 1 || albums[first.ID].Summary().Position != 1 {
		testContext.Fatalf("unexpected albums: %+v", albums)
	}

	empty, err := catalog.ByIDs(db, nil)
	if err != nil || len(empty) != 0 {
		testContext.Fatalf("ByIDs(nil) = %v, %v", empty, err)
	}
}
