package journey

import (
	"testing"
	"time"
)

func TestComputeStatsSummarizesRatings(t *testing.T) {
	now := time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC)
	rows := []ratedGenre{
		{Stars: 5, Genre: "Jazz"},
		{Stars: 4, Genre: "Jazz"},
		{Stars: 2, Genre: "Rock"},
		{Stars: 3, Genre: "Unknown"},
		{Stars: 5, Genre: "Ambient"},
		{Stars: 1, Genre: "Folk"},
		{Stars: 4, Genre: "Soul"},
		{Stars: 4, Genre: "Electronic"},
	}

	summary := computeStats(rows, GlobalState{CurrentDay: 10}, 40, now)

	if summary.RatedCount != 8 {
		t.Fatalf("rated count = %d, want 8", summary.RatedCount)
	}
	if summary.AverageRating != 3.5 {
		t.Fatalf("average = %v, want 3.5", summary.AverageRating)
	}
	if summary.MedianRating != 4 {
		t.Fatalf("median = %v, want 4", summary.MedianRating)
	}
	if summary.StarDistribution != [MaxStars]int{1, 1, 1, 3, 2} {
		t.Fatalf("distribution = %v", summary.StarDistribution)
	}
	if len(summary.TopGenres) != topGenreLimit {
		t.Fatalf("expected %d top genres, got %d", topGenreLimit, len(summary.TopGenres))
	}
	if summary.TopGenres[0] != (GenreCount{Genre: "Jazz", Count: 2}) {
		t.Fatalf("top genre = %+v", summary.TopGenres[0])
	}
	for _, genre := range summary.TopGenres {
		if genre.Genre == unknownGenre {
			t.Fatalf("unknown genre must not be ranked")
		}
	}
	if summary.ProgressPercentage != 25 {
		t.Fatalf("progress = %v, want 25", summary.ProgressPercentage)
	}
	if summary.DaysRemaining != 30 {
		t.Fatalf("days remaining = %d, want 30", summary.DaysRemaining)
	}
	if summary.EstimatedCompletion == nil || !summary.EstimatedCompletion.Equal(now.AddDate(0, 0, 30)) {
		t.Fatalf("unexpected completion estimate %v", summary.EstimatedCompletion)
	}
}

func TestComputeStatsWithoutRatings(t *testing.T) {
	summary := computeStats(nil, GlobalState{CurrentDay: 3, IsPaused: true}, 3, time.Now())

	if summary.AverageRating != 0 || summary.MedianRating != 0 {
		t.Fatalf("expected zero averages, got %v/%v", summary.AverageRating, summary.MedianRating)
	}
	if summary.TopGenres == nil {
		t.Fatalf("top genres should serialize as an empty list")
	}
	if summary.DaysRemaining != 0 {
		t.Fatalf("days remaining = %d, want 0", summary.DaysRemaining)
	}
	if summary.EstimatedCompletion != nil {
		t.Fatalf("finished or paused journeys have no completion estimate")
	}
}
