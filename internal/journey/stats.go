package journey

import (
	"context"
	"sort"
	"time"

	"github.com/MarcoPoloResearchLab/albumday/internal/catalog"
	"github.com/MarcoPoloResearchLab/albumday/internal/users"
	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	unknownGenre  = "Unknown"
	topGenreLimit = 5
)

// GenreCount is the number of rated albums in a genre.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// Stats summarizes a user's ratings and the journey's progress.
type Stats struct {
	TotalAlbums         int           `json:"totalAlbums"`
	CurrentDay          int           `json:"currentDay"`
	RatedCount          int           `json:"ratedCount"`
	AverageRating       float64       `json:"averageRating"`
	MedianRating        float64       `json:"medianRating"`
	StarDistribution    [MaxStars]int `json:"starDistribution"`
	TopGenres           []GenreCount  `json:"topGenres"`
	ProgressPercentage  float64       `json:"progressPercentage"`
	DaysRemaining       int           `json:"daysRemaining"`
	EstimatedCompletion *time.Time    `json:"estimatedCompletion"`
	IsPaused            bool          `json:"isPaused"`
}

type ratedGenre struct {
	Stars int
	Genre string
}

// Stats computes rating statistics for username.
func (e *Engine) Stats(ctx context.Context, rawUsername string) (Stats, error) {
	username, err := parseUsername(opStats, rawUsername)
	if err != nil {
		return Stats{}, err
	}

	var summary Stats
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state, err := loadState(tx, opStats, false)
		if err != nil {
			return err
		}
		now := e.now().UTC()
		user, _, err := users.GetOrCreate(tx, username, state.CurrentDay, now)
		if err != nil {
			return newServiceError(opStats, "user_upsert_failed", ErrInternal, err)
		}
		total, err := catalog.Count(tx)
		if err != nil {
			return newServiceError(opStats, "album_count_failed", ErrInternal, err)
		}
		var rows []ratedGenre
		err = tx.Model(&Rating{}).
			Select("ratings.stars AS stars, albums.genre AS genre").
			Joins("JOIN albums ON albums.id = ratings.album_id").
			Where("ratings.user_id = ?", user.ID).
			Scan(&rows).Error
		if err != nil {
			return newServiceError(opStats, "rating_query_failed", ErrInternal, err)
		}
		summary = computeStats(rows, state, total, now)
		return nil
	})
	if err != nil {
		logFailure(e.logger, opStats, err, zap.String("username", username.String()))
		return Stats{}, asServiceError(opStats, err)
	}
	return summary, nil
}

func computeStats(rows []ratedGenre, state GlobalState, totalAlbums int, now time.Time) Stats {
	summary := Stats{
		TotalAlbums: totalAlbums,
		CurrentDay:  state.CurrentDay,
		RatedCount:  len(rows),
		TopGenres:   make([]GenreCount, 0, topGenreLimit),
		IsPaused:    state.IsPaused,
	}

	starValues := make(stats.Float64Data, 0, len(rows))
	genreCounts := make(map[string]int)
	for _, row := range rows {
		starValues = append(starValues, float64(row.Stars))
		if row.Stars >= MinStars && row.Stars <= MaxStars {
			summary.StarDistribution[row.Stars-1]++
		}
		if row.Genre != "" && row.Genre != unknownGenre {
			genreCounts[row.Genre]++
		}
	}
	if len(starValues) > 0 {
		if mean, err := starValues.Mean(); err == nil {
			summary.AverageRating = mean
		}
		if median, err := starValues.Median(); err == nil {
			summary.MedianRating = median
		}
	}

	for genre, count := range genreCounts {
		summary.TopGenres = append(summary.TopGenres, GenreCount{Genre: genre, Count: count})
	}
	sort.Slice(summary.TopGenres, func(i, j int) bool {
		if summary.TopGenres[i].Count != summary.TopGenres[j].Count {
			return summary.TopGenres[i].Count > summary.TopGenres[j].Count
		}
		return summary.TopGenres[i].Genre < summary.TopGenres[j].Genre
	})
	if len(summary.TopGenres) > topGenreLimit {
		summary.TopGenres = summary.TopGenres[:topGenreLimit]
	}

	if totalAlbums > 0 {
		summary.ProgressPercentage = float64(state.CurrentDay) / float64(totalAlbums) * 100
		summary.DaysRemaining = max(totalAlbums-state.CurrentDay, 0)
	}
	if !state.IsPaused && summary.DaysRemaining > 0 {
		completion := now.AddDate(0, 0, summary.DaysRemaining)
		summary.EstimatedCompletion = &completion
	}
	return summary
}
