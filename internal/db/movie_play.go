package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/models"
)

// MoviePlayRepository handles database operations for movie plays
type MoviePlayRepository struct {
	db *DB
}

// NewMoviePlayRepository creates a new movie play repository
func NewMoviePlayRepository(db *DB) *MoviePlayRepository {
	return &MoviePlayRepository{db: db}
}

// Create inserts a play; the database assigns its ID
func (r *MoviePlayRepository) Create(ctx context.Context, play *models.MoviePlay) error {
	result := r.db.WithContext(ctx).Create(play)
	if result.Error != nil {
		return fmt.Errorf("failed to create movie play: %w", MapGormError(result.Error))
	}
	return nil
}

// GetByID retrieves a play by its ID
func (r *MoviePlayRepository) GetByID(ctx context.Context, id int) (*models.MoviePlay, error) {
	var play models.MoviePlay
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&play)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &play, nil
}

// ListByMovie retrieves a movie's plays, most recent first
func (r *MoviePlayRepository) ListByMovie(ctx context.Context, movieID uuid.UUID) ([]*models.MoviePlay, error) {
	var plays []*models.MoviePlay
	result := r.db.WithContext(ctx).
		Where("movie_id = ?", movieID.String()).
		Order("id DESC").
		Find(&plays)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list movie plays: %w", MapGormError(result.Error))
	}
	return plays, nil
}

// ListActive retrieves every play still in the playing state
func (r *MoviePlayRepository) ListActive(ctx context.Context) ([]*models.MoviePlay, error) {
	var plays []*models.MoviePlay
	result := r.db.WithContext(ctx).
		Where("state = ?", models.PlayStatePlaying).
		Order("id ASC").
		Find(&plays)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active movie plays: %w", MapGormError(result.Error))
	}
	return plays, nil
}

// Finish moves a playing play to state. Plays that already left the playing
// state are left untouched and reported as ErrNotFound.
func (r *MoviePlayRepository) Finish(ctx context.Context, id int, state string, at time.Time) error {
	if state == models.PlayStatePlaying {
		return fmt.Errorf("cannot finish play in state %q: %w", state, ErrInvalidInput)
	}

	at = at.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.MoviePlay{}).
		Where("id = ? AND state = ?", id, models.PlayStatePlaying).
		Updates(map[string]interface{}{
			"state":       state,
			"finished_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to finish movie play: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
