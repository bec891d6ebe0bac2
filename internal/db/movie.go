package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/models"
	"gorm.io/gorm"
)

// MovieRepository handles database operations for movies and their scenes
type MovieRepository struct {
	db *DB
}

// NewMovieRepository creates a new movie repository
func NewMovieRepository(db *DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// Create inserts a movie together with its scenes in one transaction
func (r *MovieRepository) Create(ctx context.Context, movie *models.Movie) error {
	for i, scene := range movie.Scenes {
		if scene.Recording == "" {
			return fmt.Errorf("scene %d has no recording: %w", i, ErrInvalidInput)
		}
		scene.MovieID = movie.ID
		scene.Position = i
	}

	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(movie).Error; err != nil {
			return MapGormError(err)
		}
		if len(movie.Scenes) == 0 {
			return nil
		}
		if err := tx.Create(&movie.Scenes).Error; err != nil {
			return MapGormError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create movie: %w", err)
	}
	return nil
}

// GetByID retrieves a movie by its UUID with scenes in play order
func (r *MovieRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Movie, error) {
	var movie models.Movie
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&movie)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return r.withScenes(ctx, &movie)
}

// GetByName retrieves a movie by its unique name with scenes in play order
func (r *MovieRepository) GetByName(ctx context.Context, name string) (*models.Movie, error) {
	var movie models.Movie
	result := r.db.WithContext(ctx).Where("name = ?", name).First(&movie)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return r.withScenes(ctx, &movie)
}

// List retrieves all movies ordered by creation date (newest first).
// Scenes are not loaded.
func (r *MovieRepository) List(ctx context.Context) ([]*models.Movie, error) {
	var movies []*models.Movie
	result := r.db.WithContext(ctx).Order("created_at DESC").Find(&movies)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list movies: %w", MapGormError(result.Error))
	}
	return movies, nil
}

// ListScenes retrieves a movie's scenes ordered by position
func (r *MovieRepository) ListScenes(ctx context.Context, movieID uuid.UUID) ([]*models.Scene, error) {
	var scenes []*models.Scene
	result := r.db.WithContext(ctx).
		Where("movie_id = ?", movieID.String()).
		Order("position ASC").
		Find(&scenes)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", MapGormError(result.Error))
	}
	return scenes, nil
}

// UpdateDestination changes where the audience is sent after the movie
func (r *MovieRepository) UpdateDestination(ctx context.Context, movie *models.Movie) error {
	movie.UpdatedAt = time.Now().UTC()

	result := r.db.WithContext(ctx).
		Where("id = ?", movie.ID.String()).
		Select("has_after_location", "after_world", "after_x", "after_y", "after_z",
			"after_yaw", "after_pitch", "updated_at").
		Updates(movie)
	if result.Error != nil {
		return fmt.Errorf("failed to update movie: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a movie by its UUID (cascade delete to scenes and plays)
func (r *MovieRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.Movie{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete movie: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MovieRepository) withScenes(ctx context.Context, movie *models.Movie) (*models.Movie, error) {
	scenes, err := r.ListScenes(ctx, movie.ID)
	if err != nil {
		return nil, err
	}
	movie.Scenes = scenes
	return movie, nil
}
