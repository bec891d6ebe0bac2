package theater

import "errors"

// Theater service errors
var (
	// ErrMovieNotFound indicates the requested movie does not exist
	ErrMovieNotFound = errors.New("movie not found")

	// ErrEmptyMovie indicates the movie has no scenes to play
	ErrEmptyMovie = errors.New("movie has no scenes")

	// ErrPlaybackNotFound indicates no live playback has the requested id
	ErrPlaybackNotFound = errors.New("playback not found")

	// ErrNoSpikeTick indicates the playback has no pause at the requested tick
	ErrNoSpikeTick = errors.New("no spike tick at requested tick")

	// ErrInvalidMode indicates an unknown play mode
	ErrInvalidMode = errors.New("invalid play mode")

	// ErrClosed indicates the service has been shut down
	ErrClosed = errors.New("theater is shut down")

	// ErrUnknownObserver indicates an audience member is not in the world
	ErrUnknownObserver = errors.New("audience member is not in the world")
)

// IsMovieNotFound checks if the error is a movie not found error
func IsMovieNotFound(err error) bool {
	return errors.Is(err, ErrMovieNotFound)
}

// IsPlaybackNotFound checks if the error is a playback not found error
func IsPlaybackNotFound(err error) bool {
	return errors.Is(err, ErrPlaybackNotFound)
}
