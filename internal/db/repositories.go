package db

// Repositories provides access to all database repositories
type Repositories struct {
	Movies     *MovieRepository
	MoviePlays *MoviePlayRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Movies:     NewMovieRepository(db),
		MoviePlays: NewMoviePlayRepository(db),
	}
}
