package repositories

import "database/sql"

// MySQL satisfies Store over one connection pool.
type MySQL struct {
	CatalogRepository
	SeatRepository
	BookingRepository
	UserRepository
	SeedRepository
}

func NewMySQL(db *sql.DB) MySQL {
	return MySQL{
		CatalogRepository: CatalogRepository{DB: db},
		SeatRepository:    SeatRepository{DB: db},
		BookingRepository: BookingRepository{DB: db},
		UserRepository:    UserRepository{DB: db},
		SeedRepository:    SeedRepository{DB: db},
	}
}

var _ Store = MySQL{}
