// Package seed loads fixture data (users, stops, routes, carts, schedules)
// from a YAML file into an empty store.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"gocart/internal/domain"
	"gocart/internal/domain/models"
	"gocart/internal/repositories"
	"gocart/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type File struct {
	Users     []User     `yaml:"users" validate:"dive"`
	Stops     []Stop     `yaml:"stops" validate:"dive"`
	Routes    []Route    `yaml:"routes" validate:"dive"`
	Carts     []Cart     `yaml:"carts" validate:"dive"`
	Schedules []Schedule `yaml:"schedules" validate:"dive"`
}

type User struct {
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required,min=4"`
	Role     string `yaml:"role" validate:"required,oneof=student driver admin"`
}

type Stop struct {
	Name string  `yaml:"name" validate:"required"`
	Lat  float64 `yaml:"lat" validate:"latitude"`
	Lng  float64 `yaml:"lng" validate:"longitude"`
}

type Fare struct {
	From   string `yaml:"from" validate:"required"`
	To     string `yaml:"to" validate:"required"`
	Amount string `yaml:"fare" validate:"required,numeric"`
}

type Route struct {
	Name  string   `yaml:"name" validate:"required"`
	Stops []string `yaml:"stops" validate:"min=2,dive,required"`
	Fares []Fare   `yaml:"fares" validate:"dive"`
}

type Cart struct {
	NumberPlate string `yaml:"number_plate" validate:"required"`
	Driver      string `yaml:"driver" validate:"required"`
	Route       string `yaml:"route" validate:"required"`
	Capacity    int    `yaml:"capacity" validate:"min=1,max=100"`
}

type Schedule struct {
	Cart       string `yaml:"cart" validate:"required"`
	TravelDate string `yaml:"travel_date" validate:"required,datetime=2006-01-02"`
	StartTime  string `yaml:"start_time" validate:"required"`
	DropTime   string `yaml:"drop_time" validate:"required"`
	// Seats defaults to 1..capacity.
	Seats []string `yaml:"seats" validate:"dive,required"`
}

// Parse decodes and validates a fixture document. Unknown keys are rejected.
func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return File{}, fmt.Errorf("validate seed: %w", err)
	}
	return f, nil
}

// Load reads and parses the fixture file at path.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return Parse(bytes.NewReader(data))
}

// Target is what Apply writes to. Stops is used to detect an already seeded store.
type Target interface {
	repositories.SeedWriter
	Stops(ctx context.Context) ([]models.Stop, error)
}

type Summary struct {
	Skipped   bool
	Users     int
	Stops     int
	Routes    int
	Carts     int
	Schedules int
}

type Seeder struct {
	Store Target
	// Cost is the bcrypt cost; bcrypt.DefaultCost when zero.
	Cost int
}

// Apply writes f into an empty store. A store that already has stops is left
// untouched.
func (s Seeder) Apply(ctx context.Context, f File) (Summary, error) {
	var sum Summary
	existing, err := s.Store.Stops(ctx)
	if err != nil {
		return sum, err
	}
	if len(existing) > 0 {
		log.Printf("[SEED] store already has %d stops, skipping", len(existing))
		return Summary{Skipped: true}, nil
	}
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	users := map[string]models.User{}
	for _, u := range f.Users {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return sum, fmt.Errorf("hash password of %s: %w", u.Username, err)
		}
		created, err := s.Store.CreateUser(ctx, models.User{Username: u.Username, PasswordHash: string(hash), Role: u.Role})
		if err != nil {
			return sum, fmt.Errorf("user %s: %w", u.Username, err)
		}
		users[u.Username] = created
		sum.Users++
	}

	stops := map[string]models.Stop{}
	for _, st := range f.Stops {
		created, err := s.Store.CreateStop(ctx, models.Stop{Name: utils.NormalizeSpace(st.Name), Lat: st.Lat, Lng: st.Lng})
		if err != nil {
			return sum, fmt.Errorf("stop %s: %w", st.Name, err)
		}
		stops[created.Name] = created
		sum.Stops++
	}
	stopID := func(name string) (int64, error) {
		st, ok := stops[utils.NormalizeSpace(name)]
		if !ok {
			return 0, domain.ValidationError{Field: "stop", Msg: "unknown stop " + name}
		}
		return st.ID, nil
	}

	routes := map[string]models.Route{}
	for _, r := range f.Routes {
		ids := make([]int64, 0, len(r.Stops))
		for _, name := range r.Stops {
			id, err := stopID(name)
			if err != nil {
				return sum, fmt.Errorf("route %s: %w", r.Name, err)
			}
			ids = append(ids, id)
		}
		fares := make([]models.RouteFare, 0, len(r.Fares))
		for _, fr := range r.Fares {
			from, err := stopID(fr.From)
			if err != nil {
				return sum, fmt.Errorf("route %s fare: %w", r.Name, err)
			}
			to, err := stopID(fr.To)
			if err != nil {
				return sum, fmt.Errorf("route %s fare: %w", r.Name, err)
			}
			amount, err := decimal.NewFromString(fr.Amount)
			if err != nil || amount.IsNegative() {
				return sum, domain.ValidationError{Field: "fare", Msg: fmt.Sprintf("route %s: bad fare %q", r.Name, fr.Amount)}
			}
			fares = append(fares, models.RouteFare{FromStopID: from, ToStopID: to, Fare: amount.Round(2)})
		}
		created, err := s.Store.CreateRoute(ctx, models.Route{Name: r.Name}, ids, fares)
		if err != nil {
			return sum, fmt.Errorf("route %s: %w", r.Name, err)
		}
		routes[r.Name] = created
		sum.Routes++
	}

	carts := map[string]models.Cart{}
	for _, c := range f.Carts {
		driver, ok := users[c.Driver]
		if !ok || driver.Role != domain.RoleDriver {
			return sum, domain.ValidationError{Field: "driver", Msg: fmt.Sprintf("cart %s: %s is not a seeded driver", c.NumberPlate, c.Driver)}
		}
		route, ok := routes[c.Route]
		if !ok {
			return sum, domain.ValidationError{Field: "route", Msg: fmt.Sprintf("cart %s: unknown route %s", c.NumberPlate, c.Route)}
		}
		created, err := s.Store.CreateCart(ctx, models.Cart{NumberPlate: c.NumberPlate, DriverID: driver.ID, RouteID: route.ID, Capacity: c.Capacity})
		if err != nil {
			return sum, fmt.Errorf("cart %s: %w", c.NumberPlate, err)
		}
		carts[c.NumberPlate] = created
		sum.Carts++
	}

	for _, sc := range f.Schedules {
		cart, ok := carts[sc.Cart]
		if !ok {
			return sum, domain.ValidationError{Field: "cart", Msg: "unknown cart " + sc.Cart}
		}
		start, ok1 := utils.NormalizeClock(sc.StartTime)
		drop, ok2 := utils.NormalizeClock(sc.DropTime)
		if !ok1 || !ok2 {
			return sum, domain.ValidationError{Field: "time", Msg: fmt.Sprintf("schedule of %s on %s: times must be HH:MM[:SS]", sc.Cart, sc.TravelDate)}
		}
		seats := sc.Seats
		if len(seats) == 0 {
			seats = DefaultSeats(cart.Capacity)
		}
		if _, err := s.Store.CreateSchedule(ctx, models.Schedule{CartID: cart.ID, TravelDate: sc.TravelDate, StartTime: start, DropTime: drop}, seats); err != nil {
			return sum, fmt.Errorf("schedule of %s on %s: %w", sc.Cart, sc.TravelDate, err)
		}
		sum.Schedules++
	}

	log.Printf("[SEED] users=%d stops=%d routes=%d carts=%d schedules=%d", sum.Users, sum.Stops, sum.Routes, sum.Carts, sum.Schedules)
	return sum, nil
}

// DefaultSeats numbers seats 1..capacity.
func DefaultSeats(capacity int) []string {
	out := make([]string, 0, capacity)
	for i := 1; i <= capacity; i++ {
		out = append(out, strconv.Itoa(i))
	}
	return out
}
