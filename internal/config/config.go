// Package config loads the world definition and the server environment.
// The world (goods, locations, events, property types) lives in YAML so
// balance passes never require a recompile; server plumbing (port, database)
// comes from the environment, optionally via a .env file.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/davigarmo/MercaderErrante/server/internal/property"
	"github.com/davigarmo/MercaderErrante/server/internal/scheduler"
)

// ListingDef seeds one market listing.
type ListingDef struct {
	Item      string `yaml:"item"`
	BasePrice int    `yaml:"base_price"`
	Stock     int    `yaml:"stock"`
}

// LocationDef seeds one trading location.
type LocationDef struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Type     string       `yaml:"type"` // village|town|city
	Listings []ListingDef `yaml:"listings"`
}

// RouteDef connects two locations. Routes are bidirectional.
type RouteDef struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Minutes int64  `yaml:"minutes"` // base travel time in sim-minutes
}

// StartingProperty seeds a property the merchant owns at campaign start.
type StartingProperty struct {
	ID       string `yaml:"id"`
	Type     string `yaml:"type"`
	Location string `yaml:"location"`
}

// World is the full immutable world definition.
type World struct {
	Name          string `yaml:"name"`
	StartLocation string `yaml:"start_location"`
	StartGold     int    `yaml:"start_gold"`

	Events             []scheduler.EventDef  `yaml:"events"`
	Locations          []LocationDef         `yaml:"locations"`
	Routes             []RouteDef            `yaml:"routes"`
	PropertyTypes      []property.TypeDef    `yaml:"property_types"`
	Upgrades           []property.UpgradeDef `yaml:"upgrades"`
	StartingProperties []StartingProperty    `yaml:"starting_properties"`
}

// LoadWorld reads and validates a world definition from a YAML file.
func LoadWorld(path string) (*World, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read world file: %w", err)
	}
	var w World
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parse world file: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks the cross-references a broken world file usually gets wrong.
func (w *World) Validate() error {
	if len(w.Locations) == 0 {
		return fmt.Errorf("world %q has no locations", w.Name)
	}
	locs := make(map[string]bool, len(w.Locations))
	for _, l := range w.Locations {
		locs[l.ID] = true
	}
	if !locs[w.StartLocation] {
		return fmt.Errorf("start location %q is not defined", w.StartLocation)
	}
	for _, r := range w.Routes {
		if !locs[r.From] || !locs[r.To] {
			return fmt.Errorf("route %s-%s references an unknown location", r.From, r.To)
		}
	}
	types := make(map[string]bool, len(w.PropertyTypes))
	for _, t := range w.PropertyTypes {
		types[t.ID] = true
	}
	for _, t := range w.PropertyTypes {
		if t.NextTier != "" && !types[t.NextTier] {
			return fmt.Errorf("property type %q names unknown next tier %q", t.ID, t.NextTier)
		}
	}
	for _, p := range w.StartingProperties {
		if !types[p.Type] {
			return fmt.Errorf("starting property %q has unknown type %q", p.ID, p.Type)
		}
		if !locs[p.Location] {
			return fmt.Errorf("starting property %q sits in unknown location %q", p.ID, p.Location)
		}
	}
	return nil
}

// Env holds the server-level settings read from the environment.
type Env struct {
	Port      string
	DBDialect string // sqlite|postgres|none
	DBPath    string // sqlite file path
	DBDSN     string // postgres DSN
	WorldPath string // optional YAML world override
}

// LoadEnv reads the environment, honoring a .env file when present.
func LoadEnv() Env {
	_ = godotenv.Load() // Missing .env is the normal case

	return Env{
		Port:      getenv("MERCADER_PORT", "8080"),
		DBDialect: getenv("DB_DIALECT", "sqlite"),
		DBPath:    getenv("DB_SQLITE_PATH", "mercader.db"),
		DBDSN:     getenv("DB_POSTGRES_DSN", os.Getenv("DATABASE_URL")),
		WorldPath: os.Getenv("WORLD_PATH"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
