package cache

import (
	"strings"
	"time"
)

// Namespace prefixes every key owned by the cache.
const Namespace = "ipn_"

// Dataset describes one logical family of cached keys.
type Dataset struct {
	Name   string
	Prefix string
	TTL    time.Duration
}

var (
	Schools = Dataset{
		Name:   "ESCUELAS",
		Prefix: Namespace + "escuelas",
		TTL:    7 * 24 * time.Hour,
	}
	Majors = Dataset{
		Name:   "CARRERAS",
		Prefix: Namespace + "carreras",
		TTL:    7 * 24 * time.Hour,
	}
	PopularProfessors = Dataset{
		Name:   "PROFESORES_POPULARES",
		Prefix: Namespace + "profesores_populares",
		TTL:    time.Hour,
	}
	SearchResults = Dataset{
		Name:   "SEARCH_RESULTS",
		Prefix: Namespace + "search_",
		TTL:    5 * time.Minute,
	}
	ProfessorProfile = Dataset{
		Name:   "PROFESOR_PROFILE",
		Prefix: Namespace + "profesor_",
		TTL:    10 * time.Minute,
	}
)

// Datasets lists every known dataset. Order matters for classification.
var Datasets = []Dataset{Schools, Majors, PopularProfessors, SearchResults, ProfessorProfile}

// OtherDataset names keys under the namespace that match no dataset.
const OtherDataset = "OTHER"

// SchoolsKey is the single key holding the school list.
func SchoolsKey() string { return Schools.Prefix }

// MajorsKey holds the majors offered by one school.
func MajorsKey(schoolID string) string { return Majors.Prefix + schoolID }

// PopularKey is the single key holding the popular professor ranking.
func PopularKey() string { return PopularProfessors.Prefix }

// SearchKey holds the results of one search query. Queries are case-insensitive.
func SearchKey(query string) string {
	return SearchResults.Prefix + strings.ToLower(query)
}

// ProfileKey holds one professor profile.
func ProfileKey(slug string) string { return ProfessorProfile.Prefix + slug }

// classify returns the dataset name of key.
func classify(key string) string {
	for _, d := range Datasets {
		if strings.HasPrefix(key, d.Prefix) {
			return d.Name
		}
	}
	return OtherDataset
}
