// Package catalog defines the detection categories and the reference databases
// screened under each of them. A Catalog is built once before a run and never
// mutated afterwards.
package catalog

import (
	"fmt"
	"regexp"
	"strings"
)

// Category is a screening purpose that partitions the database catalog.
type Category string

const (
	// AMR covers antimicrobial-resistance gene databases.
	AMR Category = "AMR"

	// Virulence covers virulence-factor databases.
	Virulence Category = "Virulence"

	// Plasmid covers plasmid replicon databases.
	Plasmid Category = "Plasmid"
)

// Categories lists every known category in canonical order.
var Categories = []Category{AMR, Virulence, Plasmid}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Entry is one category with its ordered database names.
type Entry struct {
	Category  Category `yaml:"category" json:"category"`
	Databases []string `yaml:"databases" json:"databases"`
}

// Pair identifies one (category, database) combination.
type Pair struct {
	Category Category
	Database string
}

func (p Pair) String() string {
	return string(p.Category) + "/" + p.Database
}

// ValidationError describes a catalog entry that cannot be used.
type ValidationError struct {
	Category Category
	Database string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Database == "" {
		return fmt.Sprintf("catalog: category %q: %s", e.Category, e.Reason)
	}
	return fmt.Sprintf("catalog: %s/%s: %s", e.Category, e.Database, e.Reason)
}

// Database names become directory names, so they are restricted to a
// filesystem-safe alphabet.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.+-]*$`)

// reservedSuffix is the summary file naming used by the output layout.
const reservedSuffix = "_combined_summary.txt"

// Catalog is an immutable ordered mapping of category to database names.
type Catalog struct {
	entries []Entry
}

// New validates and copies entries into a Catalog.
func New(entries ...Entry) (*Catalog, error) {
	seen := make(map[Category]bool, len(entries))
	copied := make([]Entry, 0, len(entries))

	for _, e := range entries {
		if !e.Category.Valid() {
			return nil, &ValidationError{Category: e.Category, Reason: fmt.Sprintf("unknown category (known: %v)", Categories)}
		}
		if seen[e.Category] {
			return nil, &ValidationError{Category: e.Category, Reason: "listed more than once"}
		}
		seen[e.Category] = true

		dbSeen := make(map[string]bool, len(e.Databases))
		dbs := make([]string, 0, len(e.Databases))
		for _, db := range e.Databases {
			if err := validateName(e.Category, db); err != nil {
				return nil, err
			}
			if dbSeen[db] {
				return nil, &ValidationError{Category: e.Category, Database: db, Reason: "duplicate database in category"}
			}
			dbSeen[db] = true
			dbs = append(dbs, db)
		}
		copied = append(copied, Entry{Category: e.Category, Databases: dbs})
	}

	return &Catalog{entries: copied}, nil
}

func validateName(c Category, db string) error {
	if db == "" {
		return &ValidationError{Category: c, Reason: "empty database name"}
	}
	if !namePattern.MatchString(db) {
		return &ValidationError{Category: c, Database: db, Reason: "name must match " + namePattern.String()}
	}
	if strings.HasSuffix(db, reservedSuffix) {
		return &ValidationError{Category: c, Database: db, Reason: "name collides with summary file naming"}
	}
	return nil
}

// DefaultEntries returns the stock abricate screening catalog.
func DefaultEntries() []Entry {
	return []Entry{
		{Category: AMR, Databases: []string{"ncbi", "card", "resfinder", "argannot", "megares"}},
		{Category: Virulence, Databases: []string{"vfdb", "ecoli_vf"}},
		{Category: Plasmid, Databases: []string{"plasmidfinder"}},
	}
}

// Default returns the stock catalog.
func Default() *Catalog {
	c, err := New(DefaultEntries()...)
	if err != nil {
		panic(err)
	}
	return c
}

// Entries returns a deep copy of the catalog entries in order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = Entry{Category: e.Category, Databases: append([]string(nil), e.Databases...)}
	}
	return out
}

// Databases returns every database name once, in first-seen order.
func (c *Catalog) Databases() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range c.entries {
		for _, db := range e.Databases {
			if !seen[db] {
				seen[db] = true
				out = append(out, db)
			}
		}
	}
	return out
}

// Pairs returns every (category, database) pair in catalog order. A database
// listed under two categories yields two pairs.
func (c *Catalog) Pairs() []Pair {
	var out []Pair
	for _, e := range c.entries {
		for _, db := range e.Databases {
			out = append(out, Pair{Category: e.Category, Database: db})
		}
	}
	return out
}

// Len returns the number of (category, database) pairs.
func (c *Catalog) Len() int {
	n := 0
	for _, e := range c.entries {
		n += len(e.Databases)
	}
	return n
}
