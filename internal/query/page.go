package query

import (
	"strings"

	"gorm.io/gorm"

	"cardledger/internal/errors"
)

// DefaultPageSize is applied when a page request carries no size.
const DefaultPageSize = 10

// Page is a zero-based page request.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page request to sane values.
func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	return p
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	return p.Number * p.Size
}

// Sort is an ordered list of sort fields with a shared direction.
type Sort struct {
	Fields []string
	Desc   bool
}

// Sortable field allow-lists per entity. Keys are the external field names,
// values the qualified columns they map onto.
var (
	CardSortFields = map[string]string{
		"id":          "cards.id",
		"owner_email": "users.email",
		"status":      "cards.status",
	}
	TransactionSortFields = map[string]string{
		"id":     "transactions.id",
		"type":   "transactions.type",
		"amount": "transactions.amount",
	}
)

// OrderClauses validates the sort fields against the allow-list and returns
// the ORDER BY clauses. Any field outside the allow-list is rejected before
// querying.
func (s Sort) OrderClauses(allowed map[string]string) ([]string, error) {
	direction := "ASC"
	if s.Desc {
		direction = "DESC"
	}

	clauses := make([]string, 0, len(s.Fields))
	for _, field := range s.Fields {
		column, ok := allowed[strings.ToLower(strings.TrimSpace(field))]
		if !ok {
			return nil, errors.ErrInvalidSortField
		}
		clauses = append(clauses, column+" "+direction)
	}
	return clauses, nil
}

// Paginate builds a gorm scope applying the sort clauses and page window.
func Paginate(page Page, clauses []string) func(*gorm.DB) *gorm.DB {
	page = page.Normalize()
	return func(db *gorm.DB) *gorm.DB {
		for _, clause := range clauses {
			db = db.Order(clause)
		}
		return db.Offset(page.Offset()).Limit(page.Size)
	}
}
