// Package query builds composable, storage-interpretable predicates for card
// and transaction listings. Criteria are a tagged list (kind + value) rather
// than closures, so the repository layer decides how each kind maps onto SQL.
package query

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cardledger/internal/model"
)

// Kind discriminates criterion values.
type Kind int

const (
	// KindCardStatus matches cards with an exact status.
	KindCardStatus Kind = iota
	// KindCardOwnerEmail matches cards whose owner has an exact email.
	KindCardOwnerEmail
	// KindForCard scopes transactions to one card.
	KindForCard
	// KindTransactionType matches transactions with an exact type.
	KindTransactionType
	// KindOccurredOnOrAfter is the inclusive lower bound of a limit window.
	KindOccurredOnOrAfter
	// KindOccurredBefore is the exclusive upper bound of a limit window.
	KindOccurredBefore
	// KindOccurredAfter is the strictly-after bound of a user-facing filter.
	KindOccurredAfter
	// KindOccurredStrictlyBefore is the strictly-before bound of a user-facing filter.
	KindOccurredStrictlyBefore
	// KindOwnedBy restricts transactions to the cards owned by a user.
	KindOwnedBy
)

// Criterion is a single predicate. Criteria combine with logical AND.
type Criterion struct {
	Kind   Kind
	Status model.CardStatus
	Email  string
	CardID uuid.UUID
	Type   model.TransactionType
	Time   time.Time
	UserID uint
}

// CardStatusIs matches cards with the given status.
func CardStatusIs(status model.CardStatus) Criterion {
	return Criterion{Kind: KindCardStatus, Status: status}
}

// CardOwnerEmailIs matches cards owned by the user with the given email.
func CardOwnerEmailIs(email string) Criterion {
	return Criterion{Kind: KindCardOwnerEmail, Email: email}
}

// ForCard scopes transactions to the given card.
func ForCard(cardID uuid.UUID) Criterion {
	return Criterion{Kind: KindForCard, CardID: cardID}
}

// TypeIs matches transactions of the given type.
func TypeIs(t model.TransactionType) Criterion {
	return Criterion{Kind: KindTransactionType, Type: t}
}

// OccurredOnOrAfter matches transactions at or after t (window start, inclusive).
func OccurredOnOrAfter(t time.Time) Criterion {
	return Criterion{Kind: KindOccurredOnOrAfter, Time: t}
}

// OccurredBefore matches transactions strictly before t (window end, exclusive).
func OccurredBefore(t time.Time) Criterion {
	return Criterion{Kind: KindOccurredBefore, Time: t}
}

// OccurredAfter matches transactions strictly after t.
func OccurredAfter(t time.Time) Criterion {
	return Criterion{Kind: KindOccurredAfter, Time: t}
}

// OccurredStrictlyBefore matches transactions strictly before t.
func OccurredStrictlyBefore(t time.Time) Criterion {
	return Criterion{Kind: KindOccurredStrictlyBefore, Time: t}
}

// OwnedBy restricts transactions to those recorded against cards owned by the
// given user.
func OwnedBy(userID uint) Criterion {
	return Criterion{Kind: KindOwnedBy, UserID: userID}
}

// Scope interprets the criteria list into a gorm scope. Callers querying
// transactions with owner-scoped criteria must have joined the cards table;
// callers querying cards with email criteria must have joined users. The
// repositories add those joins unconditionally.
func Scope(criteria []Criterion) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, c := range criteria {
			switch c.Kind {
			case KindCardStatus:
				db = db.Where("cards.status = ?", c.Status)
			case KindCardOwnerEmail:
				db = db.Where("users.email = ?", c.Email)
			case KindForCard:
				db = db.Where("transactions.card_id = ?", c.CardID)
			case KindTransactionType:
				db = db.Where("transactions.type = ?", c.Type)
			case KindOccurredOnOrAfter:
				db = db.Where("transactions.occurred_at >= ?", c.Time)
			case KindOccurredBefore, KindOccurredStrictlyBefore:
				db = db.Where("transactions.occurred_at < ?", c.Time)
			case KindOccurredAfter:
				db = db.Where("transactions.occurred_at > ?", c.Time)
			case KindOwnedBy:
				db = db.Where("cards.user_id = ?", c.UserID)
			}
		}
		return db
	}
}
