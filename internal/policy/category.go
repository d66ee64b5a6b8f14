package policy

import (
	"strings"

	"github.com/GTDGit/event_marketplace_api/internal/models"
)

var contactOnlyCategories = map[string]struct{}{
	"farm":  {},
	"halls": {},
}

var contactOnlySubcategories = map[string]struct{}{
	"wedding-halls":    {},
	"venues":           {},
	"conference-halls": {},
	"funeral-halls":    {},
	"tents":            {},
}

// ContactOnly explains why a service can only be reached through a contact
// request. The zero value means the service is directly bookable.
type ContactOnly struct {
	ByCategory     bool `json:"byCategory"`
	BySubcategory  bool `json:"bySubcategory"`
	ByMissingPrice bool `json:"byMissingPrice"`
}

// Any reports whether any reason applies.
func (c ContactOnly) Any() bool {
	return c.ByCategory || c.BySubcategory || c.ByMissingPrice
}

// Inherent reports whether the category or a subcategory forces contact-only,
// independent of pricing.
func (c ContactOnly) Inherent() bool {
	return c.ByCategory || c.BySubcategory
}

// Classify is the single source of truth for contact-only decisions.
func Classify(s *models.Service) ContactOnly {
	if s == nil {
		return ContactOnly{}
	}
	return ContactOnly{
		ByCategory:     IsContactOnlyCategory(s.Category),
		BySubcategory:  hasContactOnlySubcategory(s.Subcategories),
		ByMissingPrice: PriceMissing(s),
	}
}

// IsContactOnlyCategory reports whether category is reachable only by contact request.
func IsContactOnlyCategory(category string) bool {
	_, ok := contactOnlyCategories[normalize(category)]
	return ok
}

func hasContactOnlySubcategory(subs []string) bool {
	for _, s := range subs {
		if _, ok := contactOnlySubcategories[normalize(s)]; ok {
			return true
		}
	}
	return false
}

// PriceMissing is true when no usable published price exists.
func PriceMissing(s *models.Service) bool {
	return s.Price == nil || s.PriceType == models.PriceNotProvided || !s.PriceAvailable
}

// ShouldEnforceLimit reports whether bookings of s count toward the
// booking limit. Contact-only categories are metered by contacts instead.
func ShouldEnforceLimit(s *models.Service) bool {
	return !Classify(s).ByCategory
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
