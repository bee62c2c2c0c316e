package enum

import "strings"

type Category string

// Primary categories: the only values the AI classification path may emit.
const (
	CategoryInterested    Category = "interested"
	CategoryMeetingBooked Category = "meeting_booked"
	CategoryNotInterested Category = "not_interested"
	CategorySpam          Category = "spam"
	CategoryOutOfOffice   Category = "out_of_office"
)

// Auxiliary categories: emitted only by the deterministic rule pass.
const (
	CategoryNewsletter    Category = "newsletter"
	CategoryPromotional   Category = "promotional"
	CategoryPersonal      Category = "personal"
	CategoryBusiness      Category = "business"
	CategorySupport       Category = "support"
	CategoryUncategorized Category = "uncategorized"
)

func (c Category) String() string {
	return string(c)
}

func (c Category) IsPrimary() bool {
	switch c {
	case CategoryInterested, CategoryMeetingBooked, CategoryNotInterested, CategorySpam, CategoryOutOfOffice:
		return true
	}
	return false
}

// PrimaryCategories lists the closed enumeration in priority order
func PrimaryCategories() []Category {
	return []Category{
		CategoryInterested,
		CategoryMeetingBooked,
		CategoryNotInterested,
		CategorySpam,
		CategoryOutOfOffice,
	}
}

// NormalizeCategory maps a raw provider string onto a Category, stripping
// case, surrounding punctuation and separator variants. Returns
// CategoryUncategorized when nothing matches.
func NormalizeCategory(raw string) Category {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.Trim(cleaned, `"'.!`)
	cleaned = strings.NewReplacer(" ", "_", "-", "_").Replace(cleaned)

	switch Category(cleaned) {
	case CategoryInterested, CategoryMeetingBooked, CategoryNotInterested, CategorySpam, CategoryOutOfOffice,
		CategoryNewsletter, CategoryPromotional, CategoryPersonal, CategoryBusiness, CategorySupport:
		return Category(cleaned)
	}
	return CategoryUncategorized
}
