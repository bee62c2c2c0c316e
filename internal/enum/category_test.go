package enum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategory_IsPrimary(t *testing.T) {
	for _, category := range PrimaryCategories() {
		assert.True(t, category.IsPrimary(), "%s must be primary", category)
	}

	for _, category := range []Category{
		CategoryNewsletter,
		CategoryPromotional,
		CategoryPersonal,
		CategoryBusiness,
		CategorySupport,
		CategoryUncategorized,
		Category(""),
		Category("garbage"),
	} {
		assert.False(t, category.IsPrimary(), "%s must not be primary", category)
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
	}{
		{"interested", CategoryInterested},
		{"Interested", CategoryInterested},
		{"  INTERESTED  ", CategoryInterested},
		{`"interested"`, CategoryInterested},
		{"interested.", CategoryInterested},
		{"meeting booked", CategoryMeetingBooked},
		{"meeting-booked", CategoryMeetingBooked},
		{"Not Interested", CategoryNotInterested},
		{"out of office", CategoryOutOfOffice},
		{"newsletter", CategoryNewsletter},
		{"something else entirely", CategoryUncategorized},
		{"", CategoryUncategorized},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeCategory(tt.input), "input %q", tt.input)
	}
}
