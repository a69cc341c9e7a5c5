package idgen

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/boddenberg/telecom-support-go/internal/domain"
)

func TestTickets_Format(t *testing.T) {
	g := &Tickets{now: func() time.Time { return time.UnixMilli(1700000000123) }}

	id := g.Next()
	assert.Regexp(t, regexp.MustCompile(`^TKT-1700000000123-[A-Z0-9]{5}$`), id)
}

func TestCustomerIDs_MatchExtractionPattern(t *testing.T) {
	g := NewCustomerIDs()
	for i := 0; i < 50; i++ {
		id := g.Next()
		assert.Equal(t, id, domain.CustomerIDPattern.FindString(id))
	}
}

func TestSequence_RepeatsLast(t *testing.T) {
	s := NewSequence("a", "b")
	assert.Equal(t, "a", s.Next())
	assert.Equal(t, "b", s.Next())
	assert.Equal(t, "b", s.Next())
	assert.Equal(t, "", NewSequence().Next())
}
