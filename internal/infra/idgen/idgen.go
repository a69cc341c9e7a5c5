// Package idgen mints ticket and customer identifiers.
package idgen

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	upperAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	upper      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits     = "0123456789"
)

// Tickets yields TKT-<unix millis>-<5 uppercase alnum>.
type Tickets struct {
	now func() time.Time
}

// NewTickets returns a ticket id generator using the wall clock.
func NewTickets() *Tickets {
	return &Tickets{now: time.Now}
}

// Next returns a fresh ticket id.
func (g *Tickets) Next() string {
	return fmt.Sprintf("TKT-%d-%s", g.now().UnixMilli(), pick(upperAlnum, 5))
}

// CustomerIDs yields DDDD-LLLLL identifiers. Uniqueness against the
// collection is checked by the caller.
type CustomerIDs struct{}

// NewCustomerIDs returns a customer id generator.
func NewCustomerIDs() *CustomerIDs { return &CustomerIDs{} }

// Next returns a candidate customer id.
func (CustomerIDs) Next() string {
	return pick(digits, 4) + "-" + pick(upper, 5)
}

// Sessions yields random session ids.
type Sessions struct{}

// Next returns a new session id.
func (Sessions) Next() string { return uuid.NewString() }

// Sequence replays fixed ids, then repeats the last one. Used in tests.
type Sequence struct {
	mu  sync.Mutex
	ids []string
	pos int
}

// NewSequence returns a generator replaying ids in order.
func NewSequence(ids ...string) *Sequence {
	return &Sequence{ids: ids}
}

// Next returns the next id of the sequence.
func (s *Sequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return ""
	}
	id := s.ids[s.pos]
	if s.pos < len(s.ids)-1 {
		s.pos++
	}
	return id
}

func pick(alphabet string, n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}
