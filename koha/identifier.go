package koha

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
)

var numeric = regexp.MustCompile(`^\d+$`)

// ParseID trims s and checks that it is a non empty run of digits, as
// biblionumbers and report ids are. It is called before any request is
// made.
func ParseID(s string) (string, error) {
	id := strings.TrimSpace(s)
	if !numeric.MatchString(id) {
		return id, apierr.New(apierr.InvalidIdentifier, "parse id", "invalid identifier "+strconv.Quote(s))
	}
	return id, nil
}
