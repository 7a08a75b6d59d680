package clientimport

import (
	"strings"
	"unicode"

	"apartment-locator/internal/fields"
)

// aliases maps normalized spreadsheet headings to client fields.
// Canonical field names match without an entry here.
var aliases = map[string]fields.ClientField{
	"first":            fields.ClientFirstName,
	"firstname":        fields.ClientFirstName,
	"given_name":       fields.ClientFirstName,
	"last":             fields.ClientLastName,
	"lastname":         fields.ClientLastName,
	"surname":          fields.ClientLastName,
	"family_name":      fields.ClientLastName,
	"e_mail":           fields.ClientEmail,
	"email_address":    fields.ClientEmail,
	"mail":             fields.ClientEmail,
	"phone_number":     fields.ClientPhone,
	"mobile":           fields.ClientPhone,
	"cell":             fields.ClientPhone,
	"cell_phone":       fields.ClientPhone,
	"telephone":        fields.ClientPhone,
	"comments":         fields.ClientNotes,
	"note":             fields.ClientNotes,
	"min_budget":       fields.ClientBudgetMin,
	"budget_from":      fields.ClientBudgetMin,
	"max_budget":       fields.ClientBudgetMax,
	"budget":           fields.ClientBudgetMax,
	"budget_to":        fields.ClientBudgetMax,
	"max_rent":         fields.ClientBudgetMax,
	"beds":             fields.ClientBedrooms,
	"bedroom":          fields.ClientBedrooms,
	"br":               fields.ClientBedrooms,
	"neighborhood":     fields.ClientNeighborhoods,
	"areas":            fields.ClientNeighborhoods,
	"preferred_areas":  fields.ClientNeighborhoods,
	"move_in":          fields.ClientMoveInDate,
	"movein":           fields.ClientMoveInDate,
	"move_date":        fields.ClientMoveInDate,
	"pets":             fields.ClientHasPets,
	"pet":              fields.ClientHasPets,
	"parking":          fields.ClientNeedsParking,
	"laundry":          fields.ClientWantsInUnitLaundry,
	"in_unit_laundry":  fields.ClientWantsInUnitLaundry,
	"washer_dryer":     fields.ClientWantsInUnitLaundry,
	"work_address":     fields.ClientCommuteAddress,
	"commute_to":       fields.ClientCommuteAddress,
	"office":           fields.ClientCommuteAddress,
	"commute_time":     fields.ClientMaxCommuteMinutes,
	"max_commute":      fields.ClientMaxCommuteMinutes,
	"commute_minutes":  fields.ClientMaxCommuteMinutes,
	"commute":          fields.ClientCommuteMode,
	"transport":        fields.ClientCommuteMode,
	"transportation":   fields.ClientCommuteMode,
	"commute_method":   fields.ClientCommuteMode,
}

// minFuzzyLength keeps short headings like "id" from fuzzy-matching anything
const minFuzzyLength = 4

// normalize lowercases a heading and collapses every run of
// non-alphanumeric characters into a single underscore.
// Example: " E-Mail Address " -> "e_mail_address"
func normalize(heading string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(heading)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// exactMatch resolves a normalized heading by field name or alias
func exactMatch(norm string) (fields.ClientField, bool) {
	if f, err := fields.Parse(fields.TargetClient, norm); err == nil {
		return f.(fields.ClientField), true
	}
	f, ok := aliases[norm]
	return f, ok
}

// fuzzyMatch returns the unclaimed field whose name or alias is closest to
// norm, provided the distance is within maxDistance and the best match is unique.
func fuzzyMatch(norm string, maxDistance int, claimed map[fields.ClientField]bool) (fields.ClientField, bool) {
	if maxDistance <= 0 || len(norm) < minFuzzyLength {
		return "", false
	}

	best := maxDistance + 1
	var match fields.ClientField
	ambiguous := false

	consider := func(candidate string, f fields.ClientField) {
		if claimed[f] {
			return
		}
		d := levenshtein(norm, candidate)
		switch {
		case d < best:
			best, match, ambiguous = d, f, false
		case d == best && f != match:
			ambiguous = true
		}
	}

	for _, f := range fields.FieldsFor(fields.TargetClient) {
		consider(f.Name(), f.(fields.ClientField))
	}
	for alias, f := range aliases {
		consider(alias, f)
	}

	if best > maxDistance || ambiguous {
		return "", false
	}
	return match, true
}

// MatchHeaders maps column indexes to client fields. Exact matches are
// claimed first so a typo never steals a column that is spelled correctly
// elsewhere. Headings that match nothing, or a field already claimed, are
// returned as unmatched.
func MatchHeaders(headings []string, maxDistance int) (map[int]fields.ClientField, []string) {
	columns := make(map[int]fields.ClientField, len(headings))
	claimed := make(map[fields.ClientField]bool, len(headings))
	norms := make([]string, len(headings))

	for i, h := range headings {
		norms[i] = normalize(h)
		if norms[i] == "" {
			continue
		}
		if f, ok := exactMatch(norms[i]); ok && !claimed[f] {
			columns[i] = f
			claimed[f] = true
		}
	}

	var unmatched []string
	for i, h := range headings {
		if _, ok := columns[i]; ok || norms[i] == "" {
			continue
		}
		if f, ok := fuzzyMatch(norms[i], maxDistance, claimed); ok {
			columns[i] = f
			claimed[f] = true
			continue
		}
		unmatched = append(unmatched, strings.TrimSpace(h))
	}
	return columns, unmatched
}

// levenshtein is the classic edit distance over runes
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
