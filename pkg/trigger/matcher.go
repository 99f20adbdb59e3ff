// Package trigger selects which rule fires for an inbound message.
package trigger

import (
	"sort"

	"github.com/zapllo/zaptick-sub010/pkg/models"
)

// Matcher evaluates inbound message text against a prioritized rule set.
// It is a pure function over its inputs: no store access, no side effects.
type Matcher struct{}

// NewMatcher creates a trigger matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match returns the single winning rule for the text, or nil when nothing
// matches. Candidates are tried in descending priority; ties go to the most
// recently updated rule, then to the higher rule ID, so the result never
// depends on the input slice order. The first candidate with any matching
// phrase wins; matches are not aggregated.
func (m *Matcher) Match(text string, candidates []models.TriggerRule) *models.TriggerRule {
	if len(candidates) == 0 {
		return nil
	}

	ordered := make([]models.TriggerRule, len(candidates))
	copy(ordered, candidates)

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}

		if !ordered[i].UpdatedAt.Equal(ordered[j].UpdatedAt) {
			return ordered[i].UpdatedAt.After(ordered[j].UpdatedAt)
		}

		return ordered[i].ID > ordered[j].ID
	})

	for i := range ordered {
		if ordered[i].Matches(text) {
			rule := ordered[i]

			return &rule
		}
	}

	return nil
}
