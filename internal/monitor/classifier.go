package monitor

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charlie0129/activity-monitor-go/internal/models"
)

// ErrInvalidRules is wrapped by rule-set validation failures. The previously
// active rule set stays in force when an update is rejected.
var ErrInvalidRules = errors.New("invalid rule set")

// Score weights per category.
const (
	weightProductive   = 1.0
	weightNeutral      = 0.5
	weightUnproductive = 0.2
	weightBlocked      = 0.0
)

// Classifier categorizes observed apps and domains into productivity buckets
// and keeps running stats. Classification of already-accumulated time is not
// recomputed when the rules change.
type Classifier struct {
	mu sync.Mutex

	clock Clock
	emit  func(models.ActivityEvent)

	rules models.RuleSet
	stats models.ProductivityStats

	// weighted sum maintained incrementally so the score needs no rescan
	weightedSeconds float64
}

// NewClassifier builds a classifier with the given initial rule set.
func NewClassifier(clock Clock, rules models.RuleSet, emit func(models.ActivityEvent)) *Classifier {
	return &Classifier{clock: clock, rules: rules, emit: emit}
}

// ValidateRules rejects malformed rule sets: blank patterns are configuration
// mistakes that would otherwise match everything.
func ValidateRules(rs *models.RuleSet) error {
	lists := map[string][]string{
		"productive_apps":      rs.ProductiveApps,
		"neutral_apps":         rs.NeutralApps,
		"unproductive_apps":    rs.UnproductiveApps,
		"blocked_apps":         rs.BlockedApps,
		"productive_domains":   rs.ProductiveDomains,
		"neutral_domains":      rs.NeutralDomains,
		"unproductive_domains": rs.UnproductiveDomains,
		"blocked_domains":      rs.BlockedDomains,
	}
	for name, patterns := range lists {
		for i, p := range patterns {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("%w: %s[%d] is blank", ErrInvalidRules, name, i)
			}
		}
	}
	return nil
}

// UpdateRules replaces the rule set, fully or partially: a nil list keeps the
// current one, an empty non-nil list clears it. On validation failure the
// previous rule set remains in force.
func (c *Classifier) UpdateRules(rs *models.RuleSet) error {
	if err := ValidateRules(rs); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	merge := func(dst *[]string, src []string) {
		if src != nil {
			*dst = src
		}
	}
	merge(&c.rules.ProductiveApps, rs.ProductiveApps)
	merge(&c.rules.NeutralApps, rs.NeutralApps)
	merge(&c.rules.UnproductiveApps, rs.UnproductiveApps)
	merge(&c.rules.BlockedApps, rs.BlockedApps)
	merge(&c.rules.ProductiveDomains, rs.ProductiveDomains)
	merge(&c.rules.NeutralDomains, rs.NeutralDomains)
	merge(&c.rules.UnproductiveDomains, rs.UnproductiveDomains)
	merge(&c.rules.BlockedDomains, rs.BlockedDomains)
	return nil
}

// Rules returns a copy of the active rule set. The slices are copied too, so
// mutating the result never touches the live rules.
func (c *Classifier) Rules() models.RuleSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.RuleSet{
		ProductiveApps:      clonePatterns(c.rules.ProductiveApps),
		NeutralApps:         clonePatterns(c.rules.NeutralApps),
		UnproductiveApps:    clonePatterns(c.rules.UnproductiveApps),
		BlockedApps:         clonePatterns(c.rules.BlockedApps),
		ProductiveDomains:   clonePatterns(c.rules.ProductiveDomains),
		NeutralDomains:      clonePatterns(c.rules.NeutralDomains),
		UnproductiveDomains: clonePatterns(c.rules.UnproductiveDomains),
		BlockedDomains:      clonePatterns(c.rules.BlockedDomains),
	}
}

func clonePatterns(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

// Classify categorizes one observation. Either argument may be empty; when
// both an app match and a domain match exist, precedence is
// blocked > productive > unproductive > neutral. Unmatched observations are
// neutral.
func (c *Classifier) Classify(app, domain string) models.Category {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.classifyLocked(app, domain)
}

func (c *Classifier) classifyLocked(app, domain string) models.Category {
	matched := func(patterns []string, name string) bool {
		return name != "" && matchAny(patterns, name)
	}

	switch {
	case matched(c.rules.BlockedApps, app) || matched(c.rules.BlockedDomains, domain):
		return models.CategoryBlocked
	case matched(c.rules.ProductiveApps, app) || matched(c.rules.ProductiveDomains, domain):
		return models.CategoryProductive
	case matched(c.rules.UnproductiveApps, app) || matched(c.rules.UnproductiveDomains, domain):
		return models.CategoryUnproductive
	default:
		return models.CategoryNeutral
	}
}

// matchAny reports whether name matches any pattern: case-insensitive
// substring containment in either direction.
func matchAny(patterns []string, name string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		pl := strings.ToLower(p)
		if strings.Contains(lower, pl) || strings.Contains(pl, lower) {
			return true
		}
	}
	return false
}

// Record classifies one time slice and folds it into the running stats,
// emitting a productivity event with the updated aggregate.
func (c *Classifier) Record(app, domain string, seconds float64) {
	if seconds <= 0 {
		return
	}

	c.mu.Lock()
	cat := c.classifyLocked(app, domain)

	switch cat {
	case models.CategoryProductive:
		c.stats.ProductiveSeconds += seconds
		c.weightedSeconds += seconds * weightProductive
	case models.CategoryNeutral:
		c.stats.NeutralSeconds += seconds
		c.weightedSeconds += seconds * weightNeutral
	case models.CategoryUnproductive:
		c.stats.UnproductiveSeconds += seconds
		c.weightedSeconds += seconds * weightUnproductive
	case models.CategoryBlocked:
		c.stats.BlockedSeconds += seconds
		c.weightedSeconds += seconds * weightBlocked
	}
	c.stats.TotalSeconds += seconds
	c.stats.Score = int(math.Round(100 * c.weightedSeconds / c.stats.TotalSeconds))

	snapshot := c.stats
	ev := newEvent(models.EventProductivity, c.clock.Now())
	ev.App = app
	ev.Domain = domain
	ev.Category = cat
	ev.Score = snapshot.Score
	ev.Stats = &snapshot
	emit := c.emit
	c.mu.Unlock()

	if emit != nil {
		emit(ev)
	}
}

// Stats returns a copy of the running stats.
func (c *Classifier) Stats() models.ProductivityStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Reset zeroes the running stats. The rule set is untouched.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = models.ProductivityStats{}
	c.weightedSeconds = 0
}
