// Package quality scores merged records for completeness and validity.
// Score and Issues are pure functions over the record and the critical-field
// table, so audits can call them outside the pipeline against any snapshot.
package quality

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"meridian/internal/shared/policy"
)

// patternCache keeps one compiled regexp per critical-field pattern so scoring
// a batch does not recompile the same expression for every record.
var patternCache sync.Map

// MaxScore caps the data quality score.
const MaxScore = 100

// Score sums the weight of every critical field that is present and passes its
// validator, capped at 100. Issues come back in critical-field declaration
// order: `missing:<field>` when the value is absent or blank,
// `invalid:<field>` when present but failing the validator.
func Score(attributes map[string]string, critical []policy.CriticalField) (int, []string) {
	score := 0
	var issues []string
	for _, field := range critical {
		value := strings.TrimSpace(attributes[field.Field])
		if value == "" {
			issues = append(issues, "missing:"+field.Field)
			continue
		}
		if !validate(value, field) {
			issues = append(issues, "invalid:"+field.Field)
			continue
		}
		score += field.Weight
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score, issues
}

func validate(value string, field policy.CriticalField) bool {
	if field.Pattern != "" {
		re, ok := compiledPattern(field.Pattern)
		if !ok {
			return false
		}
		return re.MatchString(value)
	}
	if field.Min != nil || field.Max != nil {
		number, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return false
		}
		if field.Min != nil && number < *field.Min {
			return false
		}
		if field.Max != nil && number > *field.Max {
			return false
		}
		return true
	}
	if len(field.OneOf) > 0 {
		for _, allowed := range field.OneOf {
			if strings.EqualFold(value, allowed) {
				return true
			}
		}
		return false
	}
	return true
}

// compiledPattern returns the cached regexp for pattern, compiling it on first
// use. An uncompilable pattern caches as nil so every value fails validation
// instead of passing unchecked.
func compiledPattern(pattern string) (*regexp.Regexp, bool) {
	if cached, ok := patternCache.Load(pattern); ok {
		re, valid := cached.(*regexp.Regexp)
		return re, valid && re != nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		patternCache.Store(pattern, (*regexp.Regexp)(nil))
		return nil, false
	}
	patternCache.Store(pattern, re)
	return re, true
}
