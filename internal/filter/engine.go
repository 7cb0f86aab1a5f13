// Package filter implements the wildcard rule compiler and matching engine.
package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"rss_queue/internal/model"
)

// ErrCompile is returned when a pattern cannot be turned into a matcher.
var ErrCompile = errors.New("compile filter")

var specials = strings.NewReplacer(
	`\`, `\\`,
	`^`, `\^`,
	`$`, `\$`,
	`.`, `\.`,
	`[`, `\[`,
	`]`, `\]`,
	`(`, `\(`,
	`)`, `\)`,
	`+`, `\+`,
	`?`, `\?`,
	`|`, `\|`,
	`{`, `\{`,
	`}`, `\}`,
	`*`, `.*`,
)

// Compile converts a wildcard pattern into a case-insensitive, unanchored
// regular expression. Every regex special is taken literally except '*',
// which matches any sequence.
func Compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + specials.Replace(pattern))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrCompile, pattern, err)
	}
	return re, nil
}

// ValidatePattern checks whether a wildcard pattern compiles.
func ValidatePattern(pattern string) error {
	_, err := Compile(pattern)
	return err
}

// Compiled is a rule paired with its matcher. A nil matcher never matches.
type Compiled struct {
	Rule model.FilterRule
	re   *regexp.Regexp
}

// Matches reports whether the rule's pattern occurs in title.
func (c Compiled) Matches(title string) bool {
	if c.re == nil {
		return false
	}
	return c.re.MatchString(title)
}

// CompileRules compiles rules in order. A rule whose pattern fails to
// compile is logged and kept as an inert filter.
func CompileRules(rules []model.FilterRule, log *slog.Logger) []Compiled {
	out := make([]Compiled, 0, len(rules))
	for _, r := range rules {
		re, err := Compile(r.Pattern)
		if err != nil {
			log.Error("could not compile filter", "rule", r.ID, "pattern", r.Pattern, "error", err)
		}
		out = append(out, Compiled{Rule: r, re: re})
	}
	return out
}

// Decision is the outcome of evaluating a title against the rules of a feed.
type Decision struct {
	Accepted       bool
	Rule           int // index of the deciding rule, -1 if none matched
	Category       string
	PostProcessing string
	Script         string
}

// Evaluate applies the rules in order; the first matching rule decides.
//
// An accepting rule's own category, post-processing and script win. A
// missing category falls back to the feed default. Post-processing and
// script fall back to the feed defaults only when the rule sets no category,
// since a category carries its own processing settings.
//
// Rejected and unmatched titles carry the feed defaults.
func Evaluate(rules []Compiled, title string, feed model.Feed) Decision {
	reject := Decision{
		Rule:           -1,
		Category:       feed.DefaultCategory,
		PostProcessing: feed.DefaultPostProcessing,
		Script:         feed.DefaultScript,
	}

	for i, c := range rules {
		if !c.Matches(title) {
			continue
		}
		switch c.Rule.Type {
		case model.RuleAccept:
			d := Decision{
				Accepted:       true,
				Rule:           i,
				Category:       feed.DefaultCategory,
				PostProcessing: c.Rule.PostProcessing,
				Script:         c.Rule.Script,
			}
			if c.Rule.Category != "" {
				d.Category = c.Rule.Category
			} else {
				if d.PostProcessing == "" {
					d.PostProcessing = feed.DefaultPostProcessing
				}
				if d.Script == "" {
					d.Script = feed.DefaultScript
				}
			}
			return d
		case model.RuleReject:
			reject.Rule = i
			return reject
		}
	}
	return reject
}
