package filter

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rss_queue/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		title   string
		want    bool
	}{
		{name: "wildcard in the middle", pattern: "foo*bar", title: "foo123bar", want: true},
		{name: "case insensitive", pattern: "foo*bar", title: "fooBAR", want: true},
		{name: "wildcard needs both ends", pattern: "foo*bar", title: "fobar", want: false},
		{name: "substring match", pattern: "release", title: "The Big Release 2024", want: true},
		{name: "dot is literal", pattern: "a.b", title: "xx a.b yy", want: true},
		{name: "dot does not match any char", pattern: "a.b", title: "aXb", want: false},
		{name: "brackets are literal", pattern: "[HD]", title: "Show [HD]", want: true},
		{name: "brackets are not a class", pattern: "[HD]", title: "Show H", want: false},
		{name: "plus and question mark literal", pattern: "c++?", title: "learn c++? now", want: true},
		{name: "pipe is literal", pattern: "a|b", title: "a", want: false},
		{name: "braces literal", pattern: "x{2}", title: "x{2}", want: true},
		{name: "anchors literal", pattern: "^start$", title: "^start$", want: true},
		{name: "anchor is not an anchor", pattern: "^start", title: "start", want: false},
		{name: "backslash literal", pattern: `a\d`, title: `a\d`, want: true},
		{name: "backslash not a class", pattern: `a\d`, title: "a1", want: false},
		{name: "star alone matches anything", pattern: "*", title: "whatever", want: true},
		{name: "parentheses literal", pattern: "(2019)", title: "Movie (2019)", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := Compile(tt.pattern)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := re.MatchString(tt.title)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("match %q against %q mismatch (-want +got):\n%s", tt.pattern, tt.title, diff)
			}
		})
	}
}

func TestCompileInvalidPattern(t *testing.T) {
	_, err := Compile("bad\xffpattern")
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("expected ErrCompile, got %v", err)
	}
	if err := ValidatePattern("bad\xffpattern"); err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if err := ValidatePattern("good*pattern"); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestCompileRulesKeepsInertFilter(t *testing.T) {
	rules := []model.FilterRule{
		{ID: 1, Type: model.RuleAccept, Pattern: "bad\xff"},
		{ID: 2, Type: model.RuleAccept, Pattern: "*"},
	}
	compiled := CompileRules(rules, discardLogger())
	if diff := cmp.Diff(2, len(compiled)); diff != "" {
		t.Fatalf("compiled count mismatch (-want +got):\n%s", diff)
	}
	if compiled[0].Matches("bad\xff") {
		t.Error("inert filter must never match")
	}

	d := Evaluate(compiled, "anything", model.Feed{})
	if diff := cmp.Diff(1, d.Rule); diff != "" {
		t.Errorf("deciding rule mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate(t *testing.T) {
	feed := model.Feed{
		Name:                  "tv",
		DefaultCategory:       "tv",
		DefaultPostProcessing: "3",
		DefaultScript:         "notify.sh",
	}
	noCatFeed := model.Feed{
		Name:                  "plain",
		DefaultPostProcessing: "1",
		DefaultScript:         "default.sh",
	}

	tests := []struct {
		name  string
		feed  model.Feed
		rules []model.FilterRule
		title string
		want  Decision
	}{
		{
			name:  "no rules rejects with defaults",
			feed:  feed,
			title: "anything",
			want:  Decision{Rule: -1, Category: "tv", PostProcessing: "3", Script: "notify.sh"},
		},
		{
			name: "reject before accept",
			feed: feed,
			rules: []model.FilterRule{
				{Type: model.RuleReject, Pattern: "bad*"},
				{Type: model.RuleAccept, Pattern: "*"},
			},
			title: "bad release",
			want:  Decision{Rule: 0, Category: "tv", PostProcessing: "3", Script: "notify.sh"},
		},
		{
			name: "accept after non-matching reject uses feed defaults",
			feed: feed,
			rules: []model.FilterRule{
				{Type: model.RuleReject, Pattern: "bad*"},
				{Type: model.RuleAccept, Pattern: "*"},
			},
			title: "good release",
			want:  Decision{Accepted: true, Rule: 1, Category: "tv", PostProcessing: "3", Script: "notify.sh"},
		},
		{
			name: "first match wins over later reject",
			feed: feed,
			rules: []model.FilterRule{
				{Type: model.RuleAccept, Pattern: "release"},
				{Type: model.RuleReject, Pattern: "*"},
			},
			title: "good release",
			want:  Decision{Accepted: true, Rule: 0, Category: "tv", PostProcessing: "3", Script: "notify.sh"},
		},
		{
			name: "rule category suppresses default pp and script",
			feed: feed,
			rules: []model.FilterRule{
				{Type: model.RuleAccept, Pattern: "*", Category: "movies"},
			},
			title: "some movie",
			want:  Decision{Accepted: true, Rule: 0, Category: "movies"},
		},
		{
			name: "rule category with own pp keeps it",
			feed: feed,
			rules: []model.FilterRule{
				{Type: model.RuleAccept, Pattern: "*", Category: "movies", PostProcessing: "2"},
			},
			title: "some movie",
			want:  Decision{Accepted: true, Rule: 0, Category: "movies", PostProcessing: "2"},
		},
		{
			name: "rule script without category inherits default pp",
			feed: feed,
			rules: []model.FilterRule{
				{Type: model.RuleAccept, Pattern: "*", Script: "custom.sh"},
			},
			title: "x",
			want:  Decision{Accepted: true, Rule: 0, Category: "tv", PostProcessing: "3", Script: "custom.sh"},
		},
		{
			name: "feed without default category",
			feed: noCatFeed,
			rules: []model.FilterRule{
				{Type: model.RuleAccept, Pattern: "*"},
			},
			title: "x",
			want:  Decision{Accepted: true, Rule: 0, PostProcessing: "1", Script: "default.sh"},
		},
		{
			name: "no rule matches",
			feed: feed,
			rules: []model.FilterRule{
				{Type: model.RuleAccept, Pattern: "linux"},
			},
			title: "windows iso",
			want:  Decision{Rule: -1, Category: "tv", PostProcessing: "3", Script: "notify.sh"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			compiled := CompileRules(tt.rules, discardLogger())
			got := Evaluate(compiled, tt.title, tt.feed)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
