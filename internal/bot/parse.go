package bot

import (
	"fmt"
	"strconv"
	"strings"

	"rss_queue/internal/model"
)

// Overrides are the optional -c/-p/-s parameters of a command.
type Overrides struct {
	Category       string
	PostProcessing string
	Script         string
}

// FeedArgs holds the parsed arguments of /addfeed.
type FeedArgs struct {
	Name string
	URI  string
	Overrides
}

// RuleArgs holds the parsed arguments of /accept and /reject.
type RuleArgs struct {
	FeedName string
	Pattern  string
	Overrides
}

// parseOverrides consumes leading "-c cat", "-p pp" and "-s script" pairs.
func parseOverrides(parts []string) (Overrides, []string, error) {
	var o Overrides
	for len(parts) > 0 && strings.HasPrefix(parts[0], "-") {
		if len(parts) < 2 {
			return o, nil, fmt.Errorf("missing value for %s", parts[0])
		}
		switch parts[0] {
		case "-c":
			o.Category = parts[1]
		case "-p":
			o.PostProcessing = parts[1]
		case "-s":
			o.Script = parts[1]
		default:
			return o, nil, fmt.Errorf("unknown option %q, use: -c category, -p pp, -s script", parts[0])
		}
		parts = parts[2:]
	}
	return o, parts, nil
}

// ParseFeedArgs parses arguments for /addfeed.
// Format: <name> <url> [-c category] [-p pp] [-s script]
func ParseFeedArgs(args string) (FeedArgs, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return FeedArgs{}, fmt.Errorf("usage: /addfeed <name> <url> [-c category] [-p pp] [-s script]")
	}

	uri := parts[1]
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		return FeedArgs{}, fmt.Errorf("invalid feed URL %q", uri)
	}

	o, rest, err := parseOverrides(parts[2:])
	if err != nil {
		return FeedArgs{}, err
	}
	if len(rest) > 0 {
		return FeedArgs{}, fmt.Errorf("unexpected argument %q", rest[0])
	}

	return FeedArgs{Name: parts[0], URI: uri, Overrides: o}, nil
}

// ParseRuleArgs parses arguments for /accept and /reject.
// Format: <feed> [-c category] [-p pp] [-s script] <pattern...>
func ParseRuleArgs(args string) (RuleArgs, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return RuleArgs{}, fmt.Errorf("usage: <feed> [-c category] [-p pp] [-s script] <pattern>")
	}

	o, rest, err := parseOverrides(parts[1:])
	if err != nil {
		return RuleArgs{}, err
	}
	if len(rest) == 0 {
		return RuleArgs{}, fmt.Errorf("filter pattern is required")
	}

	return RuleArgs{
		FeedName:  parts[0],
		Pattern:   strings.Join(rest, " "),
		Overrides: o,
	}, nil
}

// NewRule builds the filter rule described by parsed /accept or /reject
// arguments.
func (a RuleArgs) NewRule(t model.RuleType) model.FilterRule {
	return model.FilterRule{
		FeedName:       a.FeedName,
		Type:           t,
		Pattern:        a.Pattern,
		Category:       a.Category,
		PostProcessing: a.PostProcessing,
		Script:         a.Script,
	}
}

// ParseNameArg extracts a feed name from a command argument string.
func ParseNameArg(args string) (string, error) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return "", fmt.Errorf("feed name is required")
	}
	return parts[0], nil
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("filter ID is required")
	}
	s = strings.TrimPrefix(strings.Fields(s)[0], "F")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid filter ID %q", s)
	}
	return id, nil
}

// ParseFlagArgs extracts a feed name and a job id for /flag.
func ParseFlagArgs(args string) (string, string, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("usage: /flag <feed> <id>")
	}
	return parts[0], parts[1], nil
}
