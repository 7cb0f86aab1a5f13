package bot

import (
	"fmt"
	"sort"
	"strings"

	"rss_queue/internal/model"
	"rss_queue/internal/rssqueue"
)

const (
	statusEnabled  = "enabled"
	statusDisabled = "disabled"

	// maxResultLines caps each status group of /result so replies stay below
	// the Telegram message size limit.
	maxResultLines = 25
)

func enabledLabel(enabled bool) string {
	if enabled {
		return statusEnabled
	}
	return statusDisabled
}

func paramsLabel(cat, pp, script string) string {
	var parts []string
	if cat != "" {
		parts = append(parts, "cat="+cat)
	}
	if pp != "" {
		parts = append(parts, "pp="+pp)
	}
	if script != "" {
		parts = append(parts, "script="+script)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// FormatFeedList formats the configured feeds with their accept and reject
// rule counts.
func FormatFeedList(feeds []model.Feed, ruleCounts map[string][2]int) string {
	if len(feeds) == 0 {
		return "There are no feeds yet. Use /addfeed <name> <url> to add one."
	}
	var b strings.Builder
	b.WriteString("Feeds:\n")
	for _, f := range feeds {
		fmt.Fprintf(&b, "\n%s [%s]\n   %s\n", f.Name, enabledLabel(f.Enabled), f.URI)
		acc, rej := ruleCounts[f.Name][0], ruleCounts[f.Name][1]
		if acc == 0 && rej == 0 {
			b.WriteString("   no rules\n")
		} else {
			fmt.Fprintf(&b, "   %d accept, %d reject rules\n", acc, rej)
		}
	}
	return b.String()
}

// FormatFilterList formats the rules of a feed in evaluation order.
func FormatFilterList(feed *model.Feed, rules []model.FilterRule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rules for \"%s\"\nDefaults: %s\n",
		feed.Name, paramsLabel(feed.DefaultCategory, feed.DefaultPostProcessing, feed.DefaultScript))

	if len(rules) == 0 {
		b.WriteString("\nNo rules, every entry is rejected.\nUse /accept or /reject to add one.")
		return b.String()
	}

	b.WriteString("\n")
	for i, r := range rules {
		fmt.Fprintf(&b, "%d. F%d %s %s", i+1, r.ID, r.Type, r.Pattern)
		if r.Type == model.RuleAccept && (r.Category != "" || r.PostProcessing != "" || r.Script != "") {
			fmt.Fprintf(&b, " (%s)", paramsLabel(r.Category, r.PostProcessing, r.Script))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatResult formats the job table of a feed grouped by status. Titles
// within a group are sorted.
func FormatResult(feedName string, jobs map[string]model.JobEntry) string {
	if len(jobs) == 0 {
		return fmt.Sprintf("No jobs recorded for \"%s\".", feedName)
	}

	groups := map[model.JobStatus][]model.JobEntry{}
	for _, j := range jobs {
		groups[j.Status] = append(groups[j.Status], j)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Jobs for \"%s\":\n", feedName)

	order := []struct {
		status model.JobStatus
		label  string
	}{
		{model.StatusDownloaded, "Downloaded"},
		{model.StatusGoodMatch, "Matched"},
		{model.StatusBadMatch, "Rejected"},
	}
	for _, g := range order {
		js := groups[g.status]
		if len(js) == 0 {
			continue
		}
		sort.Slice(js, func(i, k int) bool { return js[i].Title < js[k].Title })

		fmt.Fprintf(&b, "\n%s (%d):\n", g.label, len(js))
		for i, j := range js {
			if i == maxResultLines {
				fmt.Fprintf(&b, "  ... and %d more\n", len(js)-maxResultLines)
				break
			}
			b.WriteString("  " + j.Title)
			if g.status == model.StatusGoodMatch && j.ExternalID != "" {
				b.WriteString(" [" + j.ExternalID + "]")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// FormatScanResult summarises a single feed scan.
func FormatScanResult(feedName string, res rssqueue.ScanResult, download bool) string {
	if res.FirstScan && !download {
		return fmt.Sprintf("Scanned \"%s\" for the first time: %d entries recorded, nothing submitted.",
			feedName, res.Accepted+res.Rejected)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Scanned \"%s\":\n", feedName)
	fmt.Fprintf(&b, "  %d accepted, %d rejected\n", res.Accepted, res.Rejected)
	if download {
		fmt.Fprintf(&b, "  %d submitted\n", res.Submitted)
	}
	if res.Skipped > 0 {
		fmt.Fprintf(&b, "  %d without a usable link\n", res.Skipped)
	}
	if res.Pruned > 0 {
		fmt.Fprintf(&b, "  %d stale jobs pruned\n", res.Pruned)
	}
	if res.FirstScan {
		b.WriteString("First scan, entries were recorded without submitting.\n")
	}
	return b.String()
}
