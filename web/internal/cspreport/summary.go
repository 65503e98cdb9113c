package cspreport

import "sort"

// Count is a key with its number of occurrences.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Summary aggregates stored reports for the dashboard.
type Summary struct {
	Total        int     `json:"total"`
	ByDirective  []Count `json:"byDirective"`
	ByBlockedURI []Count `json:"byBlockedUri"`
	ByDocument   []Count `json:"byDocument"`
}

// Summarize counts reports by directive, blocked URI and document, each list
// sorted by descending count then key.
func Summarize(reports []StoredReport) Summary {
	directives := make(map[string]int)
	blocked := make(map[string]int)
	documents := make(map[string]int)

	for _, r := range reports {
		directives[r.Report.Directive()]++
		if uri := r.Report.CSPReport.BlockedURI; uri != "" {
			blocked[uri]++
		}
		if doc := r.Report.CSPReport.DocumentURI; doc != "" {
			documents[doc]++
		}
	}

	return Summary{
		Total:        len(reports),
		ByDirective:  sorted(directives),
		ByBlockedURI: sorted(blocked),
		ByDocument:   sorted(documents),
	}
}

func sorted(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
