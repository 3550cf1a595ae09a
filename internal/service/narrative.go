package service

import (
	"regexp"
	"strings"

	"readypath/internal/model"
)

// narrativeExtraction is the best-effort structure recovered from free text
type narrativeExtraction struct {
	Recommendations []model.Recommendation
	RoadmapPhases   []model.RoadmapPhase
}

var (
	boldHeadingRe = regexp.MustCompile(`^\s*\*\*(.+?)\*\*:?\s*$`)
	mdHeadingRe   = regexp.MustCompile(`^\s*#{1,4}\s+(.+?)\s*$`)
	bulletRe      = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.+?)\s*$`)
	tripleRe      = regexp.MustCompile(`(?i)^\s*(?:[-*•]\s*)?(initiative|objective|timeline)\s*[:\-]\s*(.+?)\s*$`)
)

// extractFromNarrative scans markdown-like text for heading-delimited
// sections, bullets, and Initiative/Objective/Timeline triples. It is
// heuristic: unmatched text is skipped and partial results are returned.
// It supplements the structured extraction path and never replaces it.
func extractFromNarrative(text string) narrativeExtraction {
	var out narrativeExtraction
	out.Recommendations = []model.Recommendation{}
	out.RoadmapPhases = []model.RoadmapPhase{}

	section := ""
	var phase *model.RoadmapPhase
	var triple model.RoadmapPhase

	flushTriple := func() {
		if triple.Name != "" {
			if triple.Activities == nil {
				triple.Activities = []string{}
			}
			out.RoadmapPhases = append(out.RoadmapPhases, triple)
		}
		triple = model.RoadmapPhase{}
	}
	flushPhase := func() {
		if phase != nil && len(phase.Activities) > 0 {
			out.RoadmapPhases = append(out.RoadmapPhases, *phase)
		}
		phase = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if m := tripleRe.FindStringSubmatch(line); m != nil {
			switch strings.ToLower(m[1]) {
			case "initiative":
				// A new initiative closes the previous triple
				flushTriple()
				triple.Name = m[2]
			case "objective":
				triple.Description = m[2]
			case "timeline":
				triple.DurationText = m[2]
			}
			continue
		}

		heading := ""
		if m := boldHeadingRe.FindStringSubmatch(line); m != nil {
			heading = m[1]
		} else if m := mdHeadingRe.FindStringSubmatch(line); m != nil {
			heading = m[1]
		}
		if heading != "" {
			flushPhase()
			section = strings.ToLower(heading)
			if strings.Contains(section, "roadmap") || strings.Contains(section, "phase") {
				phase = &model.RoadmapPhase{
					Name:       strings.TrimSuffix(heading, ":"),
					Activities: []string{},
				}
			}
			continue
		}

		if m := bulletRe.FindStringSubmatch(line); m != nil {
			item := m[1]
			switch {
			case phase != nil:
				phase.Activities = append(phase.Activities, item)
			case strings.Contains(section, "recommend"):
				out.Recommendations = append(out.Recommendations, bulletRecommendation(item))
			}
		}
	}

	flushPhase()
	flushTriple()
	return out
}

// bulletRecommendation splits "Title: detail" bullets where possible
func bulletRecommendation(item string) model.Recommendation {
	rec := model.Recommendation{
		Title:          item,
		Description:    item,
		ExpectedImpact: defaultImpactText,
		TimelineText:   defaultRecTimeline,
	}
	if idx := strings.Index(item, ":"); idx > 0 && idx < len(item)-1 {
		rec.Title = strings.TrimSpace(item[:idx])
		rec.Description = strings.TrimSpace(item[idx+1:])
	}
	rec.Title = strings.Trim(rec.Title, "* ")
	return rec
}
