package rag

import "github.com/yungbote/paperdesk-backend/internal/domain"

// diversityFilter caps per-document contribution so one long document cannot
// crowd out the rest of the corpus. working is the caller's candidate budget;
// the filter accepts up to 2*working passages with at most max(2, 2*working/3)
// per document, scanning in rank order, then backfills remaining slots with
// skipped passages in rank order.
func diversityFilter(candidates []domain.Passage, working int) []domain.Passage {
	if len(candidates) == 0 {
		return candidates
	}
	w := 2 * working
	if w <= 0 {
		return nil
	}
	maxPerDoc := w / 3
	if maxPerDoc < 2 {
		maxPerDoc = 2
	}

	perDoc := make(map[string]int)
	included := make([]bool, len(candidates))
	out := make([]domain.Passage, 0, w)
	for i, p := range candidates {
		if len(out) >= w {
			break
		}
		if perDoc[p.DocumentID] >= maxPerDoc {
			continue
		}
		perDoc[p.DocumentID]++
		included[i] = true
		out = append(out, p)
	}
	for i, p := range candidates {
		if len(out) >= w {
			break
		}
		if included[i] {
			continue
		}
		out = append(out, p)
	}
	return out
}
