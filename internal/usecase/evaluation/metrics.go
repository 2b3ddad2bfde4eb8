package evaluation

// Metrics are the retrieval scores for one topic at cutoff k.
type Metrics struct {
	Precision float64 `json:"precision_at_k"`
	Recall    float64 `json:"recall_at_k"`
	F1        float64 `json:"f1_at_k"`
}

// Score computes precision, recall and F1 of the top k retrieved ids
// against the relevant set.
func Score(retrieved []string, relevant map[string]struct{}, k int) Metrics {
	if len(retrieved) == 0 {
		return Metrics{}
	}
	if k > 0 && len(retrieved) > k {
		retrieved = retrieved[:k]
	}

	seen := make(map[string]struct{}, len(retrieved))
	hits := 0
	for _, id := range retrieved {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := relevant[id]; ok {
			hits++
		}
	}

	var m Metrics
	m.Precision = float64(hits) / float64(len(retrieved))
	if len(relevant) > 0 {
		m.Recall = float64(hits) / float64(len(relevant))
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// average returns the mean of the given metrics.
func average(ms []Metrics) Metrics {
	if len(ms) == 0 {
		return Metrics{}
	}
	var sum Metrics
	for _, m := range ms {
		sum.Precision += m.Precision
		sum.Recall += m.Recall
		sum.F1 += m.F1
	}
	n := float64(len(ms))
	return Metrics{Precision: sum.Precision / n, Recall: sum.Recall / n, F1: sum.F1 / n}
}
