package rag

import (
	"math"
	"sort"

	"github.com/sells-group/eventscope/internal/model"
)

// documentID pulls the parent document id out of result metadata.
func documentID(r model.RetrievalResult) string {
	id, _ := r.Metadata["document_id"].(string)
	return id
}

// mergeResults unions the two branches by parent document id. A document
// found by both branches scores the average of the two signals; a document
// found by one branch keeps that branch's raw score with the other treated
// as 0, deliberately ranking corroborated matches above single-signal ones.
// Output is sorted by combined score, best first.
func mergeResults(vectorResults, keywordResults []model.RetrievalResult) []model.RetrievalResult {
	merged := make(map[string]*model.RetrievalResult)
	var order []string

	for _, r := range vectorResults {
		id := documentID(r)
		if _, seen := merged[id]; seen {
			continue
		}
		entry := r
		entry.Score = entry.VectorScore
		merged[id] = &entry
		order = append(order, id)
	}

	for _, r := range keywordResults {
		id := documentID(r)
		if existing, seen := merged[id]; seen {
			existing.KeywordScore = r.KeywordScore
			existing.Score = (existing.VectorScore + r.KeywordScore) / 2
			continue
		}
		entry := r
		entry.VectorScore = 0
		entry.Score = entry.KeywordScore
		merged[id] = &entry
		order = append(order, id)
	}

	out := make([]model.RetrievalResult, 0, len(order))
	for _, id := range order {
		out = append(out, *merged[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// CosineSimilarity returns the cosine of the angle between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
