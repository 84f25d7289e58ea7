package dispatch

import "github.com/kilianp07/vendpoint/core/model"

// selectCandidates resolves the candidate pool of a validated request.
func (e *Engine) selectCandidates(req Request) ([]model.Candidate, error) {
	if req.TopK > 0 {
		if e.dir != nil && e.dir.Synced() {
			return topK(e.dir.Ranked(), req.TopK), nil
		}
		if len(req.Candidates) == 0 {
			return nil, ErrUpstreamNotReady
		}
		e.log.Warnf("directory not synced, using %d explicit candidates instead of top %d", len(req.Candidates), req.TopK)
	}
	pool := make([]model.Candidate, len(req.Candidates))
	copy(pool, req.Candidates)
	return pool, nil
}

// topK copies the ranked snapshot, re-sorts it stably and keeps the first k.
func topK(ranked []model.Candidate, k int) []model.Candidate {
	pool := make([]model.Candidate, len(ranked))
	copy(pool, ranked)
	model.SortByRank(pool)
	if len(pool) > k {
		pool = pool[:k]
	}
	return pool
}

// truncate limits the pool to what budget rounds of size parallelism can issue.
func truncate(pool []model.Candidate, budget, parallelism int) []model.Candidate {
	if budget <= 0 {
		return pool
	}
	if limit := budget * parallelism; limit > 0 && len(pool) > limit {
		return pool[:limit]
	}
	return pool
}

// rounds splits the pool into consecutive batches of at most size elements.
func rounds(pool []model.Candidate, size int) [][]model.Candidate {
	var out [][]model.Candidate
	for lo := 0; lo < len(pool); lo += size {
		hi := lo + size
		if hi > len(pool) {
			hi = len(pool)
		}
		out = append(out, pool[lo:hi])
	}
	return out
}
