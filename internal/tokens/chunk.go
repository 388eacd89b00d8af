package tokens

import "math"

// ChunkPlan describes how an oversized input should be split.
type ChunkPlan struct {
	// ChunkSize is the token length of each chunk (the final chunk covers the
	// remainder and may be shorter).
	ChunkSize int
	// NumChunks is the minimal number of chunks covering the input at the
	// overlap-adjusted advance rate.
	NumChunks int
}

// CalculateChunkSize computes the largest chunk size not exceeding the
// estimator's prompt sub-budget such that numChunks chunks, each advancing by
// chunkSize*(1-overlapPercent) tokens, cover totalTokens. Overlap preserves
// cross-boundary context for downstream consumers.
func (e *Estimator) CalculateChunkSize(totalTokens int, overlapPercent float64) ChunkPlan {
	target := e.maxPromptTokens - e.safetyMargin
	if target < 1 {
		target = 1
	}
	return CalculateChunkSize(totalTokens, overlapPercent, target)
}

// CalculateChunkSize is the target-explicit form used when the caller manages
// its own sub-budget.
func CalculateChunkSize(totalTokens int, overlapPercent float64, targetTokens int) ChunkPlan {
	if totalTokens <= 0 {
		return ChunkPlan{ChunkSize: 0, NumChunks: 0}
	}
	if overlapPercent < 0 {
		overlapPercent = 0
	}
	if overlapPercent >= 1 {
		// A full overlap never advances; clamp to something that does.
		overlapPercent = 0.5
	}
	if totalTokens <= targetTokens {
		return ChunkPlan{ChunkSize: totalTokens, NumChunks: 1}
	}

	chunkSize := targetTokens
	advance := int(math.Floor(float64(chunkSize) * (1 - overlapPercent)))
	if advance < 1 {
		advance = 1
	}
	// First chunk covers chunkSize tokens; every further chunk extends
	// coverage by advance tokens.
	remaining := totalTokens - chunkSize
	numChunks := 1 + int(math.Ceil(float64(remaining)/float64(advance)))
	return ChunkPlan{ChunkSize: chunkSize, NumChunks: numChunks}
}
