package program

import "weft/internal/core/span"

// StageCounts tallies reuse vs recompute decisions for one stage.
type StageCounts struct {
	Reused     int `json:"reused"`
	Recomputed int `json:"recomputed"`
}

// CacheStats is the session telemetry surfaced to callers. StageReuse
// explains where incrementality paid off and where it did not.
type CacheStats struct {
	OpenTemplates   int                    `json:"openTemplates"`
	CachedArtifacts int                    `json:"cachedArtifacts"`
	GraphNodes      int                    `json:"graphNodes"`
	GraphEdges      int                    `json:"graphEdges"`
	StageReuse      map[string]StageCounts `json:"stageReuse"`
}

// TemplateCacheStats is the per-template view: what GetCacheStats
// aggregates, broken down for one open document.
type TemplateCacheStats struct {
	File           span.FileId `json:"file"`
	Hash           string      `json:"hash"`
	Open           bool        `json:"open"`
	ArtifactCached bool        `json:"artifactCached"`
}

func newCacheStats() CacheStats {
	return CacheStats{StageReuse: make(map[string]StageCounts)}
}

func (s *CacheStats) record(stage string, reused bool) {
	c := s.StageReuse[stage]
	if reused {
		c.Reused++
	} else {
		c.Recomputed++
	}
	s.StageReuse[stage] = c
}

func (s *CacheStats) clone() CacheStats {
	out := newCacheStats()
	out.OpenTemplates = s.OpenTemplates
	out.CachedArtifacts = s.CachedArtifacts
	out.GraphNodes = s.GraphNodes
	out.GraphEdges = s.GraphEdges
	for k, v := range s.StageReuse {
		out.StageReuse[k] = v
	}
	return out
}
