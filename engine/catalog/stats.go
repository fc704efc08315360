package catalog

import (
	"context"
	"strings"
)

// PartCounts returns part counts grouped by appliance type.
func (s *Store) PartCounts(ctx context.Context) (map[string]int64, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Part)
	           RETURN coalesce(n.appliance_type, 'unknown') AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, unavailable("part counts", err)
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[t] = c
			}
		}
	}
	return counts, nil
}

// EdgeCounts returns compatibility edge counts grouped by relation.
func (s *Store) EdgeCounts(ctx context.Context) (map[string]int64, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (:Part)-[r]->(:Part)
	           RETURN type(r) AS type, count(*) AS count`
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return nil, unavailable("edge counts", err)
	}
	counts := make(map[string]int64)
	for result.Next(ctx) {
		rec := result.Record()
		typ, _ := rec.Get("type")
		cnt, _ := rec.Get("count")
		if t, ok := typ.(string); ok {
			if c, ok := cnt.(int64); ok {
				counts[strings.ToLower(t)] = c
			}
		}
	}
	return counts, nil
}

// BrandCounts returns the top brands by part count.
func (s *Store) BrandCounts(ctx context.Context, limit int) ([]BrandStats, error) {
	if limit <= 0 {
		limit = 10
	}
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Part)
	           WHERE n.brand IS NOT NULL AND n.brand <> ''
	           RETURN n.brand AS brand, count(*) AS count
	           ORDER BY count DESC, brand ASC LIMIT $limit`
	result, err := sess.Run(ctx, cypher, map[string]any{"limit": int64(limit)})
	if err != nil {
		return nil, unavailable("brand counts", err)
	}
	var stats []BrandStats
	for result.Next(ctx) {
		rec := result.Record()
		brand, _ := rec.Get("brand")
		cnt, _ := rec.Get("count")
		s := BrandStats{}
		if b, ok := brand.(string); ok {
			s.Brand = b
		}
		if c, ok := cnt.(int64); ok {
			s.Parts = c
		}
		stats = append(stats, s)
	}
	return stats, nil
}
