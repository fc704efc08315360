package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FixwellAI/fixwell-mvp/engine/domain"
	"github.com/FixwellAI/fixwell-mvp/pkg/repo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// relTypes maps domain relations to their Cypher relationship types.
// Relations outside this map never reach a query string.
var relTypes = map[domain.Relation]string{
	domain.RelationReplaces:       "REPLACES",
	domain.RelationCompatibleWith: "COMPATIBLE_WITH",
	domain.RelationRequires:       "REQUIRES",
}

// relationOf resolves a stored relationship type back to its domain relation.
func relationOf(relType string) (domain.Relation, bool) {
	for rel, t := range relTypes {
		if t == relType {
			return rel, true
		}
	}
	return "", false
}

// allRelTypes returns the full set of compatibility relationship types.
func allRelTypes() []string {
	types := make([]string, 0, len(relTypes))
	for _, t := range relTypes {
		types = append(types, t)
	}
	return types
}

// Store provides catalog operations over the parts graph.
type Store struct {
	opener SessionOpener
	parts  *repo.Neo[domain.Part]
}

// New creates a Store backed by a Neo4j driver.
func New(driver neo4j.DriverWithContext) *Store {
	return &Store{
		opener: &driverOpener{driver: driver},
		parts:  newPartReader(driver),
	}
}

// NewWithOpener creates a Store with a custom session opener.
func NewWithOpener(opener SessionOpener) *Store {
	return &Store{opener: opener}
}

// unavailable marks a session or driver failure so callers can match
// domain.ErrStoreUnavailable while keeping the cause in the chain.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(domain.ErrStoreUnavailable, err))
}

// UpsertPart creates or replaces a part node keyed by part_id.
func (s *Store) UpsertPart(ctx context.Context, p domain.Part) (string, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MERGE (n:Part {part_id: $id}) SET n += $props`
	_, err := sess.Run(ctx, cypher, map[string]any{
		"id":    p.PartID,
		"props": partToMap(p),
	})
	if err != nil {
		return "", unavailable("upsert part "+p.PartID, err)
	}
	return p.PartID, nil
}

// UpsertVideo creates or replaces a video node and links it to its owning
// part. Returns domain.ErrPartNotFound when the part is absent.
func (s *Store) UpsertVideo(ctx context.Context, v domain.InstallationVideo) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (p:Part {part_id: $partID})
	           MERGE (v:Video {video_id: $id})
	           SET v.part_id = $partID, v.video_url = $url, v.title = $title
	           MERGE (p)-[:HAS_VIDEO]->(v)
	           RETURN v.video_id AS id`
	result, err := sess.Run(ctx, cypher, map[string]any{
		"partID": v.PartID,
		"id":     v.VideoID,
		"url":    v.VideoURL,
		"title":  v.Title,
	})
	if err != nil {
		return unavailable("upsert video "+v.VideoID, err)
	}
	if !result.Next(ctx) {
		return fmt.Errorf("upsert video %s: part %s: %w", v.VideoID, v.PartID, domain.ErrPartNotFound)
	}
	return nil
}

// UpsertEdge creates or replaces a typed compatibility relationship between
// two existing parts. A missing endpoint rejects the edge.
func (s *Store) UpsertEdge(ctx context.Context, e domain.CompatibilityEdge) error {
	relType, ok := relTypes[e.Relation]
	if !ok {
		return domain.NewValidationError("relation", string(e.Relation), domain.ErrInvalidRelation)
	}

	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`MATCH (a:Part {part_id: $from}), (b:Part {part_id: $to})
	           MERGE (a)-[r:%s]->(b)
	           RETURN a.part_id AS id`, relType)
	result, err := sess.Run(ctx, cypher, map[string]any{
		"from": e.FromPartID,
		"to":   e.ToPartID,
	})
	if err != nil {
		return unavailable("upsert edge", err)
	}
	if !result.Next(ctx) {
		return fmt.Errorf("upsert edge %s-[%s]->%s: %w",
			e.FromPartID, e.Relation, e.ToPartID,
			errors.Join(domain.ErrDanglingEdge, domain.ErrPartNotFound))
	}
	return nil
}

// GetPart returns a part by its part_id.
func (s *Store) GetPart(ctx context.Context, partID string) (domain.Part, error) {
	if s.parts != nil {
		p, err := s.parts.Get(ctx, partID)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Part{}, fmt.Errorf("part %s: %w", partID, domain.ErrPartNotFound)
		}
		if err != nil {
			return domain.Part{}, unavailable("get part "+partID, err)
		}
		return p, nil
	}

	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Part {part_id: $id}) RETURN n`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": partID})
	if err != nil {
		return domain.Part{}, unavailable("get part "+partID, err)
	}
	if !result.Next(ctx) {
		return domain.Part{}, fmt.Errorf("part %s: %w", partID, domain.ErrPartNotFound)
	}
	return partFromRecord(result.Record())
}

// GetPartByNumber returns the part whose manufacturer or partselect number
// matches exactly, ignoring case. Not fuzzy.
func (s *Store) GetPartByNumber(ctx context.Context, number string) (domain.Part, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (n:Part)
	           WHERE toUpper(n.manufacturer_number) = $number OR toUpper(n.partselect_number) = $number
	           RETURN n LIMIT 1`
	result, err := sess.Run(ctx, cypher, map[string]any{
		"number": strings.ToUpper(strings.TrimSpace(number)),
	})
	if err != nil {
		return domain.Part{}, unavailable("lookup "+number, err)
	}
	if !result.Next(ctx) {
		return domain.Part{}, fmt.Errorf("part number %s: %w", number, domain.ErrPartNotFound)
	}
	return partFromRecord(result.Record())
}

// FindParts returns parts matching every predicate in the filter, ordered
// by stock status (in stock first), then price ascending, then part_id.
func (s *Store) FindParts(ctx context.Context, f Filter) ([]domain.Part, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	var clauses []string
	params := map[string]any{}

	if f.ApplianceType != "" {
		clauses = append(clauses, "n.appliance_type = $applianceType")
		params["applianceType"] = f.ApplianceType
	}
	if f.Brand != "" {
		clauses = append(clauses, "toLower(n.brand) = toLower($brand)")
		params["brand"] = f.Brand
	}
	if f.StockStatus != "" {
		clauses = append(clauses, "n.stock_status = $stockStatus")
		params["stockStatus"] = string(f.StockStatus)
	}
	if f.ModelNumber != "" {
		clauses = append(clauses, "$modelNumber IN n.compatible_model_numbers")
		params["modelNumber"] = strings.ToUpper(strings.TrimSpace(f.ModelNumber))
	}
	for i, tok := range f.NameTokens {
		name := fmt.Sprintf("token%d", i)
		clauses = append(clauses,
			fmt.Sprintf("(toLower(n.name) CONTAINS $%s OR toLower(n.description) CONTAINS $%s)", name, name))
		params[name] = strings.ToLower(tok)
	}

	cypher := "MATCH (n:Part)"
	if len(clauses) > 0 {
		cypher += "\n\t           WHERE " + strings.Join(clauses, " AND ")
	}
	cypher += `
	           RETURN n
	           ORDER BY CASE n.stock_status WHEN 'in_stock' THEN 2 WHEN 'unknown' THEN 1 ELSE 0 END DESC,
	                    n.price ASC, n.part_id ASC
	           LIMIT $limit`

	limit := f.Limit
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	params["limit"] = int64(limit)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, unavailable("find parts", err)
	}
	return collectParts(ctx, result)
}

// FindEdges returns compatibility edges where the given part is either
// endpoint. Stored direction and relation are preserved. An empty relation
// matches all three relation types.
func (s *Store) FindEdges(ctx context.Context, partID string, relation domain.Relation) ([]domain.CompatibilityEdge, error) {
	rels := allRelTypes()
	if relation != "" {
		relType, ok := relTypes[relation]
		if !ok {
			return nil, domain.NewValidationError("relation", string(relation), domain.ErrInvalidRelation)
		}
		rels = []string{relType}
	}

	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (a:Part {part_id: $id})-[r]->(b:Part) WHERE type(r) IN $rels
	           RETURN a.part_id AS from_id, b.part_id AS to_id, type(r) AS rel
	           UNION
	           MATCH (a:Part)-[r]->(b:Part {part_id: $id}) WHERE type(r) IN $rels
	           RETURN a.part_id AS from_id, b.part_id AS to_id, type(r) AS rel`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": partID, "rels": rels})
	if err != nil {
		return nil, unavailable("find edges "+partID, err)
	}

	var edges []domain.CompatibilityEdge
	for result.Next(ctx) {
		rec := result.Record()
		from, _ := rec.Get("from_id")
		to, _ := rec.Get("to_id")
		relType, _ := rec.Get("rel")

		fromID, _ := from.(string)
		toID, _ := to.(string)
		typeName, _ := relType.(string)
		rel, ok := relationOf(typeName)
		if !ok || fromID == "" || toID == "" {
			continue
		}
		edges = append(edges, domain.CompatibilityEdge{FromPartID: fromID, ToPartID: toID, Relation: rel})
	}
	return edges, nil
}

// VideosForPart returns the installation videos owned by a part. An empty
// slice is a valid result.
func (s *Store) VideosForPart(ctx context.Context, partID string) ([]domain.InstallationVideo, error) {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (p:Part {part_id: $id})-[:HAS_VIDEO]->(v:Video)
	           RETURN v AS n ORDER BY v.video_id`
	result, err := sess.Run(ctx, cypher, map[string]any{"id": partID})
	if err != nil {
		return nil, unavailable("videos for "+partID, err)
	}

	var videos []domain.InstallationVideo
	for result.Next(ctx) {
		node, _, err := neo4j.GetRecordValue[dbtype.Node](result.Record(), "n")
		if err != nil {
			return nil, fmt.Errorf("videos for %s: %w", partID, err)
		}
		videos = append(videos, videoFromProps(node.Props))
	}
	return videos, nil
}

// DeletePart detach-deletes a part and its owned videos. Compatibility
// edges touching the part are removed with it; the counterpart parts stay.
func (s *Store) DeletePart(ctx context.Context, partID string) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	cypher := `MATCH (p:Part {part_id: $id})
	           OPTIONAL MATCH (p)-[:HAS_VIDEO]->(v:Video)
	           DETACH DELETE v, p`
	_, err := sess.Run(ctx, cypher, map[string]any{"id": partID})
	if err != nil {
		return unavailable("delete part "+partID, err)
	}
	return nil
}

// SaveBatch writes parts, videos, and edges in a single transaction.
// Edges with missing endpoints are skipped by the MATCH, not failed;
// batch callers re-check danglers through UpsertEdge afterwards.
func (s *Store) SaveBatch(ctx context.Context, parts []domain.Part, videos []domain.InstallationVideo, edges []domain.CompatibilityEdge) error {
	sess := s.opener.OpenSession(ctx)
	defer sess.Close(ctx)

	_, err := sess.ExecuteWrite(ctx, func(tx CypherRunner) (any, error) {
		for _, p := range parts {
			cypher := `MERGE (n:Part {part_id: $id}) SET n += $props`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"id":    p.PartID,
				"props": partToMap(p),
			}); err != nil {
				return nil, err
			}
		}
		for _, v := range videos {
			cypher := `MATCH (p:Part {part_id: $partID})
			           MERGE (vid:Video {video_id: $id})
			           SET vid.part_id = $partID, vid.video_url = $url, vid.title = $title
			           MERGE (p)-[:HAS_VIDEO]->(vid)`
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"partID": v.PartID,
				"id":     v.VideoID,
				"url":    v.VideoURL,
				"title":  v.Title,
			}); err != nil {
				return nil, err
			}
		}
		for _, e := range edges {
			relType, ok := relTypes[e.Relation]
			if !ok {
				continue
			}
			cypher := fmt.Sprintf(`MATCH (a:Part {part_id: $from}), (b:Part {part_id: $to})
			           MERGE (a)-[r:%s]->(b)`, relType)
			if _, err := tx.Run(ctx, cypher, map[string]any{
				"from": e.FromPartID,
				"to":   e.ToPartID,
			}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return unavailable("save batch", err)
	}
	return nil
}

// collectParts reads all Part nodes from a result set.
func collectParts(ctx context.Context, result CypherResult) ([]domain.Part, error) {
	var parts []domain.Part
	for result.Next(ctx) {
		p, err := partFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}
