package driver

const (
	SaveEntityNodeQuery = `
		MERGE (n:Entity {uuid: $uuid})
		SET n.name = $name,
			n.group_id = $group_id,
			n.created_at = $created_at,
			n.summary = $summary,
			n.name_embedding = $name_embedding,
			n.attributes = $attributes,
			n.labels = $labels
		RETURN n.uuid AS uuid
	`

	SaveEpisodicNodeQuery = `
		MERGE (n:Episodic {uuid: $uuid})
		SET n.name = $name,
			n.group_id = $group_id,
			n.created_at = $created_at,
			n.valid_at = $valid_at,
			n.content = $content,
			n.source = $source,
			n.source_description = $source_description,
			n.entity_edges = $entity_edges
		RETURN n.uuid AS uuid
	`

	SaveCommunityNodeQuery = `
		MERGE (n:Community {uuid: $uuid})
		SET n.name = $name,
			n.group_id = $group_id,
			n.created_at = $created_at,
			n.summary = $summary,
			n.name_embedding = $name_embedding
		RETURN n.uuid AS uuid
	`

	SaveEntityEdgeQuery = `
		MATCH (source:Entity {uuid: $source_uuid})
		MATCH (target:Entity {uuid: $target_uuid})
		MERGE (source)-[e:RELATES_TO {uuid: $uuid}]->(target)
		SET e.name = $name,
			e.fact = $fact,
			e.group_id = $group_id,
			e.created_at = $created_at,
			e.expired_at = $expired_at,
			e.valid_at = $valid_at,
			e.invalid_at = $invalid_at,
			e.episodes = $episodes,
			e.fact_embedding = $fact_embedding
		RETURN e.uuid AS uuid
	`

	SaveEpisodicEdgeQuery = `
		MATCH (episode:Episodic {uuid: $source_uuid})
		MATCH (node:Entity {uuid: $target_uuid})
		MERGE (episode)-[e:MENTIONS {uuid: $uuid}]->(node)
		SET e.group_id = $group_id,
			e.created_at = $created_at
		RETURN e.uuid AS uuid
	`

	SaveCommunityEdgeQuery = `
		MATCH (c:Community {uuid: $source_uuid})
		MATCH (e:Entity {uuid: $target_uuid})
		MERGE (c)-[r:HAS_MEMBER {uuid: $uuid}]->(e)
		SET r.group_id = $group_id,
			r.created_at = $created_at
		RETURN r.uuid AS uuid
	`

	// InvalidateEdgeQuery expires an edge record without deleting it; the
	// bi-temporal history stays queryable.
	InvalidateEdgeQuery = `
		MATCH ()-[e:RELATES_TO {uuid: $uuid}]->()
		SET e.invalid_at = $invalid_at,
			e.expired_at = $expired_at
		RETURN e.uuid AS uuid
	`

	// AppendEdgeEpisodesQuery records additional provenance on a duplicate
	// edge instead of creating a new record.
	AppendEdgeEpisodesQuery = `
		MATCH ()-[e:RELATES_TO {uuid: $uuid}]->()
		SET e.episodes = coalesce(e.episodes, []) + $episodes
		RETURN e.uuid AS uuid
	`

	GetEdgesByKeyQuery = `
		MATCH (source:Entity {uuid: $source_uuid})-[e:RELATES_TO]->(target:Entity {uuid: $target_uuid})
		WHERE e.name = $name
		RETURN e.uuid AS uuid, e.name AS name, e.fact AS fact,
			e.created_at AS created_at, e.expired_at AS expired_at,
			e.valid_at AS valid_at, e.invalid_at AS invalid_at,
			e.fact_embedding AS fact_embedding
	`

	GetGroupNodesQuery = `
		MATCH (n:Entity {group_id: $group_id})
		RETURN n.uuid AS uuid, n.name AS name, n.summary AS summary,
			n.labels AS labels, n.name_embedding AS name_embedding,
			n.created_at AS created_at, n.attributes AS attributes
	`

	GetGroupEdgesQuery = `
		MATCH (n:Entity {group_id: $group_id})-[e:RELATES_TO]->(m:Entity {group_id: $group_id})
		RETURN e.uuid AS uuid, n.uuid AS source_uuid, m.uuid AS target_uuid,
			e.name AS name, e.fact AS fact, e.valid_at AS valid_at,
			e.invalid_at AS invalid_at, e.fact_embedding AS fact_embedding
	`

	GetRecentEpisodesQuery = `
		MATCH (e:Episodic)
		WHERE e.group_id = $group_id
		RETURN e.uuid AS uuid, e.content AS content, e.created_at AS created_at
		ORDER BY e.created_at DESC
		LIMIT $limit
	`

	// Lexical candidate retrieval; scoring happens in the search engine.
	NodeFulltextQuery = `
		MATCH (n:Entity {group_id: $group_id})
		WHERE toLower(n.name) CONTAINS $term OR toLower(n.summary) CONTAINS $term
		RETURN n.uuid AS uuid, n.name AS name, n.summary AS summary
		LIMIT $limit
	`

	EdgeFulltextQuery = `
		MATCH (:Entity {group_id: $group_id})-[e:RELATES_TO]->(:Entity)
		WHERE toLower(e.fact) CONTAINS $term
		RETURN e.uuid AS uuid, e.name AS name, e.fact AS fact,
			e.invalid_at AS invalid_at
		LIMIT $limit
	`

	// Embedding candidate retrieval for in-process cosine ranking.
	NodeEmbeddingsQuery = `
		MATCH (n:Entity {group_id: $group_id})
		WHERE n.name_embedding IS NOT NULL
		RETURN n.uuid AS uuid, n.name AS name, n.summary AS summary,
			n.name_embedding AS name_embedding
		LIMIT $limit
	`

	EdgeEmbeddingsQuery = `
		MATCH (:Entity {group_id: $group_id})-[e:RELATES_TO]->(:Entity)
		WHERE e.fact_embedding IS NOT NULL
		RETURN e.uuid AS uuid, e.name AS name, e.fact AS fact,
			e.fact_embedding AS fact_embedding, e.invalid_at AS invalid_at
		LIMIT $limit
	`

	CommunityEmbeddingsQuery = `
		MATCH (c:Community {group_id: $group_id})
		WHERE c.name_embedding IS NOT NULL
		RETURN c.uuid AS uuid, c.name AS name, c.summary AS summary,
			c.name_embedding AS name_embedding
		LIMIT $limit
	`

	// One BFS frontier expansion step. Direction-agnostic; the engine tracks
	// visited nodes and depth.
	NeighborsQuery = `
		MATCH (n:Entity)-[e:RELATES_TO]-(m:Entity)
		WHERE n.uuid IN $frontier
		RETURN n.uuid AS from_uuid, m.uuid AS uuid, m.name AS name,
			m.summary AS summary, e.uuid AS edge_uuid, e.name AS edge_name,
			e.fact AS fact, e.invalid_at AS invalid_at
	`

	GetEntityByNameQuery = `
		MATCH (n:Entity {group_id: $group_id})
		WHERE toLower(n.name) = $name
		RETURN n.uuid AS uuid, n.name AS name, n.summary AS summary,
			n.name_embedding AS name_embedding
	`
)
