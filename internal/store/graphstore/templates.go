package graphstore

// Templates is the named query-template registry: nine fixed traversal
// patterns, each with a hard result LIMIT of 50 so no template can return
// an unbounded result set regardless of graph size.
// The Decision Engine selects a template by name and binds its parameters
// from alert fields; this package only owns the Cypher text.
var Templates = map[string]TemplateQuery{
	"attack_source_panorama": {
		Cypher: `
			MATCH (ip:IPAddress {address: $source_ip})<-[:HAS_SOURCE_IP]-(a:Alert)
			WHERE a.timestamp >= $window_start AND a.timestamp <= $window_end
			MATCH (a)-[r]->(n)
			WHERE type(r) <> 'MATCHED_RULE'
			RETURN a, r, n
			LIMIT 50`,
		Params: []string{"source_ip", "window_start", "window_end"},
	},
	"lateral_movement_detection": {
		Cypher: `
			MATCH (u:User {username: $username})<-[:INVOLVES_USER]-(a:Alert)-[:TRIGGERED_ON]->(h:Host)
			WHERE a.timestamp >= $alert_time AND a.timestamp <= $window_end
			MATCH (u)<-[:INVOLVES_USER]-(a2:Alert)-[:TRIGGERED_ON]->(h2:Host)
			WHERE h2.agent_id <> h.agent_id
			RETURN a, h, a2, h2
			LIMIT 50`,
		Params: []string{"username", "alert_time", "window_end"},
	},
	"process_execution_chain": {
		Cypher: `
			MATCH (p:Process {key: $process_key})
			OPTIONAL MATCH (p)-[:SPAWNED_BY*1..5]->(ancestor:Process)
			WITH p, collect(ancestor) AS ancestors
			UNWIND (ancestors + [p]) AS proc
			MATCH (a:Alert)-[:INVOLVES_PROCESS]->(proc)
			WHERE a.timestamp >= $window_start AND a.timestamp <= $window_end
			RETURN proc, a
			LIMIT 50`,
		Params: []string{"process_key", "window_start", "window_end"},
	},
	"file_interactions": {
		Cypher: `
			MATCH path = (f:File {key: $file_key})-[*1..2]-(n)
			RETURN path
			LIMIT 50`,
		Params: []string{"file_key"},
	},
	"network_topology": {
		Cypher: `
			MATCH (ip:IPAddress {address: $source_ip})-[:COMMUNICATES_WITH*1..3]-(other:IPAddress)
			OPTIONAL MATCH (other)<-[:HAS_SOURCE_IP]-(a:Alert)
			WHERE a IS NULL OR (a.timestamp >= $window_start AND a.timestamp <= $window_end)
			RETURN ip, other, a
			LIMIT 50`,
		Params: []string{"source_ip", "window_start", "window_end"},
	},
	"user_behavior": {
		Cypher: `
			MATCH (u:User {username: $username})<-[:INVOLVES_USER]-(a:Alert)
			WHERE a.timestamp >= $window_start AND a.timestamp <= $window_end
			OPTIONAL MATCH (u)-[:LOGGED_INTO]->(h:Host)
			RETURN u, a, h
			LIMIT 50`,
		Params: []string{"username", "window_start", "window_end"},
	},
	"temporal_correlation": {
		Cypher: `
			MATCH (h:Host {agent_id: $agent_id})<-[:TRIGGERED_ON]-(a:Alert)
			WHERE a.timestamp >= $window_start AND a.timestamp <= $window_end
			RETURN a, h
			LIMIT 50`,
		Params: []string{"agent_id", "window_start", "window_end"},
	},
	"ip_reputation": {
		Cypher: `
			MATCH (ip:IPAddress {address: $ip_address})
			OPTIONAL MATCH (ip)<-[:HAS_SOURCE_IP]-(a:Alert)
			RETURN ip, count(a) AS attack_count
			LIMIT 50`,
		Params: []string{"ip_address"},
	},
	"threat_landscape": {
		Cypher: `
			MATCH (current:Alert {key: $alert_id})-[:HAS_SOURCE_IP|INVOLVES_USER|INVOLVES_PROCESS|ACCESSES_FILE]-(shared)
			MATCH (shared)-[:HAS_SOURCE_IP|INVOLVES_USER|INVOLVES_PROCESS|ACCESSES_FILE]-(a:Alert)
			WHERE a.level >= 7 AND a.timestamp >= $window_start AND a.key <> $alert_id
			RETURN a, shared
			LIMIT 50`,
		Params: []string{"alert_id", "window_start"},
	},
}
