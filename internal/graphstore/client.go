// Package graphstore queries the ontology graph database for per-risk
// recommendations. Queries are fixed and parameterized, never constructed
// dynamically. An absent or unreachable database means "recommendations
// unavailable", not a request failure.
package graphstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"k9/internal/logging"
)

// Recommendations is the flat result of the fixed per-risk queries.
type Recommendations struct {
	RiskID             string           `json:"risk_id"`
	CriticalControls   []map[string]any `json:"critical_controls,omitempty"`
	PreventiveControls []map[string]any `json:"preventive_controls,omitempty"`
	RecoveryBarriers   []map[string]any `json:"recovery_barriers,omitempty"`
	ExposureFactors    []map[string]any `json:"exposure_factors,omitempty"`
	Causes             []map[string]any `json:"causes,omitempty"`
}

// The fixed read queries, keyed by result field.
var queries = []struct {
	name   string
	cypher string
	assign func(*Recommendations, []map[string]any)
}{
	{
		name: "critical_controls",
		cypher: `MATCH (r:Riesgo {id: $riskID})-[:TIENE_CONTROL]->(c:Control {critico: true})
			RETURN c.id AS id, c.nombre AS nombre ORDER BY c.id`,
		assign: func(rec *Recommendations, rows []map[string]any) { rec.CriticalControls = rows },
	},
	{
		name: "preventive_controls",
		cypher: `MATCH (r:Riesgo {id: $riskID})-[:TIENE_CONTROL]->(c:Control {tipo: 'preventivo'})
			RETURN c.id AS id, c.nombre AS nombre ORDER BY c.id`,
		assign: func(rec *Recommendations, rows []map[string]any) { rec.PreventiveControls = rows },
	},
	{
		name: "recovery_barriers",
		cypher: `MATCH (r:Riesgo {id: $riskID})-[:TIENE_BARRERA]->(b:Barrera {tipo: 'recuperacion'})
			RETURN b.id AS id, b.nombre AS nombre ORDER BY b.id`,
		assign: func(rec *Recommendations, rows []map[string]any) { rec.RecoveryBarriers = rows },
	},
	{
		name: "exposure_factors",
		cypher: `MATCH (r:Riesgo {id: $riskID})-[:EXPUESTO_A]->(f:Factor)
			RETURN f.id AS id, f.nombre AS nombre ORDER BY f.id`,
		assign: func(rec *Recommendations, rows []map[string]any) { rec.ExposureFactors = rows },
	},
	{
		name: "causes",
		cypher: `MATCH (ca:Causa)-[:CAUSA_DE]->(r:Riesgo {id: $riskID})
			RETURN ca.id AS id, ca.nombre AS nombre ORDER BY ca.id`,
		assign: func(rec *Recommendations, rows []map[string]any) { rec.Causes = rows },
	},
}

// Client wraps the driver. A nil client is valid and yields no
// recommendations.
type Client struct {
	driver neo4j.DriverWithContext
	log    *logging.Logger
}

// Connect opens a driver. A connection failure returns a nil client and no
// error; callers keep running without recommendations.
func Connect(ctx context.Context, uri, user, password string) *Client {
	log := logging.Get(logging.CategoryGraph)
	if uri == "" {
		log.Info("graph database not configured, recommendations unavailable")
		return nil
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		log.Warn("graph driver init failed: %v", err)
		return nil
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Warn("graph database unreachable: %v", err)
		driver.Close(ctx)
		return nil
	}
	return &Client{driver: driver, log: log}
}

// Close releases the driver.
func (c *Client) Close(ctx context.Context) {
	if c != nil && c.driver != nil {
		c.driver.Close(ctx)
	}
}

// Recommendations runs the fixed queries for one risk. Query failures
// degrade to a nil result, never an error that would abort the request.
func (c *Client) Recommendations(ctx context.Context, riskID string) *Recommendations {
	if c == nil || c.driver == nil || riskID == "" {
		return nil
	}
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	rec := &Recommendations{RiskID: riskID}
	params := map[string]any{"riskID": riskID}
	for _, q := range queries {
		rows, err := readRows(ctx, session, q.cypher, params)
		if err != nil {
			c.log.Warn("query %s failed for %s: %v", q.name, riskID, err)
			return nil
		}
		q.assign(rec, rows)
	}
	return rec
}

func readRows(ctx context.Context, session neo4j.SessionWithContext, cypher string, params map[string]any) ([]map[string]any, error) {
	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	var rows []map[string]any
	for result.Next(ctx) {
		rows = append(rows, result.Record().AsMap())
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("consuming result: %w", err)
	}
	return rows, nil
}
