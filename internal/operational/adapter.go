// Package operational aggregates low-level observation records into per-risk
// evidence counts. Purely additive bookkeeping: no judgment, no priority, no
// recommendation ever leaves this package.
package operational

import (
	"sort"
	"strings"

	"k9/internal/state"
)

// Observation types.
const (
	TypeOCC = "OCC"
	TypeOPG = "OPG"
)

// ============================================================================
// RECORD SHAPE ADAPTER
// ============================================================================
// Enrichment payloads arrive in several historical shapes. Each known shape
// gets its own extractor; every extracted record is normalized into
// state.ObservationRecord before any counting happens. Tolerance is kept,
// but exhaustive and explicit rather than ad hoc key probing.

var (
	idAliases       = []string{"id", "occ_id", "id_observacion"}
	riskAliases     = []string{"risk_id", "id_riesgo", "riesgo_id"}
	controlAliases  = []string{"control_id", "id_control"}
	auditAliases    = []string{"audit_id", "id_auditoria"}
	typeAliases     = []string{"type", "tipo", "tipo_observacion"}
	criticalAliases = []string{"is_critical_control", "control_critico"}
)

// typedBuckets are list keys whose name fixes the record type. Ordered so
// the traceability list comes out deterministic.
var typedBuckets = []struct {
	key string
	typ string
}{
	{"occ_records", TypeOCC},
	{"occ", TypeOCC},
	{"opg_records", TypeOPG},
	{"opg", TypeOPG},
}

// untypedBuckets are top-level list keys whose records must carry their own
// type field.
var untypedBuckets = []string{"records", "items", "observations"}

// Normalize flattens one enrichment payload into the canonical record list.
// Records whose type cannot be determined are dropped; the second return
// value counts them.
func Normalize(raw map[string]any) ([]state.ObservationRecord, int) {
	if raw == nil {
		return nil, 0
	}
	var out []state.ObservationRecord
	dropped := 0

	add := func(item any, fixedType, fixedRisk string) {
		rec, ok := normalizeRecord(item, fixedType, fixedRisk)
		if !ok {
			dropped++
			return
		}
		out = append(out, rec)
	}

	for _, bucket := range typedBuckets {
		for _, item := range asList(raw[bucket.key]) {
			add(item, bucket.typ, "")
		}
	}
	for _, key := range untypedBuckets {
		for _, item := range asList(raw[key]) {
			add(item, "", "")
		}
	}

	// by_risk nests records under their risk ID, either as a plain list or
	// split into occ/opg sub-buckets.
	if byRisk, ok := raw["by_risk"].(map[string]any); ok {
		for _, riskID := range sortedKeys(byRisk) {
			switch v := byRisk[riskID].(type) {
			case []any:
				for _, item := range v {
					add(item, "", riskID)
				}
			case map[string]any:
				for _, bucket := range typedBuckets {
					for _, item := range asList(v[bucket.key]) {
						add(item, bucket.typ, riskID)
					}
				}
			}
		}
	}
	return out, dropped
}

func normalizeRecord(item any, fixedType, fixedRisk string) (state.ObservationRecord, bool) {
	fields, ok := item.(map[string]any)
	if !ok {
		return state.ObservationRecord{}, false
	}
	rec := state.ObservationRecord{
		ID:              firstString(fields, idAliases),
		RiskID:          firstString(fields, riskAliases),
		ControlID:       firstString(fields, controlAliases),
		AuditID:         firstString(fields, auditAliases),
		Type:            normalizeType(firstString(fields, typeAliases)),
		CriticalControl: firstBool(fields, criticalAliases),
	}
	if fixedRisk != "" && rec.RiskID == "" {
		rec.RiskID = fixedRisk
	}
	if fixedType != "" {
		rec.Type = fixedType
	}
	if rec.Type == "" || rec.RiskID == "" {
		return state.ObservationRecord{}, false
	}
	return rec, true
}

func normalizeType(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case TypeOCC:
		return TypeOCC
	case TypeOPG:
		return TypeOPG
	}
	return ""
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstString(fields map[string]any, aliases []string) string {
	for _, key := range aliases {
		if s, ok := fields[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstBool(fields map[string]any, aliases []string) bool {
	for _, key := range aliases {
		switch v := fields[key].(type) {
		case bool:
			return v
		case string:
			switch strings.ToLower(v) {
			case "true", "1", "si", "sí", "yes":
				return true
			case "false", "0", "no":
				return false
			}
		case float64:
			return v != 0
		}
	}
	return false
}
