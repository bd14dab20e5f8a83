package operational

import (
	"fmt"
	"sort"

	"k9/internal/command"
	"k9/internal/state"
)

// Run aggregates the request's enrichment records into per-risk evidence.
// Gate: OPERATIONAL_QUERY only; any other intent returns the state unchanged
// plus one skip line.
func Run(st *state.State) *state.State {
	next := st.Clone()

	if st.Intent() != command.IntentOperational {
		next.Trace(fmt.Sprintf("operational_analysis: skip (intent gate, got %s)", st.Intent()))
		return next
	}

	records, dropped := Normalize(st.Enrichment)
	if len(records) == 0 {
		next.Trace("operational_analysis: skip (no enrichment records available)")
		return next
	}

	evidence := &state.OperationalEvidence{
		EvidenceByRisk: make(map[string]*state.RiskEvidence),
		TotalRecords:   len(records),
	}
	controls := make(map[string]map[string]bool)
	criticals := make(map[string]map[string]bool)

	for _, rec := range records {
		bucket := evidence.EvidenceByRisk[rec.RiskID]
		if bucket == nil {
			bucket = &state.RiskEvidence{}
			evidence.EvidenceByRisk[rec.RiskID] = bucket
			controls[rec.RiskID] = make(map[string]bool)
			criticals[rec.RiskID] = make(map[string]bool)
		}
		switch rec.Type {
		case TypeOCC:
			bucket.OCCCount++
			bucket.OCCRecords = append(bucket.OCCRecords, rec)
		case TypeOPG:
			bucket.OPGCount++
			bucket.OPGRecords = append(bucket.OPGRecords, rec)
		}
		if rec.ControlID != "" {
			controls[rec.RiskID][rec.ControlID] = true
			if rec.CriticalControl {
				criticals[rec.RiskID][rec.ControlID] = true
			}
		}
		evidence.Traceability = append(evidence.Traceability, state.TraceLink{
			ObservationID: rec.ID,
			RiskID:        rec.RiskID,
			ControlID:     rec.ControlID,
			AuditID:       rec.AuditID,
		})
	}

	for riskID, bucket := range evidence.EvidenceByRisk {
		bucket.ControlsAffected = sortedSet(controls[riskID])
		bucket.CriticalControlsAffected = sortedSet(criticals[riskID])
		if bucket.OCCCount > 0 {
			evidence.RisksWithOCC++
		}
	}

	next.Analysis.Operational = evidence
	next.Trace(fmt.Sprintf("operational_analysis: %d records normalized (%d dropped) across %d risks",
		len(records), dropped, len(evidence.EvidenceByRisk)))
	return next
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
