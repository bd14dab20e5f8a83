// Package temporal separates the user's semantic time intent (TimeContext)
// from the physical row range it resolves to (DataSlice). No node ever sees
// one without the other being resolved for its stage, and nothing in this
// package touches calendar dates: resolution is pure index arithmetic over
// the dataset's period count.
package temporal

import (
	"errors"
	"fmt"
)

// ============================================================================
// TIME CONTEXT (semantic)
// ============================================================================

// ContextType classifies how a time expression refers to the data.
type ContextType string

const (
	TypeRelative ContextType = "RELATIVE"
	TypeWindow   ContextType = "WINDOW"
	TypeAnchor   ContextType = "ANCHOR"
	TypeAbsolute ContextType = "ABSOLUTE"
)

// Confidence records whether the user stated the time or the system assumed it.
type Confidence string

const (
	ConfidenceExplicit Confidence = "EXPLICIT"
	ConfidenceInferred Confidence = "INFERRED"
)

// Relative vocabulary.
const (
	CurrentWeek = "CURRENT_WEEK"
	LastWeek    = "LAST_WEEK"
	Last2Weeks  = "LAST_2_WEEKS"
	Last4Weeks  = "LAST_4_WEEKS"
	LastMonth   = "LAST_MONTH"
)

// Window vocabulary.
const (
	WindowPre     = "PRE"
	WindowPost    = "POST"
	WindowPrePost = "PRE_POST"
)

// Anchor vocabulary.
const (
	AnchorCriticalMonday = "CRITICAL_MONDAY"
)

// Vocabulary maps each context type to its closed set of legal values.
// ABSOLUTE values are free-form period identifiers and are not listed.
var Vocabulary = map[ContextType]map[string]bool{
	TypeRelative: {
		CurrentWeek: true,
		LastWeek:    true,
		Last2Weeks:  true,
		Last4Weeks:  true,
		LastMonth:   true,
	},
	TypeWindow: {
		WindowPre:     true,
		WindowPost:    true,
		WindowPrePost: true,
	},
	TypeAnchor: {
		AnchorCriticalMonday: true,
	},
}

// TimeContext is the semantic time intent derived once by the Router and
// never mutated afterward.
type TimeContext struct {
	Type       ContextType `json:"type"`
	Value      string      `json:"value"`
	Confidence Confidence  `json:"confidence"`
}

// Default returns the context assumed when a command carries no time field.
func Default() *TimeContext {
	return &TimeContext{Type: TypeRelative, Value: CurrentWeek, Confidence: ConfidenceInferred}
}

func (tc *TimeContext) String() string {
	if tc == nil {
		return "none"
	}
	return fmt.Sprintf("%s/%s (%s)", tc.Type, tc.Value, tc.Confidence)
}

// ============================================================================
// DATA SLICE (physical)
// ============================================================================

// Resolution says whether a slice covers the full dataset or an index range.
type Resolution string

const (
	ResolutionFull  Resolution = "FULL"
	ResolutionIndex Resolution = "INDEX"
)

// DataSlice is a half-open [Start, End) range over period indices, never
// over raw row offsets.
type DataSlice struct {
	Resolution Resolution `json:"resolution"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
}

// FullSlice covers every period in the dataset.
func FullSlice() *DataSlice { return &DataSlice{Resolution: ResolutionFull} }

// IndexSlice covers periods [start, end).
func IndexSlice(start, end int) *DataSlice {
	return &DataSlice{Resolution: ResolutionIndex, Start: start, End: end}
}

func (ds *DataSlice) String() string {
	if ds == nil {
		return "none"
	}
	if ds.Resolution == ResolutionFull {
		return "FULL"
	}
	return fmt.Sprintf("INDEX[%d,%d)", ds.Start, ds.End)
}

// Periods returns how many periods an INDEX slice spans.
func (ds *DataSlice) Periods() int {
	if ds == nil || ds.Resolution != ResolutionIndex {
		return 0
	}
	return ds.End - ds.Start
}

// Check enforces the slice invariants against the dataset's period count.
// Violations are fatal contract errors, never clamped.
func (ds *DataSlice) Check(totalPeriods int) error {
	if ds == nil || ds.Resolution == ResolutionFull {
		return nil
	}
	if ds.Start < 0 {
		return fmt.Errorf("data slice start %d is negative", ds.Start)
	}
	if ds.End > totalPeriods {
		return fmt.Errorf("data slice end %d exceeds total periods %d", ds.End, totalPeriods)
	}
	if ds.Start >= ds.End {
		return fmt.Errorf("data slice start %d is not before end %d", ds.Start, ds.End)
	}
	return nil
}

// ============================================================================
// RESOLUTION
// ============================================================================

// DatasetTimeMetadata is what the resolver knows about the dataset: period
// bounds as opaque labels plus the distinct period count.
type DatasetTimeMetadata struct {
	MinPeriod    string `json:"min_period"`
	MaxPeriod    string `json:"max_period"`
	Granularity  string `json:"granularity"`
	TotalPeriods int    `json:"total_periods"`
}

// ErrUnresolvable signals a context this layer cannot resolve by design.
// WINDOW and ANCHOR contexts require event anchoring that must happen
// upstream before this layer is called.
var ErrUnresolvable = errors.New("time context not resolvable at this layer")

// monthPeriods fixes one month at exactly 4 weekly periods. A deliberate,
// testable simplification, not a calendar computation.
const monthPeriods = 4

// Resolve maps a semantic time context onto a physical data slice. A nil
// context resolves to the full dataset. Unknown type/value combinations are
// hard errors; this function never guesses.
func Resolve(tc *TimeContext, meta DatasetTimeMetadata) (*DataSlice, error) {
	if tc == nil {
		return FullSlice(), nil
	}
	total := meta.TotalPeriods
	switch tc.Type {
	case TypeRelative:
		switch tc.Value {
		case CurrentWeek:
			return IndexSlice(max(total-1, 0), total), nil
		case LastWeek:
			return IndexSlice(max(total-2, 0), max(total-1, 0)), nil
		case Last2Weeks:
			return IndexSlice(max(total-2, 0), total), nil
		case Last4Weeks, LastMonth:
			return IndexSlice(max(total-monthPeriods, 0), total), nil
		default:
			return nil, fmt.Errorf("unknown RELATIVE value %q", tc.Value)
		}
	case TypeWindow, TypeAnchor:
		return nil, fmt.Errorf("%s/%s: %w", tc.Type, tc.Value, ErrUnresolvable)
	default:
		return nil, fmt.Errorf("unknown time context type %q", tc.Type)
	}
}
