package alloc

import (
	"fmt"

	"facet/internal/ast"
	"facet/internal/engine"
	"facet/internal/value"
)

// Section is one atomic unit of context to be packed.
type Section struct {
	// ID is the block tag plus per-tag ordinal, e.g. "context#1".
	ID   string
	Kind ast.BlockKind

	// Payload is the rendered, JSON-serializable content.
	Payload value.Value

	// Base is the token count of the serialized payload.
	Base int

	Priority int
	Critical bool
	Min      int
	Shrink   float64
	Grow     int

	// Order is the section's document position, the allocator's tie-break.
	Order int
}

// SectionID formats the canonical section identifier.
func SectionID(kind ast.BlockKind, ordinal int) string {
	return fmt.Sprintf("%s#%d", kind, ordinal)
}

// reserved keys configure the section instead of contributing payload.
const (
	keyPriority = "priority"
	keyCritical = "critical"
	keyMin      = "min_tokens"
	keyShrink   = "shrink"
	keyGrow     = "grow"
)

// Build turns evaluated blocks into section descriptors. The meta block
// configures the compile, not a packed section, so it is skipped here.
// Defaults: system and user are critical with min equal to base and shrink
// zero; assistant and context are non-critical with min zero and shrink
// one half.
func Build(blocks []*engine.EvaluatedBlock, est Estimator) []*Section {
	var out []*Section
	for i, blk := range blocks {
		if blk.Kind == ast.BlockMeta {
			continue
		}
		s := &Section{
			ID:    SectionID(blk.Kind, blk.Ordinal),
			Kind:  blk.Kind,
			Order: i,
			Grow:  1,
		}
		switch blk.Kind {
		case ast.BlockSystem, ast.BlockUser:
			s.Critical = true
		default:
			s.Shrink = 0.5
		}

		var payload []value.Field
		for _, f := range blk.Entries {
			switch f.Key {
			case keyPriority:
				if f.Val.Kind() == value.KindInt {
					s.Priority = int(f.Val.AsInt())
					continue
				}
			case keyCritical:
				if f.Val.Kind() == value.KindBool {
					s.Critical = f.Val.AsBool()
					continue
				}
			case keyMin:
				if f.Val.Kind() == value.KindInt {
					s.Min = int(f.Val.AsInt())
					continue
				}
			case keyShrink:
				switch f.Val.Kind() {
				case value.KindFloat, value.KindInt:
					s.Shrink = clamp01(f.Val.AsFloat())
					continue
				}
			case keyGrow:
				if f.Val.Kind() == value.KindInt {
					s.Grow = int(f.Val.AsInt())
					continue
				}
			}
			payload = append(payload, f)
		}
		s.Payload = value.Map(payload)
		s.Base = est.Count(s.Payload.EncodeJSON(-1))
		if s.Critical {
			if s.Min == 0 {
				s.Min = s.Base
			}
			s.Shrink = 0
		}
		out = append(out, s)
	}
	return out
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
