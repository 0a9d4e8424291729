package target

import (
	"context"

	"github.com/vk/projforge/internal/ctxlog"
	"github.com/vk/projforge/internal/errs"
	"github.com/vk/projforge/internal/fragment"
)

// digit is one position of the expansion odometer.
type digit struct {
	id   fragment.ID
	mask fragment.Bits
	cur  fragment.Bits
}

// Generate expands possibilities into concrete targets.
//
// Each non-zero field of a possibility is narrowed to the enumerable values it
// contains that also pass the registry's mask for that fragment. The narrowed
// fields then act as the digits of an odometer whose least significant digit
// is the last fragment by name; every reading becomes a target. A possibility
// with a field narrowed to nothing is discarded. Zero fields stay zero, and a
// possibility with no fields at all yields the empty target.
//
// Output order follows the possibilities and, within one, the odometer.
// Duplicates are dropped.
func Generate(ctx context.Context, layout *Layout, possibilities ...Target) ([]Target, error) {
	logger := ctxlog.FromContext(ctx)
	reg := layout.reg

	seen := make(map[string]bool)
	var out []Target

	for _, p := range possibilities {
		if p.layout == nil || p.layout.name != layout.name {
			return nil, errs.Configf("possibility %q belongs to layout %q, expected %q", p.String(), layoutName(p), layout.name)
		}

		digits, ok := narrow(layout, reg, p)
		if !ok {
			logger.Debug("Discarding target possibility: a fragment has no valid value left.", "layout", layout.name, "possibility", p.String())
			continue
		}

		for {
			t := Target{layout: layout}
			for _, d := range digits {
				t.fields[d.id] = d.cur
			}
			if key := t.String(); !seen[key] {
				seen[key] = true
				out = append(out, t)
			}

			i := len(digits) - 1
			for ; i >= 0; i-- {
				if next := digits[i].mask.NextAfter(digits[i].cur); next != 0 {
					digits[i].cur = next
					break
				}
				digits[i].cur = digits[i].mask.Lowest()
			}
			if i < 0 {
				break
			}
		}
	}

	logger.Debug("Generated targets.", "layout", layout.name, "possibilities", len(possibilities), "targets", len(out))
	return out, nil
}

func narrow(layout *Layout, reg *fragment.Registry, p Target) ([]digit, bool) {
	var digits []digit
	for _, typ := range layout.types {
		raw := p.fields[typ.ID()]
		if raw == 0 {
			continue
		}
		var filtered fragment.Bits
		for _, v := range typ.Values() {
			if raw&v.Bits != 0 && reg.Valid(typ.ID(), v.Bits) {
				filtered |= v.Bits
			}
		}
		if filtered == 0 {
			return nil, false
		}
		digits = append(digits, digit{id: typ.ID(), mask: filtered, cur: filtered.Lowest()})
	}
	return digits, true
}
