package linkscript

import (
	"fmt"
	"math"
)

// PatchResult is a linker script with space carved off the end of a region.
type PatchResult struct {
	// Script is the rewritten linker script
	Script string
	// Region is the declaration as found, before patching
	Region Region
	// NewLength is the region length after the reservation
	NewLength int64
	// Base is the first address of the reserved space
	Base int64
	// Line is the line of the patched declaration
	Line int
}

// Base32 returns Base as a 32-bit address, failing with ErrIntegerOverflow
// when it is negative or past 4 GiB.
func (r *PatchResult) Base32() (uint32, error) {
	if r.Base < 0 || r.Base > math.MaxUint32 {
		return 0, &Error{
			Region: r.Region.Name,
			Line:   r.Line,
			Err:    ErrIntegerOverflow,
			Detail: fmt.Sprintf("base address 0x%x does not fit in 32 bits", r.Base),
		}
	}
	return uint32(r.Base), nil
}

// Patch shrinks the named region by reserve bytes and returns the patched
// script along with the first address of the space taken away. Only the
// LENGTH expression is rewritten (as a hex literal); the rest of the script
// is copied unchanged. A zero reservation leaves the script byte-identical.
func Patch(script, name string, reserve int64) (*PatchResult, error) {
	if reserve < 0 {
		return nil, &Error{Region: name, Err: ErrInvalidReservation, Detail: fmt.Sprintf("reserve %d", reserve)}
	}

	m, err := FindRegion(script, name)
	if err != nil {
		return nil, err
	}

	if reserve > m.Region.Length {
		return nil, &Error{
			Region: name,
			Line:   m.Line,
			Err:    ErrReservedSpaceExceedsRegion,
			Detail: fmt.Sprintf("need 0x%x bytes, region has 0x%x", reserve, m.Region.Length),
		}
	}
	newLength := m.Region.Length - reserve
	if m.Region.Origin > 0 && newLength > math.MaxInt64-m.Region.Origin {
		return nil, &Error{Region: name, Line: m.Line, Err: ErrIntegerOverflow, Detail: "ORIGIN + LENGTH"}
	}

	res := &PatchResult{
		Script:    script,
		Region:    m.Region,
		NewLength: newLength,
		Base:      m.Region.Origin + newLength,
		Line:      m.Line,
	}
	if reserve != 0 {
		decl := m.Declaration[:m.lengthStart] + fmt.Sprintf("0x%x", newLength) + m.Declaration[m.lengthEnd:]
		res.Script = m.Before + decl + m.After
	}
	return res, nil
}
