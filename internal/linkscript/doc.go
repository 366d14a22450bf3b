// Package linkscript reads and patches MEMORY region declarations in GNU ld
// style linker scripts.
//
// Only the subset needed to reserve flash for blobs is understood: region
// declarations of the form
//
//	FLASH (rx) : ORIGIN = 0x10000100, LENGTH = 2048K - 0x100
//
// and the arithmetic used in their ORIGIN and LENGTH fields (hex and decimal
// literals, K and M suffixes, unary minus, + and -, parentheses). /* */
// comments may appear wherever a space may, and arguments may continue on the
// next line after a comma. Everything else in a script is treated as opaque
// text and copied through unchanged.
//
// # Usage
//
//	res, err := linkscript.Patch(script, "FLASH", 0x200)
//	if err != nil {
//	    return err
//	}
//	// res.Script is the new memory.x, res.Base the first reserved address
//
// # Errors
//
// Every error matches one of ErrParse, ErrIntegerOverflow, ErrRegionNotFound,
// ErrMissingOrigin, ErrMissingLength, ErrReservedSpaceExceedsRegion or
// ErrInvalidReservation with errors.Is. Region failures are reported as
// *Error with the region name and line; expression failures as *ParseError.
package linkscript
