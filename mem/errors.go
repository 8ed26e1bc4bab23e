package mem

import "errors"

var (
	// ErrBadCapacity indicates a zero capacity was passed to a constructor.
	ErrBadCapacity = errors.New("mem: capacity must be > 0")

	// ErrBadSizeClasses indicates slab size classes that are empty or not
	// strictly increasing after power-of-two rounding.
	ErrBadSizeClasses = errors.New("mem: size classes must be strictly increasing after rounding")

	// ErrArenaTooLarge indicates a buddy capacity beyond the level system's
	// addressable range (minBlockSize << (maxLevels-1)).
	ErrArenaTooLarge = errors.New("mem: buddy arena exceeds maximum level size")
)
