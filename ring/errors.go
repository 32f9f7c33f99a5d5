package ring

import "errors"

// ErrOutOfResources is returned by Push when src does not fully fit; the
// portion that does fit has already been written.
var ErrOutOfResources = errors.New("ring: out of resources")
