package ir

import "github.com/zerfoo/fusegen/kerr"

// errInvalidInput is a local alias kept so call sites in this package read
// naturally; it is the same sentinel every other package checks with
// errors.Is(err, kerr.InvalidInput).
var errInvalidInput = kerr.InvalidInput
