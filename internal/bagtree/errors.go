package bagtree

import "errors"

var errNotSorted = errors.New("bagtree: BuildSorted input is not strictly ascending")
