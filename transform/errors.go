package transform

import "errors"

var errNoInverse = errors.New("transform: no inverse defined for this projection-only helper")
