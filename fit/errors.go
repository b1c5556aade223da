package fit

import "errors"

// Error kinds per the specification's error taxonomy (§7). The
// matcher and fitter never use these for normal "no match/no outlier"
// control flow; they return typed results for that. These are for
// genuine failures.
var (
	// ErrFactorizationFailed means the Hessian was not positive
	// definite or was singular; fatal for the current Minimize call.
	ErrFactorizationFailed = errors.New("fit: Hessian factorization failed")

	// ErrDegenerateInput means an empty star list, all-collinear
	// points, or zero parameters after AssignIndices.
	ErrDegenerateInput = errors.New("fit: degenerate input")
)
