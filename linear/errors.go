package linear

import "errors"

// ErrInvalidInput reports a shape or range mismatch in the supplied data:
// feature/label count mismatch, out-of-range class label, or a feature
// dimension that does not match the model.
var ErrInvalidInput = errors.New("linear: invalid input")

// ErrNotFitted reports use of a model before Fit has been called.
var ErrNotFitted = errors.New("linear: model is not fitted")
