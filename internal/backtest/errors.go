package backtest

import "errors"

// ErrDataUnavailable reports that an instrument has no usable weekly prices
// inside the signal window: the provider returned nothing, every week was
// missing, or the prices never overlap a defined signal.
var ErrDataUnavailable = errors.New("data unavailable")
