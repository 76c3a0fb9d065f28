package index

import "errors"

var ErrUnsupportedIndexType = errors.New("unsupported index type")
