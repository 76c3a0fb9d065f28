package fio

import "errors"

var ErrUnsupportedIOType = errors.New("unsupported io type")
