package connpool

import "errors"

var errPoolDraining = errors.New("connpool: pool is draining")
