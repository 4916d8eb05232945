package publisher

import "errors"

// ErrPushFailed means every configured push endpoint failed at the transport
// level for one cycle.
var ErrPushFailed = errors.New("all push endpoints failed")
