package poll

import "errors"

var errNoCallback = errors.New("poll: callback pollable has no Callback func")
var errNotRegistered = errors.New("poll: no pollable registered for id")
