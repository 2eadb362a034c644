package mqtt

import "errors"

// Sentinel errors. Broker failures wrap one of these.
var (
	ErrNotConnected      = errors.New("mqtt: not connected")
	ErrConnectionFailed  = errors.New("mqtt: connect")
	ErrPublishFailed     = errors.New("mqtt: publish")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe")
	ErrInvalidQoS        = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic      = errors.New("mqtt: empty topic")
)
