package domain

import "errors"

var (
	ErrNotConnected       = errors.New("terminal is not connected")
	ErrInvalidSignal      = errors.New("invalid signal")
	ErrSymbolNotTradeable = errors.New("symbol is not tradeable")
	ErrUnsupportedAction  = errors.New("unsupported action")
	ErrPricing            = errors.New("price unavailable")
	ErrBrokerRejection    = errors.New("order rejected by broker")
	ErrTransport          = errors.New("terminal transport error")
)
