package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request layer.
	ErrBadRequest      = "E_BAD_REQUEST"
	ErrNotLoaded       = "E_NOT_LOADED"
	ErrUninitialized   = "E_UNINITIALIZED"
	ErrUnknownMaterial = "E_UNKNOWN_MATERIAL"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrNotLoaded:       {},
	ErrUninitialized:   {},
	ErrUnknownMaterial: {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
