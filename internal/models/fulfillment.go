package models

// FulfillmentMode governs which redemption mechanisms a donor uses.
type FulfillmentMode string

const (
	FulfillmentCodeOnly        FulfillmentMode = "CODE_ONLY"
	FulfillmentTransferOnly    FulfillmentMode = "TRANSFER_ONLY"
	FulfillmentCodeAndTransfer FulfillmentMode = "CODE_AND_TRANSFER"

	DefaultFulfillmentMode = FulfillmentCodeOnly
)

// FulfillmentModes lists every accepted mode in display order.
var FulfillmentModes = []FulfillmentMode{
	FulfillmentCodeOnly,
	FulfillmentTransferOnly,
	FulfillmentCodeAndTransfer,
}

// Valid reports whether m is one of the enumerated modes.
func (m FulfillmentMode) Valid() bool {
	switch m {
	case FulfillmentCodeOnly, FulfillmentTransferOnly, FulfillmentCodeAndTransfer:
		return true
	}
	return false
}

// RequiresTransfer reports whether accepting in mode m moves internal points.
func (m FulfillmentMode) RequiresTransfer() bool {
	return m == FulfillmentTransferOnly || m == FulfillmentCodeAndTransfer
}

// RequiresCode reports whether accepting in mode m issues a redemption code.
func (m FulfillmentMode) RequiresCode() bool {
	return m == FulfillmentCodeOnly || m == FulfillmentCodeAndTransfer
}

// Label is the human readable name of the mode.
func (m FulfillmentMode) Label() string {
	switch m {
	case FulfillmentCodeOnly:
		return "Code only"
	case FulfillmentTransferOnly:
		return "Transfer only"
	case FulfillmentCodeAndTransfer:
		return "Code + transfer"
	}
	return string(m)
}

// ResolveFulfillmentMode returns raw as a mode when it is valid, otherwise fallback.
func ResolveFulfillmentMode(raw string, fallback FulfillmentMode) FulfillmentMode {
	if mode := FulfillmentMode(raw); mode.Valid() {
		return mode
	}
	return fallback
}

// ValidateOverride checks a per-acceptance override. A nil override means the
// donor's stored default applies and yields a nil mode. Anything that is not
// an enumerated mode, including the empty string, is ErrInvalidFulfillmentMode.
func ValidateOverride(raw *string) (*FulfillmentMode, error) {
	if raw == nil {
		return nil, nil
	}
	mode := FulfillmentMode(*raw)
	if !mode.Valid() {
		return nil, ErrInvalidFulfillmentMode
	}
	return &mode, nil
}
