package negentropy

import (
	"errors"
	"fmt"
)

// ErrInvalidIDSize reports an id_size outside [8, 32], either at New or when
// an id passed to Add does not match the configured id_size.
//
// Callers should use errors.Is(err, ErrInvalidIDSize).
var ErrInvalidIDSize = errors.New("negentropy: invalid id size")

// ErrFrameSizeLimitTooSmall reports a frame_size_limit in (0, 4096).
//
// Callers should use errors.Is(err, ErrFrameSizeLimitTooSmall).
var ErrFrameSizeLimitTooSmall = errors.New("negentropy: frame size limit too small")

// ErrAlreadySealed reports a second call to Seal, or an Add after Seal.
//
// Callers should use errors.Is(err, ErrAlreadySealed).
var ErrAlreadySealed = errors.New("negentropy: already sealed")

// ErrNotSealed reports a reconciliation operation attempted before Seal.
//
// Callers should use errors.Is(err, ErrNotSealed).
var ErrNotSealed = errors.New("negentropy: not sealed")

// ErrInitiator reports Reconcile called on an engine that already called
// Initiate.
//
// Callers should use errors.Is(err, ErrInitiator).
var ErrInitiator = errors.New("negentropy: initiator asking for non-initiator reconciliation")

// ErrNonInitiator reports ReconcileWithIDs called on an engine that never
// called Initiate.
//
// Callers should use errors.Is(err, ErrNonInitiator).
var ErrNonInitiator = errors.New("negentropy: non-initiator asking for have/need ids")

// ErrDeprecatedProtocol reports receipt of mode 3, the retired wire tag.
//
// Callers should use errors.Is(err, ErrDeprecatedProtocol).
var ErrDeprecatedProtocol = errors.New("negentropy: other side is speaking the deprecated protocol")

// ErrParseEndsPrematurely reports a length-prefixed field that runs past the
// end of the input frame.
//
// Callers should use errors.Is(err, ErrParseEndsPrematurely).
var ErrParseEndsPrematurely = errors.New("negentropy: frame ends prematurely")

// ErrPrematureEndOfVarInt reports a varint whose continuation bit is still
// set when the input is exhausted.
//
// Callers should use errors.Is(err, ErrPrematureEndOfVarInt).
var ErrPrematureEndOfVarInt = errors.New("negentropy: premature end of varint")

// ErrIDTooBig reports an attempt to build a bound with an id prefix longer
// than 32 bytes.
//
// Callers should use errors.Is(err, ErrIDTooBig).
var ErrIDTooBig = errors.New("negentropy: id too big")

// ErrUnexpectedMode reports a mode tag outside {0,1,2,3,4}. Mode carries the
// offending value for diagnostics; errors.Is still matches any
// ErrUnexpectedMode regardless of the value.
type ErrUnexpectedMode struct {
	Mode uint64
}

func (e *ErrUnexpectedMode) Error() string {
	return fmt.Sprintf("negentropy: unexpected mode: %d", e.Mode)
}

func (e *ErrUnexpectedMode) Is(target error) bool {
	_, ok := target.(*ErrUnexpectedMode)
	return ok
}
