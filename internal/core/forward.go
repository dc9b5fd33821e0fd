package core

import "strings"

// UnknownForward is stored in forward_from when the origin of a forwarded
// message could not be decoded.
const UnknownForward = "Unknown_Forward"

// ForwardOrigin describes where a forwarded message came from. Err is set by
// the source when it saw forward metadata it could not decode.
type ForwardOrigin struct {
	FromID   string
	FromName string
	Err      error
}

// ForwardKind tags how a ForwardResult was obtained.
type ForwardKind int

const (
	ForwardNone      ForwardKind = iota // not forwarded
	ForwardByID                         // structured origin identifier
	ForwardByName                       // display name fallback
	ForwardSentinel                     // extraction failed, UnknownForward substituted
	ForwardAnonymous                    // forwarded, but neither id nor name present
)

func (k ForwardKind) String() string {
	switch k {
	case ForwardNone:
		return "none"
	case ForwardByID:
		return "id"
	case ForwardByName:
		return "name"
	case ForwardSentinel:
		return "sentinel"
	case ForwardAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// ForwardResult is the outcome of resolving a message's forward origin.
type ForwardResult struct {
	Kind  ForwardKind
	value string
	Err   error // the extraction error behind a ForwardSentinel result
}

// Forwarded reports whether the message carried forward metadata at all.
func (r ForwardResult) Forwarded() bool { return r.Kind != ForwardNone }

// Value returns the forward_from value, or nil when there is none to store.
func (r ForwardResult) Value() *string {
	switch r.Kind {
	case ForwardByID, ForwardByName, ForwardSentinel:
		v := r.value
		return &v
	default:
		return nil
	}
}

// ResolveForward picks the identifier of a forward origin, preferring the
// structured id over the display name. Extraction errors never propagate.
func ResolveForward(origin *ForwardOrigin) ForwardResult {
	if origin == nil {
		return ForwardResult{Kind: ForwardNone}
	}
	if origin.Err != nil {
		return ForwardResult{Kind: ForwardSentinel, value: UnknownForward, Err: origin.Err}
	}
	if id := strings.TrimSpace(origin.FromID); id != "" {
		return ForwardResult{Kind: ForwardByID, value: id}
	}
	if name := strings.TrimSpace(origin.FromName); name != "" {
		return ForwardResult{Kind: ForwardByName, value: name}
	}
	return ForwardResult{Kind: ForwardAnonymous}
}
