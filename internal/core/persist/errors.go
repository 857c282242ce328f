package persist

import "errors"

// Serialization errors
var (
	// Fatal on write: a component cannot be emitted without a registered name.
	ErrUnregisteredComponent = errors.New("component type has no registered name")

	// Fatal on read: a name in the stream has no entry in the identifier
	// registry. There is no skip-unknown path in the format.
	ErrUnknownComponentType = errors.New("unknown component type name")

	// Fatal on read: a composition ID with no entry in the save's
	// composition table.
	ErrUnknownComposition = errors.New("unknown composition id")

	// Fatal on write: an entity without a valid composition. The sentinel
	// -1 never occurs for a live entity; hitting it is a precondition
	// violation, not a recoverable state.
	ErrMissingComposition = errors.New("entity has no valid composition")

	// Save-file errors

	ErrBadHeader          = errors.New("malformed save header")
	ErrUnsupportedVersion = errors.New("unsupported save format version")
	ErrChecksumMismatch   = errors.New("save checksum mismatch")
	ErrCorruptRecord      = errors.New("corrupt entity record")
)
