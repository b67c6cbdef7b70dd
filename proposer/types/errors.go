package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the closed set of user-visible failure classes produced
// by the intention pipeline. Transports map kinds onto status codes
// without string matching; everything unrecognized is KindInternal.
type Kind int

const (
	// KindInternal covers store, chain, and content-store failures.
	KindInternal Kind = iota
	// KindValidation is a structural or semantic defect in a submission.
	KindValidation
	// KindSignatureInvalid means the recovered signer does not match the
	// submitted controller, or the signature is malformed.
	KindSignatureInvalid
	// KindUnauthorized means the signer does not control the source vault.
	KindUnauthorized
	// KindNoVault means the signer controls no vault and omitted from.
	KindNoVault
	// KindAmbiguousVault means the signer controls several vaults and
	// omitted from.
	KindAmbiguousVault
	// KindInsufficientBalance fails admission against local balances.
	KindInsufficientBalance
	// KindIntentionExpired means expiry is not in the future.
	KindIntentionExpired
	// KindNameUnresolved means a submitted name has no registry entry.
	KindNameUnresolved
	// KindMultiSourceUnsupported rejects intentions mixing source vaults.
	KindMultiSourceUnsupported
	// KindDepositInsufficient means discovered deposits cannot cover an
	// assignment request.
	KindDepositInsufficient
	// KindQueueFull is backpressure on the pending queue.
	KindQueueFull
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindSignatureInvalid:
		return "SIGNATURE_INVALID"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindNoVault:
		return "NO_VAULT"
	case KindAmbiguousVault:
		return "AMBIGUOUS_VAULT"
	case KindInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case KindIntentionExpired:
		return "INTENTION_EXPIRED"
	case KindNameUnresolved:
		return "NAME_UNRESOLVED"
	case KindMultiSourceUnsupported:
		return "MULTI_SOURCE_UNSUPPORTED"
	case KindDepositInsufficient:
		return "DEPOSIT_INSUFFICIENT"
	case KindQueueFull:
		return "QUEUE_FULL"
	default:
		return "INTERNAL"
	}
}

// Error is a pipeline failure tagged with its kind. Validation errors
// additionally carry the offending field and value.
type Error struct {
	Kind    Kind
	Field   string
	Value   string
	Context string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindValidation && e.Context != "":
		return fmt.Sprintf("%s: field %q value %q: %s", e.Kind, e.Field, e.Value, e.Context)
	case e.Kind == KindValidation:
		return fmt.Sprintf("%s: field %q value %q", e.Kind, e.Field, e.Value)
	case e.Context != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
	case e.Context != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

// Unwrap exposes the wrapped cause for errors.As / errors.Cause chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrValidation builds a ValidationError for a field and the value that
// failed, with optional human context.
func ErrValidation(field, value, context string) *Error {
	return &Error{Kind: KindValidation, Field: field, Value: value, Context: context}
}

// ErrKind builds an error of the given kind with human context.
func ErrKind(kind Kind, context string) *Error {
	return &Error{Kind: kind, Context: context}
}

// ErrInternal wraps an infrastructure failure so transports report it as
// internal while operators keep the cause chain.
func ErrInternal(err error, context string) *Error {
	return &Error{Kind: KindInternal, Context: context, Err: err}
}

// KindOf extracts the kind from any error in the chain, defaulting to
// KindInternal for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return kind == KindInternal && err != nil
}
