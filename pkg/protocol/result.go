package protocol

// ResultCode is the categorized outcome of applying one transaction. Outcomes
// are values, not errors: a failing transaction is a regular result of a
// close, not a fault of the engine.
type ResultCode uint8

const (
	// ResultApplied - the transaction validated and mutated the working ledger.
	ResultApplied ResultCode = iota

	// ResultRetryPreSequence - the declared sequence is ahead of the account's;
	// an earlier transaction in the same candidate set may still supply it.
	ResultRetryPreSequence

	// ResultRetryNoDestination - the destination account does not exist yet;
	// another transaction in the same set may create it.
	ResultRetryNoDestination

	// ResultRetryUnfunded - the source is short of funds; an incoming transfer
	// in the same set may cover it.
	ResultRetryUnfunded

	// ResultPastSequence - the declared sequence was already consumed.
	ResultPastSequence

	// ResultMalformed - the payload violates the type's structural rules.
	ResultMalformed

	// ResultFrozen - the source account is frozen for this operation.
	ResultFrozen

	// ResultNoAccount - the source account does not exist.
	ResultNoAccount

	// ResultNoLine - no trust line exists to carry the issued asset.
	ResultNoLine

	// ResultNoPermission - the account is not allowed to perform the operation.
	ResultNoPermission

	// ResultUnknownType - no transactor is registered for the type tag.
	ResultUnknownType
)

// ResultClass partitions result codes into the three outcome categories the
// retry loop distinguishes.
type ResultClass uint8

const (
	ClassApplied ResultClass = iota
	ClassRetry
	ClassTerminal
)

// Class returns the outcome category of the code.
func (c ResultCode) Class() ResultClass {
	switch c {
	case ResultApplied:
		return ClassApplied
	case ResultRetryPreSequence, ResultRetryNoDestination, ResultRetryUnfunded:
		return ClassRetry
	default:
		return ClassTerminal
	}
}

func (c ResultCode) String() string {
	switch c {
	case ResultApplied:
		return "applied"
	case ResultRetryPreSequence:
		return "retryPreSequence"
	case ResultRetryNoDestination:
		return "retryNoDestination"
	case ResultRetryUnfunded:
		return "retryUnfunded"
	case ResultPastSequence:
		return "pastSequence"
	case ResultMalformed:
		return "malformed"
	case ResultFrozen:
		return "frozen"
	case ResultNoAccount:
		return "noAccount"
	case ResultNoLine:
		return "noLine"
	case ResultNoPermission:
		return "noPermission"
	case ResultUnknownType:
		return "unknownType"
	default:
		return "invalid"
	}
}
