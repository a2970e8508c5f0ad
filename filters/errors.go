package filters

type constErr string

func (e constErr) Error() string { return string(e) }

const (
	// ErrBadRegexp indicates the pattern given to Set failed to compile via
	// regexp.Compile. The previously configured filter for that field, if
	// any, is left untouched, matching filter_set's compile-before-commit
	// behavior.
	ErrBadRegexp = constErr("unable to compile regexp")
	// ErrUnknownField indicates a FieldID outside the closed set recognized
	// by Engine.
	ErrUnknownField = constErr("unknown filter field")
)
