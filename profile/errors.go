package profile

import "fmt"

// ProfileLoadError reports a profile that cannot be used: missing or malformed
// document, invalid declarations, or duplicate statement ids.
type ProfileLoadError struct {
	ProfileID string
	Path      string
	Reason    string
	Err       error
}

func (e *ProfileLoadError) Error() string {
	msg := "load profile"
	if e.ProfileID != "" {
		msg += " " + e.ProfileID
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProfileLoadError) Unwrap() error {
	return e.Err
}

// PatternResolutionError reports a reference to a pattern name that is not
// defined in the profile's pattern library.
type PatternResolutionError struct {
	Name string
	// Path locates the referencing fragment, e.g. statements[P106].references[0].
	Path string
}

func (e *PatternResolutionError) Error() string {
	return fmt.Sprintf("resolve pattern %q at %s: not defined in pattern library", e.Name, e.Path)
}

func loadError(reason string, err error) *ProfileLoadError {
	return &ProfileLoadError{Reason: reason, Err: err}
}
