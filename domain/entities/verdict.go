package entities

// Verdict is the reply to a verification request.
type Verdict string

const (
	VerdictMatch     Verdict = "MATCH"
	VerdictNoMatch   Verdict = "NO_MATCH"
	VerdictNoListing Verdict = "NO_LISTING"
	VerdictError     Verdict = "ERROR"
)

// Frame returns the newline terminated wire form of the verdict.
func (v Verdict) Frame() []byte {
	return []byte(string(v) + "\n")
}
