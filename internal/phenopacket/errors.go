package phenopacket

import "errors"

// Load failures are split so callers can tell "not JSON" apart from
// "not a phenopacket".
var (
	ErrParse  = errors.New("document is not well-formed JSON")
	ErrSchema = errors.New("document is not a phenopacket")
)
