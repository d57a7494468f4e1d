package gru

import "errors"

// Errors
var (
	ErrTeamCount       = errors.New("team count must be even and within the supported range")
	ErrWeekCount       = errors.New("bad week count")
	ErrMissingSource   = errors.New("missing source file")
	ErrSourceMismatch  = errors.New("source file does not match the requested search")
	ErrBadHeader       = errors.New("bad or missing header line")
	ErrBadLine         = errors.New("bad schedule line")
	ErrBadMatchup      = errors.New("matchup id out of range")
	ErrRepeatedMatchup = errors.New("matchup repeated within a week")
	ErrGameCount       = errors.New("team does not play exactly 3 games")
	ErrSpanExceeded    = errors.New("team slot span exceeds 5")
	ErrConsecutive     = errors.New("team plays three consecutive slots")
	ErrRoundOverflow   = errors.New("matchup repeated within a round")
	ErrRoundShort      = errors.New("straddling week leaves the round incomplete")
	ErrStoreClosed     = errors.New("tree store is closed")
)
