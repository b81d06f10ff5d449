package engine

import "errors"

// Typed play-validation errors, checked in the order spec.md §4.D lists
// them; the coordinator reports the first one that fires and nothing else.
var (
	ErrWrongPhase          = errors.New("it is not the playing phase")
	ErrNotYourTurn         = errors.New("it is not your turn")
	ErrNotInHand           = errors.New("Card not in hand.")
	ErrMustLeadTwoOfClubs  = errors.New("must lead the two of clubs")
	ErrHeartsNotBroken     = errors.New("hearts have not been broken")
	ErrMustFollowSuit      = errors.New("must follow suit")
	ErrNoPointsFirstTrick  = errors.New("cannot play a point card on the first trick")
	ErrEmptyTrick          = errors.New("cannot determine the winner of an empty trick")
	ErrNotPassingPhase     = errors.New("it is not the passing phase")
	ErrAlreadyPassed       = errors.New("cards already submitted for this round")
	ErrPassMustBeThree     = errors.New("must pass exactly three cards")
	ErrPassNotDistinct     = errors.New("passed cards must be distinct")
	ErrPassNotInHand       = errors.New("passed card is not in your hand")
)
