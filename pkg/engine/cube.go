package engine

import "time"

// MaxCubeValue is the highest value the cube can reach.
const MaxCubeValue = 64

// Cube is the doubling cube. Owner is NoColor while the cube is centered.
type Cube struct {
	Value int
	Owner Color
}

// CenteredCube returns the cube at the start of a game.
func CenteredCube() Cube {
	return Cube{Value: 1, Owner: NoColor}
}

// Centered reports whether either side may double.
func (c Cube) Centered() bool {
	return c.Owner == NoColor
}

// PendingDouble records an offered double awaiting a take or a drop.
type PendingDouble struct {
	OfferedBy Color
	At        time.Time
}

// CanOfferDouble reports whether requester may double now. A side cannot
// double after rolling, when the opponent owns the cube, once the cube is at
// its maximum, or during the Crawford game.
func CanOfferDouble(cube Cube, requester Color, rolledThisTurn bool, m MatchState) bool {
	switch {
	case !requester.Valid():
		return false
	case rolledThisTurn:
		return false
	case cube.Owner == requester.Opponent():
		return false
	case cube.Value >= MaxCubeValue:
		return false
	case m.CrawfordRule && m.Crawford:
		return false
	}
	return true
}

// OfferDouble records a double offered by requester. The cube value does not
// change until the opponent accepts.
func OfferDouble(gs GameState, requester Color, now time.Time) (GameState, error) {
	if err := gs.checkOpen(); err != nil {
		return gs, err
	}
	if _, ok := gs.Pending.Get(); ok {
		return gs, &InvalidCubeActionError{Action: "double", Color: requester, Reason: "a double is already pending"}
	}
	if requester != gs.Turn {
		return gs, &NotYourTurnError{Color: requester, Turn: gs.Turn}
	}
	if !CanOfferDouble(gs.Cube, requester, gs.Rolled, gs.Match) {
		return gs, &InvalidCubeActionError{Action: "double", Color: requester, Reason: offerBlocker(gs, requester)}
	}
	gs.Pending = Some(PendingDouble{OfferedBy: requester, At: now})
	gs.Version++
	return gs, nil
}

func offerBlocker(gs GameState, requester Color) string {
	switch {
	case gs.Rolled:
		return "dice already rolled this turn"
	case gs.Cube.Owner == requester.Opponent():
		return "opponent owns the cube"
	case gs.Cube.Value >= MaxCubeValue:
		return "cube is at its maximum"
	case gs.Match.Crawford:
		return "no doubling in the Crawford game"
	}
	return "cube not available"
}

// AcceptDouble takes the pending double: the cube value doubles and the
// accepting side owns it.
func AcceptDouble(gs GameState, responder Color) (GameState, error) {
	if _, err := pendingFor(gs, responder, "take"); err != nil {
		return gs, err
	}
	gs.Cube = Cube{Value: gs.Cube.Value * 2, Owner: responder}
	gs.Pending = None[PendingDouble]()
	gs.Version++
	return gs, nil
}

// RejectDouble drops the pending double. The offering side wins the game for
// the current, undoubled cube value. The returned state is terminal; use
// NextGame to continue the match.
func RejectDouble(gs GameState, responder Color) (GameState, GameResult, error) {
	pd, err := pendingFor(gs, responder, "pass")
	if err != nil {
		return gs, GameResult{}, err
	}
	gs.Pending = None[PendingDouble]()
	gs = finishGame(gs, pd.OfferedBy, WinDropped)
	gs.Version++
	res, _ := gs.Result.Get()
	return gs, res, nil
}

func pendingFor(gs GameState, responder Color, action string) (PendingDouble, error) {
	if err := gs.checkOpen(); err != nil {
		return PendingDouble{}, err
	}
	pd, ok := gs.Pending.Get()
	if !ok {
		return pd, &InvalidCubeActionError{Action: action, Color: responder, Reason: "no double pending"}
	}
	if responder != pd.OfferedBy.Opponent() {
		return pd, &InvalidCubeActionError{Action: action, Color: responder, Reason: "only the doubled side may respond"}
	}
	return pd, nil
}
