package engine

// MatchState holds the running score and the rules that depend on it.
type MatchState struct {
	Score  Tally
	Length int // 0 = money game

	CrawfordRule bool // Enforce the Crawford rule in match play
	Crawford     bool // Current game is the Crawford game
	PostCrawford bool // Crawford game already played

	Jacoby bool // Money play: gammons count single until the cube is turned
}

// NewMatch returns a fresh match. A length of zero plays for money.
func NewMatch(length int, crawford, jacoby bool) MatchState {
	if length < 0 {
		length = 0
	}
	return MatchState{
		Length:       length,
		CrawfordRule: crawford && length > 0,
		Jacoby:       jacoby && length == 0,
	}
}

// IsMoney reports whether this is an open-ended money session.
func (m MatchState) IsMoney() bool {
	return m.Length == 0
}

// PointsForWin returns the points a win is worth at the given cube value.
func PointsForWin(kind WinKind, cubeValue int) int {
	return cubeValue * kind.Multiplier()
}

// GamePoints applies the Jacoby rule before PointsForWin: in money play with
// the rule on, a gammon or backgammon with a centered cube scores single.
func GamePoints(m MatchState, cube Cube, kind WinKind) int {
	if m.Jacoby && m.IsMoney() && cube.Centered() && (kind == WinGammon || kind == WinBackgammon) {
		kind = WinSimple
	}
	return PointsForWin(kind, cube.Value)
}

// ApplyScore adds points to the winner's running total.
func ApplyScore(m MatchState, winner Color, points int) MatchState {
	m.Score = m.Score.With(winner, m.Score.Of(winner)+points)
	return m
}

// IsMatchComplete reports whether some side reached the match length.
// Money sessions never complete.
func IsMatchComplete(m MatchState) bool {
	if m.Length <= 0 {
		return false
	}
	return m.Score.Of(White) >= m.Length || m.Score.Of(Black) >= m.Length
}

// MatchWinner returns the side that won the match, if any.
func MatchWinner(m MatchState) (Color, bool) {
	if !IsMatchComplete(m) {
		return NoColor, false
	}
	if m.Score.Of(White) >= m.Length {
		return White, true
	}
	return Black, true
}

// Advance updates the Crawford bookkeeping for the game about to start. The
// first game after either side reaches match point is the Crawford game; all
// later games are post-Crawford.
func (m MatchState) Advance() MatchState {
	if !m.CrawfordRule {
		return m
	}
	if m.Crawford {
		m.Crawford = false
		m.PostCrawford = true
		return m
	}
	if !m.PostCrawford && (m.Score.Of(White) == m.Length-1 || m.Score.Of(Black) == m.Length-1) {
		m.Crawford = true
	}
	return m
}
