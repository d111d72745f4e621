package advisor

import (
	"fmt"

	"github.com/yourusername/bgtable/internal/positionid"
	"github.com/yourusername/bgtable/pkg/engine"
)

// Request kinds carried in an envelope.
const (
	KindAdvise = "advise"
	KindCube   = "cube"
)

// envelope is the JSON body exchanged with remote oracles.
type envelope struct {
	Kind       string      `json:"kind"`
	PositionID string      `json:"positionId"`
	Player     int         `json:"player"`
	Turn       int         `json:"turn"`
	Dice       []int       `json:"dice,omitempty"`
	CubeValue  int         `json:"cubeValue"`
	CubeOwner  int         `json:"cubeOwner"`
	Match      matchFields `json:"match"`
}

type matchFields struct {
	Length       int    `json:"length"`
	Score        [2]int `json:"score"`
	CrawfordRule bool   `json:"crawfordRule,omitempty"`
	Crawford     bool   `json:"crawford,omitempty"`
	Jacoby       bool   `json:"jacoby,omitempty"`
}

// reply is the JSON answer from a remote oracle. Exactly one of Advice,
// Cube and Error is set.
type reply struct {
	Advice *Advice       `json:"advice,omitempty"`
	Cube   *CubeDecision `json:"cube,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func encodeRequest(kind string, req Request) envelope {
	id := req.PositionID
	if id == "" {
		id = positionid.Encode(req.Board, req.Turn)
	}
	return envelope{
		Kind:       kind,
		PositionID: id,
		Player:     int(req.Player),
		Turn:       int(req.Turn),
		Dice:       req.Dice,
		CubeValue:  req.Cube.Value,
		CubeOwner:  int(req.Cube.Owner),
		Match: matchFields{
			Length:       req.Match.Length,
			Score:        req.Match.Score,
			CrawfordRule: req.Match.CrawfordRule,
			Crawford:     req.Match.Crawford,
			Jacoby:       req.Match.Jacoby,
		},
	}
}

func (e envelope) decode() (Request, error) {
	turn := engine.Color(e.Turn)
	board, err := positionid.Decode(e.PositionID, turn)
	if err != nil {
		return Request{}, err
	}
	player := engine.Color(e.Player)
	if !player.Valid() {
		return Request{}, fmt.Errorf("unknown player %d", e.Player)
	}
	m := engine.NewMatch(e.Match.Length, e.Match.CrawfordRule, e.Match.Jacoby)
	m.Score = e.Match.Score
	m.Crawford = e.Match.Crawford
	return Request{
		Board:      board,
		Dice:       engine.Dice(e.Dice),
		Player:     player,
		Turn:       turn,
		Cube:       engine.Cube{Value: max(e.CubeValue, 1), Owner: engine.Color(e.CubeOwner)},
		Match:      m,
		PositionID: e.PositionID,
	}, nil
}
