package external

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/yourusername/bgtable/internal/positionid"
	"github.com/yourusername/bgtable/pkg/engine"
)

// StateDoc is the JSON document a GameState travels as: over the
// replication channel, in snapshots, and to API clients. The board is kept
// raw so decoding goes through NormalizeBoard and older shapes still load.
type StateDoc struct {
	Board      json.RawMessage `json:"board"`
	PositionID string          `json:"positionId,omitempty"`
	Dice       []int           `json:"dice"`
	Turn       string          `json:"turn"`
	Rolled     bool            `json:"rolled"`
	Cube       CubeDoc         `json:"cube"`
	Pending    *PendingDoc     `json:"pendingDouble,omitempty"`
	Match      MatchDoc        `json:"match"`
	Game       int             `json:"game"`
	Version    uint64          `json:"version"`
	Phase      string          `json:"phase,omitempty"`
	Result     *ResultDoc      `json:"result,omitempty"`
	LastResult *ResultDoc      `json:"lastResult,omitempty"`
}

// BoardDoc is the canonical board shape written by EncodeState.
type BoardDoc struct {
	Points [engine.NumPoints]int `json:"points"` // Positive White, negative Black
	Bar    SideDoc               `json:"bar"`
	Off    SideDoc               `json:"off"`
}

// SideDoc holds one number per side.
type SideDoc struct {
	White int `json:"white"`
	Black int `json:"black"`
}

type CubeDoc struct {
	Value int    `json:"value"`
	Owner string `json:"owner,omitempty"`
}

type PendingDoc struct {
	OfferedBy string    `json:"offeredBy"`
	At        time.Time `json:"at"`
}

type MatchDoc struct {
	Length       int     `json:"length"`
	Score        SideDoc `json:"score"`
	CrawfordRule bool    `json:"crawfordRule,omitempty"`
	Crawford     bool    `json:"crawford,omitempty"`
	PostCrawford bool    `json:"postCrawford,omitempty"`
	Jacoby       bool    `json:"jacoby,omitempty"`
}

type ResultDoc struct {
	Game      int    `json:"game"`
	Winner    string `json:"winner"`
	Kind      string `json:"kind"`
	CubeValue int    `json:"cubeValue"`
	Points    int    `json:"points"`
}

// EncodeBoard returns the canonical board document.
func EncodeBoard(b engine.Board) BoardDoc {
	var d BoardDoc
	for i, pt := range b.Points {
		switch pt.Owner {
		case engine.White:
			d.Points[i] = pt.Count
		case engine.Black:
			d.Points[i] = -pt.Count
		}
	}
	d.Bar = tallyDoc(b.Bar)
	d.Off = tallyDoc(b.Off)
	return d
}

// EncodeState converts a GameState to its wire document.
func EncodeState(gs engine.GameState) StateDoc {
	board, _ := json.Marshal(EncodeBoard(gs.Board))
	d := StateDoc{
		Board:      board,
		PositionID: positionid.Encode(gs.Board, gs.Turn),
		Dice:       append([]int{}, gs.Dice...),
		Turn:       gs.Turn.String(),
		Rolled:     gs.Rolled,
		Cube:       CubeDoc{Value: gs.Cube.Value, Owner: colorName(gs.Cube.Owner)},
		Match: MatchDoc{
			Length:       gs.Match.Length,
			Score:        tallyDoc(gs.Match.Score),
			CrawfordRule: gs.Match.CrawfordRule,
			Crawford:     gs.Match.Crawford,
			PostCrawford: gs.Match.PostCrawford,
			Jacoby:       gs.Match.Jacoby,
		},
		Game:       gs.GameNumber,
		Version:    gs.Version,
		Phase:      gs.Phase().String(),
		Result:     resultDoc(gs.Result),
		LastResult: resultDoc(gs.LastResult),
	}
	if pd, ok := gs.Pending.Get(); ok {
		d.Pending = &PendingDoc{OfferedBy: pd.OfferedBy.String(), At: pd.At}
	}
	return d
}

// Decode validates the document and converts it back to a GameState.
func (d StateDoc) Decode() (engine.GameState, error) {
	board, err := NormalizeBoard(d.Board)
	if err != nil {
		return engine.GameState{}, err
	}
	turn, ok := ColorFromName(d.Turn)
	if !ok {
		return engine.GameState{}, corrupt(fmt.Sprintf("unknown turn %q", d.Turn))
	}
	owner := engine.NoColor
	if d.Cube.Owner != "" {
		if owner, ok = ColorFromName(d.Cube.Owner); !ok {
			return engine.GameState{}, corrupt(fmt.Sprintf("unknown cube owner %q", d.Cube.Owner))
		}
	}

	gs := engine.GameState{
		Board:  board,
		Turn:   turn,
		Rolled: d.Rolled || len(d.Dice) > 0,
		Cube:   engine.Cube{Value: d.Cube.Value, Owner: owner},
		Match: engine.MatchState{
			Length:       d.Match.Length,
			Score:        engine.Tally{d.Match.Score.White, d.Match.Score.Black},
			CrawfordRule: d.Match.CrawfordRule,
			Crawford:     d.Match.Crawford,
			PostCrawford: d.Match.PostCrawford,
			Jacoby:       d.Match.Jacoby,
		},
		GameNumber: max(d.Game, 1),
		Version:    d.Version,
	}
	if len(d.Dice) > 0 {
		gs.Dice = engine.Dice(d.Dice)
	}
	if gs.Cube.Value == 0 {
		gs.Cube.Value = 1
	}
	if d.Pending != nil {
		by, ok := ColorFromName(d.Pending.OfferedBy)
		if !ok {
			return engine.GameState{}, corrupt(fmt.Sprintf("unknown doubling side %q", d.Pending.OfferedBy))
		}
		gs.Pending = engine.Some(engine.PendingDouble{OfferedBy: by, At: d.Pending.At})
	}
	if gs.Result, err = decodeResult(d.Result); err != nil {
		return engine.GameState{}, err
	}
	if gs.LastResult, err = decodeResult(d.LastResult); err != nil {
		return engine.GameState{}, err
	}

	if err := gs.Validate(); err != nil {
		return engine.GameState{}, err
	}
	return gs, nil
}

// MarshalState encodes a GameState as JSON.
func MarshalState(gs engine.GameState) ([]byte, error) {
	return json.Marshal(EncodeState(gs))
}

// UnmarshalState decodes and validates a JSON GameState.
func UnmarshalState(data []byte) (engine.GameState, error) {
	var d StateDoc
	if err := json.Unmarshal(data, &d); err != nil {
		return engine.GameState{}, corrupt(err.Error())
	}
	return d.Decode()
}

var winKinds = map[string]engine.WinKind{
	engine.WinSimple.String():     engine.WinSimple,
	engine.WinGammon.String():     engine.WinGammon,
	engine.WinBackgammon.String(): engine.WinBackgammon,
	engine.WinDropped.String():    engine.WinDropped,
}

func resultDoc(o engine.Option[engine.GameResult]) *ResultDoc {
	r, ok := o.Get()
	if !ok {
		return nil
	}
	return &ResultDoc{
		Game:      r.Game,
		Winner:    r.Winner.String(),
		Kind:      r.Kind.String(),
		CubeValue: r.CubeValue,
		Points:    r.Points,
	}
}

func decodeResult(d *ResultDoc) (engine.Option[engine.GameResult], error) {
	if d == nil {
		return engine.None[engine.GameResult](), nil
	}
	winner, ok := ColorFromName(d.Winner)
	kind, known := winKinds[d.Kind]
	if !ok || !known {
		return engine.None[engine.GameResult](), corrupt(fmt.Sprintf("bad result %s/%s", d.Winner, d.Kind))
	}
	return engine.Some(engine.GameResult{
		Game:      d.Game,
		Winner:    winner,
		Kind:      kind,
		CubeValue: d.CubeValue,
		Points:    d.Points,
	}), nil
}

func tallyDoc(t engine.Tally) SideDoc {
	return SideDoc{White: t.Of(engine.White), Black: t.Of(engine.Black)}
}

func colorName(c engine.Color) string {
	if !c.Valid() {
		return ""
	}
	return c.String()
}
