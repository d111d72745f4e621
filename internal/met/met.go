// Package met provides match equity tables.
// A match equity table gives the chance of winning a match from a given score.
package met

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/yourusername/bgtable/pkg/engine"
)

// MaxAway is the largest points-away count a table holds.
const MaxAway = 64

// Table is a match equity table. Both axes count points away from winning
// the match, starting at 1.
type Table struct {
	Name        string
	Description string
	Length      int // Native length of the table

	// Pre[i][j] is the chance of the side i+1 away beating a side j+1 away.
	// The 1-away rows describe the Crawford game.
	Pre [MaxAway][MaxAway]float64

	// Post[i] is the chance of the side i+1 away beating a 1-away side after
	// the Crawford game.
	Post [MaxAway]float64
}

// XML parsing structures
type xmlMET struct {
	XMLName      xml.Name          `xml:"met"`
	Info         xmlInfo           `xml:"info"`
	PreCrawford  xmlPreCrawford    `xml:"pre-crawford-table"`
	PostCrawford []xmlPostCrawford `xml:"post-crawford-table"`
}

type xmlInfo struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Length      int    `xml:"length"`
}

type xmlPreCrawford struct {
	Rows []xmlRow `xml:"row"`
}

type xmlPostCrawford struct {
	Player string `xml:"player,attr"` // "0", "1", or "both"
	Row    xmlRow `xml:"row"`
}

type xmlRow struct {
	Values []string `xml:"me"`
}

// LoadXML loads a table from a file in the gnubg MET format.
func LoadXML(filename string) (*Table, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open match equity table: %w", err)
	}
	defer f.Close()
	return ParseXML(f)
}

// ParseXML parses a table in the gnubg MET format. Values missing from the
// file keep the defaults.
func ParseXML(r io.Reader) (*Table, error) {
	var doc xmlMET
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse match equity table: %w", err)
	}

	t := Default()
	t.Name = doc.Info.Name
	t.Description = doc.Info.Description
	t.Length = doc.Info.Length

	for i, row := range doc.PreCrawford.Rows {
		if i >= MaxAway {
			break
		}
		for j, val := range row.Values {
			if j >= MaxAway {
				break
			}
			f, err := parseValue(val)
			if err != nil {
				return nil, fmt.Errorf("pre-Crawford value [%d][%d]: %w", i, j, err)
			}
			t.Pre[i][j] = f
		}
	}

	// Tables are symmetric, so the first usable row serves both sides
	for _, pc := range doc.PostCrawford {
		if pc.Player != "0" && pc.Player != "both" && pc.Player != "" {
			continue
		}
		for j, val := range pc.Row.Values {
			if j >= MaxAway {
				break
			}
			f, err := parseValue(val)
			if err != nil {
				return nil, fmt.Errorf("post-Crawford value [%d]: %w", j, err)
			}
			t.Post[j] = f
		}
		break
	}
	return t, nil
}

func parseValue(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f > 1 {
		return 0, fmt.Errorf("%v is not a probability", f)
	}
	return f, nil
}

// Default returns a gammonless table. After the Crawford game the trailer
// doubles at once, so every game is worth two points to them.
func Default() *Table {
	t := &Table{
		Name:        "default",
		Description: "Gammonless approximation",
		Length:      MaxAway,
	}
	for a := 1; a <= MaxAway; a++ {
		t.Post[a-1] = math.Pow(0.5, math.Ceil(float64(a)/2))
	}
	for i := 0; i < MaxAway; i++ {
		for j := 0; j < MaxAway; j++ {
			switch {
			case i == 0 && j == 0:
				t.Pre[i][j] = 0.5
			case i == 0:
				// Crawford game: the trailer must win it, then the
				// post-Crawford games
				t.Pre[i][j] = 1 - 0.5*t.Post[j-1]
			case j == 0:
				t.Pre[i][j] = 0.5 * t.Post[i-1]
			default:
				t.Pre[i][j] = float64(j+1) / float64(i+j+2)
			}
		}
	}
	return t
}

// Lookup returns the chance of a side away points from winning beating a
// side oppAway points away. post selects the post-Crawford row when either
// side is 1 away.
func (t *Table) Lookup(away, oppAway int, post bool) float64 {
	switch {
	case away <= 0:
		return 1
	case oppAway <= 0:
		return 0
	}
	away, oppAway = min(away, MaxAway), min(oppAway, MaxAway)
	if post && (away == 1 || oppAway == 1) {
		switch {
		case away == oppAway:
			return 0.5
		case away == 1:
			return 1 - t.Post[oppAway-1]
		default:
			return t.Post[away-1]
		}
	}
	return t.Pre[away-1][oppAway-1]
}

// Equity returns c's chance of winning the match from m. Money play is
// always even.
func (t *Table) Equity(m engine.MatchState, c engine.Color) float64 {
	if m.IsMoney() {
		return 0.5
	}
	away := m.Length - m.Score.Of(c)
	oppAway := m.Length - m.Score.Of(c.Opponent())
	return t.Lookup(away, oppAway, m.PostCrawford || !m.CrawfordRule)
}

// TakePoint returns the lowest game winning chance at which responder should
// take a double of cube from m. It is 0.25 for money.
func (t *Table) TakePoint(m engine.MatchState, cube engine.Cube, responder engine.Color) float64 {
	if m.IsMoney() {
		return 0.25
	}
	after := func(winner engine.Color, points int) float64 {
		return t.Equity(engine.ApplyScore(m, winner, points).Advance(), responder)
	}
	doubler := responder.Opponent()
	pass := after(doubler, cube.Value)
	lose := after(doubler, 2*cube.Value)
	win := after(responder, 2*cube.Value)
	if win <= lose {
		return 0
	}
	return math.Min(1, math.Max(0, (pass-lose)/(win-lose)))
}
