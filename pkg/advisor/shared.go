package advisor

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/yourusername/bgtable/pkg/engine"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 10 * time.Second

// Shared wraps an Oracle for concurrent use. Identical requests in flight at
// the same time share one upstream call, every call is bounded by Timeout,
// and all failures, including answers that do not fit the position, come
// back as ErrAdvisoryUnavailable.
type Shared struct {
	oracle  Oracle
	timeout time.Duration
	group   singleflight.Group
	calls   atomic.Int64
}

// NewShared wraps o. A zero timeout means DefaultTimeout.
func NewShared(o Oracle, timeout time.Duration) *Shared {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Shared{oracle: o, timeout: timeout}
}

// Calls returns the number of upstream requests issued so far.
func (s *Shared) Calls() int64 {
	return s.calls.Load()
}

// Advise implements Oracle.
func (s *Shared) Advise(ctx context.Context, req Request) (*Advice, error) {
	v, err, _ := s.group.Do(requestKey("advise", req), func() (any, error) {
		cctx, cancel := s.callContext(ctx)
		defer cancel()
		a, err := s.oracle.Advise(cctx, req)
		if err != nil {
			return nil, s.unavailable(req, err)
		}
		if a == nil {
			return nil, s.unavailable(req, fmt.Errorf("empty response"))
		}
		usable := *a
		usable.Moves = playable(req, a.Moves)
		if len(usable.Moves) == 0 && engine.HasLegalMove(req.Board, req.Player, req.Dice) {
			return nil, s.unavailable(req, fmt.Errorf("no playable moves in %v", a.Moves))
		}
		return &usable, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Advice), nil
}

// CubeAdvice implements Oracle.
func (s *Shared) CubeAdvice(ctx context.Context, req Request) (*CubeDecision, error) {
	v, err, _ := s.group.Do(requestKey("cube", req), func() (any, error) {
		cctx, cancel := s.callContext(ctx)
		defer cancel()
		d, err := s.oracle.CubeAdvice(cctx, req)
		if err != nil {
			return nil, s.unavailable(req, err)
		}
		if d == nil {
			return nil, s.unavailable(req, fmt.Errorf("empty response"))
		}
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CubeDecision), nil
}

// callContext detaches the upstream call from the first caller's
// cancellation, since other callers may be waiting on the same result.
func (s *Shared) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	s.calls.Add(1)
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

func (s *Shared) unavailable(req Request, err error) error {
	log.Warn().Err(err).Str("position", req.PositionID).Str("player", req.Player.String()).
		Msg("oracle-unavailable")
	return fmt.Errorf("%w: %v", ErrAdvisoryUnavailable, err)
}

// playable keeps the longest prefix of moves that applies legally in order.
func playable(req Request, moves []engine.Move) []engine.Move {
	b, dice := req.Board, req.Dice
	for i, m := range moves {
		next, err := engine.ApplyMove(b, req.Player, m.From, m.To, m.Die)
		if err != nil {
			return moves[:i]
		}
		rest, ok := dice.Consume(m.Die)
		if !ok {
			return moves[:i]
		}
		b, dice = next, rest
	}
	return moves
}

// requestKey fingerprints everything an answer depends on.
func requestKey(kind string, req Request) string {
	h := xxhash.New()
	for _, s := range []string{
		kind,
		req.PositionID,
		req.Player.String(),
		req.Turn.String(),
		req.Dice.Key(),
		strconv.Itoa(req.Cube.Value),
		req.Cube.Owner.String(),
		fmt.Sprint(req.Match),
	} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
