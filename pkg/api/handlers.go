package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/yourusername/bgtable/pkg/advisor"
	"github.com/yourusername/bgtable/pkg/bot"
	"github.com/yourusername/bgtable/pkg/engine"
	"github.com/yourusername/bgtable/pkg/external"
	"github.com/yourusername/bgtable/pkg/match"
	"github.com/yourusername/bgtable/pkg/table"
)

// Options are the templates for tables and bots started through the API.
type Options struct {
	// Table is copied for every new table; names and match rules come from
	// the request.
	Table table.Options
	// Bot is copied for every bot; the color comes from the request.
	Bot bot.Config
}

// Handlers holds the HTTP handlers and the live tables they act on.
type Handlers struct {
	registry *table.Registry
	oracle   advisor.Oracle
	pool     *WorkerPool
	version  string
	opts     Options

	// ctx bounds the bots and replication loops started here.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	bots map[string]seat
}

type seat struct {
	color engine.Color
	stop  context.CancelFunc
}

// NewHandlers creates handlers over reg. A nil oracle uses the local
// heuristic; a nil pool gets the default limits.
func NewHandlers(reg *table.Registry, oracle advisor.Oracle, pool *WorkerPool, version string, opts Options) *Handlers {
	if oracle == nil {
		oracle = advisor.NewHeuristic()
	}
	if pool == nil {
		pool = NewWorkerPool(DefaultPoolConfig())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		registry: reg,
		oracle:   oracle,
		pool:     pool,
		version:  version,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		bots:     make(map[string]seat),
	}
}

// Attach starts replication for t and, when side is a valid color, a bot
// playing that side. Tables created through the API are attached
// automatically; restored tables are attached by the caller.
func (h *Handlers) Attach(t *table.Table, side engine.Color) {
	if h.opts.Table.Channel != nil {
		if err := t.Replicate(h.ctx); err != nil {
			log.Warn().Err(err).Str("table", t.ID()).Msg("replication-not-started")
		}
	}
	if !side.Valid() {
		return
	}
	cfg := h.opts.Bot
	if cfg.Timeout == 0 && cfg.SyncAttempts == 0 {
		cfg = bot.DefaultConfig(side)
	}
	cfg.Color = side
	b := bot.New(t, h.oracle, cfg)

	ctx, stop := context.WithCancel(h.ctx)
	h.mu.Lock()
	if old, ok := h.bots[t.ID()]; ok {
		old.stop()
	}
	h.bots[t.ID()] = seat{color: side, stop: stop}
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		b.Run(ctx)
	}()
}

// Close stops every bot and replication loop started by h.
func (h *Handlers) Close() {
	h.cancel()
	h.wg.Wait()
}

func (h *Handlers) detach(id string) {
	h.mu.Lock()
	s, ok := h.bots[id]
	delete(h.bots, id)
	h.mu.Unlock()
	if ok {
		s.stop()
	}
}

func (h *Handlers) botSide(id string) engine.Color {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.bots[id].color
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response-write-failed")
	}
}

// writeError writes an error response with the status and code that fit
// err.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", status).Msg("request-failed")
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

// requestError is a malformed request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

func classify(err error) (int, string) {
	var (
		bad     *requestError
		illegal *engine.IllegalMoveError
		turn    *engine.NotYourTurnError
		cube    *engine.InvalidCubeActionError
		corrupt *engine.CorruptStateError
	)
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, table.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &illegal):
		return http.StatusUnprocessableEntity, "illegal_move"
	case errors.As(err, &turn):
		return http.StatusConflict, "not_your_turn"
	case errors.As(err, &cube):
		return http.StatusConflict, "invalid_cube_action"
	case errors.Is(err, engine.ErrAlreadyRolled):
		return http.StatusConflict, "already_rolled"
	case errors.Is(err, engine.ErrMatchOver):
		return http.StatusConflict, "match_over"
	case errors.Is(err, engine.ErrGameOver):
		return http.StatusConflict, "game_over"
	case errors.As(err, &corrupt):
		return http.StatusBadRequest, "corrupt_state"
	case errors.Is(err, advisor.ErrAdvisoryUnavailable):
		return http.StatusServiceUnavailable, "oracle_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return badRequest("invalid request body: %v", err)
}

func (h *Handlers) table(r *http.Request) (*table.Table, error) {
	return h.registry.Get(chi.URLParam(r, "id"))
}

func (h *Handlers) gameAt(t *table.Table, gs engine.GameState) GameResponse {
	white, black := t.Players()
	resp := GameResponse{
		ID:        t.ID(),
		White:     white,
		Black:     black,
		LocalOnly: t.LocalOnly(),
		State:     external.EncodeState(gs),
	}
	if side := h.botSide(t.ID()); side.Valid() {
		resp.Bot = side.String()
	}
	return resp
}

func playerOf(name string) (engine.Color, error) {
	c, ok := external.ColorFromName(name)
	if !ok {
		return engine.NoColor, badRequest("unknown player %q", name)
	}
	return c, nil
}

func moveOf(req ActionRequest, c engine.Color) (from, to int, err error) {
	if req.Move != "" {
		from, to, err = external.ParseMove(req.Move, c)
	} else {
		if from, err = external.ParsePoint(req.From, c); err == nil {
			to, err = external.ParsePoint(req.To, c)
		}
	}
	if err != nil {
		return 0, 0, badRequest("%v", err)
	}
	return from, to, nil
}

// act applies one player action to t.
func (h *Handlers) act(ctx context.Context, t *table.Table, action string, req ActionRequest) (*ActionResponse, error) {
	c, err := playerOf(req.Player)
	if err != nil {
		return nil, err
	}
	if err := h.pool.AcquireAction(ctx); err != nil {
		return nil, err
	}
	defer h.pool.ReleaseAction()

	var (
		gs  engine.GameState
		out engine.Outcome
	)
	switch action {
	case "roll":
		gs, out, err = t.RollDice(ctx, c)
	case "move":
		from, to, perr := moveOf(req, c)
		if perr != nil {
			return nil, perr
		}
		gs, out, err = t.Move(ctx, c, from, to)
	case "double":
		gs, err = t.OfferDouble(ctx, c)
	case "take":
		gs, err = t.AcceptDouble(ctx, c)
	case "pass":
		gs, _, err = t.RejectDouble(ctx, c)
	case "forfeit":
		gs, err = t.ForfeitDice(ctx, c)
	default:
		return nil, badRequest("unknown action %q", action)
	}
	if err != nil {
		return nil, err
	}

	resp := &ActionResponse{
		GameResponse: h.gameAt(t, gs),
		Hit:          out.Hit,
		Deadlock:     out.Deadlock,
		Handoff:      out.Handoff,
	}
	if action == "move" {
		resp.Move = out.Move.Notation(c)
	}
	return resp, nil
}

// Health handles GET /api/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.pool.Stats()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: h.version,
		Tables:  h.registry.Len(),
		Pool:    &stats,
	})
}

// ListGames handles GET /api/games
func (h *Handlers) ListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GamesResponse{Games: h.registry.IDs()})
}

// CreateGame handles POST /api/games
func (h *Handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.MatchLength < 0 {
		writeError(w, badRequest("match length %d is negative", req.MatchLength))
		return
	}
	side := engine.NoColor
	if req.Bot != "" {
		c, err := playerOf(req.Bot)
		if err != nil {
			writeError(w, err)
			return
		}
		side = c
	}

	opts := h.opts.Table
	opts.White, opts.Black = req.White, req.Black
	if side == engine.White && opts.White == "" {
		opts.White = "bot"
	}
	if side == engine.Black && opts.Black == "" {
		opts.Black = "bot"
	}
	opts.Match = engine.NewMatch(req.MatchLength, req.Crawford, req.Jacoby)

	t := h.registry.Create(opts)
	h.Attach(t, side)
	log.Info().Str("table", t.ID()).Int("length", req.MatchLength).Str("bot", req.Bot).Msg("game-created")
	writeJSON(w, http.StatusCreated, h.gameAt(t, t.State()))
}

// GetGame handles GET /api/games/{id}
func (h *Handlers) GetGame(w http.ResponseWriter, r *http.Request) {
	t, err := h.table(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.gameAt(t, t.State()))
}

// DeleteGame handles DELETE /api/games/{id}
func (h *Handlers) DeleteGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.detach(id)
	if err := h.registry.Remove(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Action handles POST /api/games/{id}/{action}
func (h *Handlers) Action(w http.ResponseWriter, r *http.Request) {
	t, err := h.table(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req ActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Player == "" {
		req.Player = r.URL.Query().Get("player")
	}
	resp, err := h.act(r.Context(), t, chi.URLParam(r, "action"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Legal handles GET /api/games/{id}/legal?player=white. Without a player
// the side on turn is used.
func (h *Handlers) Legal(w http.ResponseWriter, r *http.Request) {
	t, err := h.table(r)
	if err != nil {
		writeError(w, err)
		return
	}
	gs := t.State()
	c := gs.Turn
	if name := r.URL.Query().Get("player"); name != "" {
		if c, err = playerOf(name); err != nil {
			writeError(w, err)
			return
		}
	}

	dests := make(map[string][]string)
	for from, tos := range t.LegalDestinations(c) {
		dests[external.FormatPoint(from, c)] = lo.Map(tos, func(p int, _ int) string {
			return external.FormatPoint(p, c)
		})
	}
	dice := gs.Dice
	if gs.Turn != c {
		dice = nil
	}
	writeJSON(w, http.StatusOK, LegalResponse{
		Player:       c.String(),
		Dice:         append([]int{}, dice...),
		Destinations: dests,
	})
}

// Log handles GET /api/games/{id}/log
func (h *Handlers) Log(w http.ResponseWriter, r *http.Request) {
	t, err := h.table(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LogResponse{Messages: t.Messages()})
}

// MatchFile handles GET /api/games/{id}/match.mat
func (h *Handlers) MatchFile(w http.ResponseWriter, r *http.Request) {
	t, err := h.table(r)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", t.ID()+".mat"))
	if err := match.ExportMAT(w, t.Record()); err != nil {
		log.Warn().Err(err).Str("table", t.ID()).Msg("mat-export-failed")
	}
}

// Hint handles GET /api/games/{id}/hint. It asks the oracle about the
// decision facing the side to act: a play when dice are up, otherwise the
// cube.
func (h *Handlers) Hint(w http.ResponseWriter, r *http.Request) {
	t, err := h.table(r)
	if err != nil {
		writeError(w, err)
		return
	}
	gs := t.State()
	c := gs.Turn
	if pd, ok := gs.Pending.Get(); ok {
		c = pd.OfferedBy.Opponent()
	}
	switch gs.Phase() {
	case engine.PhaseGameOver, engine.PhaseMatchOver:
		writeError(w, engine.ErrGameOver)
		return
	}

	if err := h.pool.AcquireAdvice(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	defer h.pool.ReleaseAdvice()

	req := advisor.NewRequest(gs, c)
	resp := HintResponse{Player: c.String()}
	if gs.Phase() == engine.PhaseDiceAvailable {
		adv, err := h.oracle.Advise(r.Context(), req)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", advisor.ErrAdvisoryUnavailable, err))
			return
		}
		resp.Moves = external.FormatMoves(adv.Moves, c)
		resp.WinProbability = adv.WinProbability
		resp.Equity = adv.Equity
		resp.StrategicAdvice = adv.StrategicAdvice
	} else {
		d, err := h.oracle.CubeAdvice(r.Context(), req)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", advisor.ErrAdvisoryUnavailable, err))
			return
		}
		resp.Double = d.Double
		resp.Take = d.Take
		resp.WinProbability = d.WinProbability
		resp.StrategicAdvice = d.Reason
	}
	writeJSON(w, http.StatusOK, resp)
}
