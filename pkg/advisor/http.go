package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPOracle asks an analysis service for advice with JSON over HTTP. The
// service accepts POST {BaseURL}/advise and POST {BaseURL}/cube; Handler
// implements it.
type HTTPOracle struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPOracle returns an oracle for the service at baseURL.
func NewHTTPOracle(baseURL string) *HTTPOracle {
	return &HTTPOracle{BaseURL: strings.TrimRight(baseURL, "/"), Client: http.DefaultClient}
}

// Advise implements Oracle.
func (o *HTTPOracle) Advise(ctx context.Context, req Request) (*Advice, error) {
	r, err := o.post(ctx, "/"+KindAdvise, encodeRequest(KindAdvise, req))
	if err != nil {
		return nil, err
	}
	if r.Advice == nil {
		return nil, errors.New("oracle reply carries no advice")
	}
	return r.Advice, nil
}

// CubeAdvice implements Oracle.
func (o *HTTPOracle) CubeAdvice(ctx context.Context, req Request) (*CubeDecision, error) {
	r, err := o.post(ctx, "/"+KindCube, encodeRequest(KindCube, req))
	if err != nil {
		return nil, err
	}
	if r.Cube == nil {
		return nil, errors.New("oracle reply carries no cube decision")
	}
	return r.Cube, nil
}

func (o *HTTPOracle) post(ctx context.Context, path string, env envelope) (*reply, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("oracle status %d: %w", resp.StatusCode, err)
	}
	if r.Error != "" {
		return nil, errors.New("oracle returned: " + r.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle status %d", resp.StatusCode)
	}
	return &r, nil
}

// Handler serves o over HTTP at /advise and /cube, relative to where it is
// mounted.
func Handler(o Oracle) http.Handler {
	mux := http.NewServeMux()
	serve := func(kind string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				writeReply(w, http.StatusBadRequest, reply{Error: err.Error()})
				return
			}
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				writeReply(w, http.StatusBadRequest, reply{Error: "could not parse request: " + err.Error()})
				return
			}
			env.Kind = kind
			data, _ = json.Marshal(env)
			rep := answer(r.Context(), o, data)
			status := http.StatusOK
			if rep.Error != "" {
				status = http.StatusUnprocessableEntity
			}
			writeReply(w, status, rep)
		}
	}
	mux.HandleFunc("POST /"+KindAdvise, serve(KindAdvise))
	mux.HandleFunc("POST /"+KindCube, serve(KindCube))
	return mux
}

func writeReply(w http.ResponseWriter, status int, r reply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(r)
}
