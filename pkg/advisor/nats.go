package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSOracle asks a remote worker for advice with NATS request/reply.
type NATSOracle struct {
	nc      *nats.Conn
	subject string
}

// NewNATSOracle sends requests to subject on nc.
func NewNATSOracle(nc *nats.Conn, subject string) *NATSOracle {
	return &NATSOracle{nc: nc, subject: subject}
}

// Advise implements Oracle.
func (o *NATSOracle) Advise(ctx context.Context, req Request) (*Advice, error) {
	r, err := o.request(ctx, encodeRequest(KindAdvise, req))
	if err != nil {
		return nil, err
	}
	if r.Advice == nil {
		return nil, errors.New("oracle reply carries no advice")
	}
	return r.Advice, nil
}

// CubeAdvice implements Oracle.
func (o *NATSOracle) CubeAdvice(ctx context.Context, req Request) (*CubeDecision, error) {
	r, err := o.request(ctx, encodeRequest(KindCube, req))
	if err != nil {
		return nil, err
	}
	if r.Cube == nil {
		return nil, errors.New("oracle reply carries no cube decision")
	}
	return r.Cube, nil
}

func (o *NATSOracle) request(ctx context.Context, env envelope) (*reply, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	msg, err := o.nc.RequestWithContext(ctx, o.subject, data)
	if err != nil {
		if lerr := o.nc.LastError(); lerr != nil {
			log.Error().Err(lerr).Str("subject", o.subject).Msg("nats-connection-error")
		}
		return nil, err
	}
	log.Debug().Int("bytes", len(msg.Data)).Msg("oracle-reply")

	var r reply
	if err := json.Unmarshal(msg.Data, &r); err != nil {
		return nil, fmt.Errorf("decoding oracle reply: %w", err)
	}
	if r.Error != "" {
		return nil, errors.New("oracle returned: " + r.Error)
	}
	return &r, nil
}

// Serve answers oracle requests on subject with o until the subscription is
// drained or the connection closes. It is the worker side of NATSOracle.
func Serve(nc *nats.Conn, subject string, o Oracle) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(subject, func(m *nats.Msg) {
		log.Debug().Int("bytes", len(m.Data)).Msg("oracle-request")
		data, err := json.Marshal(answer(context.Background(), o, m.Data))
		if err != nil {
			data, _ = json.Marshal(reply{Error: err.Error()})
		}
		if err := m.Respond(data); err != nil {
			log.Err(err).Msg("oracle-respond-failed")
		}
	})
	if err != nil {
		return nil, err
	}
	if err := nc.Flush(); err != nil {
		return nil, err
	}
	log.Info().Str("subject", subject).Msg("oracle-worker-listening")
	return sub, nil
}

// answer decodes one request envelope and runs it against o. Failures are
// reported inside the reply.
func answer(ctx context.Context, o Oracle, data []byte) reply {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return reply{Error: "could not parse request: " + err.Error()}
	}
	req, err := env.decode()
	if err != nil {
		return reply{Error: "bad position: " + err.Error()}
	}
	switch env.Kind {
	case KindAdvise:
		a, err := o.Advise(ctx, req)
		if err != nil {
			return reply{Error: err.Error()}
		}
		return reply{Advice: a}
	case KindCube:
		d, err := o.CubeAdvice(ctx, req)
		if err != nil {
			return reply{Error: err.Error()}
		}
		return reply{Cube: d}
	}
	return reply{Error: fmt.Sprintf("unknown request kind %q", env.Kind)}
}
