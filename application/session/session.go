// Package session drives request/response cycles against user supplied targets.
//
// A session is a loop of independent cycles. Each cycle owns one connection and
// closes it before its response is displayed. A failing cycle is reported and
// followed by a fresh one; only an explicit exit ends an interactive session.
package session

import (
	"context"
	"log/slog"
	"socket-client/application/http"
	"socket-client/application/http/actor/client"
	"socket-client/application/util/target"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Plan is what a single cycle should request.
type Plan struct {
	URL    string
	Method string

	// Body is nil when no content is sent.
	Body []byte

	// Headers are sent in addition to the session wide headers, and win over them.
	Headers http.Fields
}

type Connector interface {
	Connect(ctx context.Context, t target.Target) (*client.Conn, error)
}

type Options struct {
	// Reference is run when the user asks for no specific target.
	Reference Plan

	// Headers are sent with every request.
	Headers http.Fields

	// Validator checks bodies of payload carrying methods. Nil checks well-formedness only.
	Validator *http.PayloadValidator

	// OnTransition is called on every state change.
	OnTransition func(from, to State)
}

type Controller struct {
	connector Connector
	prompter  *Prompter
	display   *Display
	stats     *Stats

	logger *slog.Logger
	clock  clock.Clock

	opts  Options
	state State
}

func New(
	connector Connector,
	prompter *Prompter,
	display *Display,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Controller {
	return &Controller{
		connector: connector,
		prompter:  prompter,
		display:   display,
		stats:     NewStats(),
		logger:    logger,
		clock:     clock,
		opts:      opts,
		state:     Idle,
	}
}

func (c *Controller) State() State  { return c.state }
func (c *Controller) Stats() *Stats { return c.stats }

func (c *Controller) transition(to State) {
	from := c.state
	c.state = to
	if c.opts.OnTransition != nil {
		c.opts.OnTransition(from, to)
	}
}

// Run prompts for cycles until the user exits or input ends.
// Failures end their own cycle only. The error is non-nil when ctx is done
// or input could not be read.
func (c *Controller) Run(ctx context.Context) error {
	defer c.terminate()

	for {
		c.transition(Idle)
		if err := ctx.Err(); err != nil {
			return err
		}

		plan, err := c.nextPlan()
		if err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			return err
		}

		if err := c.cycle(ctx, plan); err != nil {
			c.display.Failure(err)
			c.display.Notice("Starting over.")
			continue
		}

		c.transition(AwaitingUserDecision)
		if err := c.prompter.AskContinue(); err != nil {
			if errors.Is(err, ErrExit) {
				return nil
			}
			return err
		}
	}
}

// RunOnce runs a single cycle without prompting and returns its failure, if any.
func (c *Controller) RunOnce(ctx context.Context, plan Plan) error {
	defer c.terminate()

	c.transition(Idle)
	if err := c.cycle(ctx, plan); err != nil {
		c.display.Failure(err)
		return err
	}
	return nil
}

func (c *Controller) nextPlan() (Plan, error) {
	specific, err := c.prompter.AskSpecific()
	if err != nil {
		return Plan{}, err
	}

	if !specific {
		c.display.Notice("Running the reference request on " + c.opts.Reference.URL)
		return c.opts.Reference, nil
	}

	return c.prompter.AskPlan()
}

func (c *Controller) terminate() {
	c.transition(Terminated)
	c.display.Stats(c.stats)
	c.display.Notice("Exiting.")
}

// cycle runs one exchange. The connection is closed before the response is displayed.
func (c *Controller) cycle(ctx context.Context, plan Plan) (err error) {
	logger := c.logger.With(slog.String("cycle", uuid.NewString()))
	start := c.clock.Now()
	defer func() {
		elapsed := c.clock.Since(start)
		c.stats.Record(elapsed, err == nil)
		if err != nil {
			logger.Debug("cycle failed", slog.Duration("elapsed", elapsed), slog.Any("error", err))
			return
		}
		logger.Info("cycle done", slog.Duration("elapsed", elapsed))
	}()

	c.transition(Resolving)
	t, err := target.Parse(plan.URL)
	if err != nil {
		return err
	}

	if err := http.ValidateMethod(plan.Method); err != nil {
		return err
	}

	method := http.NormalizeMethod(plan.Method)
	if http.CarriesPayload(method) {
		if err := c.opts.Validator.Validate(plan.Body); err != nil {
			return err
		}
	}

	logger.Debug("target resolved", slog.String("target", t.String()), slog.String("method", method))

	res, exchangeErr := c.exchange(ctx, logger, t, method, plan)
	if res == nil {
		return exchangeErr
	}

	c.transition(Displaying)
	c.display.Response(res)

	return exchangeErr
}

// exchange connects, sends and receives. A partial response may come with an error.
func (c *Controller) exchange(
	ctx context.Context, logger *slog.Logger,
	t target.Target, method string, plan Plan,
) (*client.Response, error) {
	c.transition(Connecting)
	conn, err := c.connector.Connect(ctx, t)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debug("closing connection", slog.Any("error", err))
		}
	}()

	c.display.Summary(conn.Summary())

	c.transition(Sending)
	headers := plan.Headers.Clone()
	for _, f := range c.opts.Headers {
		headers.SetDefault(string(f.Name), string(f.Value))
	}

	for _, f := range headers {
		if http.IsManaged(f) {
			logger.Debug("dropping supplied header", slog.String("name", string(f.Name)))
		}
	}

	request := http.BuildRequest(method, t.HostHeader(), t.RequestTarget(), plan.Body, headers)
	n, sendErr := conn.Send(request)
	if sendErr != nil {
		// The peer may have answered before it stopped reading.
		logger.Debug("sending request", slog.Any("error", sendErr))
	} else {
		c.display.Sent(n)
	}

	c.transition(Receiving)
	res, err := conn.Accumulate()
	if sendErr != nil {
		if err != nil {
			logger.Debug("receiving after failed send", slog.Any("error", err))
		}
		return res, sendErr
	}
	return res, err
}
