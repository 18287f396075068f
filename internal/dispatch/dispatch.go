// Package dispatch authenticates API requests, parses them into commands and
// runs them against the job builder, tag router, queue store and wake signaler.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/zulandar/graderqueue/internal/apperr"
	"github.com/zulandar/graderqueue/internal/auth"
	"github.com/zulandar/graderqueue/internal/job"
	"github.com/zulandar/graderqueue/internal/queue"
	"github.com/zulandar/graderqueue/internal/tags"
	"go.uber.org/zap"
)

// Authenticator resolves the caller of a raw request.
type Authenticator interface {
	Resolve(ctx context.Context, raw auth.RawRequest) (auth.Identity, auth.Request, error)
}

// Waker sends advisory wake signals.
type Waker interface {
	WakeByTypes(ctx context.Context, typeIDs []uint)
	WakeByID(ctx context.Context, serverID uint) bool
}

// Envelope is the JSON body of every API response.
type Envelope struct {
	ErrorCode int          `json:"errorcode"`
	ErrorMsg  string       `json:"errormsg"`
	JobID     uint         `json:"jobid,omitempty"`
	Origin    queue.Origin `json:"origin,omitempty"`
	Record    any          `json:"record,omitempty"`
}

// Response is an envelope plus work to run once it has been delivered.
type Response struct {
	Envelope
	// FollowUp, when set, must run after the envelope was flushed.
	FollowUp func(ctx context.Context) `json:"-"`
}

// Opts holds the dispatcher's collaborators.
type Opts struct {
	Auth    Authenticator
	Builder *job.Builder
	Router  *tags.Router
	Store   *queue.Store
	Wake    Waker
	Logger  *zap.Logger
}

// Dispatcher handles API requests.
type Dispatcher struct {
	auth    Authenticator
	builder *job.Builder
	router  *tags.Router
	store   *queue.Store
	wake    Waker
	log     *zap.Logger
}

// New returns a Dispatcher.
func New(opts Opts) (*Dispatcher, error) {
	if opts.Auth == nil || opts.Builder == nil || opts.Router == nil || opts.Store == nil || opts.Wake == nil {
		return nil, fmt.Errorf("dispatch: auth, builder, router, store and wake are required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		auth:    opts.Auth,
		builder: opts.Builder,
		router:  opts.Router,
		store:   opts.Store,
		wake:    opts.Wake,
		log:     log,
	}, nil
}

// Handle authenticates and executes one request. It never returns nil.
func (d *Dispatcher) Handle(ctx context.Context, raw auth.RawRequest) *Response {
	id, req, err := d.auth.Resolve(ctx, raw)
	if err != nil {
		return d.fail("", err)
	}
	cmd, err := ParseCommand(req)
	if err != nil {
		return d.fail("", err)
	}

	log := d.log.With(zap.String("command", cmd.name()), zap.Int64("identity", id.ID))
	resp, err := d.run(ctx, id, cmd)
	if err != nil {
		return d.fail(cmd.name(), err)
	}
	log.Debug("dispatch: handled", zap.Int("errorcode", resp.ErrorCode))
	return resp
}

func (d *Dispatcher) run(ctx context.Context, id auth.Identity, cmd Command) (*Response, error) {
	switch c := cmd.(type) {
	case SendJob:
		desc, err := d.builder.FromRaw(c.JobData)
		if err != nil {
			return nil, err
		}
		return d.submit(ctx, id, desc, c.JobName, c.Priority, c.Tags)

	case SendSolution:
		desc, name, err := d.builder.FromSolution(c.Params)
		if err != nil {
			return nil, err
		}
		return d.submit(ctx, id, desc, name, c.Priority, c.Tags)

	case GetJob:
		st, err := d.store.Status(ctx, c.JobID, id.ID)
		if err != nil {
			return nil, err
		}
		return &Response{Envelope: Envelope{
			ErrorCode: apperr.CodeSuccess,
			ErrorMsg:  "Success",
			Origin:    st.Origin,
			Record:    st.Record,
		}}, nil

	case Test:
		return ok(fmt.Sprintf("Connected as platform id %d", id.ID)), nil

	case Wakeup:
		if !id.IsSentinel() {
			return nil, apperr.Validation(MsgNotAllowed)
		}
		if d.wake.WakeByID(ctx, c.ServerID) {
			return ok("Server wake-up successful."), nil
		}
		return nil, apperr.Temporary("Server wake-up failed.")
	}
	return nil, apperr.Validation(MsgNoRequest)
}

// submit is the shared tail of sendjob and sendsolution.
func (d *Dispatcher) submit(ctx context.Context, id auth.Identity, desc job.Descriptor, name string, priority int, tagNames []string) (*Response, error) {
	typeIDs, err := d.router.Resolve(ctx, tagNames, id.ForceTagID)
	if err != nil {
		return nil, err
	}
	jobID, err := d.store.Enqueue(ctx, queue.EnqueueOpts{
		Name:          name,
		Priority:      job.ClampPriority(priority),
		Owner:         id.ID,
		Tags:          tagNames,
		RestrictPaths: id.RestrictPaths,
		Descriptor:    desc,
		TypeIDs:       typeIDs,
	})
	if err != nil {
		return nil, err
	}
	d.log.Info("dispatch: job queued",
		zap.Uint("job_id", jobID),
		zap.String("name", name),
		zap.Int64("owner", id.ID),
		zap.Uints("type_ids", typeIDs))

	resp := ok(fmt.Sprintf("Queued as job ID #%d.", jobID))
	resp.JobID = jobID
	resp.FollowUp = func(ctx context.Context) {
		d.wake.WakeByTypes(ctx, typeIDs)
	}
	return resp, nil
}

func ok(msg string) *Response {
	return &Response{Envelope: Envelope{ErrorCode: apperr.CodeSuccess, ErrorMsg: msg}}
}

func (d *Dispatcher) fail(command string, err error) *Response {
	fields := []zap.Field{zap.String("command", command), zap.Error(err)}
	var ae *apperr.Error
	switch {
	case !errors.As(err, &ae) || ae.Kind == apperr.KindStorage:
		d.log.Error("dispatch: request failed", fields...)
	case ae.Kind == apperr.KindAuth:
		d.log.Info("dispatch: authentication refused", fields...)
	default:
		d.log.Debug("dispatch: request rejected", fields...)
	}
	return &Response{Envelope: Envelope{
		ErrorCode: apperr.Code(err),
		ErrorMsg:  apperr.Message(err),
	}}
}
