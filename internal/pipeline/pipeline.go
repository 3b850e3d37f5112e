// Package pipeline implements the per-profile datagram processing chain:
// TZSP decapsulation, frame dissection, and the capture plan actions.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"firestige.xyz/tzspd/internal/config"
	"firestige.xyz/tzspd/internal/core"
	"firestige.xyz/tzspd/internal/core/decoder"
	"firestige.xyz/tzspd/internal/core/tzsp"
	"firestige.xyz/tzspd/internal/log"
	"firestige.xyz/tzspd/internal/metrics"
	"firestige.xyz/tzspd/pkg/plugin"
)

// Pipeline handles datagrams for one profile. Handle is safe for
// concurrent use once Start returned.
type Pipeline struct {
	listenerID int
	profile    *config.Profile
	plan       string
	actions    []plugin.Action
	stats      *metrics.Stats
	metrics    *Metrics
}

// Config contains pipeline configuration.
type Config struct {
	ListenerID int
	Profile    *config.Profile
	PlanName   string
	Actions    []plugin.Action
	Stats      *metrics.Stats // process totals, metrics.Global when nil
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Stats == nil {
		cfg.Stats = metrics.Global
	}
	return &Pipeline{
		listenerID: cfg.ListenerID,
		profile:    cfg.Profile,
		plan:       cfg.PlanName,
		actions:    cfg.Actions,
		stats:      cfg.Stats,
		metrics:    NewMetrics(cfg.Profile.Name),
	}
}

// Profile returns the profile this pipeline serves.
func (p *Pipeline) Profile() *config.Profile {
	return p.profile
}

// Start starts every action in plan order. On failure the actions already
// started are stopped again.
func (p *Pipeline) Start(ctx context.Context) error {
	log.GetLogger().WithFields(map[string]interface{}{
		"profile":    p.profile.Name,
		"listener":   p.listenerID,
		"plan":       p.plan,
		"actions":    len(p.actions),
		"proto_type": p.profile.ProtocolType,
	}).Info("pipeline starting")

	for i, a := range p.actions {
		if err := a.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = p.actions[j].Stop(ctx)
			}
			return err
		}
	}
	return nil
}

// Stop stops every action in reverse order and logs the pipeline totals.
func (p *Pipeline) Stop(ctx context.Context) error {
	var err error
	for i := len(p.actions) - 1; i >= 0; i-- {
		err = multierr.Append(err, p.actions[i].Stop(ctx))
	}

	s := p.Stats()
	log.GetLogger().WithFields(map[string]interface{}{
		"profile":   p.profile.Name,
		"received":  s.Received,
		"malformed": s.Malformed,
		"unparsed":  s.Unparsed,
		"parsed":    s.Parsed,
		"dropped":   s.Dropped,
		"sent":      s.Sent,
	}).Info("pipeline stopped")
	return err
}

// Handle decapsulates and dissects one datagram and runs the capture plan
// on the result. The datagram buffer may be reused once Handle returns.
func (p *Pipeline) Handle(ctx context.Context, d core.Datagram) core.Verdict {
	start := time.Now()
	defer func() {
		metrics.PipelineLatencySeconds.WithLabelValues(p.profile.Name).Observe(time.Since(start).Seconds())
	}()

	p.metrics.Received.Add(1)
	metrics.DatagramsTotal.WithLabelValues(p.profile.Name).Inc()

	offset, err := tzsp.Parse(d.Data)
	if err != nil {
		p.drop(d, "tzsp", err)
		return core.VerdictMalformed
	}

	frame := d.Data[offset:]
	msg, err := decoder.Dissect(frame, len(frame), d.Timestamp)
	if err != nil {
		p.drop(d, "frame", err)
		return core.VerdictMalformed
	}

	msg.ListenerID = p.listenerID
	msg.ProfileName = p.profile.Name
	msg.ProtoType = p.profile.ProtocolType
	msg.Sender = d.Sender

	verdict := core.VerdictOf(&msg, nil)
	if verdict == core.VerdictParsed {
		p.metrics.Parsed.Add(1)
	} else {
		p.metrics.Unparsed.Add(1)
	}
	metrics.VerdictsTotal.WithLabelValues(p.profile.Name, verdict.String()).Inc()
	p.stats.ObserveReceived(p.profile.Name, msg.IPProto)

	p.run(ctx, &msg)
	return verdict
}

// run executes the capture plan actions in order.
func (p *Pipeline) run(ctx context.Context, msg *core.Message) {
	for _, a := range p.actions {
		res, err := a.Handle(ctx, msg)
		if err != nil {
			p.metrics.ActionErrors.Add(1)
			metrics.ActionErrorsTotal.WithLabelValues(p.profile.Name, a.Name()).Inc()
			log.GetLogger().WithError(err).
				WithField("profile", p.profile.Name).
				WithField("action", a.Name()).
				Warn("capture plan action failed")
			continue
		}

		switch res {
		case plugin.Drop:
			p.metrics.Filtered.Add(1)
			return
		case plugin.Delivered:
			p.metrics.Sent.Add(1)
			p.stats.ObserveSent(p.profile.Name, a.Name())
		}
	}
}

// drop counts and logs a datagram that could not be decapsulated.
func (p *Pipeline) drop(d core.Datagram, category string, err error) {
	reason := core.Reason(err)
	p.metrics.Malformed.Add(1)
	p.metrics.Dropped.Add(1)
	metrics.VerdictsTotal.WithLabelValues(p.profile.Name, core.VerdictMalformed.String()).Inc()
	metrics.DropsTotal.WithLabelValues(p.profile.Name, reason).Inc()

	logger := log.GetLogger()
	if !logger.IsDebugEnabled() {
		return
	}
	fields := map[string]interface{}{
		"profile":  p.profile.Name,
		"category": category,
		"reason":   reason,
		"size":     len(d.Data),
	}
	if d.Sender != nil {
		fields["sender"] = d.Sender.String()
	}
	logger.WithFields(fields).WithError(err).Debug("datagram dropped")
}

// Overflow counts a datagram the receiver discarded because no worker was
// free to take it.
func (p *Pipeline) Overflow() {
	p.metrics.Received.Add(1)
	p.metrics.Dropped.Add(1)
	metrics.DatagramsTotal.WithLabelValues(p.profile.Name).Inc()
	metrics.DropsTotal.WithLabelValues(p.profile.Name, "queue_full").Inc()
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return p.metrics.Snapshot()
}
