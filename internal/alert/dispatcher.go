package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"safeguard-bot/internal/domain"
	"safeguard-bot/internal/notify"
	"safeguard-bot/internal/observability"
)

// DefaultSendTimeout bounds one delivery attempt.
const DefaultSendTimeout = 10 * time.Second

// DefaultRetryDelay is the wait before the single retry of a transient
// send failure.
const DefaultRetryDelay = 2 * time.Second

// Outcome is the result of a dispatch.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// AlertMarker flips the alert-sent flag of a transaction.
type AlertMarker interface {
	MarkAlertSent(ctx context.Context, id int64) (bool, error)
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Sender  notify.Sender
	Marker  AlertMarker
	Timeout    time.Duration
	RetryDelay time.Duration
	Logger     *zerolog.Logger
}

// Dispatcher renders and sends alerts, recording successful delivery.
type Dispatcher struct {
	sender     notify.Sender
	marker     AlertMarker
	timeout    time.Duration
	retryDelay time.Duration
	logger     zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	d := &Dispatcher{
		sender:     opts.Sender,
		marker:     opts.Marker,
		timeout:    opts.Timeout,
		retryDelay: opts.RetryDelay,
		logger:     zerolog.Nop(),
	}
	if d.timeout <= 0 {
		d.timeout = DefaultSendTimeout
	}
	if d.retryDelay <= 0 {
		d.retryDelay = DefaultRetryDelay
	}
	if opts.Logger != nil {
		d.logger = opts.Logger.With().Str("component", "dispatcher").Logger()
	}
	return d
}

// Dispatch sends the alert for tx unless the decision withholds it or it
// was already sent. A transient send failure is retried once after the retry
// delay; an unreachable destination is not retried.
func (d *Dispatcher) Dispatch(ctx context.Context, token *domain.TrackedToken, tx *domain.Transaction, decision GateDecision) (Outcome, error) {
	log := d.logger.With().
		Str("chain", string(tx.Chain)).
		Int64("token", token.ID).
		Str("tx", tx.TxHash).
		Logger()

	if !decision.Emit || tx.AlertSent {
		observability.RecordAlert(string(tx.Chain), string(OutcomeSkipped))
		log.Debug().Str("reason", decision.Reason).Bool("already_sent", tx.AlertSent).Msg("alert skipped")
		return OutcomeSkipped, nil
	}

	msg := Render(token, tx, decision)

	err := d.send(ctx, msg)
	if err != nil && !errors.Is(err, notify.ErrDestinationUnreachable) && ctx.Err() == nil {
		log.Warn().Err(err).Dur("retry_in", d.retryDelay).Msg("alert send failed, retrying")
		t := time.NewTimer(d.retryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
			err = d.send(ctx, msg)
		}
	}
	if err != nil {
		observability.RecordAlert(string(tx.Chain), string(OutcomeFailed))
		if errors.Is(err, notify.ErrDestinationUnreachable) {
			log.Warn().Err(err).Int64("channel", token.ChannelID).Msg("alert destination unreachable")
		} else {
			log.Error().Err(err).Int64("id", tx.ID).Msg("alert lost, use alert resend to deliver it")
		}
		return OutcomeFailed, fmt.Errorf("send alert for tx %d: %w", tx.ID, err)
	}

	if _, err := d.marker.MarkAlertSent(ctx, tx.ID); err != nil {
		log.Error().Err(err).Int64("id", tx.ID).Msg("alert delivered but flag update failed")
	} else {
		tx.AlertSent = true
	}

	observability.RecordAlert(string(tx.Chain), string(OutcomeSent))
	log.Info().
		Str("direction", string(tx.Direction)).
		Bool("whale", decision.IsWhale).
		Msg("alert sent")
	return OutcomeSent, nil
}

func (d *Dispatcher) send(ctx context.Context, msg notify.Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.sender.Send(sendCtx, msg)
}
