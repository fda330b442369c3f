package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"feedsieve/internal/domain"
	"feedsieve/internal/store"
)

var ErrDigestRunning = errors.New("digest already running")

// Message is one rendered digest addressed to its recipient.
type Message struct {
	ID      string
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// SendResult is the outcome of one delivery attempt. Senders report
// failures here instead of returning errors.
type SendResult struct {
	OK        bool
	MessageID string
	Error     string
}

func Sent(messageID string) SendResult { return SendResult{OK: true, MessageID: messageID} }

func Failed(err error) SendResult { return SendResult{Error: err.Error()} }

type Sender interface {
	Send(ctx context.Context, msg Message) SendResult
}

type Config struct {
	Recipient     string
	From          string
	SubjectPrefix string
}

type RunResult struct {
	Digest Digest
	Record domain.DigestRecord
	// Sent is false for empty digests, which are recorded without mailing.
	Sent bool
}

// Orchestrator builds, sends and records digests.
type Orchestrator struct {
	store   *store.Store
	builder *Builder
	sender  Sender
	cfg     Config
	logger  *slog.Logger
	running sync.Mutex
	now     func() time.Time
}

func NewOrchestrator(s *store.Store, sender Sender, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   s,
		builder: NewBuilder(s),
		sender:  sender,
		cfg:     cfg,
		logger:  logger.With("component", "digest"),
		now:     time.Now,
	}
}

// Run builds the digest for everything since the last success. An empty
// digest is recorded as a success so the window moves on. A failed send is
// recorded as failed and its articles stay in the next window.
func (o *Orchestrator) Run(ctx context.Context) (RunResult, error) {
	if !o.running.TryLock() {
		return RunResult{}, ErrDigestRunning
	}
	defer o.running.Unlock()

	until := o.now().UTC()
	d, err := o.builder.Build(ctx, until)
	if err != nil {
		return RunResult{}, err
	}
	res := RunResult{Digest: d}
	rec := domain.DigestRecord{SentAt: until, ArticleCount: d.Count, Recipient: o.cfg.Recipient}
	log := o.logger.With("since", d.Since, "until", until, "count", d.Count)

	if d.Empty() {
		rec.Status = domain.DigestSuccess
		if res.Record, err = o.store.InsertDigestRecord(ctx, rec); err != nil {
			return res, err
		}
		log.Info("nothing relevant since last digest")
		return res, nil
	}

	msg, err := o.message(d)
	if err != nil {
		return res, err
	}
	sr := o.sender.Send(ctx, msg)
	res.Sent = sr.OK
	if sr.OK {
		rec.Status = domain.DigestSuccess
		id := sr.MessageID
		if id == "" {
			id = msg.ID
		}
		rec.MessageID = &id
		log.Info("digest sent", "message_id", id)
	} else {
		rec.Status = domain.DigestFailed
		reason := sr.Error
		rec.Error = &reason
		log.Error("digest send failed", "error", reason)
	}
	if res.Record, err = o.store.InsertDigestRecord(ctx, rec); err != nil {
		return res, fmt.Errorf("record digest outcome: %w", err)
	}
	return res, nil
}

// Preview renders what Run would send now without sending or recording it.
func (o *Orchestrator) Preview(ctx context.Context) (Message, Digest, error) {
	d, err := o.builder.Build(ctx, o.now().UTC())
	if err != nil {
		return Message{}, d, err
	}
	msg, err := o.message(d)
	return msg, d, err
}

func (o *Orchestrator) message(d Digest) (Message, error) {
	r, err := Render(d, o.cfg.SubjectPrefix)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:      uuid.NewString() + "@feedsieve",
		From:    o.cfg.From,
		To:      o.cfg.Recipient,
		Subject: r.Subject,
		HTML:    r.HTML,
		Text:    r.Text,
	}, nil
}
