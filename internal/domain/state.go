package domain

import (
	"errors"
	"fmt"
)

// MaxRetries is the number of failed attempts after which a stage gives up
// on an article.
const MaxRetries = 3

var ErrTerminalState = errors.New("article is in a terminal state")

type Status string

const (
	StatusPending  Status = "pending"
	StatusAssessed Status = "assessed"
	StatusFailed   Status = "failed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAssessed, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown article status %q", s)
}

func (s Status) Terminal() bool { return s == StatusAssessed || s == StatusFailed }

// ArticleState is the lifecycle status together with the two independent
// retry counters. Transitions go through the methods below so the counters
// and the status cannot disagree.
type ArticleState struct {
	Status            Status `json:"status"`
	FetchRetries      int    `json:"fetch_retry_count"`
	AssessmentRetries int    `json:"assessment_retry_count"`
}

func NewArticleState() ArticleState {
	return ArticleState{Status: StatusPending}
}

// AfterFetchFailure records one failed fetch attempt.
func (s ArticleState) AfterFetchFailure() (ArticleState, error) {
	if s.Status.Terminal() {
		return s, ErrTerminalState
	}
	s.FetchRetries++
	if s.FetchRetries >= MaxRetries {
		s.Status = StatusFailed
	}
	return s, nil
}

// AfterAssessment records the outcome of one assessment pass over all
// enabled topics. Any failed topic costs the whole article one retry.
func (s ArticleState) AfterAssessment(anyFailed bool) (ArticleState, error) {
	if s.Status.Terminal() {
		return s, ErrTerminalState
	}
	if !anyFailed {
		s.Status = StatusAssessed
		return s, nil
	}
	s.AssessmentRetries++
	if s.AssessmentRetries >= MaxRetries {
		s.Status = StatusFailed
	}
	return s, nil
}

// Requeue resets a failed article so the pipeline picks it up again.
func (s ArticleState) Requeue() ArticleState {
	return NewArticleState()
}

func (s ArticleState) CanFetch() bool {
	return s.Status == StatusPending && s.FetchRetries < MaxRetries
}

func (s ArticleState) CanAssess() bool {
	return s.Status == StatusPending && s.AssessmentRetries < MaxRetries
}

type Phase string

const (
	PhaseAwaitingFetch      Phase = "awaiting_fetch"
	PhaseAwaitingExtraction Phase = "awaiting_extraction"
	PhaseAwaitingAssessment Phase = "awaiting_assessment"
	PhaseAssessed           Phase = "assessed"
	PhaseFailed             Phase = "failed"
)

func (s ArticleState) Phase(hasRaw, hasText bool) Phase {
	switch {
	case s.Status == StatusAssessed:
		return PhaseAssessed
	case s.Status == StatusFailed:
		return PhaseFailed
	case !hasRaw:
		return PhaseAwaitingFetch
	case !hasText:
		return PhaseAwaitingExtraction
	default:
		return PhaseAwaitingAssessment
	}
}
