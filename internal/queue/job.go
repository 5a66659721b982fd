package queue

import (
	"time"

	"github.com/google/uuid"
)

// Request describes a line to be spoken.
type Request struct {
	Text     string
	Voice    string
	Language string
	// Interrupt stops the current playback and clears pending jobs before
	// this job is queued.
	Interrupt bool
	// TTL bounds how long the job may wait; zero means no expiry.
	TTL       time.Duration
	DedupeKey string
	// ClipID replays a cached history clip instead of synthesizing Text.
	ClipID string
}

// SpeakJob is a queued speech job.
type SpeakJob struct {
	ID        string
	Text      string
	Voice     string
	Language  string
	Interrupt bool
	TTL       time.Duration
	DedupeKey string
	ClipID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSpeakJob creates a job with a fresh id from req.
func NewSpeakJob(req Request) *SpeakJob {
	now := time.Now()
	job := &SpeakJob{
		ID:        uuid.New().String(),
		Text:      req.Text,
		Voice:     req.Voice,
		Language:  req.Language,
		Interrupt: req.Interrupt,
		TTL:       req.TTL,
		DedupeKey: req.DedupeKey,
		ClipID:    req.ClipID,
		CreatedAt: now,
	}

	if req.TTL > 0 {
		job.ExpiresAt = now.Add(req.TTL)
	}

	return job
}

// IsExpired returns true if the job has passed its TTL.
func (j *SpeakJob) IsExpired() bool {
	if j.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(j.ExpiresAt)
}
