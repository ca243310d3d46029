package models

import (
	"encoding/json"
	"fmt"
)

// MasteryLevel tracks how well a user knows a figure.
type MasteryLevel int

const (
	MasteryUnfamiliar MasteryLevel = iota
	MasteryLearning
	MasteryComfortable
	MasteryMastered
)

func (m MasteryLevel) String() string {
	switch m {
	case MasteryUnfamiliar:
		return "unfamiliar"
	case MasteryLearning:
		return "learning"
	case MasteryComfortable:
		return "comfortable"
	case MasteryMastered:
		return "mastered"
	default:
		return ""
	}
}

// Figure represents a dance figure referenced by favorites and choreographies.
type Figure struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Dance    string `json:"dance"`
	VideoURL string `json:"video_url,omitempty"`
}

// Favorite is a user's saved figure.
type Favorite struct {
	FigureID   string       `json:"figure_id"`
	AddedAt    int64        `json:"added_at"`
	LastOpened int64        `json:"last_opened,omitempty"`
	Mastery    MasteryLevel `json:"mastery"`
}

// Movement is a single named step within a choreography.
type Movement struct {
	FigureID string `json:"figure_id"`
	Label    string `json:"label,omitempty"`
	Counts   int    `json:"counts,omitempty"`
}

// Choreography is an ordered sequence of movements owned by one user.
type Choreography struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	Movements []Movement `json:"movements"`
	Public    bool       `json:"public"`
	CreatedAt int64      `json:"created_at"`
	UpdatedAt int64      `json:"updated_at"`
}

// OperationKind enumerates the remote writes the sync queue knows how to replay.
//
// The set is closed: only these kinds are queued. Unknown kinds read back
// from storage survive decoding and are skipped (not crashed on) during
// drain, so future kinds cannot halt the queue.
type OperationKind string

const (
	OpAddFavorite             OperationKind = "addFavorite"
	OpRemoveFavorite          OperationKind = "removeFavorite"
	OpUpdateFavoriteOpened    OperationKind = "updateFavoriteLastOpened"
	OpUpdateFavoriteMastery   OperationKind = "updateFavoriteMasteryLevel"
	OpCreateChoreography      OperationKind = "createChoreography"
	OpUpdateChoreography      OperationKind = "updateChoreography"
	OpDeleteChoreography      OperationKind = "deleteChoreography"
	OpToggleChoreographyShare OperationKind = "toggleChoreographyPublic"
)

// Known reports whether k is part of the closed replayable set.
func (k OperationKind) Known() bool {
	switch k {
	case OpAddFavorite, OpRemoveFavorite, OpUpdateFavoriteOpened, OpUpdateFavoriteMastery,
		OpCreateChoreography, OpUpdateChoreography, OpDeleteChoreography, OpToggleChoreographyShare:
		return true
	default:
		return false
	}
}

// ParseOperationKind validates a raw kind string.
func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(s)
	if !k.Known() {
		return "", fmt.Errorf("unrecognized operation kind %q", s)
	}
	return k, nil
}

// MaxRetries is the retry ceiling after which a queued operation becomes
// a candidate for the caller-invoked cleanup sweep.
const MaxRetries = 3

// SyncOperation is a pending remote write awaiting replay.
//
// Created when an optimistic write fails for a transient reason (or the
// network monitor says the connection isn't usable). Mutated only by
// incrementing Retries. Removed when successfully replayed, or by an
// explicit sweep once Retries reaches [MaxRetries].
type SyncOperation struct {
	ID        string          `json:"id"`
	Kind      OperationKind   `json:"type"`
	UserID    string          `json:"userId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Retries   int             `json:"retries"`
}

// SlowLevel buckets measured connection quality.
type SlowLevel int

const (
	SlowNone SlowLevel = iota
	SlowSlight
	SlowModerate
	SlowVery
)

func (s SlowLevel) String() string {
	switch s {
	case SlowNone:
		return "none"
	case SlowSlight:
		return "slight"
	case SlowModerate:
		return "moderate"
	case SlowVery:
		return "very"
	default:
		return ""
	}
}

// NetworkQualitySnapshot is the monitor's view of current connectivity.
// Recomputed on every connectivity-change event; never persisted.
type NetworkQualitySnapshot struct {
	IsOffline     bool      `json:"is_offline"`
	IsSlow        bool      `json:"is_slow"`
	SlowLevel     SlowLevel `json:"slow_level"`
	EffectiveType string    `json:"effective_type,omitempty"`
	Downlink      float64   `json:"downlink,omitempty"`
	RTT           int       `json:"rtt,omitempty"`
	Type          string    `json:"type,omitempty"`
	SaveData      bool      `json:"save_data"`
}
