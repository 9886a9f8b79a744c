package domain

import (
	"slices"
	"strings"
)

// ParticipantSeparator joins participant emails in the external representation.
const ParticipantSeparator = ","

// Activity is an extracurricular offering and its enrolled students.
type Activity struct {
	Name            string
	Description     string
	Schedule        string
	MaxParticipants int
	// Participants holds student emails in signup order.
	Participants []string
}

// HasParticipant reports whether email is enrolled.
func (a Activity) HasParticipant(email string) bool {
	return slices.Contains(a.Participants, email)
}

// JoinParticipants renders the participant list as a comma-separated string.
// An empty list renders as "".
func JoinParticipants(participants []string) string {
	return strings.Join(participants, ParticipantSeparator)
}

