package domain

import "slices"

// Activity is an extracurricular offering together with its current roster.
type Activity struct {
	Name            string
	Description     string
	Schedule        string
	MaxParticipants int
	// Participants holds emails in enrollment order. Entries are unique.
	Participants []string
}

// HasParticipant reports whether email is on the roster. Matching is exact and case-sensitive.
func (a Activity) HasParticipant(email string) bool {
	return slices.Contains(a.Participants, email)
}

// IsFull reports whether the roster has reached MaxParticipants.
func (a Activity) IsFull() bool {
	return len(a.Participants) >= a.MaxParticipants
}

// Clone returns a copy that does not share the participant slice.
func (a Activity) Clone() Activity {
	a.Participants = slices.Clone(a.Participants)
	if a.Participants == nil {
		a.Participants = []string{}
	}
	return a
}

// Catalog maps activity names to activities.
type Catalog map[string]Activity

// Names returns the activity names in sorted order.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
