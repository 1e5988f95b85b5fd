package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Means records how a leave request reached the company
// (stored as an integer in the database).
type Means int

const (
	MeansEmail Means = iota
	MeansInPerson
	MeansPhone
	MeansOther
)

var meansNames = map[Means]string{
	MeansEmail:    "email",
	MeansInPerson: "in_person",
	MeansPhone:    "phone",
	MeansOther:    "other",
}

func (m Means) String() string {
	if name, ok := meansNames[m]; ok {
		return name
	}
	return fmt.Sprintf("means(%d)", int(m))
}

// Valid reports whether m is a known variant.
func (m Means) Valid() bool {
	_, ok := meansNames[m]
	return ok
}

// ParseMeans converts a string name to a Means value.
func ParseMeans(name string) (Means, error) {
	for value, n := range meansNames {
		if n == name {
			return value, nil
		}
	}
	return 0, fmt.Errorf("unknown means %q", name)
}

// MarshalJSON encodes the variant by name.
func (m Means) MarshalJSON() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("unknown means %d", int(m))
	}
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts the variant name.
func (m *Means) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseMeans(name)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Status is the review state of a leave request
// (stored as an integer in the database).
type Status int

const (
	StatusPending Status = iota
	StatusApproved
	StatusDenied
)

var statusNames = map[Status]string{
	StatusPending:  "pending",
	StatusApproved: "approved",
	StatusDenied:   "denied",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Valid reports whether s is a known variant.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// ParseStatus converts a string name to a Status value.
func ParseStatus(name string) (Status, error) {
	for value, n := range statusNames {
		if n == name {
			return value, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

// MarshalJSON encodes the variant by name.
func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the variant name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStatus(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Leave represents a time-off request.
type Leave struct {
	// ID is the unique identifier of the leave, assigned at creation.
	ID int `json:"id" db:"id"`

	// Username references the requesting account. The user must exist
	// when the leave is created.
	Username string `json:"username" db:"username"`

	// DateCreated is set once when the record is persisted.
	DateCreated time.Time `json:"date_created" db:"date_created"`

	// From and To delimit the requested absence. From must not be
	// after To.
	From time.Time `json:"from" db:"date_from"`
	To   time.Time `json:"to" db:"date_to"`

	// Justification is optional free text supplied by the requester.
	Justification string `json:"justification" db:"justification"`

	// Means records how the request was communicated.
	Means Means `json:"means" db:"means"`

	// Status is the review state. New leaves start pending.
	Status Status `json:"status" db:"status"`

	// AttachmentKey points at an optional supporting document in
	// object storage. Empty when no attachment was uploaded.
	AttachmentKey string `json:"attachment_key,omitempty" db:"attachment_key"`
}

// LeaveView is the API-visible shape of a Leave. All fields map
// one-to-one from the entity.
type LeaveView struct {
	ID            int       `json:"id"`
	Username      string    `json:"username"`
	DateCreated   time.Time `json:"date_created"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	Justification string    `json:"justification"`
	Means         Means     `json:"means"`
	Status        Status    `json:"status"`
	AttachmentKey string    `json:"attachment_key,omitempty"`
}
