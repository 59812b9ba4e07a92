package domain

import "time"

// ProposalStatus is the lifecycle state of a trip proposal
type ProposalStatus string

// Proposal states
const (
	StatusOpen                    ProposalStatus = "open"
	StatusClosedToNewParticipants ProposalStatus = "closed_to_new_participants"
	StatusFinalized               ProposalStatus = "finalized"
	StatusCancelled               ProposalStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed
func (s ProposalStatus) IsTerminal() bool {
	return s == StatusFinalized || s == StatusCancelled
}

// IsActive reports whether the proposal is still discoverable
func (s ProposalStatus) IsActive() bool {
	return s == StatusOpen || s == StatusClosedToNewParticipants
}

// TripProposal Model
type TripProposal struct {
	ID                       uint           `gorm:"primaryKey" json:"id"`               // Primary key
	Title                    string         `gorm:"size:150;not null" json:"title"`     // Proposal title
	DepartureLocation        *string        `gorm:"size:255" json:"departure_location"` // Origin
	Destination              *string        `gorm:"size:255" json:"destination"`        // Destination
	Budget                   *float64       `json:"budget"`                             // Optional budget
	MaxParticipants          *int           `json:"max_participants"`                   // Optional participant cap
	StartDate                *time.Time     `gorm:"index" json:"start_date"`            // Optional first day
	EndDate                  *time.Time     `json:"end_date"`                           // Optional last day
	Activities               *string        `gorm:"type:text" json:"activities"`        // Free-text activities
	DepartureLocationIsFinal bool           `gorm:"not null;default:false" json:"departure_location_is_final"`
	DestinationIsFinal       bool           `gorm:"not null;default:false" json:"destination_is_final"`
	BudgetIsFinal            bool           `gorm:"not null;default:false" json:"budget_is_final"`
	DatesAreFinal            bool           `gorm:"not null;default:false" json:"dates_are_final"`
	ActivitiesAreFinal       bool           `gorm:"not null;default:false" json:"activities_are_final"`
	Status                   ProposalStatus `gorm:"size:32;not null;default:open;index" json:"status"` // Lifecycle state
	CreatorID                uint           `gorm:"not null;index" json:"creator_id"`                  // Account that created it
	CreatedAt                time.Time      `json:"created_at"`                                        // Creation timestamp
	UpdatedAt                time.Time      `json:"updated_at"`                                        // Update timestamp
}

// IsFull reports whether count participants reach the cap
func (p *TripProposal) IsFull(count int64) bool {
	return p.MaxParticipants != nil && count >= int64(*p.MaxParticipants)
}

// Participation Model
type Participation struct {
	ID         uint      `gorm:"primaryKey" json:"id"` // Primary key
	UserID     uint      `gorm:"not null;uniqueIndex:idx_participation_user_proposal" json:"user_id"`
	ProposalID uint      `gorm:"not null;uniqueIndex:idx_participation_user_proposal;index" json:"proposal_id"`
	CanEdit    bool      `gorm:"not null;default:false" json:"can_edit"`  // Edit permission bit
	CreatedAt  time.Time `json:"created_at"`                              // Join timestamp
	User       User      `gorm:"foreignKey:UserID" json:"user,omitempty"` // Participant account
}

// Message Model
type Message struct {
	ID         uint      `gorm:"primaryKey" json:"id"`                     // Primary key
	ProposalID uint      `gorm:"not null;index" json:"proposal_id"`        // Owning proposal
	UserID     uint      `gorm:"not null" json:"user_id"`                  // Author
	Content    string    `gorm:"type:text;not null" json:"content"`        // Message body
	Timestamp  time.Time `gorm:"not null;autoCreateTime" json:"timestamp"` // Posting time
	User       User      `gorm:"foreignKey:UserID" json:"user,omitempty"`  // Author account
}

// Meetup Model
type Meetup struct {
	ID         uint       `gorm:"primaryKey" json:"id"`              // Primary key
	ProposalID uint       `gorm:"not null;index" json:"proposal_id"` // Owning proposal
	CreatorID  uint       `gorm:"not null" json:"creator_id"`        // Account that added it
	Location   *string    `gorm:"size:255" json:"location"`          // Meeting place
	Datetime   *time.Time `gorm:"column:datetime" json:"datetime"`   // Meeting time, unknown when nil
}
