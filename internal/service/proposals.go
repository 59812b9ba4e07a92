package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"traveltogether/internal/domain"
)

// ProposalInput is the editable content of a proposal as submitted by a form.
// Numbers and dates arrive as text and are parsed by the service.
type ProposalInput struct {
	Title                    string `form:"title" json:"title" validate:"required,max=150"`
	DepartureLocation        string `form:"departure_location" json:"departure_location" validate:"max=255"`
	Destination              string `form:"destination" json:"destination" validate:"max=255"`
	Budget                   string `form:"budget" json:"budget"`
	MaxParticipants          string `form:"max_participants" json:"max_participants"`
	StartDate                string `form:"start_date" json:"start_date"`
	EndDate                  string `form:"end_date" json:"end_date"`
	Activities               string `form:"activities" json:"activities"`
	DepartureLocationIsFinal bool   `form:"departure_location_is_final" json:"departure_location_is_final"`
	DestinationIsFinal       bool   `form:"destination_is_final" json:"destination_is_final"`
	BudgetIsFinal            bool   `form:"budget_is_final" json:"budget_is_final"`
	DatesAreFinal            bool   `form:"dates_are_final" json:"dates_are_final"`
	ActivitiesAreFinal       bool   `form:"activities_are_final" json:"activities_are_final"`
}

type messageInput struct {
	Body string `validate:"required,max=2000"`
}

// ProposalSummary is a discoverable proposal as seen by one account
type ProposalSummary struct {
	domain.TripProposal
	ParticipantCount int64                 `json:"participant_count"`
	Participation    *domain.Participation `json:"participation"`
}

// ProposalDetail is everything a participant sees on the proposal page
type ProposalDetail struct {
	Proposal      domain.TripProposal    `json:"proposal"`
	Participation domain.Participation   `json:"participation"`
	Participants  []domain.Participation `json:"participants"`
	Messages      []domain.Message       `json:"messages"`
	Meetups       []domain.Meetup        `json:"meetups"`
}

// JoinResult describes the outcome of a join request
type JoinResult struct {
	AlreadyParticipant bool `json:"already_participant"`
	Closed             bool `json:"closed"` // The join filled the last slot
}

// LeaveResult describes the side effects of leaving
type LeaveResult struct {
	Deleted         bool `json:"deleted"`          // The last participant left
	EditTransferred bool `json:"edit_transferred"` // Another participant received edit rights
	Reopened        bool `json:"reopened"`         // A slot opened on a full proposal
}

// ProposalService implements the proposal lifecycle and the participation rules
type ProposalService struct {
	db       *gorm.DB
	validate *validator.Validate
	now      Clock
}

// NewProposalService creates a ProposalService
func NewProposalService(db *gorm.DB, now Clock) *ProposalService {
	if now == nil {
		now = time.Now
	}
	return &ProposalService{db: db, validate: newValidator(), now: now}
}

// List returns the open and closed-to-new-participants proposals, earliest
// start date first and undated proposals last
func (s *ProposalService) List(ctx context.Context, callerID uint) ([]ProposalSummary, error) {
	db := s.db.WithContext(ctx)
	var proposals []domain.TripProposal
	err := db.Where("status IN ?", []domain.ProposalStatus{domain.StatusOpen, domain.StatusClosedToNewParticipants}).
		Order("start_date IS NULL, start_date ASC, id ASC").
		Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	summaries := make([]ProposalSummary, 0, len(proposals))
	if len(proposals) == 0 {
		return summaries, nil
	}
	ids := make([]uint, len(proposals))
	for i, p := range proposals {
		ids[i] = p.ID
	}

	var counts []struct {
		ProposalID uint
		N          int64
	}
	if err := db.Model(&domain.Participation{}).
		Select("proposal_id, COUNT(*) AS n").
		Where("proposal_id IN ?", ids).
		Group("proposal_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	countByID := make(map[uint]int64, len(counts))
	for _, c := range counts {
		countByID[c.ProposalID] = c.N
	}

	var mine []domain.Participation
	if err := db.Where("user_id = ? AND proposal_id IN ?", callerID, ids).Find(&mine).Error; err != nil {
		return nil, err
	}
	mineByID := make(map[uint]*domain.Participation, len(mine))
	for i := range mine {
		mineByID[mine[i].ProposalID] = &mine[i]
	}

	for _, p := range proposals {
		summaries = append(summaries, ProposalSummary{
			TripProposal:     p,
			ParticipantCount: countByID[p.ID],
			Participation:    mineByID[p.ID],
		})
	}
	return summaries, nil
}

// Create stores a new open proposal with the caller as its first participant
// holding edit rights
func (s *ProposalService) Create(ctx context.Context, callerID uint, in ProposalInput) (*domain.TripProposal, error) {
	p := domain.TripProposal{CreatorID: callerID, Status: domain.StatusOpen}
	if err := s.apply(&p, in); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if p.IsFull(1) {
			p.Status = domain.StatusClosedToNewParticipants
		}
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return tx.Create(&domain.Participation{UserID: callerID, ProposalID: p.ID, CanEdit: true}).Error
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":     callerID,
		"proposal_id": p.ID,
	}).Info("Proposal created")
	return &p, nil
}

// apply validates in and copies it onto p
func (s *ProposalService) apply(p *domain.TripProposal, in ProposalInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if err := check(s.validate, in, map[string]string{
		"Title":             "Title is required (at most 150 characters).",
		"DepartureLocation": "Departure location can be at most 255 characters.",
		"Destination":       "Destination can be at most 255 characters.",
	}); err != nil {
		return err
	}

	var budget *float64
	if raw := strings.TrimSpace(in.Budget); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return domain.Validation("Budget must be a positive number.")
		}
		budget = &v
	}
	var maxParticipants *int
	if raw := strings.TrimSpace(in.MaxParticipants); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return domain.Validation("Max participants must be a whole number of at least 1.")
		}
		maxParticipants = &v
	}
	start, err := parseDate(in.StartDate, "Start date")
	if err != nil {
		return err
	}
	end, err := parseDate(in.EndDate, "End date")
	if err != nil {
		return err
	}
	if start != nil && end != nil && end.Before(*start) {
		return domain.Validation("End date cannot be before start date.")
	}

	p.Title = in.Title
	p.DepartureLocation = optionalString(in.DepartureLocation)
	p.Destination = optionalString(in.Destination)
	p.Budget = budget
	p.MaxParticipants = maxParticipants
	p.StartDate = start
	p.EndDate = end
	p.Activities = optionalString(in.Activities)
	p.DepartureLocationIsFinal = in.DepartureLocationIsFinal
	p.DestinationIsFinal = in.DestinationIsFinal
	p.BudgetIsFinal = in.BudgetIsFinal
	p.DatesAreFinal = in.DatesAreFinal
	p.ActivitiesAreFinal = in.ActivitiesAreFinal
	return nil
}

// Detail returns the proposal page for a participant
func (s *ProposalService) Detail(ctx context.Context, callerID, id uint) (*ProposalDetail, error) {
	db := s.db.WithContext(ctx)
	p, err := loadProposal(db, id)
	if err != nil {
		return nil, err
	}
	part, err := findParticipation(db, id, callerID)
	if err != nil {
		return nil, err
	}
	if part == nil {
		return nil, domain.Permission("You are not a participant of this trip.")
	}
	detail := &ProposalDetail{Proposal: *p, Participation: *part}
	if err := db.Preload("User").Where("proposal_id = ?", id).Order("id ASC").Find(&detail.Participants).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("User").Where("proposal_id = ?", id).Order("timestamp DESC, id DESC").Find(&detail.Messages).Error; err != nil {
		return nil, err
	}
	if err := db.Where("proposal_id = ?", id).Order("datetime IS NULL, datetime DESC, id ASC").Find(&detail.Meetups).Error; err != nil {
		return nil, err
	}
	return detail, nil
}

// Update replaces the proposal content; requires edit rights
func (s *ProposalService) Update(ctx context.Context, callerID, id uint, in ProposalInput) (*domain.TripProposal, error) {
	var p *domain.TripProposal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = loadProposal(tx, id); err != nil {
			return err
		}
		if err := requireEditRights(tx, id, callerID, "edit"); err != nil {
			return err
		}
		if p.Status.IsTerminal() {
			return domain.Conflict("This proposal has been finalized or cancelled and can no longer be edited.")
		}
		if err := s.apply(p, in); err != nil {
			return err
		}
		count, err := countParticipants(tx, id)
		if err != nil {
			return err
		}
		if p.Status == domain.StatusOpen && p.IsFull(count) {
			p.Status = domain.StatusClosedToNewParticipants
		}
		return tx.Save(p).Error
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":     callerID,
		"proposal_id": id,
	}).Info("Proposal updated")
	return p, nil
}

// Join adds the caller to an open proposal. Filling the last slot closes
// the proposal to new participants.
func (s *ProposalService) Join(ctx context.Context, callerID, id uint) (*JoinResult, error) {
	res := &JoinResult{}
	full := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := loadProposal(tx, id)
		if err != nil {
			return err
		}
		existing, err := findParticipation(tx, id, callerID)
		if err != nil {
			return err
		}
		if existing != nil {
			res.AlreadyParticipant = true
			return nil
		}
		if p.Status != domain.StatusOpen {
			return domain.Conflict("This proposal is no longer accepting new participants.")
		}
		count, err := countParticipants(tx, id)
		if err != nil {
			return err
		}
		if p.IsFull(count) {
			// Open but already at capacity: close it and reject the join
			full = true
			return setStatus(tx, p, domain.StatusClosedToNewParticipants)
		}
		if err := tx.Create(&domain.Participation{UserID: callerID, ProposalID: id}).Error; err != nil {
			return err
		}
		if p.IsFull(count + 1) {
			res.Closed = true
			return setStatus(tx, p, domain.StatusClosedToNewParticipants)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if full {
		return nil, domain.Conflict("This trip is full.")
	}
	if !res.AlreadyParticipant {
		logrus.WithFields(logrus.Fields{
			"user_id":     callerID,
			"proposal_id": id,
			"closed":      res.Closed,
		}).Info("Participant joined")
	}
	return res, nil
}

// Leave removes the caller from the proposal. The last participant leaving
// deletes the proposal; a departing sole editor hands edit rights to the
// remaining participant with the lowest participation id.
func (s *ProposalService) Leave(ctx context.Context, callerID, id uint) (*LeaveResult, error) {
	res := &LeaveResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		part, err := findParticipation(tx, id, callerID)
		if err != nil {
			return err
		}
		if part == nil {
			return domain.NotFound("You are not participating in this trip.")
		}
		p, err := loadProposal(tx, id)
		if err != nil {
			return err
		}
		count, err := countParticipants(tx, id)
		if err != nil {
			return err
		}
		if count <= 1 {
			res.Deleted = true
			return deleteProposal(tx, id)
		}
		if err := tx.Delete(part).Error; err != nil {
			return err
		}
		if part.CanEdit {
			var editors int64
			if err := tx.Model(&domain.Participation{}).
				Where("proposal_id = ? AND can_edit = ?", id, true).
				Count(&editors).Error; err != nil {
				return err
			}
			if editors == 0 {
				var heir domain.Participation
				if err := tx.Where("proposal_id = ?", id).Order("id ASC").First(&heir).Error; err != nil {
					return err
				}
				if err := tx.Model(&heir).Update("can_edit", true).Error; err != nil {
					return err
				}
				res.EditTransferred = true
			}
		}
		if p.Status == domain.StatusClosedToNewParticipants && p.MaxParticipants != nil && !p.IsFull(count-1) {
			res.Reopened = true
			return setStatus(tx, p, domain.StatusOpen)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":          callerID,
		"proposal_id":      id,
		"deleted":          res.Deleted,
		"edit_transferred": res.EditTransferred,
		"reopened":         res.Reopened,
	}).Info("Participant left")
	return res, nil
}

// Finalize makes the proposal read-only
func (s *ProposalService) Finalize(ctx context.Context, callerID, id uint) (*domain.TripProposal, error) {
	return s.transition(ctx, callerID, id, "finalize", domain.StatusFinalized, notTerminal)
}

// Cancel makes the proposal read-only
func (s *ProposalService) Cancel(ctx context.Context, callerID, id uint) (*domain.TripProposal, error) {
	return s.transition(ctx, callerID, id, "cancel", domain.StatusCancelled, notTerminal)
}

// CloseToNewParticipants stops new joins on an open proposal
func (s *ProposalService) CloseToNewParticipants(ctx context.Context, callerID, id uint) (*domain.TripProposal, error) {
	return s.transition(ctx, callerID, id, "close", domain.StatusClosedToNewParticipants, func(st domain.ProposalStatus) error {
		if st != domain.StatusOpen {
			return domain.Conflict("This proposal is not open to new participants.")
		}
		return nil
	})
}

// Reopen accepts new joins again on a closed proposal
func (s *ProposalService) Reopen(ctx context.Context, callerID, id uint) (*domain.TripProposal, error) {
	return s.transition(ctx, callerID, id, "reopen", domain.StatusOpen, func(st domain.ProposalStatus) error {
		if st != domain.StatusClosedToNewParticipants {
			return domain.Conflict("This proposal is not closed to new participants.")
		}
		return nil
	})
}

func notTerminal(st domain.ProposalStatus) error {
	if st.IsTerminal() {
		return domain.Conflict("This proposal has already been finalized or cancelled.")
	}
	return nil
}

func (s *ProposalService) transition(
	ctx context.Context,
	callerID, id uint,
	action string,
	to domain.ProposalStatus,
	allowed func(domain.ProposalStatus) error,
) (*domain.TripProposal, error) {
	var p *domain.TripProposal
	from := domain.ProposalStatus("")
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = loadProposal(tx, id); err != nil {
			return err
		}
		if err := requireEditRights(tx, id, callerID, action); err != nil {
			return err
		}
		if err := allowed(p.Status); err != nil {
			return err
		}
		from = p.Status
		return setStatus(tx, p, to)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":     callerID,
		"proposal_id": id,
		"from":        from,
		"to":          to,
	}).Info("Proposal status changed")
	return p, nil
}

// GrantEdit gives a participant edit rights. It reports false when the
// target already had them.
func (s *ProposalService) GrantEdit(ctx context.Context, callerID, id, targetUserID uint) (bool, error) {
	granted := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadProposal(tx, id); err != nil {
			return err
		}
		if err := requireEditRights(tx, id, callerID, "grant edit rights on"); err != nil {
			return err
		}
		target, err := findParticipation(tx, id, targetUserID)
		if err != nil {
			return err
		}
		if target == nil {
			return domain.NotFound("User is not a participant.")
		}
		if target.CanEdit {
			return nil
		}
		granted = true
		return tx.Model(target).Update("can_edit", true).Error
	})
	if err != nil {
		return false, err
	}
	if granted {
		logrus.WithFields(logrus.Fields{
			"user_id":     callerID,
			"proposal_id": id,
			"target_id":   targetUserID,
		}).Info("Edit rights granted")
	}
	return granted, nil
}

// Delete removes the proposal with all messages, meetups and participations
func (s *ProposalService) Delete(ctx context.Context, callerID, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadProposal(tx, id); err != nil {
			return err
		}
		if err := requireEditRights(tx, id, callerID, "delete"); err != nil {
			return err
		}
		return deleteProposal(tx, id)
	})
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":     callerID,
		"proposal_id": id,
	}).Info("Proposal deleted")
	return nil
}

// PostMessage appends a chat message to an active proposal
func (s *ProposalService) PostMessage(ctx context.Context, callerID, id uint, body string) (*domain.Message, error) {
	in := messageInput{Body: strings.TrimSpace(body)}
	if err := check(s.validate, in, map[string]string{
		"Body": "Message cannot be empty (at most 2000 characters).",
	}); err != nil {
		return nil, err
	}
	msg := domain.Message{ProposalID: id, UserID: callerID, Content: in.Body, Timestamp: s.now().UTC()}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireActiveParticipant(tx, id, callerID, "messages"); err != nil {
			return err
		}
		return tx.Create(&msg).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// AddMeetup schedules a meetup; date is YYYY-MM-DD and clock is HH:MM
func (s *ProposalService) AddMeetup(ctx context.Context, callerID, id uint, location, date, clock string) (*domain.Meetup, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return nil, domain.Validation("Please provide a valid date and time (e.g. 2025-11-12 and 06:18).")
	}
	at, err := time.ParseInLocation(domain.DateLayout+" 15:04", date+" "+clock, time.UTC)
	if err != nil {
		return nil, domain.Validation("Please provide a valid date and time (e.g. 2025-11-12 and 06:18).")
	}
	meetup := domain.Meetup{
		ProposalID: id,
		CreatorID:  callerID,
		Location:   optionalString(location),
		Datetime:   &at,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireActiveParticipant(tx, id, callerID, "changes"); err != nil {
			return err
		}
		return tx.Create(&meetup).Error
	})
	if err != nil {
		return nil, err
	}
	return &meetup, nil
}

func loadProposal(db *gorm.DB, id uint) (*domain.TripProposal, error) {
	var p domain.TripProposal
	if err := db.First(&p, id).Error; err != nil {
		return nil, notFound(err, "Proposal not found.")
	}
	return &p, nil
}

// findParticipation returns nil without error when the user does not participate
func findParticipation(db *gorm.DB, proposalID, userID uint) (*domain.Participation, error) {
	var parts []domain.Participation
	if err := db.Where("proposal_id = ? AND user_id = ?", proposalID, userID).Limit(1).Find(&parts).Error; err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}
	return &parts[0], nil
}

func countParticipants(db *gorm.DB, proposalID uint) (int64, error) {
	var n int64
	err := db.Model(&domain.Participation{}).Where("proposal_id = ?", proposalID).Count(&n).Error
	return n, err
}

func requireEditRights(db *gorm.DB, proposalID, userID uint, action string) error {
	part, err := findParticipation(db, proposalID, userID)
	if err != nil {
		return err
	}
	if part == nil || !part.CanEdit {
		return domain.Permission(fmt.Sprintf("You do not have permission to %s this proposal.", action))
	}
	return nil
}

// requireActiveParticipant checks that the proposal exists, is not
// finalized or cancelled, and that the user participates in it
func requireActiveParticipant(db *gorm.DB, proposalID, userID uint, what string) error {
	p, err := loadProposal(db, proposalID)
	if err != nil {
		return err
	}
	part, err := findParticipation(db, proposalID, userID)
	if err != nil {
		return err
	}
	if part == nil {
		return domain.Permission("You are not a participant of this trip.")
	}
	if p.Status.IsTerminal() {
		return domain.Conflict(fmt.Sprintf("This trip proposal is no longer accepting %s.", what))
	}
	return nil
}

func setStatus(db *gorm.DB, p *domain.TripProposal, status domain.ProposalStatus) error {
	if err := db.Model(p).Update("status", status).Error; err != nil {
		return err
	}
	p.Status = status
	return nil
}

func deleteProposal(db *gorm.DB, id uint) error {
	for _, model := range []any{&domain.Message{}, &domain.Meetup{}, &domain.Participation{}} {
		if err := db.Where("proposal_id = ?", id).Delete(model).Error; err != nil {
			return err
		}
	}
	return db.Delete(&domain.TripProposal{}, id).Error
}
