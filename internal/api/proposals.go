package api

import (
	"context"                         // Service calls
	"net/http"                        // HTTP status codes
	"traveltogether/internal/domain"  // Importing domain models
	"traveltogether/internal/service" // Proposal rules

	"github.com/gin-gonic/gin" // Gin web framework
)

// MessageRequest is a chat post
type MessageRequest struct {
	Body string `form:"body" json:"body"` // Message text
}

// MeetupRequest schedules a meetup
type MeetupRequest struct {
	Location string `form:"location" json:"location"` // Meeting place
	Date     string `form:"date" json:"date"`         // YYYY-MM-DD
	Time     string `form:"time" json:"time"`         // HH:MM
}

// proposalAction is a caller-scoped operation on one proposal
type proposalAction func(ctx context.Context, callerID, id uint) (*domain.TripProposal, error)

// withProposal resolves the caller and the :id parameter
func withProposal(c *gin.Context) (uint, uint, bool) {
	userID, err := caller(c)
	if err != nil {
		respondError(c, err)
		return 0, 0, false
	}
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return 0, 0, false
	}
	return userID, id, true
}

// ListProposalsHandler lists the discoverable proposals
func ListProposalsHandler(proposals *service.ProposalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		list, err := proposals.List(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"proposals": list})
	}
}

// CreateProposalHandler creates a proposal with the caller as editor
func CreateProposalHandler(proposals *service.ProposalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var in service.ProposalInput
		if err := c.ShouldBind(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		p, err := proposals.Create(c.Request.Context(), userID, in)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusCreated, "Trip proposal created.", gin.H{"proposal": p})
	}
}

// ProposalDetailHandler shows a proposal to one of its participants
func ProposalDetailHandler(proposals *service.ProposalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, id, ok := withProposal(c)
		if !ok {
			return
		}
		detail, err := proposals.Detail(c.Request.Context(), userID, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

// UpdateProposalHandler edits a proposal
func UpdateProposalHandler(proposals *service.ProposalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, id, ok := withProposal(c)
		if !ok {
			return
		}
		var in service.ProposalInput
		if err := c.ShouldBind(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		p, err := proposals.Update(c.Request.Context(), userID, id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, "Trip proposal updated.", gin.H{"proposal": p})
	}
}

// JoinHandler adds the caller to a proposal
func JoinHandler(proposals *service.ProposalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, id, ok := withProposal(c)
		if !ok {
			return
		}
		res, err := proposals.Join(c.Request.Context(), userID, id)
		if err != nil {
			respondError(c, err)
			return
		}
		msg := "You joined the trip."
		switch {
		case res.AlreadyParticipant:
			msg = "You are already participating in this trip."
		case res.Closed:
			msg = "You joined the trip. It is now full."
		}
		respond(c, http.StatusOK, msg, gin.H{"result": res})
	}
}

// LeaveHandler removes the caller from a proposal
func LeaveHandler(proposals *service.ProposalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, id, ok := withProposal(c)
		if !ok {
			return
		}
		res, err := proposals.Leave(c.Request.Context(), userID, id)
		if err != nil {
			respondError(c, err)
			return
		}
		msg := "You left the trip."
		if res.Deleted {
			msg = "You left the trip. It had no participants left and was deleted."
		}
		respond(c, http.StatusOK, msg, gin.H{"result": res})
	}
}

// TransitionHandler runs a status change and reports msg on success
func TransitionHandler(action proposalAction, msg string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, id, ok := withProposal(c)
		if !ok {
			return
		}
		p, err := action(c.Request.Context(), userID, id)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, msg, gin.H{"proposal": p})
	}
}

// DeleteProposalHandler removes a proposal with all its data
func DeleteProposalHandler(proposals *service.ProposalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, id, ok := withProposal(c)
		if !ok {
			return
		}
		if err := proposals.Delete(c.Request.Context(), userID, id); err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, "Trip proposal deleted.", nil)
	}
}

// GrantEditHandler gives another participant edit rights
func GrantEditHandler(proposals *service.ProposalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, id, ok := withProposal(c)
		if !ok {
			return
		}
		targetID, err := idParam(c, "user_id")
		if err != nil {
			respondError(c, err)
			return
		}
		granted, err := proposals.GrantEdit(c.Request.Context(), userID, id, targetID)
		if err != nil {
			respondError(c, err)
			return
		}
		msg := "Edit rights granted."
		if !granted {
			msg = "User can already edit this trip."
		}
		respond(c, http.StatusOK, msg, gin.H{"granted": granted})
	}
}

// PostMessageHandler appends to the proposal chat
func PostMessageHandler(proposals *service.ProposalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, id, ok := withProposal(c)
		if !ok {
			return
		}
		var req MessageRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		msg, err := proposals.PostMessage(c.Request.Context(), userID, id, req.Body)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusCreated, "Message posted.", gin.H{"chat_message": msg})
	}
}

// AddMeetupHandler schedules a meetup
func AddMeetupHandler(proposals *service.ProposalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, id, ok := withProposal(c)
		if !ok {
			return
		}
		var req MeetupRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		meetup, err := proposals.AddMeetup(c.Request.Context(), userID, id, req.Location, req.Date, req.Time)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusCreated, "Meetup added.", gin.H{"meetup": meetup})
	}
}
