package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"traveltogether/internal/config"
	"traveltogether/internal/domain"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Roles an editor may hand out
var assignableRoles = map[string]bool{
	domain.RoleUser:   true,
	domain.RoleEditor: true,
}

type registerInput struct {
	Email    string `validate:"required,max=100"`
	Password string `validate:"required,min=6,max=72"`
}

type profileInput struct {
	Alias       string `validate:"required,max=50"`
	Description string `validate:"max=500"`
}

// Profile is an account together with the proposals it takes part in
type Profile struct {
	User     domain.User           `json:"user"`
	Active   []domain.TripProposal `json:"active_proposals"`
	Inactive []domain.TripProposal `json:"inactive_proposals"`
}

// AccountService manages registration, login and profile data
type AccountService struct {
	db        *gorm.DB
	validate  *validator.Validate
	allowlist string // Path of the editor allow-list file
	cost      int    // bcrypt cost
}

// NewAccountService creates an AccountService; allowlist is re-read on every registration
func NewAccountService(db *gorm.DB, allowlist string) *AccountService {
	return &AccountService{
		db:        db,
		validate:  newValidator(),
		allowlist: allowlist,
		cost:      bcrypt.DefaultCost,
	}
}

// Register creates an account and returns it
func (s *AccountService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	in := registerInput{Email: strings.ToLower(strings.TrimSpace(email)), Password: password}
	if err := check(s.validate, in, map[string]string{
		"Email":        "Please enter a valid e-mail address.",
		"Password":     "Password must be at least 6 characters long.",
		"Password.max": "Password must be at most 72 characters long.",
	}); err != nil {
		return nil, err
	}
	if !emailRe.MatchString(in.Email) {
		return nil, domain.Validation("Please enter a valid e-mail address.")
	}

	db := s.db.WithContext(ctx)
	var existing int64
	if err := db.Model(&domain.User{}).Where("email = ?", in.Email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, domain.Validation("Email already registered.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}
	role, err := s.initialRole(in.Email)
	if err != nil {
		return nil, err
	}
	user := domain.User{Email: in.Email, Password: string(hash), Role: role}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.Validation("Email already registered.")
		}
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User registered")
	return &user, nil
}

func (s *AccountService) initialRole(email string) (string, error) {
	editors, err := config.LoadAllowlist(s.allowlist)
	if err != nil {
		return "", err
	}
	if _, ok := editors[email]; ok {
		return domain.RoleEditor, nil
	}
	return domain.RoleUser, nil
}

// Authenticate checks the credentials and returns the matching account
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.Auth("Invalid email or password.")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, domain.Auth("Invalid email or password.")
	}
	return &user, nil
}

// Get loads an account by id
func (s *AccountService) Get(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err, "User not found.")
	}
	return &user, nil
}

// List returns all accounts ordered by id
func (s *AccountService) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, err
}

// Profile returns the account and its proposals split into active and inactive
func (s *AccountService) Profile(ctx context.Context, id uint) (*Profile, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var proposals []domain.TripProposal
	err = db.Where("id IN (?)",
		db.Model(&domain.Participation{}).Select("proposal_id").Where("user_id = ?", id),
	).Order("id ASC").Find(&proposals).Error
	if err != nil {
		return nil, err
	}
	profile := &Profile{
		User:     *user,
		Active:   []domain.TripProposal{},
		Inactive: []domain.TripProposal{},
	}
	for _, p := range proposals {
		if p.Status.IsActive() {
			profile.Active = append(profile.Active, p)
		} else {
			profile.Inactive = append(profile.Inactive, p)
		}
	}
	return profile, nil
}

// UpdateProfile sets the alias and bio of the caller
func (s *AccountService) UpdateProfile(ctx context.Context, userID uint, alias, description string) (*domain.User, error) {
	in := profileInput{Alias: strings.TrimSpace(alias), Description: description}
	if err := check(s.validate, in, map[string]string{
		"Alias":       "User name must be between 1 and 50 characters.",
		"Description": "About me can be at most 500 characters.",
	}); err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Alias = &in.Alias
	user.Description = in.Description
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

const rfidTakenMsg = "This RFID card is already bound to another user."

// SetRFID binds tag to the target account; an empty tag clears the binding.
// Only the account itself or an editor may change it.
func (s *AccountService) SetRFID(ctx context.Context, callerID, targetID uint, tag string) (*domain.User, error) {
	caller, err := s.Get(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if caller.ID != targetID && !caller.IsEditor() {
		return nil, domain.Permission("You do not have permission to change this RFID card.")
	}

	var target domain.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&target, targetID).Error; err != nil {
			return notFound(err, "User not found.")
		}
		tag = strings.TrimSpace(tag)
		if tag == "" {
			target.RFID = nil
			return tx.Model(&target).Update("rfid", nil).Error
		}
		var taken int64
		if err := tx.Model(&domain.User{}).
			Where("rfid = ? AND id <> ?", tag, target.ID).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return domain.Conflict(rfidTakenMsg)
		}
		target.RFID = &tag
		return tx.Model(&target).Update("rfid", tag).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another request bound the card between the check and the update
		return nil, domain.Conflict(rfidTakenMsg)
	}
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"caller_id": callerID,
		"user_id":   targetID,
		"cleared":   target.RFID == nil,
	}).Info("RFID updated")
	return &target, nil
}

// SetRole changes the role of the target account. The caller must be an
// editor, may only assign user or editor, and may not demote an admin.
func (s *AccountService) SetRole(ctx context.Context, callerID, targetID uint, role string) (*domain.User, error) {
	caller, err := s.Get(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if !caller.IsEditor() {
		return nil, domain.Permission("You do not have permission to change roles.")
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if !assignableRoles[role] {
		return nil, domain.Validation("Role must be either user or editor.")
	}
	target, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Role == domain.RoleAdmin && caller.Role != domain.RoleAdmin {
		return nil, domain.Permission("Only an admin can change an admin's role.")
	}
	if err := s.db.WithContext(ctx).Model(target).Update("role", role).Error; err != nil {
		return nil, err
	}
	target.Role = role
	logrus.WithFields(logrus.Fields{
		"caller_id": callerID,
		"user_id":   targetID,
		"role":      role,
	}).Info("Role changed")
	return target, nil
}
