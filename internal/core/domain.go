package core

import (
	"regexp"
	"strings"
	"time"
)

const (
	RoleMember    Role = "member"
	RoleCollector Role = "collector"
	RoleAdmin     Role = "admin"
)

type (
	Role string

	Money struct {
		Cents int64
	}

	// Member is a registered household member of the community.
	Member struct {
		ID               int64     `json:"id"`
		RegistrationCode string    `json:"registrationCode"`
		Name             string    `json:"name"`
		Age              int       `json:"age"`
		Phone            string    `json:"phone"`
		NationalID       string    `json:"nationalId,omitempty"`
		HouseName        string    `json:"houseName"`
		Address          string    `json:"address,omitempty"`
		FamilyMembers    int       `json:"familyMembers"`
		CreatedAt        time.Time `json:"createdAt"`
		UpdatedAt        time.Time `json:"updatedAt"`
	}

	// User is an account that can sign in to the dashboard. It shares the
	// registration code namespace with Member.
	User struct {
		ID               int64     `json:"id"`
		RegistrationCode string    `json:"registrationCode"`
		Name             string    `json:"name"`
		Email            string    `json:"email"`
		Phone            string    `json:"phone,omitempty"`
		Role             Role      `json:"role"`
		PasswordHash     string    `json:"-"`
		CreatedAt        time.Time `json:"createdAt"`
	}

	// MemberRef is the display subset of a Member attached to a collection.
	MemberRef struct {
		ID               int64  `json:"id"`
		Name             string `json:"name"`
		RegistrationCode string `json:"registrationCode"`
	}

	// FundCollection is one recorded money collection.
	FundCollection struct {
		ID            int64      `json:"id"`
		Amount        Money      `json:"amount"`
		Category      string     `json:"category"` // raw category, stored verbatim
		Description   string     `json:"description,omitempty"`
		CollectedBy   string     `json:"collectedBy"`
		MemberID      *int64     `json:"memberId,omitempty"`
		Member        *MemberRef `json:"member,omitempty"`
		CollectedDate time.Time  `json:"collectedDate"`
		ReceiptNumber string     `json:"receiptNumber"`
		CreatedAt     time.Time  `json:"createdAt"`
		UpdatedAt     time.Time  `json:"updatedAt"`
	}
)

var (
	phonePattern      = regexp.MustCompile(`^\+?[0-9]{10,13}$`)
	emailPattern      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	nationalIDPattern = regexp.MustCompile(`^[0-9]{12}$`)
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (m Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if len(m.Name) > 100 {
		return NewValidationError("name", "name too long (max 100 characters)")
	}
	if m.Age < 0 || m.Age > 150 {
		return NewValidationError("age", "age must be between 0 and 150")
	}
	if !phonePattern.MatchString(m.Phone) {
		return NewValidationError("phone", "phone must be 10 to 13 digits")
	}
	if m.NationalID != "" && !nationalIDPattern.MatchString(m.NationalID) {
		return NewValidationError("nationalId", "national id must be 12 digits")
	}
	if strings.TrimSpace(m.HouseName) == "" {
		return NewValidationError("houseName", "house name is required")
	}
	if m.FamilyMembers < 0 {
		return NewValidationError("familyMembers", "family members cannot be negative")
	}
	if m.RegistrationCode != "" && !IsRegistrationCode(m.RegistrationCode) {
		return NewValidationError("registrationCode", "registration code must look like REG1234")
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return NewValidationError("name", "name is required")
	}
	if !emailPattern.MatchString(u.Email) {
		return NewValidationError("email", "email is invalid")
	}
	if u.Phone != "" && !phonePattern.MatchString(u.Phone) {
		return NewValidationError("phone", "phone must be 10 to 13 digits")
	}
	switch u.Role {
	case RoleMember, RoleCollector, RoleAdmin:
	default:
		return NewValidationError("role", "unknown role")
	}
	if u.RegistrationCode != "" && !IsRegistrationCode(u.RegistrationCode) {
		return NewValidationError("registrationCode", "registration code must look like REG1234")
	}
	return nil
}

func (c FundCollection) Validate() error {
	if err := c.Amount.Validate(); err != nil {
		return NewValidationError("amount", "amount must be greater than zero")
	}
	if strings.TrimSpace(c.Category) == "" {
		return NewValidationError("category", "category is required")
	}
	if strings.TrimSpace(c.CollectedBy) == "" {
		return NewValidationError("collectedBy", "collectedBy is required")
	}
	if len(c.Description) > 200 {
		return NewValidationError("description", "description too long (max 200 characters)")
	}
	if c.CollectedDate.IsZero() {
		return NewValidationError("date", "date is required")
	}
	return nil
}
