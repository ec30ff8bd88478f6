package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	id "mindlink/pkg/domain"
	dErrors "mindlink/pkg/domain-errors"
)

const (
	minDonorNameLength = 2
	maxDonorNameLength = 100
	maxCampaignLength  = 200
	maxPatientNameLen  = 100
	maxPatientAge      = 150
	maxStoryTitleLen   = 200
	maxStoryContentLen = 5000
)

// RecordDonationRequest is the command for recording a donation.
type RecordDonationRequest struct {
	AmountCents   int64  `json:"amount_cents"`
	CampaignTitle string `json:"campaign_title"`
	UserName      string `json:"user_name"`
	IsAnonymous   bool   `json:"is_anonymous"`
}

func (r *RecordDonationRequest) Normalize() {
	if r == nil {
		return
	}
	r.CampaignTitle = strings.TrimSpace(r.CampaignTitle)
	r.UserName = strings.TrimSpace(r.UserName)
}

// Fingerprint identifies the request body for idempotency checks. Call after Normalize.
func (r *RecordDonationRequest) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(strconv.FormatInt(r.AmountCents, 10)))
	h.Write([]byte{0})
	h.Write([]byte(r.CampaignTitle))
	h.Write([]byte{0})
	h.Write([]byte(r.UserName))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(r.IsAnonymous)))
	return hex.EncodeToString(h.Sum(nil))
}

// Validate enforces a positive amount no larger than maxCents.
// A maxCents of zero disables the upper bound.
func (r *RecordDonationRequest) Validate(maxCents int64) error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.AmountCents <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be greater than zero")
	}
	if maxCents > 0 && r.AmountCents > maxCents {
		return dErrors.New(dErrors.CodeValidation, "amount exceeds the maximum of "+FormatCents(maxCents))
	}
	if r.CampaignTitle == "" {
		return dErrors.New(dErrors.CodeValidation, "campaign title is required")
	}
	if utf8.RuneCountInString(r.CampaignTitle) > maxCampaignLength {
		return dErrors.New(dErrors.CodeValidation, "campaign title must be 200 characters or less")
	}
	if r.UserName == "" {
		if !r.IsAnonymous {
			return dErrors.New(dErrors.CodeValidation, "user name is required unless the donation is anonymous")
		}
		return nil
	}
	if n := utf8.RuneCountInString(r.UserName); n < minDonorNameLength || n > maxDonorNameLength {
		return dErrors.New(dErrors.CodeValidation, "user name must be between 2 and 100 characters")
	}
	return nil
}

// AddTestimonialRequest is the command for adding a testimonial to a provider.
type AddTestimonialRequest struct {
	ProviderID  id.ProviderID `json:"-"`
	PatientName string        `json:"patient_name"`
	PatientAge  int           `json:"patient_age"`
}

func (r *AddTestimonialRequest) Normalize() {
	if r == nil {
		return
	}
	r.PatientName = strings.TrimSpace(r.PatientName)
}

func (r *AddTestimonialRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.ProviderID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "provider id is required")
	}
	if r.PatientName == "" {
		return dErrors.New(dErrors.CodeValidation, "patient name is required")
	}
	if utf8.RuneCountInString(r.PatientName) > maxPatientNameLen {
		return dErrors.New(dErrors.CodeValidation, "patient name must be 100 characters or less")
	}
	if r.PatientAge <= 0 || r.PatientAge > maxPatientAge {
		return dErrors.New(dErrors.CodeValidation, "patient age must be between 1 and 150")
	}
	return nil
}

// AddSuccessStoryRequest is the command for appending a story to a provider.
type AddSuccessStoryRequest struct {
	ProviderID id.ProviderID `json:"-"`
	Title      string        `json:"title"`
	Content    string        `json:"content"`
}

func (r *AddSuccessStoryRequest) Normalize() {
	if r == nil {
		return
	}
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
}

func (r *AddSuccessStoryRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if r.ProviderID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "provider id is required")
	}
	if r.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title is required")
	}
	if r.Content == "" {
		return dErrors.New(dErrors.CodeValidation, "content is required")
	}
	if utf8.RuneCountInString(r.Title) > maxStoryTitleLen {
		return dErrors.New(dErrors.CodeValidation, "title must be 200 characters or less")
	}
	if utf8.RuneCountInString(r.Content) > maxStoryContentLen {
		return dErrors.New(dErrors.CodeValidation, "content must be 5000 characters or less")
	}
	return nil
}
