package model

import (
	"net/mail"
	"strings"
)

// Length limits for contact form fields, in bytes.
const (
	MaxContactName    = 200
	MaxContactEmail   = 254
	MaxContactSubject = 200
	MaxContactMessage = 5000
)

// ContactForm is a message sent through the public contact form.
type ContactForm struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate checks the form and returns per-field problems.
func (f *ContactForm) Validate() []FieldError {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Message = strings.TrimSpace(f.Message)

	var errs []FieldError
	if f.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	} else if len(f.Name) > MaxContactName {
		errs = append(errs, FieldError{Field: "name", Message: "too long"})
	}
	if f.Email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "required"})
	} else if len(f.Email) > MaxContactEmail {
		errs = append(errs, FieldError{Field: "email", Message: "too long"})
	} else if _, err := mail.ParseAddress(f.Email); err != nil {
		errs = append(errs, FieldError{Field: "email", Message: "not a valid address"})
	}
	if len(f.Subject) > MaxContactSubject {
		errs = append(errs, FieldError{Field: "subject", Message: "too long"})
	}
	if f.Message == "" {
		errs = append(errs, FieldError{Field: "message", Message: "required"})
	}
	if len(f.Message) > MaxContactMessage {
		errs = append(errs, FieldError{Field: "message", Message: "too long"})
	}
	return errs
}

// Record converts the form into an unread message.
func (f *ContactForm) Record() Record {
	return Record{
		"name":    f.Name,
		"email":   f.Email,
		"subject": f.Subject,
		"message": f.Message,
		"read":    false,
	}
}
