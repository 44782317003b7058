// Package upload validates CV files before they enter the pipeline.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultMaxBytes is the default upload size bound (10MB)
const DefaultMaxBytes int64 = 10 << 20

// PDFContentType is the only accepted upload media type
const PDFContentType = "application/pdf"

// pdfMagic starts every PDF file; some producers emit a few junk bytes first.
var pdfMagic = []byte("%PDF-")

const magicWindow = 1024

// File is an uploaded document
type File struct {
	Name        string `validate:"required"`
	ContentType string `validate:"required,pdftype"`
	Size        int64  `validate:"gt=0,maxsize"`
	Data        []byte `validate:"-"`
}

// NewFile builds a File whose Size is taken from data.
func NewFile(name, contentType string, data []byte) File {
	return File{Name: name, ContentType: contentType, Size: int64(len(data)), Data: data}
}

// Error is a rejected upload. Message is meant for users.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Validator checks uploads against the type and size rules
type Validator struct {
	maxBytes int64
	validate *validator.Validate
}

// NewValidator creates a validator with the given size bound. Non-positive
// bounds fall back to DefaultMaxBytes.
func NewValidator(maxBytes int64) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	v := &Validator{maxBytes: maxBytes, validate: validator.New()}
	_ = v.validate.RegisterValidation("pdftype", func(fl validator.FieldLevel) bool {
		mediaType, _, err := mime.ParseMediaType(fl.Field().String())
		return err == nil && mediaType == PDFContentType
	})
	_ = v.validate.RegisterValidation("maxsize", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= v.maxBytes
	})
	return v
}

// MaxBytes returns the configured size bound
func (v *Validator) MaxBytes() int64 {
	return v.maxBytes
}

// Validate checks a single upload. It returns an *Error describing the first problem.
func (v *Validator) Validate(f File) error {
	if err := v.validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return v.toError(verrs[0])
		}
		return &Error{Message: "Invalid upload."}
	}
	if int64(len(f.Data)) != f.Size {
		return &Error{Field: "Size", Message: "The uploaded file is incomplete. Please try again."}
	}
	if !looksLikePDF(f.Data) {
		return &Error{Field: "Data", Message: "Only PDF files are allowed."}
	}
	return nil
}

// ValidateCount rejects anything other than exactly one file.
func (v *Validator) ValidateCount(n int) error {
	switch {
	case n == 0:
		return &Error{Field: "File", Message: "No file uploaded"}
	case n > 1:
		return &Error{Field: "File", Message: "Please upload a single file."}
	}
	return nil
}

func (v *Validator) toError(fe validator.FieldError) *Error {
	switch fe.Field() {
	case "Name":
		return &Error{Field: "Name", Message: "No file uploaded"}
	case "ContentType":
		return &Error{Field: "ContentType", Message: "Only PDF files are allowed."}
	case "Size":
		if fe.Tag() == "gt" {
			return &Error{Field: "Size", Message: "The uploaded file is empty."}
		}
		return &Error{Field: "Size", Message: fmt.Sprintf("File is too large. Maximum size is %s.", FormatSize(v.maxBytes))}
	default:
		return &Error{Field: fe.Field(), Message: "Invalid upload."}
	}
}

func looksLikePDF(data []byte) bool {
	window := data
	if len(window) > magicWindow {
		window = window[:magicWindow]
	}
	return bytes.Contains(window, pdfMagic)
}

// FormatSize renders a byte count the way the upload form does ("10MB", "1.5KB").
func FormatSize(n int64) string {
	units := []string{"Bytes", "KB", "MB", "GB"}
	value := float64(n)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", n, units[0])
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", value), "0"), ".") + units[i]
}
