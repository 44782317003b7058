package upload

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func TestValidate_Accepts(t *testing.T) {
	v := NewValidator(0)
	assert.Equal(t, DefaultMaxBytes, v.MaxBytes())

	assert.NoError(t, v.Validate(NewFile("cv.pdf", "application/pdf", samplePDF)))
	assert.NoError(t, v.Validate(NewFile("cv.pdf", "Application/PDF", samplePDF)))
	assert.NoError(t, v.Validate(NewFile("cv.pdf", "application/pdf; name=cv.pdf", samplePDF)))
	// junk before the header is tolerated
	assert.NoError(t, v.Validate(NewFile("cv.pdf", "application/pdf", append([]byte("\r\n"), samplePDF...))))
}

func TestValidate_Rejects(t *testing.T) {
	v := NewValidator(64)
	big := append(append([]byte{}, samplePDF...), bytes.Repeat([]byte("x"), 64)...)

	tests := []struct {
		name    string
		file    File
		field   string
		message string
	}{
		{"missing name", NewFile("", "application/pdf", samplePDF), "Name", "No file uploaded"},
		{"wrong type", NewFile("cv.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", samplePDF), "ContentType", "Only PDF files are allowed."},
		{"missing type", NewFile("cv.pdf", "", samplePDF), "ContentType", "Only PDF files are allowed."},
		{"pdf-like type", NewFile("cv.pdf", "application/x-pdf", samplePDF), "ContentType", "Only PDF files are allowed."},
		{"pdf in subtype suffix", NewFile("cv.pdf", "application/vnd.fake+pdf", samplePDF), "ContentType", "Only PDF files are allowed."},
		{"empty", NewFile("cv.pdf", "application/pdf", nil), "Size", "The uploaded file is empty."},
		{"too large", NewFile("cv.pdf", "application/pdf", big), "Size", "File is too large. Maximum size is 64 Bytes."},
		{"not a pdf", NewFile("cv.pdf", "application/pdf", []byte("PK\x03\x04 zip archive")), "Data", "Only PDF files are allowed."},
		{"size mismatch", File{Name: "cv.pdf", ContentType: "application/pdf", Size: 10, Data: samplePDF}, "Size", "The uploaded file is incomplete. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.file)
			require.Error(t, err)

			var uerr *Error
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, tt.field, uerr.Field)
			assert.Equal(t, tt.message, uerr.Message)
		})
	}
}

func TestValidate_DefaultLimitMessage(t *testing.T) {
	v := NewValidator(DefaultMaxBytes)
	f := File{Name: "cv.pdf", ContentType: "application/pdf", Size: DefaultMaxBytes + 1}

	err := v.Validate(f)
	require.Error(t, err)
	assert.Equal(t, "File is too large. Maximum size is 10MB.", err.Error())
}

func TestValidateCount(t *testing.T) {
	v := NewValidator(0)
	assert.NoError(t, v.ValidateCount(1))
	assert.EqualError(t, v.ValidateCount(0), "No file uploaded")
	assert.EqualError(t, v.ValidateCount(2), "Please upload a single file.")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 Bytes", FormatSize(512))
	assert.Equal(t, "1.5KB", FormatSize(1536))
	assert.Equal(t, "10MB", FormatSize(10<<20))
	assert.Equal(t, "2GB", FormatSize(2<<30))
}
