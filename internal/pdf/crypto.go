package pdf

import (
	"errors"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrPasswordRequired is returned when a PDF cannot be opened with the given
// credentials.
var ErrPasswordRequired = errors.New("pdf: password required")

// Credentials holds the passwords used to open an encrypted PDF.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty"`
}

// configuration builds the pdfcpu configuration for c. A nil receiver yields
// pdfcpu's defaults.
func (c *Credentials) configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if c == nil {
		return conf
	}
	if c.UserPassword != "" {
		conf.UserPW = c.UserPassword
	}
	if c.OwnerPassword != "" {
		conf.OwnerPW = c.OwnerPassword
	}
	return conf
}

// IsPasswordError reports whether err stems from missing or wrong PDF passwords.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPasswordRequired) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypted", "decrypt", "invalid credentials"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}
