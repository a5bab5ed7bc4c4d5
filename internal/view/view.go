// Package view holds the console's templ components.
package view

import "github.com/msomdec/modfusion-console/internal/domain"

// DisplayName is the user's full name, falling back to the first name and
// then the email.
func DisplayName(u *domain.User) string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}
