package model

import (
	"regexp"
	"strings"
	"time"

	apperr "kgv/backend/pkg/errors"
)

// Value objects are built by their constructors and replaced as a whole.
// All of them compare with ==, except PersonName which has Equal.

// Salutation 称谓
type Salutation string

const (
	SalutationNone   Salutation = ""
	SalutationHerr   Salutation = "herr"
	SalutationFrau   Salutation = "frau"
	SalutationDivers Salutation = "divers"
	SalutationFamily Salutation = "familie"
)

// AllSalutations lists every salutation, including none.
func AllSalutations() []Salutation {
	return []Salutation{SalutationNone, SalutationHerr, SalutationFrau, SalutationDivers, SalutationFamily}
}

// ParseSalutation accepts the symbolic value case-insensitively.
func ParseSalutation(s string) (Salutation, error) {
	v := Salutation(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllSalutations() {
		if v == known {
			return v, nil
		}
	}
	return SalutationNone, apperr.Validation("Unbekannte Anrede %q", s)
}

// PersonName 姓名值对象
type PersonName struct {
	Salutation Salutation `gorm:"type:varchar(20)"  json:"salutation,omitempty"`
	Title      string     `gorm:"type:varchar(50)"  json:"title,omitempty"`
	FirstName  string     `gorm:"type:varchar(100)" json:"first_name,omitempty"`
	LastName   string     `gorm:"type:varchar(100)" json:"last_name,omitempty"`
	BirthDate  *time.Time `gorm:"type:date"         json:"birth_date,omitempty"`
}

// NewPersonName validates and builds a name. The last name is mandatory.
func NewPersonName(salutation Salutation, title, firstName, lastName string, birthDate *time.Time) (PersonName, error) {
	lastName = strings.TrimSpace(lastName)
	if lastName == "" {
		return PersonName{}, apperr.Validation("Nachname ist erforderlich")
	}
	if birthDate != nil && birthDate.After(time.Now()) {
		return PersonName{}, apperr.Validation("Geburtsdatum darf nicht in der Zukunft liegen")
	}
	return PersonName{
		Salutation: salutation,
		Title:      strings.TrimSpace(title),
		FirstName:  strings.TrimSpace(firstName),
		LastName:   lastName,
		BirthDate:  birthDate,
	}, nil
}

// Equal compares by value, including the birth date.
func (n PersonName) Equal(o PersonName) bool {
	if n.Salutation != o.Salutation || n.Title != o.Title || n.FirstName != o.FirstName || n.LastName != o.LastName {
		return false
	}
	if n.BirthDate == nil || o.BirthDate == nil {
		return n.BirthDate == nil && o.BirthDate == nil
	}
	return n.BirthDate.Equal(*o.BirthDate)
}

// IsZero reports whether no name was captured.
func (n PersonName) IsZero() bool {
	return n.LastName == "" && n.FirstName == ""
}

// FullName renders "Dr. Erika Mustermann".
func (n PersonName) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.Title, n.FirstName, n.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// LetterSalutation renders the opening line of a letter.
func (n PersonName) LetterSalutation() string {
	name := strings.TrimSpace(n.Title + " " + n.LastName)
	switch n.Salutation {
	case SalutationHerr:
		return "Sehr geehrter Herr " + name
	case SalutationFrau:
		return "Sehr geehrte Frau " + name
	case SalutationFamily:
		return "Sehr geehrte Familie " + n.LastName
	default:
		return "Guten Tag " + strings.TrimSpace(n.FirstName+" "+n.LastName)
	}
}

var postalCodePattern = regexp.MustCompile(`^[0-9]{5}$`)

// Address 地址值对象
type Address struct {
	Street     string `gorm:"type:varchar(200)" json:"street,omitempty"`
	PostalCode string `gorm:"type:varchar(5)"   json:"postal_code,omitempty"`
	City       string `gorm:"type:varchar(100)" json:"city,omitempty"`
}

// NewAddress validates a German postal address; every part is optional but a
// given postal code must have five digits.
func NewAddress(street, postalCode, city string) (Address, error) {
	postalCode = strings.TrimSpace(postalCode)
	if postalCode != "" && !postalCodePattern.MatchString(postalCode) {
		return Address{}, apperr.Validation("Ungültige Postleitzahl %q", postalCode)
	}
	return Address{
		Street:     strings.TrimSpace(street),
		PostalCode: postalCode,
		City:       strings.TrimSpace(city),
	}, nil
}

// Line renders "Gartenweg 1, 12345 Musterstadt".
func (a Address) Line() string {
	city := strings.TrimSpace(a.PostalCode + " " + a.City)
	switch {
	case a.Street == "":
		return city
	case city == "":
		return a.Street
	default:
		return a.Street + ", " + city
	}
}

// PhoneNumber 电话号码值对象
type PhoneNumber string

var phoneStrip = regexp.MustCompile(`[^+0-9\-\s()/]`)

// NewPhoneNumber strips foreign characters; the remainder must be 3–50 long.
func NewPhoneNumber(raw string) (PhoneNumber, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	cleaned := strings.TrimSpace(phoneStrip.ReplaceAllString(raw, ""))
	if len(cleaned) < 3 || len(cleaned) > 50 {
		return "", apperr.Validation("Ungültige Telefonnummer %q", raw)
	}
	return PhoneNumber(cleaned), nil
}

// Email 邮箱值对象
type Email string

var emailPattern = regexp.MustCompile(`^[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)

// NewEmail lower-cases and validates an address; empty input is allowed.
func NewEmail(raw string) (Email, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return "", nil
	}
	if !emailPattern.MatchString(v) {
		return "", apperr.Validation("Ungültige E-Mail-Adresse %q", raw)
	}
	return Email(v), nil
}

// Contact 联系方式值对象
type Contact struct {
	Phone         PhoneNumber `gorm:"type:varchar(50)"  json:"phone,omitempty"`
	MobilePhone   PhoneNumber `gorm:"type:varchar(50)"  json:"mobile_phone,omitempty"`
	MobilePhone2  PhoneNumber `gorm:"column:mobile_phone_2;type:varchar(50)" json:"mobile_phone_2,omitempty"`
	BusinessPhone PhoneNumber `gorm:"type:varchar(50)"  json:"business_phone,omitempty"`
	Email         Email       `gorm:"type:varchar(255)" json:"email,omitempty"`
}

// NewContact validates each channel.
func NewContact(phone, mobile, mobile2, business, email string) (Contact, error) {
	var c Contact
	var err error
	if c.Phone, err = NewPhoneNumber(phone); err != nil {
		return Contact{}, err
	}
	if c.MobilePhone, err = NewPhoneNumber(mobile); err != nil {
		return Contact{}, err
	}
	if c.MobilePhone2, err = NewPhoneNumber(mobile2); err != nil {
		return Contact{}, err
	}
	if c.BusinessPhone, err = NewPhoneNumber(business); err != nil {
		return Contact{}, err
	}
	if c.Email, err = NewEmail(email); err != nil {
		return Contact{}, err
	}
	return c, nil
}
