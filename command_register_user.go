package auth

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/nyaruka/phonenumbers"
)

var (
	emailPattern    = regexp.MustCompile(`^[A-Za-z0-9+_.-]+@(.+)$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	usernameStrip   = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
)

const (
	minPasswordLength = 6
	minUsernameLength = 3
	maxUsernameLength = 80
	maxNameLength     = 80
	maxEmailLength    = 120
)

// RegisterUserMessage is the payload of a self registration
type RegisterUserMessage struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Phone           string `json:"phoneNumber"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Normalize trims every field and lower-cases email and username. Passwords
// are left untouched.
func (e RegisterUserMessage) Normalize() RegisterUserMessage {
	e.FirstName = strings.TrimSpace(e.FirstName)
	e.LastName = strings.TrimSpace(e.LastName)
	e.Username = strings.ToLower(strings.TrimSpace(e.Username))
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	e.Phone = strings.TrimSpace(e.Phone)
	return e
}

// Validate checks the message using the default phone region
func (e RegisterUserMessage) Validate() error {
	return e.ValidateForRegion(DefaultPhoneRegion)
}

// ValidateForRegion checks the message. Phone numbers without a country
// prefix are parsed for region. Failures are returned as *ValidationError.
func (e RegisterUserMessage) ValidateForRegion(region string) error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&e.LastName, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&e.Email,
			validation.Required,
			validation.Length(3, maxEmailLength),
			validation.Match(emailPattern).Error("must be a valid email address"),
		),
		validation.Field(&e.Username,
			validation.Length(minUsernameLength, maxUsernameLength),
			validation.Match(usernamePattern).Error("may only contain letters, digits, dots, underscores and hyphens"),
		),
		validation.Field(&e.Phone, validation.By(ValidatePhoneNumber(region))),
		validation.Field(&e.Password,
			validation.Required,
			validation.RuneLength(minPasswordLength, 0),
			validation.Length(0, maxBcryptPasswordLength),
		),
		validation.Field(&e.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(e.Password)),
		),
	)
	return toValidationError(err)
}

// LoginMessage is the payload of a login attempt
type LoginMessage struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// GetIdentifier returns the identifier, falling back to the email field
func (r LoginMessage) GetIdentifier() string {
	if id := strings.TrimSpace(r.Identifier); id != "" {
		return id
	}
	return strings.TrimSpace(r.Email)
}

func (r LoginMessage) Validate() error {
	identifier := r.GetIdentifier()
	return toValidationError(validation.Errors{
		"identifier": validation.Validate(identifier, validation.Required),
		"password":   validation.Validate(r.Password, validation.Required),
	}.Filter())
}

// ValidateStringEquals checks that a value matches str exactly
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// ValidatePhoneNumber accepts empty values and numbers that parse as valid
// for region
func ValidatePhoneNumber(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return nil
		}
		if _, err := FormatPhoneNumber(s, region); err != nil {
			return errors.New("must be a valid phone number")
		}
		return nil
	}
}

// FormatPhoneNumber parses raw for region and returns it in E.164 form
func FormatPhoneNumber(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", err
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("invalid phone number")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for field, ferr := range verrs {
			if ferr == nil {
				continue
			}
			fields[field] = ferr.Error()
		}
		if len(fields) == 0 {
			return nil
		}
		return NewValidationError(fields)
	}

	return NewValidationError(map[string]string{"request": err.Error()})
}

// usernameFromEmail derives a username from the local part of email
func usernameFromEmail(email string) string {
	local := email
	if i := strings.Index(email, "@"); i >= 0 {
		local = email[:i]
	}

	name := strings.ToLower(usernameStrip.ReplaceAllString(local, ""))
	if len(name) > maxUsernameLength {
		name = name[:maxUsernameLength]
	}
	for len(name) < minUsernameLength {
		name += "_"
	}
	return name
}
