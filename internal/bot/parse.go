package bot

import (
	"errors"
	"strconv"
	"strings"
)

// HandleNotProvided is stored when the lead has no messenger handle.
const HandleNotProvided = "Не указан"

const (
	minCohort       = 1
	maxCohort       = 4
	minGrade        = 4
	maxGrade        = 9
	phoneDigitCount = 11
)

var (
	errFormat      = errors.New("unexpected input format")
	errOutOfRange  = errors.New("value out of range")
	errNegativeAge = errors.New("age must not be negative")
	errPhonePrefix = errors.New("phone must start with +7 or 8")
	errPhoneLength = errors.New("phone must contain 11 digits")
)

// ParseRegistration reads "name\ncohort".
func ParseRegistration(text string) (string, int, error) {
	lines := splitLines(text)
	if len(lines) != 2 {
		return "", 0, errFormat
	}
	name := strings.TrimSpace(lines[0])
	cohort, err := strconv.Atoi(strings.TrimSpace(lines[1]))
	if name == "" || err != nil {
		return "", 0, errFormat
	}
	if cohort < minCohort || cohort > maxCohort {
		return "", 0, errOutOfRange
	}
	return name, cohort, nil
}

// ParseLeadInfo reads "child name\nage\ngrade".
func ParseLeadInfo(text string) (string, int, int, error) {
	lines := splitLines(text)
	if len(lines) != 3 {
		return "", 0, 0, errFormat
	}
	name := strings.TrimSpace(lines[0])
	age, ageErr := strconv.Atoi(strings.TrimSpace(lines[1]))
	grade, gradeErr := strconv.Atoi(strings.TrimSpace(lines[2]))
	if name == "" || ageErr != nil || gradeErr != nil {
		return "", 0, 0, errFormat
	}
	if age < 0 {
		return "", 0, 0, errNegativeAge
	}
	if grade < minGrade || grade > maxGrade {
		return "", 0, 0, errOutOfRange
	}
	return name, age, grade, nil
}

// NormalizeHandle turns a free-text username into "@name", or the
// not-provided sentinel for "нет", "none" and empty input.
func NormalizeHandle(text string) string {
	handle := strings.TrimSpace(text)
	switch strings.ToLower(handle) {
	case "", "нет", "none":
		return HandleNotProvided
	}
	if !strings.HasPrefix(handle, "@") {
		handle = "@" + handle
	}
	return handle
}

// NormalizePhone validates a Russian mobile number and returns it as
// "+7" followed by ten digits.
func NormalizePhone(text string) (string, error) {
	phone := strings.TrimSpace(text)
	if !strings.HasPrefix(phone, "+7") && !strings.HasPrefix(phone, "8") {
		return "", errPhonePrefix
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) != phoneDigitCount {
		return "", errPhoneLength
	}
	return "+7" + digits[1:], nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	return strings.Split(text, "\n")
}
