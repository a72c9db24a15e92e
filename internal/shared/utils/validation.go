package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Payload size limits (in bytes)
const (
	MaxSourceSize   = 1 * 1024 * 1024 // app source ceiling
	MaxManifestSize = 64 * 1024       // manifest document ceiling
)

// String length limits
const (
	MaxIDLength              = 128
	MaxLabelLength           = 256
	MaxNameLength            = 256
	MaxVersionLength         = 64
	MaxAuthorLength          = 256
	MaxDescriptionLength     = 2048
	MaxModuleSpecifierLength = 256
	MaxWhitelistEntries      = 64
)

// Regular expressions for validation
var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// AppIDPattern is the stricter slug form installed packages use
	AppIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	// ModuleSpecifierPattern covers plain and scoped specifiers (tsyne/runtime)
	ModuleSpecifierPattern = regexp.MustCompile(`^[a-zA-Z0-9@][a-zA-Z0-9@._/-]*$`)
	// VersionPattern is a loose semantic-version check
	VersionPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+\.[0-9]+([-+][a-zA-Z0-9.-]+)?$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an ID field
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateAppID validates an installed package identifier (slug form)
func ValidateAppID(id string) error {
	if err := ValidateString(id, "app id", 1, MaxIDLength, true); err != nil {
		return err
	}

	if !AppIDPattern.MatchString(id) {
		return fmt.Errorf("app id must be a lowercase slug (letters, digits, hyphens)")
	}

	return nil
}

// ValidateLabel validates the diagnostic label attached to a build
func ValidateLabel(label string) error {
	return ValidateString(label, "label", 1, MaxLabelLength, true)
}

// ValidateVersion validates a package version string
func ValidateVersion(version string, required bool) error {
	if err := ValidateString(version, "version", 1, MaxVersionLength, required); err != nil {
		return err
	}

	if version != "" && !VersionPattern.MatchString(version) {
		return fmt.Errorf("version must look like MAJOR.MINOR.PATCH")
	}

	return nil
}

// ValidateModuleSpecifier validates one whitelist entry. Specifiers are
// exact-match strings; rejecting glob characters here keeps anyone from
// assuming pattern semantics that do not exist.
func ValidateModuleSpecifier(name string) error {
	if err := ValidateString(name, "module specifier", 1, MaxModuleSpecifierLength, true); err != nil {
		return err
	}

	if !ModuleSpecifierPattern.MatchString(name) {
		return fmt.Errorf("module specifier %q contains invalid characters", name)
	}

	return nil
}

// ValidateWhitelist validates a full module whitelist
func ValidateWhitelist(modules []string) error {
	if len(modules) > MaxWhitelistEntries {
		return fmt.Errorf("too many whitelist entries (maximum %d)", MaxWhitelistEntries)
	}

	for _, name := range modules {
		if err := ValidateModuleSpecifier(name); err != nil {
			return err
		}
	}

	return nil
}

// ValidateSource validates untrusted application source before any
// parse attempt: size-capped and required to be valid UTF-8
func ValidateSource(source string) error {
	if source == "" {
		return fmt.Errorf("source is required")
	}

	if len(source) > MaxSourceSize {
		return fmt.Errorf("source size %d bytes exceeds maximum %d bytes", len(source), MaxSourceSize)
	}

	if !utf8.ValidString(source) {
		return fmt.Errorf("source is not valid UTF-8")
	}

	return nil
}

// ValidateName validates a display-name field
func ValidateName(name, fieldName string) error {
	return ValidateString(name, fieldName, 1, MaxNameLength, true)
}

// ValidateDescription validates a description field
func ValidateDescription(description, fieldName string, required bool) error {
	return ValidateString(description, fieldName, 0, MaxDescriptionLength, required)
}
