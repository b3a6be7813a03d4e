package entitlement

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrToolNotFound         = errors.New("tool not found")
	ErrEmailTaken           = errors.New("email already in use")
	ErrSlugTaken            = errors.New("slug already in use")
	ErrIDTaken              = errors.New("id already in use")
	ErrUnknownTools         = errors.New("unknown tool ids")
	ErrForbidden            = errors.New("forbidden")
	ErrLogoStorageDisabled  = errors.New("logo storage is not configured")
	ErrSecretsDisabled      = errors.New("secret sealing is not configured")
	ErrNoLaunchURL          = errors.New("tool has no launch url")
)

// UnknownToolsError lists catalog ids that an edge mutation referenced but
// that do not exist. It matches ErrUnknownTools with errors.Is.
type UnknownToolsError struct {
	IDs []string
}

func (e *UnknownToolsError) Error() string {
	return "unknown tool ids: " + strings.Join(e.IDs, ", ")
}

func (e *UnknownToolsError) Is(target error) bool {
	return target == ErrUnknownTools
}

// ValidationError carries per-field messages for invalid admin input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
