package services

import (
	"fmt"
	"strings"

	apperrors "github.com/buildx-app/backend/pkg/errors"

	"github.com/buildx-app/backend/internal/activities"
)

// Access type labels surfaced in member listings.
const (
	AccessTypeFull    = "Full"
	AccessTypeLimited = "Limited"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func apperrBadRole(label string) *apperrors.AppError {
	return apperrors.NewBadRequest(fmt.Sprintf("Unknown role: %s", strings.TrimSpace(label)))
}

// resolveActivities turns a requested activity list into the canonical
// stored form for the role. Any select-all marker collapses the whole
// grant to [AllAccess]; an empty request grants the role's full list;
// otherwise every entry must belong to the role's permitted activities.
func resolveActivities(role activities.Role, requested []string) ([]string, error) {
	for _, activity := range requested {
		if activities.IsSelectAllMarker(activity) {
			return []string{activities.AllAccess}, nil
		}
	}

	if len(requested) == 0 {
		return activities.ForRole(role), nil
	}

	var invalid []string
	seen := make(map[string]struct{}, len(requested))
	resolved := make([]string, 0, len(requested))
	for _, activity := range requested {
		activity = strings.TrimSpace(activity)
		if activity == "" {
			continue
		}
		if _, dup := seen[activity]; dup {
			continue
		}
		seen[activity] = struct{}{}

		if !activities.RoleHasActivity(role, activity) {
			invalid = append(invalid, activity)
			continue
		}
		resolved = append(resolved, activity)
	}

	if len(invalid) > 0 {
		return nil, apperrors.NewBadRequest(fmt.Sprintf(
			"Invalid activities for role %s: %s", role, strings.Join(invalid, ", ")))
	}

	return resolved, nil
}

// accessTypeFor labels a stored activity list for listings. A grant is
// Full when it carries the AllAccess marker or covers the role's entire
// permitted list; anything narrower is Limited.
func accessTypeFor(role activities.Role, granted []string) string {
	for _, activity := range granted {
		if activity == activities.AllAccess {
			return AccessTypeFull
		}
	}

	permitted := activities.ForRole(role)
	if len(permitted) == 0 || len(granted) != len(permitted) {
		return AccessTypeLimited
	}

	have := make(map[string]struct{}, len(granted))
	for _, activity := range granted {
		have[activity] = struct{}{}
	}
	for _, activity := range permitted {
		if _, ok := have[activity]; !ok {
			return AccessTypeLimited
		}
	}
	return AccessTypeFull
}
