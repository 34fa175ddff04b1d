package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"contaportal/internal/app"
	"contaportal/internal/domain"
	"contaportal/internal/identity"
	"contaportal/internal/store"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resolveAccountant accepts an accountant's id or email.
func resolveAccountant(a *app.App, ref string) (domain.User, error) {
	var found domain.User
	err := a.Store.View(func(st *store.State) error {
		r := identity.NewResolver(st)
		user, ok := r.FindUserByEmail(ref)
		if !ok {
			if id, err := uuid.Parse(strings.TrimSpace(ref)); err == nil {
				user, ok = r.FindUserByID(id)
			}
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, ref)
		}
		if user.Role != domain.RoleAccountant {
			return fmt.Errorf("%w: %s is not an accountant", domain.ErrForbidden, ref)
		}
		found = *user
		return nil
	})
	return found, err
}
