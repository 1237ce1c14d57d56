package controller

import (
	"context"
	"fmt"

	"github.com/atinyakov/InventarisHub/internal/models"
)

// UserAPI is the subset of the API client used for users.
type UserAPI interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, id string, fields models.User) error
	DeleteUser(ctx context.Context, id string) error
}

// User field names.
const (
	FieldUsername = "username"
	FieldEmail    = "email"
	FieldRole     = "role"
)

var userFields = []Field{
	{Name: FieldUsername, Label: "Username", Input: InputText},
	{Name: FieldEmail, Label: "Email", Input: InputEmail},
	{Name: FieldRole, Label: "Role", Input: InputSelect, Options: roleOptions()},
}

func roleOptions() []string {
	out := make([]string, 0, len(models.Roles))
	for _, r := range models.Roles {
		out = append(out, string(r))
	}
	return out
}

// UserAdapter adapts users to Controller. Updates return no record, so the
// draft itself is patched in until the refetch lands.
type UserAdapter struct {
	API UserAPI
}

// NewUsers returns a user screen controller.
func NewUsers(client UserAPI, sessions Sessions, nav Redirector, opts Options) *Controller[models.User] {
	return New[models.User](UserAdapter{API: client}, sessions, nav, opts)
}

func (UserAdapter) Entity() string { return "user" }

func (UserAdapter) ID(u models.User) string { return u.ID }

func (UserAdapter) SearchText(u models.User) []string {
	return []string{u.Username}
}

func (UserAdapter) Fields() []Field { return userFields }

func (UserAdapter) Value(u models.User, name string) string {
	switch name {
	case FieldUsername:
		return u.Username
	case FieldEmail:
		return u.Email
	case FieldRole:
		return string(u.Role)
	}
	return ""
}

func (UserAdapter) Set(u *models.User, name, value string) error {
	switch name {
	case FieldUsername:
		u.Username = value
	case FieldEmail:
		u.Email = value
	case FieldRole:
		u.Role = models.Role(value)
	default:
		return fmt.Errorf("%q: %w", name, ErrUnknownField)
	}
	return nil
}

func (a UserAdapter) List(ctx context.Context) ([]models.User, error) {
	return a.API.ListUsers(ctx)
}

func (a UserAdapter) Update(ctx context.Context, id string, d Draft[models.User]) (models.User, error) {
	if err := a.API.UpdateUser(ctx, id, d.Record); err != nil {
		return models.User{}, err
	}
	return d.Record, nil
}

func (a UserAdapter) Delete(ctx context.Context, id string) error {
	return a.API.DeleteUser(ctx, id)
}
