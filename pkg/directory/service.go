package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/maritimeconnect/mir/pkg/federation"
	"github.com/maritimeconnect/mir/pkg/observability"
)

// UserSpec describes a locally managed user to mirror into the users realm
type UserSpec struct {
	Mrn         string
	FirstName   string
	LastName    string
	Email       string
	Password    string
	OrgMrn      string
	Permissions string
	Enabled     bool
}

// Service synchronizes the users realm with locally managed user records
type Service struct {
	client federation.Client
	logger *observability.Logger
}

// NewService creates a directory service over the users-realm client
func NewService(client federation.Client, logger *observability.Logger) *Service {
	return &Service{client: client, logger: logger}
}

// CreateUser creates the user in the users realm and assigns a temporary
// password that must be changed at first login. The email address doubles
// as the username.
func (s *Service) CreateUser(ctx context.Context, spec UserSpec) error {
	user := &federation.User{
		Username: spec.Email,
		Enabled:  spec.Enabled,
		Attributes: map[string][]string{
			"org":         {spec.OrgMrn},
			"mrn":         {spec.Mrn},
			"permissions": {spec.Permissions},
		},
	}
	if strings.TrimSpace(spec.Email) != "" {
		user.Email = spec.Email
	}
	if strings.TrimSpace(spec.FirstName) != "" {
		user.FirstName = spec.FirstName
	}
	if strings.TrimSpace(spec.LastName) != "" {
		user.LastName = spec.LastName
	}

	if err := s.client.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create directory user %s: %w", spec.Mrn, err)
	}

	created, err := s.findByEmail(ctx, spec.Email)
	if err != nil {
		return err
	}
	if err := s.client.ResetPassword(ctx, created.ID, spec.Password, true); err != nil {
		return fmt.Errorf("set password for %s: %w", spec.Mrn, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_mrn": spec.Mrn,
		"org_mrn":  spec.OrgMrn,
	}).Info("created directory user")
	return nil
}

// UpdateUser brings the users-realm record in line with spec. Only changed
// fields are written, and at most one network update call is made; no call
// happens when nothing changed.
func (s *Service) UpdateUser(ctx context.Context, spec UserSpec) error {
	user, err := s.findByEmail(ctx, spec.Email)
	if err != nil {
		return err
	}

	updated := false
	if strings.TrimSpace(spec.Email) != "" && user.Email != spec.Email {
		user.Email = spec.Email
		updated = true
	}
	if strings.TrimSpace(spec.FirstName) != "" && user.FirstName != spec.FirstName {
		user.FirstName = spec.FirstName
		updated = true
	}
	if strings.TrimSpace(spec.LastName) != "" && user.LastName != spec.LastName {
		user.LastName = spec.LastName
		updated = true
	}
	if user.Attributes == nil {
		user.Attributes = make(map[string][]string)
	}
	if setAttr(user.Attributes, "permissions", spec.Permissions) {
		updated = true
	}
	if setAttr(user.Attributes, "mrn", spec.Mrn) {
		updated = true
	}

	if !updated {
		return nil
	}
	if err := s.client.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update directory user %s: %w", spec.Mrn, err)
	}
	return nil
}

// DeleteUser removes the user with the given email from the users realm.
// A user that is already gone is not an error.
func (s *Service) DeleteUser(ctx context.Context, email string) error {
	users, err := s.client.SearchUsers(ctx, email)
	if err != nil {
		return fmt.Errorf("search directory user %s: %w", email, err)
	}
	if len(users) == 0 {
		return nil
	}
	if err := s.client.DeleteUser(ctx, users[0].ID); err != nil {
		return fmt.Errorf("delete directory user %s: %w", email, err)
	}
	return nil
}

// findByEmail returns the single user matching the email, failing with
// ErrInconsistentState on zero or multiple matches
func (s *Service) findByEmail(ctx context.Context, email string) (*federation.User, error) {
	users, err := s.client.SearchUsers(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("search directory user %s: %w", email, err)
	}
	if len(users) != 1 {
		return nil, fmt.Errorf("%w: found %d users for %s, expected 1", ErrInconsistentState, len(users), email)
	}
	return &users[0], nil
}

// setAttr writes a single-valued attribute and reports whether it changed
func setAttr(attrs map[string][]string, name, value string) bool {
	if current, ok := attrs[name]; ok && len(current) > 0 && current[0] == value {
		return false
	}
	attrs[name] = []string{value}
	return true
}
