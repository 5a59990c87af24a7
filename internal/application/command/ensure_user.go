package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENSURE USER COMMAND
// Registers a user on first interaction and keeps the display name current.
// ══════════════════════════════════════════════════════════════════════════════

// EnsureUserCommand identifies the user behind an incoming interaction.
type EnsureUserCommand struct {
	// UserID is the external identifier supplied by the transport.
	UserID string

	// DisplayName replaces the stored name when non-empty and different.
	DisplayName string
}

// Validate validates the command.
func (c EnsureUserCommand) Validate() error {
	if !user.ID(c.UserID).IsValid() {
		return shared.ErrInvalidUserID
	}
	return nil
}

// EnsureUserResult contains the stored user.
type EnsureUserResult struct {
	User *user.User

	// Created is true when this call registered the user.
	Created bool

	// PreviousName is set when this call changed the display name.
	PreviousName string
}

// EnsureUserHandler handles the EnsureUserCommand.
type EnsureUserHandler struct {
	deps Deps
}

// NewEnsureUserHandler creates a new EnsureUserHandler.
func NewEnsureUserHandler(deps Deps) *EnsureUserHandler {
	return &EnsureUserHandler{deps: deps.withDefaults()}
}

// Handle executes the ensure user command. It is idempotent.
func (h *EnsureUserHandler) Handle(ctx context.Context, cmd EnsureUserCommand) (*EnsureUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	res, err := h.ensure(ctx, cmd)
	if errors.Is(err, shared.ErrUserExists) {
		// Lost a registration race; the user now exists.
		res, err = h.ensure(ctx, cmd)
	}
	if err != nil {
		return nil, fmt.Errorf("ensure_user: %w", err)
	}

	switch {
	case res.Created:
		h.deps.Logger.Info("user registered", "user_id", cmd.UserID)
		h.deps.publish(shared.NewUserRegisteredEvent(string(res.User.ID), res.User.DisplayName, res.User.CreatedAt))
	case res.PreviousName != "":
		h.deps.Logger.Info("user renamed", "user_id", cmd.UserID)
		h.deps.publish(shared.NewUserRenamedEvent(string(res.User.ID), res.User.DisplayName, res.PreviousName, h.deps.Clock.Now()))
	}
	return res, nil
}

func (h *EnsureUserHandler) ensure(ctx context.Context, cmd EnsureUserCommand) (*EnsureUserResult, error) {
	id := user.ID(cmd.UserID)
	name := strings.TrimSpace(cmd.DisplayName)
	now := h.deps.Clock.Now()

	var res EnsureUserResult
	err := h.deps.Store.Update(ctx, ledger.Scope{Users: []user.ID{id}}, func(tx ledger.Tx) error {
		u, err := tx.User(ctx, id)
		switch {
		case errors.Is(err, shared.ErrUnknownUser):
			u, err = user.New(id, name, now)
			if err != nil {
				return err
			}
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			res = EnsureUserResult{User: u, Created: true}
			return nil
		case err != nil:
			return err
		}

		res = EnsureUserResult{User: u}
		if name != "" && name != u.DisplayName {
			res.PreviousName = u.DisplayName
			u.DisplayName = name
			if err := tx.SaveUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
