package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/phdtrack/internal/domain"
	"github.com/roach88/phdtrack/internal/engine"
	"github.com/roach88/phdtrack/internal/store"
)

// NewUserCommand creates the user command group.
func NewUserCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCommand(rootOpts))
	return cmd
}

type userAddOptions struct {
	*RootOptions
	ID    string
	Name  string
	Email string
}

type userResult struct {
	User domain.User `json:"user"`
}

func (r userResult) Text() string {
	return fmt.Sprintf("created user %s (%s)", r.User.ID, r.User.DisplayName)
}

func newUserAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &userAddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Long: `Create a user. The id is chosen by the caller, so repeating the
command fails instead of creating a duplicate.

Example:
  phdctl user add --id u-1 --name "Ada Lovelace" --email ada@example.org`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "user id (required)")
	_ = cmd.MarkFlagRequired("id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")

	return cmd
}

func runUserAdd(opts *userAddOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	if err := engine.ValidateRequestID(opts.ID); err != nil {
		return f.Fail(engine.InvalidRequest("invalid user id", map[string]string{"user_id": opts.ID}))
	}

	e, err := opts.open(cmd)
	if err != nil {
		return f.Fail(err)
	}
	defer e.close(ctx)

	if _, err := e.store.GetUser(ctx, opts.ID); err == nil {
		return f.Fail(engine.InvalidRequest("user "+opts.ID+" already exists", map[string]string{"user_id": opts.ID}))
	} else if !store.IsNotFound(err) {
		return f.Fail(engine.StoreFailure("user.add", err))
	}

	u := domain.User{
		ID:          opts.ID,
		DisplayName: opts.Name,
		Email:       opts.Email,
		CreatedAt:   e.runner.Clock().Now(),
	}
	if err := e.store.InTx(ctx, func(tx *store.Tx) error { return tx.InsertUser(ctx, u) }); err != nil {
		return f.Fail(engine.StoreFailure("user.add", err))
	}
	return f.Success(userResult{User: u})
}
