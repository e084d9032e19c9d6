package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/document-locker/locker/internal/auth"
	"github.com/document-locker/locker/internal/validation"
)

// newSession builds an auth session against the configured server.
func newSession() (*auth.Session, error) {
	client, cfg, err := getAPIClient(false)
	if err != nil {
		return nil, err
	}
	return auth.NewSession(auth.Options{
		Client:    client,
		TokenPath: tokenPath(),
		Notifier:  newNotifier(cfg),
		Logger:    GetLogger(),
	}), nil
}

// printFieldErrors lists validation failures one per line.
func printFieldErrors(cmd *cobra.Command, err error) error {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, fe := range verrs {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", fe.Field, fe.Message)
	}
	return fmt.Errorf("please fix the fields above")
}

func newLoginCmd() *cobra.Command {
	var email, password string
	var remember bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token",
		Long: `Sign in to the Document Locker server.

The token is stored in the token file (mode 0600) and used by every other
command. Without --email or --password you are prompted; the password is
read without echo on a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			var err error
			if email == "" {
				if email, err = p.line("Email", ""); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = p.password("Password"); err != nil {
					return err
				}
			}

			session, err := newSession()
			if err != nil {
				return err
			}
			err = session.Login(GetContext(), validation.LoginForm{Email: email, Password: password, RememberMe: remember})
			if err != nil {
				return printFieldErrors(cmd, err)
			}
			if session.LoggedIn() {
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", session.Email())
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when omitted)")
	cmd.Flags().BoolVar(&remember, "remember", false, "Ask the server for a long-lived token")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var form validation.RegisterForm

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			var err error
			if form.Name == "" {
				if form.Name, err = p.line("Full name", ""); err != nil {
					return err
				}
			}
			if form.Email == "" {
				if form.Email, err = p.line("Email", ""); err != nil {
					return err
				}
			}
			if form.Password == "" {
				if form.Password, err = p.password("Password"); err != nil {
					return err
				}
				if form.ConfirmPassword, err = p.password("Confirm password"); err != nil {
					return err
				}
			} else if form.ConfirmPassword == "" {
				form.ConfirmPassword = form.Password
			}
			if !form.AgreeTerms {
				form.AgreeTerms = p.yesNo("Do you agree to the Terms of Service and Privacy Policy?")
			}

			session, err := newSession()
			if err != nil {
				return err
			}
			if err := session.Register(GetContext(), form); err != nil {
				return printFieldErrors(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created. Run 'locker login' to sign in.")
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Name, "name", "", "Full name")
	cmd.Flags().StringVarP(&form.Email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&form.Password, "password", "p", "", "Account password (prompted when omitted)")
	cmd.Flags().BoolVar(&form.AgreeTerms, "agree-terms", false, "Agree to the Terms of Service and Privacy Policy")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession()
			if err != nil {
				return err
			}
			return session.Logout()
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient(true)
			if err != nil {
				return err
			}
			me, err := client.Me(GetContext())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", me.Name, me.Email)
			return nil
		},
	}
}

