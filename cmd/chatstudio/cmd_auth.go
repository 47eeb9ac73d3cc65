package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/beymax11/chatstudio/src/app"
	"github.com/beymax11/chatstudio/src/auth"
)

// AuthCmd groups identity subcommands.
type AuthCmd struct {
	Signup  AuthSignupCmd  `cmd:"" help:"Create an account"`
	Signin  AuthSigninCmd  `cmd:"" aliases:"login" help:"Sign in with email and password"`
	OAuth   AuthOAuthCmd   `cmd:"" name:"oauth" help:"Print the sign-in URL for an OAuth provider"`
	Signout AuthSignoutCmd `cmd:"" aliases:"logout" help:"Sign out"`
	Confirm AuthConfirmCmd `cmd:"" help:"Confirm an email address with a token"`
	Whoami  AuthWhoamiCmd  `cmd:"" help:"Show the signed-in user"`
	Reset   AuthResetCmd   `cmd:"" name:"reset-password" help:"Send a password reset email"`
}

// stdoutNotifier prints confirmation tokens for the user to paste back.
type stdoutNotifier struct{}

func (stdoutNotifier) SendConfirmation(_ context.Context, email, token string) error {
	fmt.Printf("Confirmation token for %s: %s\n", email, token)
	fmt.Println("Run `chatstudio auth confirm <token>` to confirm your email.")
	return nil
}

// readPassword takes the flag value or prompts without echo.
func readPassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// openAuth opens the app and returns its auth service.
func openAuth(ctx context.Context, cli *CLI) (*app.App, *auth.Service, error) {
	a, _, err := openAppWith(ctx, cli, app.Options{Notifier: stdoutNotifier{}})
	if err != nil {
		return nil, nil, err
	}
	svc, err := a.RequireAuth()
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, svc, nil
}

type AuthSignupCmd struct {
	Email    string `arg:"" help:"Email address"`
	Username string `short:"u" required:"" help:"Username (3-30 letters, digits or underscores)"`
	Password string `short:"p" env:"CHATSTUDIO_PASSWORD" help:"Password (prompted when omitted)"`
}

func (c *AuthSignupCmd) Run(ctx context.Context, cli *CLI) error {
	password, err := readPassword(c.Password)
	if err != nil {
		return err
	}

	a, svc, err := openAuth(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := svc.SignUp(ctx, auth.SignUpInput{Email: c.Email, Password: password, Username: c.Username})
	if err != nil {
		return err
	}
	r := newRenderer(os.Stdout)
	if user.Confirmed() {
		r.notice("account %s created", user.Email)
	} else {
		r.notice("account %s created; confirm your email before signing in", user.Email)
	}
	return nil
}

type AuthSigninCmd struct {
	Email    string `arg:"" help:"Email address"`
	Password string `short:"p" env:"CHATSTUDIO_PASSWORD" help:"Password (prompted when omitted)"`
}

func (c *AuthSigninCmd) Run(ctx context.Context, cli *CLI) error {
	password, err := readPassword(c.Password)
	if err != nil {
		return err
	}

	a, svc, err := openAuth(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := svc.SignIn(ctx, auth.SignInInput{Email: c.Email, Password: password})
	if err != nil {
		return err
	}
	newRenderer(os.Stdout).notice("signed in as %s", session.User.Email)
	return nil
}

type AuthOAuthCmd struct {
	Provider   string `arg:"" help:"OAuth provider, e.g. google or github"`
	RedirectTo string `help:"URL the provider redirects to after sign-in"`
}

func (c *AuthOAuthCmd) Run(ctx context.Context, cli *CLI) error {
	a, svc, err := openAuth(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	u, err := svc.SignInWithOAuth(ctx, c.Provider, c.RedirectTo)
	if err != nil {
		return err
	}
	fmt.Println(u)
	return nil
}

type AuthSignoutCmd struct{}

func (c *AuthSignoutCmd) Run(ctx context.Context, cli *CLI) error {
	a, svc, err := openAuth(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := svc.SignOut(ctx); err != nil {
		return err
	}
	newRenderer(os.Stdout).notice("signed out")
	return nil
}

type AuthConfirmCmd struct {
	Token string `arg:"" help:"Confirmation token"`
}

func (c *AuthConfirmCmd) Run(ctx context.Context, cli *CLI) error {
	a, svc, err := openAuth(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := svc.Confirm(ctx, c.Token); err != nil {
		return err
	}
	newRenderer(os.Stdout).notice("email confirmed; you can sign in now")
	return nil
}

type AuthWhoamiCmd struct{}

func (c *AuthWhoamiCmd) Run(ctx context.Context, cli *CLI) error {
	a, svc, err := openAuth(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	session, err := svc.Session(ctx)
	if err != nil {
		return err
	}
	user := &session.User
	if fresh, err := a.Identity.FetchUser(ctx); err == nil {
		user = fresh
	}

	r := newRenderer(os.Stdout)
	fmt.Fprintln(r.w, r.styles.Title.Render(user.Email))
	if name := user.Username(); name != "" {
		fmt.Fprintf(r.w, "username:  %s\n", name)
	}
	fmt.Fprintf(r.w, "id:        %s\n", user.ID)
	fmt.Fprintf(r.w, "confirmed: %t\n", user.Confirmed())
	fmt.Fprintf(r.w, "expires:   %s\n", session.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}

type AuthResetCmd struct {
	Email      string `arg:"" help:"Email address"`
	RedirectTo string `help:"URL the reset link opens"`
}

func (c *AuthResetCmd) Run(ctx context.Context, cli *CLI) error {
	a, svc, err := openAuth(ctx, cli)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := svc.ResetPassword(ctx, c.Email, c.RedirectTo); err != nil {
		return err
	}
	newRenderer(os.Stdout).notice("password reset email sent to %s", c.Email)
	return nil
}
