package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// getSimpleText, getPassword and getConfirmation are indirections used to
// facilitate testing.
var (
	getSimpleText   = GetSimpleText
	getPassword     = GetPassword
	getConfirmation = GetConfirmation
)

const defaultAuditEntries = 10

var errUsage = errors.New("usage")

// report prints the outcome of an operation. Failures are rendered from the
// snapshot, which holds the structured error.
func (a *App) report(err error, success string) error {
	if err == nil {
		a.println(success)
		return nil
	}
	if e := a.machine.State().Error; e != nil {
		a.println(describeError(e))
	} else {
		a.printf("Error: %v\n", err)
	}
	return err
}

func (a *App) prompt(text string) (string, error) {
	return getSimpleText(a.reader, text, a.out)
}

// newPassword asks for a password, shows the checklist and asks for the
// confirmation.
func (a *App) newPassword(label string, userInputs ...string) (pw, confirm []byte, err error) {
	pw, err = getPassword(a.reader, label, a.out)
	if err != nil {
		return nil, nil, err
	}
	checklist, ok := passwordReport(string(pw), userInputs...)
	a.printf("%s", checklist)
	if !ok {
		a.println("The password does not meet every requirement.")
	}
	confirm, err = getPassword(a.reader, "Confirm password", a.out)
	if err != nil {
		common.WipeByteArray(pw)
		return nil, nil, err
	}
	return pw, confirm, nil
}

// Login prompts for credentials, and for a two-factor code when the
// account requires one.
func (a *App) Login(ctx context.Context) error {
	return a.run(func() error {
		email, err := a.prompt("Enter email")
		if err != nil {
			return err
		}
		password, err := getPassword(a.reader, "Enter password", a.out)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(password)

		req := models.LoginRequest{Email: email, Password: string(password)}
		err = a.machine.Login(ctx, req)
		if reasonOf(err) == common.CodeTwoFactorRequired {
			code, perr := a.prompt("Enter two-factor code")
			if perr != nil {
				return perr
			}
			req.TwoFactorCode = code
			err = a.machine.Login(ctx, req)
		}
		return a.report(err, "Login successful")
	})
}

func (a *App) Register(ctx context.Context) error {
	return a.run(func() error {
		name, err := a.prompt("Enter name")
		if err != nil {
			return err
		}
		email, err := a.prompt("Enter email")
		if err != nil {
			return err
		}
		password, confirm, err := a.newPassword("Enter password", email, name)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(password)
		defer common.WipeByteArray(confirm)

		accept, err := getConfirmation(a.reader, "Accept the terms of service?", a.out)
		if err != nil {
			return err
		}

		err = a.machine.Register(ctx, models.RegisterRequest{
			Name:            name,
			Email:           email,
			Password:        string(password),
			ConfirmPassword: string(confirm),
			AcceptTerms:     accept,
		})
		return a.report(err, "Account created, you are logged in")
	})
}

func (a *App) Logout(ctx context.Context) error {
	return a.run(func() error {
		if err := a.machine.Logout(ctx); err != nil {
			a.printf("Logged out, but local cleanup reported: %v\n", err)
			return err
		}
		a.println("Logged out")
		return nil
	})
}

func (a *App) Refresh(ctx context.Context) error {
	return a.run(func() error {
		if err := a.machine.RefreshToken(ctx); err != nil {
			a.printf("Session could not be renewed, you have been logged out: %v\n", err)
			return err
		}
		a.println("Session renewed")
		return nil
	})
}

func (a *App) Whoami(context.Context) error {
	s := a.machine.State()
	if s.User == nil {
		a.println("Not logged in")
		return nil
	}
	a.printf("%s", describeUser(s.User, a.now()))
	return nil
}

func (a *App) Status(context.Context) error {
	a.printf("%s", describeState(a.machine.State(), a.now()))
	return nil
}

// Profile shows the profile, or updates it from name=value arguments.
func (a *App) Profile(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return a.Whoami(ctx)
	}

	values, bad := parseAssignments(args)
	var upd models.ProfileUpdate
	for k, v := range values {
		v := v
		switch k {
		case "name":
			upd.Name = &v
		case "email":
			upd.Email = &v
		case "phone":
			upd.Phone = &v
		default:
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		a.printf("Usage: profile [name=..] [email=..] [phone=..] (unknown: %v)\n", bad)
		return errUsage
	}

	return a.run(func() error {
		return a.report(a.machine.UpdateProfile(ctx, upd), "Profile updated")
	})
}

func (a *App) Passwd(ctx context.Context) error {
	return a.run(func() error {
		current, err := getPassword(a.reader, "Current password", a.out)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(current)

		var inputs []string
		if u := a.machine.State().User; u != nil {
			inputs = append(inputs, u.Email, u.Name)
		}
		pw, confirm, err := a.newPassword("New password", inputs...)
		if err != nil {
			return err
		}
		defer common.WipeByteArray(pw)
		defer common.WipeByteArray(confirm)

		err = a.machine.UpdatePassword(ctx, models.PasswordUpdate{
			CurrentPassword: string(current),
			NewPassword:     string(pw),
			ConfirmPassword: string(confirm),
		})
		return a.report(err, "Password changed")
	})
}

func (a *App) Forgot(ctx context.Context) error {
	return a.run(func() error {
		email, err := a.prompt("Enter email")
		if err != nil {
			return err
		}
		return a.report(a.machine.ForgotPassword(ctx, email), "If the address is registered, a reset link is on its way")
	})
}

func (a *App) Reset(ctx context.Context) error {
	return a.run(func() error {
		token, err := a.prompt("Enter reset token")
		if err != nil {
			return err
		}
		pw, confirm, err := a.newPassword("New password")
		if err != nil {
			return err
		}
		defer common.WipeByteArray(pw)
		defer common.WipeByteArray(confirm)

		err = a.machine.ResetPassword(ctx, models.PasswordReset{
			Token:           token,
			Password:        string(pw),
			ConfirmPassword: string(confirm),
		})
		return a.report(err, "Password reset, you can log in now")
	})
}

// Verify confirms an email address with the token from args or a prompt.
func (a *App) Verify(ctx context.Context, args []string) error {
	return a.run(func() error {
		var token string
		if len(args) > 0 {
			token = args[0]
		} else {
			t, err := a.prompt("Enter verification token")
			if err != nil {
				return err
			}
			token = t
		}
		return a.report(a.machine.VerifyEmail(ctx, token), "Email verified")
	})
}

// Resend requests a new verification email, for the signed-in user's
// address when there is one.
func (a *App) Resend(ctx context.Context) error {
	return a.run(func() error {
		var email string
		if u := a.machine.State().User; u != nil {
			email = u.Email
		} else {
			e, err := a.prompt("Enter email")
			if err != nil {
				return err
			}
			email = e
		}
		return a.report(a.machine.ResendVerification(ctx, email), "Verification email sent to "+email)
	})
}

// Audit lists the most recent security events.
func (a *App) Audit(ctx context.Context, args []string) error {
	if a.audit == nil {
		a.println("Audit log is not available")
		return nil
	}
	n := defaultAuditEntries
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v <= 0 {
			a.println("Usage: audit [n]")
			return errUsage
		}
		n = v
	}

	entries, err := a.audit.Recent(ctx, n)
	if err != nil {
		a.printf("Error: %v\n", err)
		return fmt.Errorf("audit: %w", err)
	}
	if len(entries) == 0 {
		a.println("No security events recorded")
		return nil
	}
	a.printf("%s", describeAudit(entries))
	return nil
}

// Clear drops the error left by the last failed command.
func (a *App) Clear(context.Context) error {
	if a.machine.State().Error == nil {
		a.println("Nothing to clear")
		return nil
	}
	a.machine.ClearError()
	a.println("Error cleared")
	return nil
}
