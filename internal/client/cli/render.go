package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/audit"
	"github.com/dmitrijs2005/authkeeper/internal/client/auth"
	"github.com/dmitrijs2005/authkeeper/internal/client/models"
	"github.com/dmitrijs2005/authkeeper/internal/client/state"
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/validation"
)

// syncWriter serializes writes from the REPL and from state notifications.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

var passwordChecks = []struct {
	code  common.Code
	label string
}{
	{common.CodePasswordTooShort, fmt.Sprintf("at least %d characters", validation.MinPasswordLength)},
	{common.CodePasswordNoLowercase, "a lowercase letter"},
	{common.CodePasswordNoUppercase, "an uppercase letter"},
	{common.CodePasswordNoNumber, "a number"},
	{common.CodePasswordNoSpecial, "a special character (" + validation.SpecialCharacters + ")"},
}

var scoreLabels = [...]string{"very weak", "weak", "fair", "good", "strong"}

func scoreLabel(score int) string {
	if score < 0 {
		score = 0
	}
	if score >= len(scoreLabels) {
		score = len(scoreLabels) - 1
	}
	return scoreLabels[score]
}

// passwordReport renders every password rule as a checklist line followed
// by the estimated strength. userInputs are words the password should not
// be built from (email, name).
func passwordReport(pw string, userInputs ...string) (string, bool) {
	res := validation.ValidatePassword(pw)

	var b strings.Builder
	for _, c := range passwordChecks {
		mark := "x"
		if res.Has(c.code) {
			mark = " "
		}
		fmt.Fprintf(&b, "  [%s] %s\n", mark, c.label)
	}
	score := validation.PasswordScore(pw, userInputs...)
	fmt.Fprintf(&b, "  strength: %s (%d/4)\n", scoreLabel(score), score)
	return b.String(), res.IsValid
}

// reasonOf returns the boundary code recorded on an operation error.
func reasonOf(err error) common.Code {
	e, ok := common.AsError(err)
	if !ok {
		return ""
	}
	r, _ := e.Details[auth.ReasonKey].(string)
	return common.Code(r)
}

func describeError(e *common.Error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error [%s]: %s", e.Code, e.Message)
	if e.Field != "" {
		fmt.Fprintf(&b, " (field: %s)", e.Field)
	}
	if r, ok := e.Details[auth.ReasonKey]; ok {
		fmt.Fprintf(&b, "\n  reason: %v", r)
	}
	if v, ok := e.Details["violations"].([]common.Code); ok {
		for _, c := range v {
			fmt.Fprintf(&b, "\n  - %s", c)
		}
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func describeUser(u *models.User, now time.Time) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", u.ID)
	fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	fmt.Fprintf(tw, "Name:\t%s\n", u.Name)
	if u.Phone != "" {
		fmt.Fprintf(tw, "Phone:\t%s\n", u.Phone)
	}
	fmt.Fprintf(tw, "Role:\t%s\n", u.Role)
	fmt.Fprintf(tw, "Plan:\t%s\n", u.Plan)
	fmt.Fprintf(tw, "Account:\t%s\n", u.Status)
	fmt.Fprintf(tw, "Email verified:\t%s\n", yesNo(u.Verification.EmailVerified))
	fmt.Fprintf(tw, "Two-factor:\t%s\n", yesNo(u.Security.TwoFactorEnabled))
	if u.IsLocked(now) {
		fmt.Fprintf(tw, "Locked until:\t%s\n", u.Security.LockedUntil.Format(time.RFC3339))
	}
	_ = tw.Flush()
	return b.String()
}

func describeState(s state.AuthState, now time.Time) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Status:\t%s\n", s.Status)
	if s.User != nil {
		fmt.Fprintf(tw, "User:\t%s\n", s.User.Email)
	}
	if s.SessionExpiry != nil {
		left := s.SessionExpiry.Sub(now).Truncate(time.Second)
		if left < 0 {
			left = 0
		}
		fmt.Fprintf(tw, "Expires:\t%s (in %s)\n", s.SessionExpiry.Local().Format(time.RFC3339), left)
	}
	if s.IsLoading {
		fmt.Fprintf(tw, "Loading:\tyes\n")
	}
	_ = tw.Flush()
	if s.Error != nil {
		b.WriteString(describeError(s.Error))
		b.WriteString("\n")
	}
	return b.String()
}

func describeAudit(entries []audit.Entry) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tRESULT\tUSER\tDETAILS")
	for _, e := range entries {
		result := "ok"
		if !e.Success {
			result = "failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format(time.DateTime), e.Action, result, e.UserID, formatDetails(e.Details))
	}
	_ = tw.Flush()
	return b.String()
}

func formatDetails(d map[string]any) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, d[k]))
	}
	return strings.Join(parts, " ")
}
