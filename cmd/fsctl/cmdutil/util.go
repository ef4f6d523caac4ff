// Package cmdutil holds the helpers shared by fsctl commands.
package cmdutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/fileserv/internal/bytesize"
	"github.com/marmos91/fileserv/internal/cli/credentials"
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/internal/cli/prompt"
	"github.com/marmos91/fileserv/pkg/apiclient"
)

// GlobalFlags are the persistent flags of the root command.
type GlobalFlags struct {
	ServerURL string
	Token     string
	Output    string
	NoColor   bool
	Verbose   bool
}

// Flags is synced from the root command before any subcommand runs.
var Flags = &GlobalFlags{Output: "table"}

// ErrNoServer is returned when neither --server nor a context names a server.
var ErrNoServer = errors.New("no server configured - pass --server or run 'fsctl login'")

// ============================================================================
// Clients
// ============================================================================

// GetAuthenticatedClient returns a client for the current context, refreshing
// the access token first when it has expired.
func GetAuthenticatedClient() (*apiclient.Client, error) {
	store, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	return AuthenticatedClient(store, *Flags)
}

// AuthenticatedClient is GetAuthenticatedClient over an explicit store and
// flag set.
func AuthenticatedClient(store *credentials.Store, flags GlobalFlags) (*apiclient.Client, error) {
	if flags.Token != "" {
		server := flags.ServerURL
		if server == "" {
			if ctx, err := store.Current(); err == nil {
				server = ctx.ServerURL
			}
		}
		if server == "" {
			return nil, ErrNoServer
		}
		return apiclient.New(server).WithToken(flags.Token), nil
	}

	ctx, err := store.Current()
	if err != nil || !ctx.LoggedIn() {
		return nil, credentials.ErrNotLoggedIn
	}
	server := ctx.ServerURL
	if flags.ServerURL != "" {
		server = flags.ServerURL
	}
	client := apiclient.New(server)

	if ctx.IsExpired() {
		if !ctx.HasRefreshToken() {
			return nil, fmt.Errorf("session expired - run 'fsctl login' again")
		}
		tokens, err := client.RefreshToken(ctx.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("session expired - run 'fsctl login' again: %w", err)
		}
		if err := store.UpdateTokens(tokens.AccessToken, tokens.RefreshToken, TokenExpiry(tokens, time.Now())); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}
	}
	return client.WithToken(ctx.AccessToken), nil
}

// GetServerClient returns an unauthenticated client for public endpoints
// such as health checks and share links.
func GetServerClient() (*apiclient.Client, error) {
	if Flags.ServerURL != "" {
		return apiclient.New(Flags.ServerURL), nil
	}
	store, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	ctx, err := store.Current()
	if err != nil || ctx.ServerURL == "" {
		return nil, ErrNoServer
	}
	return apiclient.New(ctx.ServerURL), nil
}

// TokenExpiry returns when the access token in t expires.
func TokenExpiry(t *apiclient.TokenResponse, now time.Time) time.Time {
	if !t.ExpiresAt.IsZero() {
		return t.ExpiresAt
	}
	return now.Add(apiclient.ExpiresIn(t))
}

// ============================================================================
// Output
// ============================================================================

// GetPrinter returns a printer for the --output and --no-color flags.
func GetPrinter(w io.Writer) (*output.Printer, error) {
	format, err := output.ParseFormat(Flags.Output)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(w, format, !Flags.NoColor && os.Getenv("NO_COLOR") == ""), nil
}

// PrintOutput prints data in the selected format. In table mode emptyMsg
// replaces an empty table.
func PrintOutput(w io.Writer, data any, empty bool, emptyMsg string, table output.TableRenderer) error {
	p, err := GetPrinter(w)
	if err != nil {
		return err
	}
	if empty && !p.Structured() {
		_, err := fmt.Fprintln(w, emptyMsg)
		return err
	}
	return p.Print(data, table)
}

// PrintResource prints a single resource.
func PrintResource(w io.Writer, data any, table output.TableRenderer) error {
	return PrintOutput(w, data, false, "", table)
}

// PrintResourceWithSuccess prints msg in table mode and the resource in
// structured modes.
func PrintResourceWithSuccess(w io.Writer, data any, msg string) error {
	p, err := GetPrinter(w)
	if err != nil {
		return err
	}
	if p.Structured() {
		return p.Print(data, nil)
	}
	p.Success("%s", msg)
	return nil
}

// PrintSuccess prints a success message unless structured output was asked
// for.
func PrintSuccess(msg string) {
	p, err := GetPrinter(os.Stdout)
	if err != nil {
		fmt.Println(msg)
		return
	}
	p.Success("%s", msg)
}

// RunDeleteWithConfirmation asks before running del unless force is set.
func RunDeleteWithConfirmation(kind, name string, force bool, del func() error) error {
	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete %s '%s'?", strings.ToLower(kind), name), force)
	if err != nil {
		return HandleAbort(err)
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}
	if err := del(); err != nil {
		return err
	}
	PrintSuccess(fmt.Sprintf("%s '%s' deleted", kind, name))
	return nil
}

// HandleAbort turns a Ctrl+C at a prompt into a quiet exit.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}

// ============================================================================
// Formatting and parsing
// ============================================================================

// EmptyOr returns fallback when s is empty.
func EmptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// BoolToYesNo renders a boolean for tables.
func BoolToYesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// ParseCommaSeparatedList splits a flag value, dropping blanks.
func ParseCommaSeparatedList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ParseSize parses a human byte size ("10GiB", "500m", "0").
func ParseSize(s string) (int64, error) {
	b, err := bytesize.Parse(s)
	if err != nil {
		return 0, err
	}
	return b.Int64(), nil
}

// FormatSize renders a byte count where 0 means unlimited.
func FormatSize(n int64) string {
	return bytesize.Format(n, true)
}

// ParseExpiry turns a flag value into an absolute expiry. It accepts an
// RFC 3339 timestamp, a Go duration, or a day count such as "7d". An empty
// value or "never" yields nil.
func ParseExpiry(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "never") {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid expiry %q", s)
		}
		t := now.AddDate(0, 0, n)
		return &t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return nil, fmt.Errorf("invalid expiry %q (use a duration like 24h, a day count like 7d, or an RFC 3339 time)", s)
	}
	t := now.Add(d)
	return &t, nil
}
