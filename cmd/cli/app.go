package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aryan0dhankhar/landledger/internal/domain"
	"github.com/aryan0dhankhar/landledger/internal/featureflags"
	"github.com/aryan0dhankhar/landledger/internal/repository"
	"github.com/aryan0dhankhar/landledger/internal/security"
	"github.com/aryan0dhankhar/landledger/internal/service"
	"github.com/aryan0dhankhar/landledger/internal/verification"
)

// app is the local variant: every service runs in process against the JSON
// document at LANDLEDGER_HOME, and the signed-in account is its currentUser entry.
type app struct {
	out       io.Writer
	log       *slog.Logger
	persister *repository.FilePersister
	runner    *verification.Runner

	auth      *service.AuthService
	lands     *service.LandService
	transfers *service.TransferService
	admin     *service.AdminService
	dashboard *service.DashboardService
}

func openApp(ctx context.Context, path string, out io.Writer, log *slog.Logger) (*app, error) {
	persister, err := repository.NewFilePersister(path)
	if err != nil {
		return nil, err
	}
	store, err := repository.NewMemoryStore(ctx, persister, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	timing := verification.DefaultTiming()
	if featureflags.Enabled(featureflags.FastVerification) {
		timing = verification.Timing{}
	}
	runner := verification.NewRunner(store, verification.SimulatedExecutors(timing), log)
	authz := security.NewAuthorizationServiceV2(log)

	a := &app{
		out:       out,
		log:       log,
		persister: persister,
		runner:    runner,
		auth:      service.NewAuthService(store, nil, runner, log),
		lands:     service.NewLandService(store, authz, log),
		transfers: service.NewTransferService(store, authz.AuthorizationService, log),
		admin:     service.NewAdminService(store, authz.AuthorizationService, nil, runner, log),
		dashboard: service.NewDashboardService(store, log),
	}

	if err := a.auth.EnsureAdmin(ctx, getEnv("ADMIN_EMAIL", "admin@blockland.com"), getEnv("ADMIN_PASSWORD", "admin123")); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.runner.Shutdown(ctx); err != nil {
		a.log.Warn("verification shutdown", slog.String("error", err.Error()))
	}
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	command, rest := args[0], args[1:]
	switch command {
	case "auth":
		return a.handleAuth(ctx, rest)
	case "land":
		return a.handleLand(ctx, rest)
	case "verify":
		return a.verify(ctx, rest)
	case "transfer":
		return a.handleTransfer(ctx, rest)
	case "dashboard":
		return a.showDashboard(ctx)
	case "admin":
		return a.handleAdmin(ctx, rest)
	default:
		return usageError(fmt.Sprintf("unknown command: %s (see landledger help)", command))
	}
}

// actor reloads the signed-in account from the store
func (a *app) actor(ctx context.Context) (*domain.User, error) {
	current, err := a.persister.CurrentUser()
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.Auth("please log in first")
	}
	user, err := a.auth.Actor(ctx, current.ID)
	if err != nil {
		if clearErr := a.persister.SetCurrentUser(nil); clearErr != nil {
			a.log.Warn("failed to clear stale session", slog.String("error", clearErr.Error()))
		}
		return nil, err
	}
	return user, nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usageError(fmt.Sprintf("%s: %v", fs.Name(), err))
	}
	return nil
}

// password returns the flag value or prompts for it
func password(value, prompt string) (string, error) {
	if value != "" {
		return value, nil
	}
	return readPassword(prompt)
}

// Auth commands

func (a *app) handleAuth(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("Usage: landledger auth <register|login|logout|who|profile|password>")
	}
	switch args[0] {
	case "register":
		return a.register(ctx, args[1:])
	case "login":
		return a.login(ctx, args[1:])
	case "logout":
		return a.logout(ctx)
	case "who":
		return a.whoAmI(ctx)
	case "profile":
		return a.updateProfile(ctx, args[1:])
	case "password":
		return a.changePassword(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown auth command: %s", args[0]))
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	pass := fs.String("password", "", "password (prompted when omitted)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	in := service.RegisterInput{Name: *name, Email: *email, Password: *pass, ConfirmPassword: *pass}
	if *pass == "" {
		var err error
		if in.Password, err = readPassword("Password: "); err != nil {
			return err
		}
		if in.ConfirmPassword, err = readPassword("Confirm password: "); err != nil {
			return err
		}
	}

	res, err := a.auth.Register(ctx, in)
	if err != nil {
		return err
	}
	if err := a.persister.SetCurrentUser(&res.User); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Registered and logged in as %s\n", res.User.Email)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "email address")
	pass := fs.String("password", "", "password (prompted when omitted)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	p, err := password(*pass, "Password: ")
	if err != nil {
		return err
	}

	res, err := a.auth.Login(ctx, *email, p)
	if err != nil {
		return err
	}
	if err := a.persister.SetCurrentUser(&res.User); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Logged in as %s (%s)\n", res.User.Email, res.User.Role)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	current, err := a.persister.CurrentUser()
	if err != nil {
		return err
	}
	if current != nil {
		a.runner.Clear(current.ID)
	}
	if err := a.persister.SetCurrentUser(nil); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "✓ Logged out")
	return nil
}

func (a *app) whoAmI(ctx context.Context) error {
	user, err := a.actor(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s> role=%s id=%s\n", user.Name, user.Email, user.Role, user.ID)
	return nil
}

func (a *app) updateProfile(ctx context.Context, args []string) error {
	user, err := a.actor(ctx)
	if err != nil {
		return err
	}
	fs := newFlagSet("profile")
	name := fs.String("name", user.Name, "full name")
	email := fs.String("email", user.Email, "email address")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	updated, err := a.auth.UpdateProfile(ctx, user.ID, *name, *email)
	if err != nil {
		return err
	}
	public := updated.Public()
	if err := a.persister.SetCurrentUser(&public); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Profile updated: %s <%s>\n", updated.Name, updated.Email)
	return nil
}

func (a *app) changePassword(ctx context.Context, args []string) error {
	user, err := a.actor(ctx)
	if err != nil {
		return err
	}
	fs := newFlagSet("password")
	oldFlag := fs.String("old", "", "current password (prompted when omitted)")
	newFlag := fs.String("new", "", "new password (prompted when omitted)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	oldPass, err := password(*oldFlag, "Current password: ")
	if err != nil {
		return err
	}
	newPass, err := password(*newFlag, "New password: ")
	if err != nil {
		return err
	}

	if err := a.auth.ChangePassword(ctx, user.ID, oldPass, newPass); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "✓ Password changed")
	return nil
}

// Land commands

func (a *app) handleLand(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("Usage: landledger land <register|list|show>")
	}
	user, err := a.actor(ctx)
	if err != nil {
		return err
	}
	switch args[0] {
	case "register":
		return a.registerLand(ctx, user, args[1:])
	case "list":
		lands, err := a.lands.ListMyLands(ctx, user)
		if err != nil {
			return err
		}
		sort.Slice(lands, func(i, j int) bool { return lands[i].RegisteredAt.After(lands[j].RegisteredAt) })
		a.printLands(lands)
		return nil
	case "show":
		if len(args) < 2 {
			return usageError("Usage: landledger land show <land-id>")
		}
		land, err := a.lands.GetLand(ctx, user, args[1])
		if err != nil {
			return err
		}
		a.printLand(land)
		return nil
	default:
		return usageError(fmt.Sprintf("unknown land command: %s", args[0]))
	}
}

func (a *app) registerLand(ctx context.Context, user *domain.User, args []string) error {
	fs := newFlagSet("land register")
	var in service.LandInput
	fs.StringVar(&in.Title, "title", "", "parcel title")
	fs.Float64Var((*float64)(&in.Area), "area", 0, "area in square feet")
	fs.StringVar(&in.Address, "address", "", "street address")
	fs.StringVar(&in.City, "city", "", "city")
	fs.StringVar(&in.State, "state", "", "state")
	fs.StringVar(&in.Country, "country", "", "country")
	fs.StringVar(&in.Pincode, "pincode", "", "postal code")
	fs.StringVar(&in.Coordinates, "coordinates", "", "GPS coordinates (optional)")
	fs.StringVar(&in.Description, "description", "", "description (optional)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	land, err := a.lands.RegisterLand(ctx, user, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ Land registered: %s (%s)\n", land.Title, land.ID)
	return nil
}

func (a *app) printLands(lands []*domain.Land) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCITY\tAREA\tSTATUS\tSTEP")
	for _, l := range lands {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%d\n", l.ID, l.Title, l.City, l.Area, l.Status, l.VerificationStep)
	}
	w.Flush()
}

func (a *app) printLand(l *domain.Land) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", l.ID)
	fmt.Fprintf(w, "Title\t%s\n", l.Title)
	fmt.Fprintf(w, "Area\t%.2f\n", l.Area)
	fmt.Fprintf(w, "Address\t%s, %s, %s, %s %s\n", l.Address, l.City, l.State, l.Country, l.Pincode)
	fmt.Fprintf(w, "Owner\t%s <%s>\n", l.OwnerName, l.OwnerEmail)
	fmt.Fprintf(w, "Status\t%s (step %d)\n", l.Status, l.VerificationStep)
	if len(l.Documents) > 0 {
		fmt.Fprintf(w, "Documents\t%s\n", strings.Join(l.Documents, ", "))
	}
	if l.CertificateID != nil {
		fmt.Fprintf(w, "Certificate\t%s\n", *l.CertificateID)
	}
	fmt.Fprintf(w, "Registered\t%s\n", l.RegisteredAt.Format(time.RFC3339))
	w.Flush()
}

// Verification

// stringList collects a repeatable flag
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// verify selects the parcel, runs one stage and waits for it, printing progress
func (a *app) verify(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("Usage: landledger verify <documents|notary|proof|mint> -land <land-id> [options]")
	}
	stage, err := verification.ParseStage(args[0])
	if err != nil {
		return err
	}
	user, err := a.actor(ctx)
	if err != nil {
		return err
	}

	fs := newFlagSet("verify")
	landID := fs.String("land", "", "parcel to verify")
	var docs stringList
	fs.Var(&docs, "doc", "document file name (repeatable, documents stage)")
	var in verification.StageInput
	fs.StringVar(&in.Appointment, "appointment", "", "RFC 3339 appointment time (notary stage)")
	fs.StringVar(&in.NFTName, "nft-name", "", "certificate name (mint stage)")
	fs.StringVar(&in.NFTDescription, "nft-description", "", "certificate description (mint stage)")
	if err := parseFlags(fs, args[1:]); err != nil {
		return err
	}
	if *landID == "" {
		return usageError("verify: -land is required")
	}
	in.Documents = docs

	if _, err := a.runner.Select(ctx, user, *landID); err != nil {
		return err
	}
	events, unsubscribe := a.runner.Subscribe(user.ID)
	defer unsubscribe()

	task, err := a.runner.Start(ctx, user, stage, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Running %s verification for %s\n", stage, *landID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		last := -1
		for ev := range events {
			if ev.Task == nil || ev.Task.ID != task.ID {
				continue
			}
			if ev.Type == verification.EventProgress && ev.Task.Progress != last {
				last = ev.Task.Progress
				fmt.Fprintf(a.out, "  %3d%%\n", last)
			}
			if ev.Type == verification.EventFinished {
				return
			}
		}
	}()

	final, err := a.runner.Wait(ctx, task.ID)
	if err != nil {
		return err
	}
	unsubscribe()
	<-done

	switch final.State {
	case verification.TaskSucceeded:
		fmt.Fprintf(a.out, "✓ Stage %s complete", stage)
		if final.Reference != "" {
			fmt.Fprintf(a.out, " (reference %s)", final.Reference)
		}
		fmt.Fprintln(a.out)
		return nil
	case verification.TaskCancelled:
		return fmt.Errorf("stage %s was cancelled", stage)
	default:
		return fmt.Errorf("stage %s failed: %s", stage, final.Error)
	}
}

// Transfers

func (a *app) handleTransfer(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("Usage: landledger transfer <send|list>")
	}
	user, err := a.actor(ctx)
	if err != nil {
		return err
	}
	switch args[0] {
	case "send":
		fs := newFlagSet("transfer send")
		var in service.TransferInput
		fs.StringVar(&in.LandID, "land", "", "verified parcel to transfer")
		fs.StringVar(&in.RecipientEmail, "to", "", "recipient email")
		fs.Float64Var(&in.Amount, "amount", 0, "agreed amount in "+domain.TransferCurrency)
		fs.StringVar(&in.Notes, "notes", "", "notes (optional)")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		res, err := a.transfers.Initiate(ctx, user, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "✓ %s transferred to %s (%s)\n", res.Land.Title, res.Transfer.ToUserEmail, res.Transfer.ID)
		return nil
	case "list":
		history, err := a.transfers.History(ctx, user)
		if err != nil {
			return err
		}
		a.printTransfers(history)
		return nil
	default:
		return usageError(fmt.Sprintf("unknown transfer command: %s", args[0]))
	}
}

func (a *app) printTransfers(transfers []*domain.Transfer) {
	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLAND\tFROM\tTO\tAMOUNT\tDATE")
	for _, t := range transfers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g %s\t%s\n",
			t.ID, t.LandTitle, t.FromUserName, t.ToUserName, t.Amount, t.Currency, t.TransferredAt.Format(time.RFC3339))
	}
	w.Flush()
}

func (a *app) showDashboard(ctx context.Context) error {
	user, err := a.actor(ctx)
	if err != nil {
		return err
	}
	d, err := a.dashboard.Dashboard(ctx, user)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Welcome, %s\n", d.User.Name)
	fmt.Fprintf(a.out, "Lands: %d total, %d pending, %d verified\n", d.TotalLands, d.PendingLands, d.VerifiedLands)
	fmt.Fprintf(a.out, "Transfers: %d\n", d.Transfers)
	if len(d.RecentLands) > 0 {
		fmt.Fprintln(a.out, "Recent lands:")
		a.printLands(d.RecentLands)
	}
	return nil
}

// Admin commands

func (a *app) handleAdmin(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("Usage: landledger admin <users|lands|transfers|delete-user>")
	}
	user, err := a.actor(ctx)
	if err != nil {
		return err
	}
	switch args[0] {
	case "users":
		users, err := a.admin.ListUsers(ctx, user)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tJOINED")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.CreatedAt.Format(time.RFC3339))
		}
		w.Flush()
		return nil
	case "lands":
		lands, err := a.admin.ListLands(ctx, user)
		if err != nil {
			return err
		}
		a.printLands(lands)
		return nil
	case "transfers":
		transfers, err := a.admin.ListTransfers(ctx, user)
		if err != nil {
			return err
		}
		a.printTransfers(transfers)
		return nil
	case "delete-user":
		if len(args) < 2 {
			return usageError("Usage: landledger admin delete-user <user-id>")
		}
		res, err := a.admin.DeleteUser(ctx, user, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "✓ User %s deleted (%d lands removed, %d transfers relabeled)\n",
			res.UserID, res.LandsRemoved, res.TransfersRelabeled)
		return nil
	default:
		return usageError(fmt.Sprintf("unknown admin command: %s", args[0]))
	}
}
