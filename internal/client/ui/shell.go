package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atinyakov/InventarisHub/internal/client/api"
	"github.com/atinyakov/InventarisHub/internal/client/controller"
	"github.com/atinyakov/InventarisHub/internal/models"
)

// SessionStore persists the bearer token.
type SessionStore interface {
	Token() (string, bool)
	SetToken(token string) error
	Clear() error
}

// Client is the API surface the shell drives.
type Client interface {
	Login(ctx context.Context, username, password string) (models.LoginResult, error)
	Logout(ctx context.Context) error
	controller.ProductAPI
	controller.UserAPI
}

// Config configures a Shell.
type Config struct {
	In             io.Reader
	Out            io.Writer
	Sessions       SessionStore
	Client         Client
	AssetOrigin    string
	SearchDebounce time.Duration
	Logger         *zap.Logger
}

// Shell is the interactive console loop.
type Shell struct {
	in       *bufio.Scanner
	out      io.Writer
	nav      *Navigator
	render   *Renderer
	sessions SessionStore
	auth     Client
	products *controller.Controller[models.Product]
	users    *controller.Controller[models.User]
	log      *zap.Logger
	debounce time.Duration
	changed  chan struct{}
}

// NewShell wires the navigator and both screen controllers.
func NewShell(cfg Config) *Shell {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Shell{
		in:       bufio.NewScanner(cfg.In),
		out:      cfg.Out,
		nav:      NewNavigator(RouteLogin),
		render:   NewRenderer(cfg.Out, cfg.AssetOrigin),
		sessions: cfg.Sessions,
		auth:     cfg.Client,
		log:      log,
		debounce: cfg.SearchDebounce,
		changed:  make(chan struct{}, 1),
	}
	opts := controller.Options{
		Logger:         log,
		SearchDebounce: cfg.SearchDebounce,
		Observer:       s.signal,
	}
	s.products = controller.NewProducts(cfg.Client, cfg.Sessions, s.nav, opts)
	s.users = controller.NewUsers(cfg.Client, cfg.Sessions, s.nav, opts)
	return s
}

// Navigator returns the route navigator.
func (s *Shell) Navigator() *Navigator { return s.nav }

func (s *Shell) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func (s *Shell) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) readLine() (string, bool) {
	if !s.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.in.Text()), true
}

func (s *Shell) ask(prompt string) (string, bool) {
	s.printf("%s", prompt)
	return s.readLine()
}

// Run reads commands until exit, end of input or ctx cancellation.
func (s *Shell) Run(ctx context.Context) error {
	if _, ok := s.sessions.Token(); ok {
		s.open(ctx, RouteHome)
	} else {
		s.nav.Go(RouteLogin)
		s.render.Login()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, ok := s.ask(s.prompt())
		if !ok {
			s.printf("\n")
			return s.in.Err()
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if s.dispatch(ctx, args[0], args[1:], strings.TrimSpace(strings.TrimPrefix(line, args[0]))) {
			s.printf("Bye\n")
			return nil
		}
		if s.nav.TakeRedirect() {
			s.printf("Your session is missing or has expired. Please log in.\n")
			s.render.Login()
		}
	}
}

func (s *Shell) prompt() string {
	switch r := s.nav.Current(); r {
	case RouteLogin:
		return "inventaris> "
	default:
		return "inventaris/" + string(r) + "> "
	}
}

// dispatch runs one command and reports whether the shell should exit.
func (s *Shell) dispatch(ctx context.Context, cmd string, args []string, rest string) bool {
	switch cmd {
	case "exit", "quit":
		return true
	case "help":
		s.help()
		return false
	case "login":
		s.login(ctx, args)
		return false
	}

	if s.nav.Current() == RouteLogin {
		s.printf("Please log in first. Type 'help' for a list of commands.\n")
		return false
	}

	switch cmd {
	case "logout":
		s.logout(ctx)
	case "home":
		s.open(ctx, RouteHome)
	case "products":
		s.open(ctx, RouteProducts)
	case "users":
		s.open(ctx, RouteUsers)
	case "refresh":
		s.refresh(ctx)
	case "search":
		s.search(rest)
	case "edit", "delete":
		if len(args) < 1 {
			s.printf("Usage: %s <id>\n", cmd)
			return false
		}
		s.mutate(ctx, cmd, args[0])
	default:
		s.printf("Unknown command. Type 'help' for a list of commands.\n")
	}
	return false
}

func (s *Shell) help() {
	switch s.nav.Current() {
	case RouteLogin:
		s.printf("Available commands: login [username], help, exit\n")
	case RouteHome:
		s.printf("Available commands: products, users, logout, help, exit\n")
	default:
		s.printf("Available commands: search [query], edit <id>, delete <id>, refresh, home, products, users, logout, help, exit\n")
	}
}

func (s *Shell) login(ctx context.Context, args []string) {
	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		var ok bool
		if username, ok = s.ask("Username: "); !ok {
			return
		}
	}
	password, ok := s.ask("Password: ")
	if !ok {
		return
	}

	res, err := s.auth.Login(ctx, username, password)
	switch api.Classify(err) {
	case api.KindNone:
	case api.KindInvalidCredentials:
		s.printf("Invalid username or password.\n")
		return
	default:
		s.log.Warn("login failed", zap.String("username", username), zap.Error(err))
		s.printf("Login failed: %v\n", err)
		return
	}
	if err := s.sessions.SetToken(res.Token); err != nil {
		s.log.Error("failed to store session", zap.Error(err))
		s.printf("Login succeeded but the session could not be saved: %v\n", err)
		return
	}
	s.log.Info("logged in", zap.String("username", username), zap.String("role", string(res.Role)))
	s.printf("Welcome, %s.\n", username)
	s.open(ctx, RouteHome)
}

// logout clears the session whatever the server says.
func (s *Shell) logout(ctx context.Context) {
	if err := s.auth.Logout(ctx); err != nil {
		s.log.Debug("logout call failed", zap.Error(err))
	}
	if err := s.sessions.Clear(); err != nil {
		s.log.Error("failed to clear session", zap.Error(err))
	}
	s.nav.Go(RouteLogin)
	s.printf("Logged out.\n")
	s.render.Login()
}

func (s *Shell) open(ctx context.Context, r Route) {
	if _, ok := s.sessions.Token(); r.Protected() && !ok {
		s.nav.RedirectToLogin()
		return
	}
	s.nav.Go(r)
	switch r {
	case RouteHome:
		s.render.Home()
	case RouteProducts:
		if err := s.products.Mount(ctx); err != nil {
			s.log.Debug("products mount failed", zap.Error(err))
		}
		s.show()
	case RouteUsers:
		if err := s.users.Mount(ctx); err != nil {
			s.log.Debug("users mount failed", zap.Error(err))
		}
		s.show()
	case RouteLogin:
		s.render.Login()
	}
}

// show renders the current list screen unless a redirect left it.
func (s *Shell) show() {
	switch s.nav.Current() {
	case RouteProducts:
		s.render.Products(s.products.View())
	case RouteUsers:
		s.render.Users(s.users.View())
	}
}

func (s *Shell) refresh(ctx context.Context) {
	var err error
	switch s.nav.Current() {
	case RouteProducts:
		err = s.products.Refresh(ctx)
	case RouteUsers:
		err = s.users.Refresh(ctx)
	default:
		s.printf("Nothing to refresh here.\n")
		return
	}
	if err != nil {
		s.log.Debug("refresh failed", zap.Error(err))
	}
	s.show()
}

func (s *Shell) search(query string) {
	var applied func() string
	switch s.nav.Current() {
	case RouteProducts:
		s.products.Search(query)
		applied = func() string { return s.products.View().Query }
	case RouteUsers:
		s.users.Search(query)
		applied = func() string { return s.users.View().Query }
	default:
		s.printf("Search is available on the products and users screens.\n")
		return
	}
	s.await(func() bool { return applied() == query })
	s.show()
}

// await blocks until cond holds, re-checking on every controller change.
func (s *Shell) await(cond func() bool) {
	timeout := time.NewTimer(s.debounce + time.Second)
	defer timeout.Stop()
	for !cond() {
		select {
		case <-s.changed:
		case <-timeout.C:
			s.log.Warn("timed out waiting for search results")
			return
		}
	}
}

func (s *Shell) mutate(ctx context.Context, cmd, id string) {
	switch s.nav.Current() {
	case RouteProducts:
		if cmd == "edit" {
			beginEdit(ctx, s, s.products, id)
		} else {
			deleteRecord(ctx, s, s.products, id)
		}
	case RouteUsers:
		if cmd == "edit" {
			beginEdit(ctx, s, s.users, id)
		} else {
			deleteRecord(ctx, s, s.users, id)
		}
	default:
		s.printf("Open the products or users screen first.\n")
		return
	}
	s.show()
}

// beginEdit runs the edit modal for record id.
func beginEdit[T any](ctx context.Context, s *Shell, c *controller.Controller[T], id string) {
	if err := c.OpenEdit(id); err != nil {
		s.printf("Cannot edit: %v\n", err)
		return
	}
	a := c.Adapter()
	s.printf("Editing %s %s. Leave a field blank to keep its value.\n", a.Entity(), id)

	for _, f := range a.Fields() {
		switch f.Input {
		case controller.InputReadOnly:
			continue
		case controller.InputFile:
			if !promptImage(s, c, f) {
				c.Cancel()
				return
			}
			continue
		}
		if !promptField(s, c, f) {
			c.Cancel()
			return
		}
	}

	Draft(s.render, a, c.View().Draft)
	runModal(ctx, s, c, "Save changes?", c.SubmitEdit, "Saved.")
}

// promptField asks for f until the value is accepted or left blank. It
// reports false at end of input.
func promptField[T any](s *Shell, c *controller.Controller[T], f controller.Field) bool {
	a := c.Adapter()
	label := f.Label
	if f.Input == controller.InputSelect {
		label += " (" + strings.Join(f.Options, "/") + ")"
	}
	for {
		current := a.Value(c.View().Draft.Record, f.Name)
		value, ok := s.ask(fmt.Sprintf("  %s [%s]: ", label, current))
		if !ok {
			return false
		}
		if value == "" {
			return true
		}
		if err := c.SetField(f.Name, value); err != nil {
			s.printf("  ! %v\n", err)
			continue
		}
		if f.Input == controller.InputNumber {
			derived(s, c)
		}
		return true
	}
}

// derived prints the read-only fields recomputed from the draft.
func derived[T any](s *Shell, c *controller.Controller[T]) {
	a := c.Adapter()
	rec := c.View().Draft.Record
	for _, f := range a.Fields() {
		if f.Input == controller.InputReadOnly {
			s.printf("  %s: %s\n", f.Label, rupiahString(a.Value(rec, f.Name)))
		}
	}
}

func promptImage[T any](s *Shell, c *controller.Controller[T], f controller.Field) bool {
	for {
		path, ok := s.ask(fmt.Sprintf("  %s file (blank keeps current): ", f.Label))
		if !ok {
			return false
		}
		if path == "" {
			return true
		}
		data, err := os.ReadFile(path)
		if err != nil {
			s.printf("  ! failed to read file %q: %v\n", path, err)
			continue
		}
		if err := c.Attach(&models.ImageUpload{Filename: filepath.Base(path), Data: data}); err != nil {
			s.printf("  ! %v\n", err)
			continue
		}
		return true
	}
}

// deleteRecord runs the delete confirmation for record id.
func deleteRecord[T any](ctx context.Context, s *Shell, c *controller.Controller[T], id string) {
	if err := c.OpenDelete(id); err != nil {
		s.printf("Cannot delete: %v\n", err)
		return
	}
	a := c.Adapter()
	name := id
	if text := a.SearchText(c.View().Target); len(text) > 0 && text[0] != "" {
		name = text[0]
	}
	runModal(ctx, s, c, fmt.Sprintf("Delete %s %q?", a.Entity(), name), c.ConfirmDelete, "Deleted.")
}

// runModal confirms and submits the open modal. A failed submission keeps
// the modal open and offers retry or cancel.
func runModal[T any](ctx context.Context, s *Shell, c *controller.Controller[T], question string, submit func(context.Context) error, done string) {
	answer, ok := s.ask(question + " [y/N]: ")
	if !ok || !yes(answer) {
		c.Cancel()
		s.printf("Cancelled.\n")
		return
	}
	for {
		err := submit(ctx)
		if err == nil {
			s.printf("%s\n", done)
			return
		}
		if errors.Is(err, controller.ErrBusy) {
			s.printf("Still working on the previous request.\n")
			return
		}
		if c.View().Modal == controller.ModalNone {
			// The write went through or the session ended; the screen shows the rest.
			return
		}
		s.render.ModalError(c.View().ModalErr)
		answer, ok := s.ask("[r]etry or [c]ancel: ")
		if !ok || !strings.HasPrefix(strings.ToLower(answer), "r") {
			c.Cancel()
			s.printf("Cancelled.\n")
			return
		}
	}
}

func yes(answer string) bool {
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}
