// Package portalctl is the operator command line for the document portal.
// It talks to the portal database directly to manage accounts.
package portalctl

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/educhain/internal/common"
	"github.com/dmitrijs2005/educhain/internal/server/auth"
	"github.com/dmitrijs2005/educhain/internal/server/models"
	"github.com/dmitrijs2005/educhain/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

const usage = `usage: portalctl [-d dsn] <command> [flags]

commands:
  create-user -u NAME [-r ADMIN|STUDENT]   create an account, password is prompted
  students                                 list student accounts
  migrate                                  apply database migrations
`

// ErrUsage is returned for an unknown command or bad flags.
var ErrUsage = errors.New("invalid usage")

type App struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	reader      *bufio.Reader
	out         io.Writer
	bcryptCost  int
}

func NewApp(db *sql.DB, m repomanager.RepositoryManager, in io.Reader, out io.Writer) *App {
	return &App{db: db, repomanager: m, reader: bufio.NewReader(in), out: out, bcryptCost: bcrypt.DefaultCost}
}

// Run executes a single command. args starts with the command name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}

	switch args[0] {
	case "create-user":
		return a.createUser(ctx, args[1:])
	case "students":
		return a.listStudents(ctx)
	case "migrate":
		if err := a.repomanager.RunMigrations(ctx, a.db); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "migrations applied")
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		fmt.Fprintf(a.out, "unknown command %q\n\n%s", args[0], usage)
		return ErrUsage
	}
}

func (a *App) createUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("u", "", "username")
	roleName := fs.String("r", string(models.RoleStudent), "role (ADMIN or STUDENT)")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	userName := strings.TrimSpace(*name)
	if userName == "" {
		var err error
		if userName, err = GetSimpleText(a.reader, "Username", a.out); err != nil {
			return err
		}
		if userName == "" {
			return fmt.Errorf("%w: username is required", common.ErrorValidation)
		}
	}
	role, ok := models.ParseRole(*roleName)
	if !ok {
		return fmt.Errorf("%w: unknown role %q", common.ErrorValidation, *roleName)
	}

	pw, err := GetNewPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)
	if len(pw) == 0 {
		return fmt.Errorf("%w: password is required", common.ErrorValidation)
	}

	hash, err := auth.HashPassword(string(pw), a.bcryptCost)
	if err != nil {
		return err
	}

	u, err := a.repomanager.Users(a.db).Create(ctx, &models.User{UserName: userName, PasswordHash: hash, Role: role})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("user %q already exists", userName)
		}
		return err
	}

	fmt.Fprintf(a.out, "created %s %s (id %s)\n", u.Role, u.UserName, u.ID)
	return nil
}

func (a *App) listStudents(ctx context.Context) error {
	students, err := a.repomanager.Users(a.db).ListByRole(ctx, models.RoleStudent)
	if err != nil {
		return err
	}
	if len(students) == 0 {
		fmt.Fprintln(a.out, "no students")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tCREATED")
	for _, s := range students {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.UserName, s.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}
