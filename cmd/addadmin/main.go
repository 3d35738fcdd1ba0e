package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"parkingsystem/internal/config"
	"parkingsystem/internal/repository"
	"parkingsystem/internal/service"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("addadmin", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Admin e-mail")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	driver := fs.String("driver", "", "Database driver, postgres or sqlite (default from DB_DRIVER)")
	dsn := fs.String("dsn", "", "Database URL or SQLite path (default from DATABASE_URL / SQLITE_PATH)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		fmt.Fprintln(stdout, "Usage: addadmin -email <email> [-password <password>] [-driver <driver>] [-dsn <dsn>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	if *driver == "" || *dsn == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("no -driver/-dsn given and environment is incomplete: %w", err)
		}
		if *driver == "" {
			*driver = cfg.DBDriver
		}
		if *dsn == "" {
			*dsn = cfg.DSN()
		}
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		var err error
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}

	ctx := context.Background()
	store, err := repository.Open(ctx, *driver, *dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	svc := service.NewAdminAuthService(repository.NewAdminAuthRepository(store), "")
	if err := svc.CreateAdmin(ctx, *email, password); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	fmt.Fprintf(stdout, "Admin %s created successfully\n", strings.ToLower(strings.TrimSpace(*email)))
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
