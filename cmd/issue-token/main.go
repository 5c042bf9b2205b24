package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dhis2-sre/update-manager/pkg/model"
	"github.com/dhis2-sre/update-manager/pkg/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "issue-token: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	keyFile := flag.String("key", "", "PEM encoded RSA private key, AUTHENTICATION_PRIVATE_KEY is used if empty")
	subject := flag.String("subject", "", "username the token is issued to")
	tenant := flag.String("tenant", "default", "tenant of the user")
	permissions := flag.String("permissions", "", "comma separated permissions, all permissions if empty")
	expiration := flag.Duration("expiration", time.Hour, "validity of the token")
	flag.Parse()

	if *subject == "" {
		return fmt.Errorf("-subject is required")
	}

	pem, err := readKey(*keyFile)
	if err != nil {
		return err
	}
	key, err := token.ParsePrivateKey(pem)
	if err != nil {
		return err
	}

	granted := model.AllPermissions
	if *permissions != "" {
		granted, err = parsePermissions(*permissions)
		if err != nil {
			return err
		}
	}

	signed, err := token.GenerateAccessToken(&model.User{
		Username:    *subject,
		Tenant:      strings.ToLower(*tenant),
		Permissions: granted,
	}, key, *expiration)
	if err != nil {
		return err
	}

	fmt.Println(signed)
	return nil
}

func readKey(file string) ([]byte, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %v", err)
		}
		return data, nil
	}

	value, exists := os.LookupEnv("AUTHENTICATION_PRIVATE_KEY")
	if !exists {
		return nil, fmt.Errorf("either -key or environment variable %q is required", "AUTHENTICATION_PRIVATE_KEY")
	}
	return []byte(value), nil
}

func parsePermissions(value string) ([]string, error) {
	var permissions []string
	for _, permission := range strings.Split(value, ",") {
		permission = strings.ToUpper(strings.TrimSpace(permission))
		if !slices.Contains(model.AllPermissions, permission) {
			return nil, fmt.Errorf("unknown permission %q", permission)
		}
		permissions = append(permissions, permission)
	}
	return permissions, nil
}
