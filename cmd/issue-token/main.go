// issue-token signs an API token for an operator or an integration.
// The API verifies tokens with the same API_SECRET; it never issues them itself.
//
// Usage:
//
//	API_SECRET=... go run ./cmd/issue-token --user-id 7 --name cashier --perm settlement.cancel
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/warehouse_backend/appctx"
	"github.com/mmdatafocus/warehouse_backend/utils"
)

func main() {
	userID := flag.Int("user-id", 0, "Required: user id stamped into created_by / audit_by")
	name := flag.String("name", "", "Required: user name")
	admin := flag.Bool("admin", false, "Grant every permission")
	perms := flag.String("perm", "", "Comma-separated permissions, e.g. settlement.cancel,reconcile.run")
	flag.Parse()

	if *userID <= 0 || strings.TrimSpace(*name) == "" {
		fmt.Fprintln(os.Stderr, "--user-id and --name are required")
		os.Exit(1)
	}
	if os.Getenv("API_SECRET") == "" {
		fmt.Fprintln(os.Stderr, "warning: API_SECRET not set; token is signed with the development secret")
	}

	var permissions []string
	for _, p := range strings.Split(*perms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			permissions = append(permissions, p)
		}
	}

	token, err := utils.JwtGenerate(appctx.Actor{
		UserId:      *userID,
		UserName:    strings.TrimSpace(*name),
		IsAdmin:     *admin,
		Permissions: utils.UniqueSlice(permissions),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
