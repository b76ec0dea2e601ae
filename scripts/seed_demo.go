// Seeds a local database with a demo user, team and draft idea so the API
// can be exercised without going through signup. Intended for dev databases
// only; it is idempotent on the demo email and team prefix.
//
// Usage: go run ./scripts/seed_demo.go
package main

import (
	"fmt"
	"os"

	"gorm.io/gorm/clause"

	"github.com/ideaforge/ideaforge-backend/internal/db"
	"github.com/ideaforge/ideaforge-backend/internal/logger"
	"github.com/ideaforge/ideaforge-backend/internal/types"
)

const (
	demoEmail  = "demo@ideaforge.dev"
	demoPrefix = "DEMO"
)

func main() {
	log, err := logger.New("dev")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	gdb := pg.DB()

	user := types.User{Email: demoEmail, FirstName: "Demo", LastName: "User"}
	if err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(&user).Error; err != nil {
		fmt.Fprintf(os.Stderr, "seed user: %v\n", err)
		os.Exit(1)
	}
	if err := gdb.Where("email = ?", demoEmail).First(&user).Error; err != nil {
		fmt.Fprintf(os.Stderr, "load user: %v\n", err)
		os.Exit(1)
	}

	team := types.Team{Name: "Demo Team", Prefix: demoPrefix}
	if err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "prefix"}},
		DoNothing: true,
	}).Create(&team).Error; err != nil {
		fmt.Fprintf(os.Stderr, "seed team: %v\n", err)
		os.Exit(1)
	}

	var ideas int64
	if err := gdb.Model(&types.Idea{}).Where("user_id = ?", user.ID).Count(&ideas).Error; err != nil {
		fmt.Fprintf(os.Stderr, "count ideas: %v\n", err)
		os.Exit(1)
	}
	if ideas == 0 {
		idea := types.Idea{
			UserID:  user.ID,
			RawText: "a recipe planner that turns weekly meal plans into grocery lists",
			Phase:   types.PhaseDraft,
		}
		if err := gdb.Create(&idea).Error; err != nil {
			fmt.Fprintf(os.Stderr, "seed idea: %v\n", err)
			os.Exit(1)
		}
	}

	log.Info("demo data ready", "user_id", user.ID.String(), "email", demoEmail, "team_prefix", demoPrefix)
}
